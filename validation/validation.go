// Package validation provides request validation for the engine's ingress
// surfaces: ticket submission, agent management, and list queries.
package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidationError represents a validation error with details.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("multiple validation errors: ")
	for i, err := range e {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates request parameters.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// AddError adds a validation error.
func (v *Validator) AddError(field, message string, value interface{}) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	})
}

// Errors returns all validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// Validate returns an error if there are any validation errors.
func (v *Validator) Validate() error {
	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// Required validates that a string is not empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required", value)
	}
	return v
}

// MinLength validates minimum string length.
func (v *Validator) MinLength(field, value string, min int) *Validator {
	if utf8.RuneCountInString(value) < min {
		v.AddError(field, fmt.Sprintf("must be at least %d characters", min), value)
	}
	return v
}

// MaxLength validates maximum string length.
func (v *Validator) MaxLength(field, value string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.AddError(field, fmt.Sprintf("must be at most %d characters", max), value)
	}
	return v
}

// Range validates that an integer is within a range.
func (v *Validator) Range(field string, value, min, max int) *Validator {
	if value < min || value > max {
		v.AddError(field, fmt.Sprintf("must be between %d and %d", min, max), value)
	}
	return v
}

// Min validates minimum integer value.
func (v *Validator) Min(field string, value, min int) *Validator {
	if value < min {
		v.AddError(field, fmt.Sprintf("must be at least %d", min), value)
	}
	return v
}

// Max validates maximum integer value.
func (v *Validator) Max(field string, value, max int) *Validator {
	if value > max {
		v.AddError(field, fmt.Sprintf("must be at most %d", max), value)
	}
	return v
}

// Positive validates that an integer is positive.
func (v *Validator) Positive(field string, value int) *Validator {
	if value <= 0 {
		v.AddError(field, "must be positive", value)
	}
	return v
}

// NonNegative validates that an integer is non-negative.
func (v *Validator) NonNegative(field string, value int) *Validator {
	if value < 0 {
		v.AddError(field, "must be non-negative", value)
	}
	return v
}

// FloatRange validates that a float is within a range.
func (v *Validator) FloatRange(field string, value, min, max float64) *Validator {
	if value < min || value > max {
		v.AddError(field, fmt.Sprintf("must be between %f and %f", min, max), value)
	}
	return v
}

// Email validates that a non-empty value parses as an email address.
// Empty values pass; combine with Required when the field is mandatory.
func (v *Validator) Email(field, value string) *Validator {
	if value == "" {
		return v
	}
	if _, err := mail.ParseAddress(value); err != nil {
		v.AddError(field, "must be a valid email address", value)
	}
	return v
}

// OneOf validates membership in an allowed set. Empty values pass;
// combine with Required when the field is mandatory.
func (v *Validator) OneOf(field, value string, allowed ...string) *Validator {
	if value == "" {
		return v
	}
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of %s", strings.Join(allowed, ", ")), value)
	return v
}

// ISOLanguage validates a two-letter lowercase ISO 639-1 language code.
// Empty values pass; combine with Required when the field is mandatory.
func (v *Validator) ISOLanguage(field, value string) *Validator {
	if value == "" {
		return v
	}
	if len(value) != 2 || !isLowerAlpha(value) {
		v.AddError(field, "must be a two-letter ISO 639-1 code", value)
	}
	return v
}

func isLowerAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLower(r) || r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// TicketLimits bounds the fields a ticket submission may carry.
type TicketLimits struct {
	// MaxContentLength is the maximum ticket body length in characters.
	MaxContentLength int
	// MaxSubjectLength is the maximum subject length in characters.
	MaxSubjectLength int
	// MaxTags is the maximum number of tags on one ticket.
	MaxTags int
}

// DefaultTicketLimits returns the documented ingress limits.
func DefaultTicketLimits() TicketLimits {
	return TicketLimits{
		MaxContentLength: 50000,
		MaxSubjectLength: 500,
		MaxTags:          20,
	}
}

// TicketValidator validates ticket submission parameters.
type TicketValidator struct {
	*Validator
	limits TicketLimits
}

// NewTicketValidator creates a ticket validator with default limits.
func NewTicketValidator() *TicketValidator {
	return NewTicketValidatorWithLimits(DefaultTicketLimits())
}

// NewTicketValidatorWithLimits creates a ticket validator with custom limits.
func NewTicketValidatorWithLimits(limits TicketLimits) *TicketValidator {
	return &TicketValidator{
		Validator: NewValidator(),
		limits:    limits,
	}
}

// ValidateContent validates the ticket body.
func (v *TicketValidator) ValidateContent(content string) *TicketValidator {
	if content == "" {
		v.AddError("content", "is required", content)
		return v
	}
	v.MaxLength("content", content, v.limits.MaxContentLength)
	return v
}

// ValidateSubject validates the optional subject line.
func (v *TicketValidator) ValidateSubject(subject string) *TicketValidator {
	v.MaxLength("subject", subject, v.limits.MaxSubjectLength)
	return v
}

// ValidateCustomerEmail validates the submitting customer's address.
func (v *TicketValidator) ValidateCustomerEmail(email string) *TicketValidator {
	v.Required("customer_email", email)
	v.Email("customer_email", email)
	return v
}

// ValidateTier validates the customer tier enum.
func (v *TicketValidator) ValidateTier(tier string) *TicketValidator {
	v.OneOf("customer_tier", tier, "free", "standard", "premium", "vip", "enterprise")
	return v
}

// ValidateLanguage validates the optional language override.
func (v *TicketValidator) ValidateLanguage(language string) *TicketValidator {
	v.ISOLanguage("language", language)
	return v
}

// ValidateTags validates the tag list.
func (v *TicketValidator) ValidateTags(tags []string) *TicketValidator {
	if len(tags) > v.limits.MaxTags {
		v.AddError("tags", fmt.Sprintf("must have at most %d tags", v.limits.MaxTags), len(tags))
	}
	for i, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			v.AddError(fmt.Sprintf("tags[%d]", i), "must not be blank", tag)
		}
	}
	return v
}

// AgentValidator validates agent create/update parameters.
type AgentValidator struct {
	*Validator
}

// NewAgentValidator creates a new agent validator.
func NewAgentValidator() *AgentValidator {
	return &AgentValidator{Validator: NewValidator()}
}

// ValidateEmail validates the agent's unique address.
func (v *AgentValidator) ValidateEmail(email string) *AgentValidator {
	v.Required("email", email)
	v.Email("email", email)
	return v
}

// ValidateExperienceLevel validates the 1-5 experience scale.
func (v *AgentValidator) ValidateExperienceLevel(level int) *AgentValidator {
	v.Range("experience_level", level, 1, 5)
	return v
}

// ValidateLoad validates the load counters against each other.
func (v *AgentValidator) ValidateLoad(currentLoad, maxLoad int) *AgentValidator {
	v.NonNegative("current_load", currentLoad)
	v.NonNegative("max_load", maxLoad)
	if currentLoad > maxLoad {
		v.AddError("current_load", "must not exceed max_load", currentLoad)
	}
	return v
}

// ValidateLanguages validates the agent's language codes.
func (v *AgentValidator) ValidateLanguages(languages []string) *AgentValidator {
	for i, lang := range languages {
		if len(lang) != 2 || !isLowerAlpha(lang) {
			v.AddError(fmt.Sprintf("languages[%d]", i), "must be a two-letter ISO 639-1 code", lang)
		}
	}
	return v
}

// ListValidator validates list-query parameters.
type ListValidator struct {
	*Validator
	maxPageSize int
}

// NewListValidator creates a list validator with the given page-size cap.
func NewListValidator(maxPageSize int) *ListValidator {
	return &ListValidator{
		Validator:   NewValidator(),
		maxPageSize: maxPageSize,
	}
}

// ValidatePagination validates limit/offset parameters.
func (v *ListValidator) ValidatePagination(limit, offset int) *ListValidator {
	v.NonNegative("offset", offset)
	if limit != 0 {
		v.Positive("limit", limit)
		v.Max("limit", limit, v.maxPageSize)
	}
	return v
}

// ValidateSortOrder validates the sort direction.
func (v *ListValidator) ValidateSortOrder(order string) *ListValidator {
	v.OneOf("sort_order", order, "asc", "desc")
	return v
}

// ValidatePriority validates a priority filter.
func (v *ListValidator) ValidatePriority(priority int) *ListValidator {
	if priority != 0 {
		v.Range("priority", priority, 1, 5)
	}
	return v
}

// Quick validation functions

// ValidateTicketQuick validates the required submission fields in one call.
func ValidateTicketQuick(content, customerEmail, tier, language string) error {
	return NewTicketValidator().
		ValidateContent(content).
		ValidateCustomerEmail(customerEmail).
		ValidateTier(tier).
		ValidateLanguage(language).
		Validate()
}

// ValidateAgentQuick validates the required agent fields in one call.
func ValidateAgentQuick(email string, experienceLevel, currentLoad, maxLoad int) error {
	return NewAgentValidator().
		ValidateEmail(email).
		ValidateExperienceLevel(experienceLevel).
		ValidateLoad(currentLoad, maxLoad).
		Validate()
}
