package models

import "time"

// RuleType discriminates the typed condition a RoutingRule evaluates.
type RuleType string

const (
	RuleCategory  RuleType = "category"
	RuleKeyword   RuleType = "keyword"
	RuleSentiment RuleType = "sentiment"
	RulePriority  RuleType = "priority"
	RuleCustomer  RuleType = "customer"
	RuleTime      RuleType = "time"
	RuleLanguage  RuleType = "language"
	RuleCustom    RuleType = "custom"
)

// RuleAction discriminates what a matched rule does.
type RuleAction string

const (
	ActionAssignAgent RuleAction = "assign_agent"
	ActionAssignTeam  RuleAction = "assign_team"
	ActionSetPriority RuleAction = "set_priority"
	ActionAddTag      RuleAction = "add_tag"
	ActionEscalate    RuleAction = "escalate"
	ActionAutoReply   RuleAction = "auto_reply"
	ActionNotify      RuleAction = "notify"
	ActionSkipQueue   RuleAction = "skip_queue"
)

// MatchMode controls how a keyword list is combined.
type MatchMode string

const (
	MatchAny MatchMode = "any"
	MatchAll MatchMode = "all"
)

// RuleConditions is a tagged union over every RuleType's predicate shape.
// Only the fields relevant to Type are populated; evaluation ignores the
// rest. This mirrors the conditions JSON blob but keeps it statically typed
// instead of an untyped map.
type RuleConditions struct {
	// category
	Categories []string `json:"categories,omitempty"`

	// keyword
	Keywords  []string  `json:"keywords,omitempty"`
	MatchMode MatchMode `json:"match_mode,omitempty"`

	// sentiment
	Sentiments []SentimentLabel `json:"sentiments,omitempty"`

	// priority
	MinPriority int `json:"min_priority,omitempty"`
	MaxPriority int `json:"max_priority,omitempty"`

	// customer
	Tiers []CustomerTier `json:"tiers,omitempty"`

	// language
	Languages []string `json:"languages,omitempty"`

	// custom: a named, pre-registered predicate identifier. Rules whose
	// CustomPredicate is not registered in the evaluator never match; no
	// expression text is ever executed.
	CustomPredicate string `json:"custom_predicate,omitempty"`
}

// RuleActionParams carries the parameters for RuleAction, again a typed
// union discriminated by the rule's Action field.
type RuleActionParams struct {
	AgentID  string `json:"agent_id,omitempty"`
	Team     string `json:"team,omitempty"`
	Priority int    `json:"priority,omitempty"`
	Tag      string `json:"tag,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message,omitempty"`
}

// RoutingRule is a configured rule evaluated by the Router before weighted
// scoring.
type RoutingRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Type         RuleType         `json:"type"`
	Conditions   RuleConditions   `json:"conditions"`
	Action       RuleAction       `json:"action"`
	ActionParams RuleActionParams `json:"action_params"`

	Priority    int  `json:"priority"` // evaluation order, higher first
	IsActive    bool `json:"is_active"`
	IsExclusive bool `json:"is_exclusive"` // stop on first match; false unless set

	AppliesToSources    []string `json:"applies_to_sources,omitempty"`
	AppliesToCategories []string `json:"applies_to_categories,omitempty"`

	ActiveFrom       *time.Time `json:"active_from,omitempty"`
	ActiveUntil      *time.Time `json:"active_until,omitempty"`
	ActiveHoursStart string     `json:"active_hours_start,omitempty"` // "HH:MM"
	ActiveHoursEnd   string     `json:"active_hours_end,omitempty"`   // "HH:MM"
	ActiveDays       []int      `json:"active_days,omitempty"`        // 0=Monday

	TimesTriggered  int        `json:"times_triggered"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KBDocumentType discriminates what kind of source text a KB document holds.
type KBDocumentType string

const (
	KBFAQ            KBDocumentType = "faq"
	KBResolvedTicket KBDocumentType = "resolved_ticket"
)

// KBDocumentMetadata is the structured metadata attached to a KB document.
type KBDocumentMetadata struct {
	Type     KBDocumentType `json:"type"`
	Category string         `json:"category,omitempty"`
	Rating   int            `json:"rating,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
	AddedAt  time.Time      `json:"added_at"`
}

// KBDocument is a stored, embedded knowledge-base entry.
type KBDocument struct {
	ID        string             `json:"id"`
	Embedding []float32          `json:"embedding"`
	Text      string             `json:"text"`
	Metadata  KBDocumentMetadata `json:"metadata"`
}
