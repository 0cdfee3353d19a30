// Package classify assigns a category to ticket text using a chat-completion
// provider with a rule-based keyword fallback; provider results are memoized
// in an optional cache.
package classify

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ticketflow/engine/llm"
	"github.com/ticketflow/engine/observability"
	"github.com/ticketflow/engine/retry"
	"github.com/ticketflow/engine/ticketing/models"
)

// DefaultCategories is the configured category set the classifier scores
// against; callers may supply a narrower or wider set via NewClassifier.
var DefaultCategories = []string{
	"technical_issue",
	"billing",
	"complaint",
	"feature_request",
	"general_inquiry",
	"account_access",
	"bug_report",
	"praise",
}

// CategoryDescriptions gives the system prompt one line per category per
// language; languages other than the ones listed fall back to English.
var CategoryDescriptions = map[string]map[string]string{
	"en": {
		"technical_issue": "Problems with the product not working as expected",
		"billing":         "Questions or disputes about charges, invoices, or payments",
		"complaint":       "General dissatisfaction not tied to a specific defect",
		"feature_request": "Suggestions for new functionality",
		"general_inquiry": "Questions that do not fit another category",
		"account_access":  "Login, password, or account lockout issues",
		"bug_report":      "A specific, reproducible defect",
		"praise":          "Positive feedback with no action requested",
	},
	"tr": {
		"technical_issue": "Ürünün beklendiği gibi çalışmamasıyla ilgili sorunlar",
		"billing":         "Ücretler, faturalar veya ödemelerle ilgili sorular",
		"complaint":       "Belirli bir kusura bağlı olmayan genel memnuniyetsizlik",
		"feature_request": "Yeni işlevsellik önerileri",
		"general_inquiry": "Başka bir kategoriye uymayan sorular",
		"account_access":  "Giriş, şifre veya hesap kilitlenmesi sorunları",
		"bug_report":      "Belirli, tekrarlanabilir bir kusur",
		"praise":          "Eylem gerektirmeyen olumlu geri bildirim",
	},
}

var keywordMap = map[string][]string{
	"technical_issue": {"not working", "error", "crash", "broken", "bug", "glitch", "freeze", "slow"},
	"billing":         {"charge", "invoice", "payment", "refund", "billed", "subscription", "price"},
	"complaint":       {"unhappy", "disappointed", "terrible", "worst", "unacceptable", "frustrated"},
	"feature_request": {"would be nice", "please add", "suggestion", "feature request", "wish"},
	"account_access":  {"can't log in", "password", "locked out", "reset my", "can't access"},
	"bug_report":      {"reproduce", "steps to reproduce", "stack trace", "exception", "crash"},
	"praise":          {"thank you", "great job", "love this", "amazing", "excellent"},
}

// Result is the classifier's output contract.
type Result struct {
	PrimaryCategory     string
	Confidence          float64
	AllCategories       map[string]float64
	SecondaryCategories []string
	Reasoning           string
	Method              string
}

// Cache is the minimal interface the classifier needs from a memoization
// backend; dedup.Cache and an in-memory map both satisfy it.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

var logger = observability.NewLogger(nil)

// Classifier assigns a category to ticket text.
type Classifier struct {
	provider   llm.Provider
	model      string
	categories []string
	cache      Cache
	cacheTTL   time.Duration
	maxChars   int
	retryOpts  []retry.Option
}

// Config configures a Classifier.
type Config struct {
	Categories []string
	Model      string
	Cache      Cache
	CacheTTL   time.Duration
	MaxChars   int
	MaxRetries int
}

// New builds a Classifier. provider and cache may be nil: a nil provider
// means the classifier always falls through to rule-based scoring; a nil
// cache disables memoization.
func New(provider llm.Provider, cfg Config) *Classifier {
	categories := cfg.Categories
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	maxChars := cfg.MaxChars
	if maxChars == 0 {
		maxChars = 5000
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Hour
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Classifier{
		provider:   provider,
		model:      model,
		categories: categories,
		cache:      cfg.Cache,
		cacheTTL:   cacheTTL,
		maxChars:   maxChars,
		retryOpts: []retry.Option{
			retry.WithMaxRetries(maxRetries),
			retry.WithInitialDelay(time.Second),
			retry.WithMaxDelay(10 * time.Second),
			retry.WithMultiplier(2.0),
			retry.WithJitter(0.2),
			retry.WithRetryIf(retry.RetryAlways),
		},
	}
}

// Classify categorizes text, consulting the cache first, then the external
// provider, then falling back to rule-based scoring on any dependency
// failure. It never returns an error: a degraded classification is always
// produced.
func (c *Classifier) Classify(ctx context.Context, text, language string, useCache bool) (*Result, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &Result{
			PrimaryCategory: "general_inquiry",
			Confidence:      0.0,
			AllCategories:   map[string]float64{"general_inquiry": 1.0},
			Method:          "default",
		}, nil
	}

	truncated := truncate(trimmed, c.maxChars)
	cacheKey := "classify:" + hashText(truncated)

	if useCache && c.cache != nil {
		if cached, ok, err := c.cache.Get(ctx, cacheKey); err == nil && ok {
			var result Result
			if err := json.Unmarshal([]byte(cached), &result); err == nil {
				result.Method = "ai_cached"
				return &result, nil
			}
		}
	}

	if c.provider != nil {
		result, err := c.classifyWithProvider(ctx, truncated, language)
		if err == nil {
			c.validate(result)
			if useCache && c.cache != nil {
				if payload, merr := json.Marshal(result); merr == nil {
					if serr := c.cache.Set(ctx, cacheKey, string(payload), c.cacheTTL); serr != nil {
						logger.Warn("classifier cache write failed", observability.Err(serr))
					}
				}
			}
			return result, nil
		}
		logger.Warn("classifier provider failed, falling back to rule-based scoring", observability.Err(err))
	}

	return c.ruleBasedFallback(truncated), nil
}

func (c *Classifier) classifyWithProvider(ctx context.Context, text, language string) (*Result, error) {
	system := c.systemPrompt(language)
	req := &llm.CompletionRequest{
		SystemPrompt: system,
		UserPrompt:   text,
		Temperature:  0.3,
		MaxTokens:    400,
		Model:        c.model,
	}

	resp, err := retry.Do(ctx, func() (*llm.CompletionResponse, error) {
		return c.provider.GenerateCompletion(ctx, req)
	}, c.retryOpts...)
	if err != nil {
		return nil, fmt.Errorf("classifier completion failed: %w", err)
	}

	var parsed struct {
		PrimaryCategory     string             `json:"primary_category"`
		SecondaryCategories []string           `json:"secondary_categories"`
		AllCategories       map[string]float64 `json:"all_categories"`
		Confidence          float64            `json:"confidence"`
		Reasoning           string             `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &parsed); err != nil {
		return nil, fmt.Errorf("classifier response parse failed: %w", err)
	}

	return &Result{
		PrimaryCategory:     parsed.PrimaryCategory,
		Confidence:          parsed.Confidence,
		AllCategories:       parsed.AllCategories,
		SecondaryCategories: parsed.SecondaryCategories,
		Reasoning:           parsed.Reasoning,
		Method:              "ai",
	}, nil
}

// validate coerces an out-of-set primary category to general_inquiry.
func (c *Classifier) validate(r *Result) {
	for _, cat := range c.categories {
		if cat == r.PrimaryCategory {
			return
		}
	}
	logger.Warn("classifier returned unconfigured category, coercing",
		observability.String("returned_category", r.PrimaryCategory))
	r.PrimaryCategory = "general_inquiry"
}

func (c *Classifier) systemPrompt(language string) string {
	var b strings.Builder
	b.WriteString("Classify the support ticket into exactly one of the following categories. ")
	b.WriteString("Respond with JSON: {\"primary_category\":..,\"secondary_categories\":[..],\"all_categories\":{cat:score},\"confidence\":0..1,\"reasoning\":\"..\"}.\n")
	descs := CategoryDescriptions[language]
	if descs == nil {
		descs = CategoryDescriptions["en"]
	}
	for _, cat := range c.categories {
		desc := descs[cat]
		if desc == "" {
			desc = CategoryDescriptions["en"][cat]
		}
		b.WriteString(fmt.Sprintf("- %s: %s\n", cat, desc))
	}
	return b.String()
}

// ruleBasedFallback implements the keyword-bag scoring described for the
// classifier's degraded path.
func (c *Classifier) ruleBasedFallback(text string) *Result {
	lower := strings.ToLower(text)
	scores := make(map[string]float64, len(c.categories))

	for _, cat := range c.categories {
		keywords := keywordMap[cat]
		matches := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		score := float64(matches) * 0.2
		if score > 0.9 {
			score = 0.9
		}
		scores[cat] = score
	}
	if _, ok := scores["general_inquiry"]; ok && scores["general_inquiry"] < 0.3 {
		scores["general_inquiry"] = 0.3
	}

	best := c.categories[0]
	bestScore := -1.0
	for _, cat := range c.categories {
		if scores[cat] > bestScore {
			bestScore = scores[cat]
			best = cat
		}
	}

	normalized := make(map[string]float64, len(scores))
	total := 0.0
	for _, s := range scores {
		total += s
	}
	if total == 0 {
		total = 1
	}
	for cat, s := range scores {
		normalized[cat] = s / total
	}

	return &Result{
		PrimaryCategory: best,
		Confidence:      bestScore,
		AllCategories:   normalized,
		Method:          "rule_based",
	}
}

func truncate(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen])
}

func hashText(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// extractJSON pulls the first {...} block out of a possibly chatty model
// response, tolerating surrounding prose or markdown code fences.
func extractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}

// ToModel converts the classifier's Result into the persisted Classification
// model.
func ToModel(r *Result) *models.Classification {
	return &models.Classification{
		PrimaryCategory:     r.PrimaryCategory,
		Confidence:          r.Confidence,
		AllCategories:       r.AllCategories,
		SecondaryCategories: r.SecondaryCategories,
		Reasoning:           r.Reasoning,
		Method:              r.Method,
	}
}
