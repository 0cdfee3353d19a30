// Package priority computes an integer 1..5 urgency score from ticket text,
// sentiment, customer tier, and category, using an ordered list of additive
// weighted factors.
package priority

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ticketflow/engine/ticketing/models"
)

var urgentKeywords = map[string][]string{
	"en": {"urgent", "asap", "immediately", "critical", "emergency", "right now", "can't wait", "deadline", "down", "outage", "refund now"},
	"tr": {"acil", "hemen", "kritik", "acilen", "ivedi", "derhal", "bekleyemez", "şimdi", "çöktü", "erişilemiyor"},
}

var highPriorityKeywords = map[string][]string{
	"en": {"not working", "broken", "error", "can't access", "failed", "stuck", "blocked", "crash", "lost", "missing", "deleted"},
	"tr": {"çalışmıyor", "bozuk", "hata", "erişemiyorum", "başarısız", "takıldı", "engellendi", "çöktü", "kayıp", "eksik", "silindi"},
}

var deadlinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)deadline`),
	regexp.MustCompile(`(?i)due date`),
	regexp.MustCompile(`(?i)by (monday|tuesday|wednesday|thursday|friday|saturday|sunday|tomorrow|tonight|end of day|eod)`),
	regexp.MustCompile(`(?i)son tarih`),
	regexp.MustCompile(`(?i)bugün bitmeli`),
}

var criticalCategories = map[string]int{
	"technical_issue": 1,
	"bug_report":      1,
	"complaint":       2,
}

var lowPriorityCategories = map[string]int{
	"feature_request": -1,
	"general_inquiry": 0,
}

// CustomRule is a user-supplied factor the scorer iterates after the
// built-in table; Test reports whether the rule fires on this text.
type CustomRule struct {
	Name   string
	Weight int
	Test   func(text string) bool
}

// Request carries everything the scorer needs to compute a score.
type Request struct {
	Text          string
	Sentiment     models.SentimentLabel
	AngerLevel    float64
	CustomerTier  models.CustomerTier
	Category      string
	Language      string
	CategoryBoost int // Category.PriorityBoost, wired as a named factor
	CustomRules   []CustomRule
}

// Calculate computes the priority score, its label, and the ordered list of
// contributing factor names, following base=3 plus additive signed weights
// clamped to [1,5].
func Calculate(req Request) *models.Priority {
	const base = 3

	factors := []string{}
	details := map[string]int{}
	add := func(name string, weight int) {
		if _, seen := details[name]; !seen {
			factors = append(factors, name)
		}
		details[name] += weight
	}

	lower := strings.ToLower(req.Text)
	language := req.Language
	if language == "" {
		language = "en"
	}

	urgentHit := containsAny(lower, urgentKeywords[language]) || containsAny(lower, urgentKeywords["en"])
	if urgentHit {
		add("urgent_keyword", 2)
	}
	if !urgentHit && (containsAny(lower, highPriorityKeywords[language]) || containsAny(lower, highPriorityKeywords["en"])) {
		add("high_priority_keyword", 1)
	}

	if req.Sentiment == models.SentimentNegative {
		add("sentiment_negative", 1)
	}
	if req.Sentiment == models.SentimentAngry {
		add("sentiment_angry", 2)
	}
	if req.AngerLevel >= 0.7 {
		add("high_anger", 1)
	}

	if boost := req.CustomerTier.PriorityBoost(); boost != 0 {
		add("customer_tier_"+string(req.CustomerTier), boost)
	}

	if weight, ok := criticalCategories[req.Category]; ok {
		add("critical_category_"+req.Category, weight)
	}
	if weight, ok := lowPriorityCategories[req.Category]; ok {
		add("low_priority_category_"+req.Category, weight)
	}

	caps := capsRatio(req.Text)
	if caps > 0.5 {
		add("excessive_caps", 1)
	}

	exclamations := strings.Count(req.Text, "!")
	if exclamations >= 3 {
		add("multiple_exclamations", 1)
	}

	if hasDeadlineMention(req.Text) {
		add("deadline_mention", 1)
	}

	if req.CategoryBoost != 0 {
		add("category_config_boost", req.CategoryBoost)
	}

	for _, rule := range req.CustomRules {
		if rule.Test(req.Text) {
			add("custom_"+rule.Name, rule.Weight)
		}
	}

	total := 0
	for _, w := range details {
		total += w
	}
	score := clampInt(base+total, 1, 5)

	return &models.Priority{
		Score:         score,
		Level:         models.LevelForScore(score),
		Factors:       factors,
		FactorDetails: details,
		Breakdown: models.PriorityBreakdown{
			Base:             base,
			TotalAdjustment:  total,
			FinalScore:       score,
			CapsRatio:        caps,
			ExclamationCount: exclamations,
			WordCount:        len(strings.Fields(req.Text)),
		},
	}
}

// RecalculateWithOverride shifts an existing score by one level in the
// requested direction, clamping to [1,5], and records the human-supplied
// reasons as an explicit factor.
func RecalculateWithOverride(current *models.Priority, direction string, reasons string) *models.Priority {
	delta := 0
	switch direction {
	case "up":
		delta = 1
	case "down":
		delta = -1
	}
	newScore := clampInt(current.Score+delta, 1, 5)

	factors := append(append([]string{}, current.Factors...), "manual_override")
	details := map[string]int{}
	for k, v := range current.FactorDetails {
		details[k] = v
	}
	details["manual_override"] = delta

	return &models.Priority{
		Score:         newScore,
		Level:         models.LevelForScore(newScore),
		Factors:       factors,
		FactorDetails: details,
		Breakdown: models.PriorityBreakdown{
			Base:             current.Breakdown.Base,
			TotalAdjustment:  current.Breakdown.TotalAdjustment + delta,
			FinalScore:       newScore,
			CapsRatio:        current.Breakdown.CapsRatio,
			ExclamationCount: current.Breakdown.ExclamationCount,
			WordCount:        current.Breakdown.WordCount,
		},
	}
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func hasDeadlineMention(text string) bool {
	for _, re := range deadlinePatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func capsRatio(text string) float64 {
	letters := 0
	caps := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				caps++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(caps) / float64(letters)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
