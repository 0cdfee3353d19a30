// Package sentiment labels ticket text as positive, neutral, negative, or
// angry using a chat-completion provider with a lexicon-based rule fallback.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/ticketflow/engine/llm"
	"github.com/ticketflow/engine/observability"
	"github.com/ticketflow/engine/retry"
	"github.com/ticketflow/engine/ticketing/models"
)

var logger = observability.NewLogger(nil)

var positiveWords = map[string][]string{
	"en": {"thank", "thanks", "great", "excellent", "love", "appreciate", "happy", "awesome", "perfect"},
	"tr": {"teşekkür", "harika", "mükemmel", "severim", "memnun", "müthiş"},
}

var negativeWords = map[string][]string{
	"en": {"bad", "poor", "disappointed", "unhappy", "issue", "problem", "broken", "slow", "annoying"},
	"tr": {"kötü", "zayıf", "hayal kırıklığı", "memnun değil", "sorun", "bozuk", "yavaş"},
}

var angryWords = map[string][]string{
	"en": {"outrageous", "furious", "unacceptable", "ridiculous", "disgusted", "terrible", "worst", "scam"},
	"tr": {"rezalet", "öfkeli", "kabul edilemez", "saçma", "iğrenç", "berbat", "dolandırıcılık"},
}

// Result is the sentiment analyzer's output contract.
type Result struct {
	Label                  models.SentimentLabel
	Score                  float64
	Confidence             float64
	AngerLevel             float64
	SatisfactionPrediction int
	KeyPhrases             []string
	Reasoning              string
	Method                 string
	Detail                 models.SentimentDetail
}

// Analyzer labels sentiment for ticket text.
type Analyzer struct {
	provider  llm.Provider
	model     string
	maxChars  int
	retryOpts []retry.Option
}

// Config configures an Analyzer.
type Config struct {
	Model      string
	MaxChars   int
	MaxRetries int
}

// New builds an Analyzer. A nil provider means analysis always falls
// through to the rule-based lexicon path.
func New(provider llm.Provider, cfg Config) *Analyzer {
	maxChars := cfg.MaxChars
	if maxChars == 0 {
		maxChars = 2000
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Analyzer{
		provider: provider,
		model:    model,
		maxChars: maxChars,
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

// Analyze labels the sentiment of text. It never errors to the caller: on
// any dependency failure it falls back to the rule-based lexicon path.
func (a *Analyzer) Analyze(ctx context.Context, text, language string) (*Result, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &Result{Label: models.SentimentNeutral, Method: "default"}, nil
	}
	truncated := truncateRunes(trimmed, a.maxChars)

	if a.provider != nil {
		result, err := a.analyzeWithProvider(ctx, truncated, language)
		if err == nil {
			applyAngerOverride(result)
			return result, nil
		}
		logger.Warn("sentiment provider failed, falling back to rule-based analysis", observability.Err(err))
	}

	result := a.analyzeWithRules(truncated, language)
	applyAngerOverride(result)
	return result, nil
}

func (a *Analyzer) analyzeWithProvider(ctx context.Context, text, language string) (*Result, error) {
	system := "Analyze the customer support message for sentiment and crisis signals. Respond with JSON: " +
		"{\"sentiment\":\"positive|neutral|negative|angry\",\"score\":-1..1,\"confidence\":0..1,\"anger_level\":0..1," +
		"\"satisfaction_prediction\":1..5,\"key_phrases\":[..],\"reasoning\":\"..\",\"emotional_state\":\"..\"," +
		"\"urgency\":\"..\",\"risk_level\":\"..\",\"churn_risk\":\"..\",\"hidden_issues\":[..]," +
		"\"recommended_action\":\"..\",\"crisis_potential\":bool,\"threat_detected\":bool,\"passive_aggressive\":bool}"

	req := &llm.CompletionRequest{
		SystemPrompt: system,
		UserPrompt:   text,
		Temperature:  0.2,
		MaxTokens:    500,
		Model:        a.model,
	}

	resp, err := retry.Do(ctx, func() (*llm.CompletionResponse, error) {
		return a.provider.GenerateCompletion(ctx, req)
	}, a.retryOpts...)
	if err != nil {
		return nil, fmt.Errorf("sentiment completion failed: %w", err)
	}

	var parsed struct {
		Sentiment              string   `json:"sentiment"`
		Score                  float64  `json:"score"`
		Confidence             float64  `json:"confidence"`
		AngerLevel             float64  `json:"anger_level"`
		SatisfactionPrediction int      `json:"satisfaction_prediction"`
		KeyPhrases             []string `json:"key_phrases"`
		Reasoning              string   `json:"reasoning"`
		EmotionalState         string   `json:"emotional_state"`
		Urgency                string   `json:"urgency"`
		RiskLevel              string   `json:"risk_level"`
		ChurnRisk              string   `json:"churn_risk"`
		HiddenIssues           []string `json:"hidden_issues"`
		RecommendedAction      string   `json:"recommended_action"`
		CrisisPotential        bool     `json:"crisis_potential"`
		ThreatDetected         bool     `json:"threat_detected"`
		PassiveAggressive      bool     `json:"passive_aggressive"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &parsed); err != nil {
		return nil, fmt.Errorf("sentiment response parse failed: %w", err)
	}

	return &Result{
		Label:                  models.SentimentLabel(parsed.Sentiment),
		Score:                  clamp(parsed.Score, -1, 1),
		Confidence:             parsed.Confidence,
		AngerLevel:             clamp(parsed.AngerLevel, 0, 1),
		SatisfactionPrediction: clampInt(parsed.SatisfactionPrediction, 1, 5),
		KeyPhrases:             parsed.KeyPhrases,
		Reasoning:              parsed.Reasoning,
		Method:                 "ai",
		Detail: models.SentimentDetail{
			EmotionalState:    parsed.EmotionalState,
			Urgency:           parsed.Urgency,
			RiskLevel:         parsed.RiskLevel,
			ChurnRisk:         parsed.ChurnRisk,
			HiddenIssues:      parsed.HiddenIssues,
			RecommendedAction: parsed.RecommendedAction,
			CrisisPotential:   parsed.CrisisPotential,
			ThreatDetected:    parsed.ThreatDetected,
			PassiveAggressive: parsed.PassiveAggressive,
		},
	}, nil
}

// analyzeWithRules implements the lexicon-counting fallback: score is the
// normalized positive/negative word balance, anger_level combines word
// count, caps ratio, and exclamation density.
func (a *Analyzer) analyzeWithRules(text, language string) *Result {
	lower := strings.ToLower(text)

	pos := countMatches(lower, positiveWords[language])
	neg := countMatches(lower, negativeWords[language])
	angryCount := countMatches(lower, angryWords[language])
	if len(positiveWords[language]) == 0 {
		pos = countMatches(lower, positiveWords["en"])
		neg = countMatches(lower, negativeWords["en"])
		angryCount = countMatches(lower, angryWords["en"])
	}

	score := clamp(float64(pos-neg)/float64(pos+neg+1), -1, 1)

	capsRatio := capsRatio(text)
	exclamations := strings.Count(text, "!")

	angerLevel := 0.2*float64(angryCount) + 0.5*capsRatio + 0.1*float64(exclamations)
	if angerLevel > 1.0 {
		angerLevel = 1.0
	}

	label := labelFor(score, angerLevel)

	satisfactionBase := map[models.SentimentLabel]int{
		models.SentimentPositive: 4,
		models.SentimentNeutral:  3,
		models.SentimentNegative: 2,
		models.SentimentAngry:    1,
	}[label]
	satisfaction := clampInt(int(float64(satisfactionBase)+0.5*score+0.5), 1, 5)

	return &Result{
		Label:                  label,
		Score:                  score,
		Confidence:             0.6,
		AngerLevel:             angerLevel,
		SatisfactionPrediction: satisfaction,
		Method:                 "rule_based",
	}
}

// applyAngerOverride forces the angry label whenever anger_level crosses
// the threshold, regardless of which path produced the result.
func applyAngerOverride(r *Result) {
	if r.AngerLevel >= 0.7 {
		r.Label = models.SentimentAngry
	}
}

func labelFor(score, angerLevel float64) models.SentimentLabel {
	if angerLevel >= 0.7 {
		return models.SentimentAngry
	}
	if score > 0.2 {
		return models.SentimentPositive
	}
	if score < -0.2 {
		return models.SentimentNegative
	}
	return models.SentimentNeutral
}

func countMatches(lower string, words []string) int {
	count := 0
	for _, w := range words {
		count += strings.Count(lower, w)
	}
	return count
}

func capsRatio(text string) float64 {
	runes := []rune(text)
	if len(runes) == 0 {
		return 0
	}
	caps := 0
	for _, r := range runes {
		if unicode.IsUpper(r) {
			caps++
		}
	}
	return float64(caps) / float64(len(runes))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
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

func truncateRunes(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen])
}

func extractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}

// ToModel converts the analyzer's Result into the persisted Sentiment model.
func ToModel(r *Result) *models.Sentiment {
	return &models.Sentiment{
		Label:                  r.Label,
		Score:                  r.Score,
		Confidence:             r.Confidence,
		AngerLevel:             r.AngerLevel,
		SatisfactionPrediction: r.SatisfactionPrediction,
		KeyPhrases:             r.KeyPhrases,
		Reasoning:              r.Reasoning,
		Method:                 r.Method,
		Detail:                 r.Detail,
	}
}
