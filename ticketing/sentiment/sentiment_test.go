package sentiment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ticketflow/engine/llm"
	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/ticketing/sentiment"
)

func TestAnalyzeEmptyTextDefaultsToNeutral(t *testing.T) {
	a := sentiment.New(nil, sentiment.Config{})
	result, err := a.Analyze(context.Background(), "   ", "en")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Label != models.SentimentNeutral || result.Method != "default" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestAnalyzeDetectsPositiveWithoutProvider(t *testing.T) {
	a := sentiment.New(nil, sentiment.Config{})
	result, err := a.Analyze(context.Background(), "Thank you so much, this is excellent and I really appreciate it!", "en")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Label != models.SentimentPositive {
		t.Fatalf("expected positive sentiment, got %q", result.Label)
	}
}

func TestAnalyzeDetectsAngryOverridesOtherSignals(t *testing.T) {
	a := sentiment.New(nil, sentiment.Config{})
	result, err := a.Analyze(context.Background(), "This is absolutely unacceptable, I am furious, worst service ever, outrageous scam!", "en")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Label != models.SentimentAngry {
		t.Fatalf("expected angry sentiment, got %q", result.Label)
	}
}

func TestToModelCopiesResultFields(t *testing.T) {
	result := &sentiment.Result{Label: models.SentimentNegative, Score: -0.4, AngerLevel: 0.2, Method: "rule_based"}
	model := sentiment.ToModel(result)
	if model.Label != models.SentimentNegative || model.AngerLevel != 0.2 {
		t.Fatalf("unexpected model: %+v", model)
	}
}

// stubProvider mirrors llm/middleware_test.go's stub: a canned completion
// for exercising the AI-backed path without a live provider.
type stubProvider struct {
	text  string
	err   error
	calls int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) GenerateCompletion(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{Text: p.text, TokensUsed: 42, Model: req.Model}, nil
}

func (p *stubProvider) GenerateChat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &llm.ChatResponse{Message: llm.Message{Role: "assistant", Content: p.text}, TokensUsed: 42, Model: req.Model}, nil
}

func TestAnalyzeUsesProviderResult(t *testing.T) {
	stub := &stubProvider{text: `{"sentiment":"negative","score":-0.6,"confidence":0.9,"anger_level":0.2,` +
		`"satisfaction_prediction":2,"key_phrases":["crashing"],"reasoning":"repeated crashes",` +
		`"emotional_state":"frustrated","urgency":"high","churn_risk":"medium"}`}
	a := sentiment.New(stub, sentiment.Config{})

	result, err := a.Analyze(context.Background(), "the app keeps crashing and support is not responding", "en")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Method != "ai" {
		t.Fatalf("expected ai method, got %q", result.Method)
	}
	if result.Label != models.SentimentNegative || result.Score != -0.6 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.SatisfactionPrediction != 2 {
		t.Fatalf("expected satisfaction 2, got %d", result.SatisfactionPrediction)
	}
	if result.Detail.EmotionalState != "frustrated" || result.Detail.Urgency != "high" {
		t.Fatalf("expected crisis-detection detail carried through, got %+v", result.Detail)
	}
	if stub.calls != 1 {
		t.Fatalf("expected exactly one provider call, got %d", stub.calls)
	}
}

func TestAnalyzeAngerOverrideAppliesToProviderResult(t *testing.T) {
	stub := &stubProvider{text: `{"sentiment":"neutral","score":0.1,"confidence":0.8,"anger_level":0.9,"satisfaction_prediction":3}`}
	a := sentiment.New(stub, sentiment.Config{})

	result, err := a.Analyze(context.Background(), "I am done with this", "en")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Label != models.SentimentAngry {
		t.Fatalf("anger_level >= 0.7 must force angry regardless of source, got %q", result.Label)
	}
}

func TestAnalyzeFallsBackWhenProviderErrors(t *testing.T) {
	stub := &stubProvider{err: errors.New("provider unreachable")}
	a := sentiment.New(stub, sentiment.Config{MaxRetries: 1})

	result, err := a.Analyze(context.Background(), "this is terrible, I am furious!!!", "en")
	if err != nil {
		t.Fatalf("analyze must not surface provider errors: %v", err)
	}
	if result.Method != "rule_based" {
		t.Fatalf("expected rule_based fallback, got %q", result.Method)
	}
	if stub.calls != 2 {
		t.Fatalf("expected initial attempt plus one retry, got %d calls", stub.calls)
	}
}
