package classify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ticketflow/engine/llm"
	"github.com/ticketflow/engine/ticketing/classify"
	"github.com/ticketflow/engine/ticketing/dedup"
)

func TestClassifyEmptyTextDefaultsToGeneralInquiry(t *testing.T) {
	c := classify.New(nil, classify.Config{})
	result, err := c.Classify(context.Background(), "   ", "en", false)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if result.PrimaryCategory != "general_inquiry" || result.Method != "default" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestClassifyFallsBackToRuleBasedWithoutProvider(t *testing.T) {
	c := classify.New(nil, classify.Config{})
	result, err := c.Classify(context.Background(), "I was charged twice, please refund this invoice", "en", false)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if result.Method != "rule_based" {
		t.Fatalf("expected rule_based method, got %q", result.Method)
	}
	if result.PrimaryCategory != "billing" {
		t.Fatalf("expected billing category, got %q", result.PrimaryCategory)
	}
}

func TestClassifyRuleBasedResultIsStableAcrossCalls(t *testing.T) {
	cache := dedup.NewMemoryCache()
	c := classify.New(nil, classify.Config{Cache: cache})

	text := "my account is locked and I can't log in"
	first, err := c.Classify(context.Background(), text, "en", true)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if first.Method != "rule_based" {
		t.Fatalf("expected rule_based without a provider, got %q", first.Method)
	}

	second, err := c.Classify(context.Background(), text, "en", true)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if second.PrimaryCategory != first.PrimaryCategory {
		t.Fatalf("expected the repeat classification to match, got %+v vs %+v", first, second)
	}
}

func TestToModelCopiesResultFields(t *testing.T) {
	result := &classify.Result{
		PrimaryCategory: "billing", Confidence: 0.8,
		AllCategories: map[string]float64{"billing": 0.8}, Method: "rule_based",
	}
	model := classify.ToModel(result)
	if model.PrimaryCategory != "billing" || model.Confidence != 0.8 {
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

func TestClassifyUsesProviderResult(t *testing.T) {
	stub := &stubProvider{text: `{"primary_category":"billing","secondary_categories":["account_access"],` +
		`"all_categories":{"billing":0.8,"account_access":0.15},"confidence":0.88,"reasoning":"mentions a duplicate charge"}`}
	c := classify.New(stub, classify.Config{})

	result, err := c.Classify(context.Background(), "I was charged twice, please refund this invoice", "en", false)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if result.Method != "ai" {
		t.Fatalf("expected ai method, got %q", result.Method)
	}
	if result.PrimaryCategory != "billing" || result.Confidence != 0.88 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.SecondaryCategories) != 1 || result.SecondaryCategories[0] != "account_access" {
		t.Fatalf("expected secondary categories carried through, got %+v", result.SecondaryCategories)
	}
	if stub.calls != 1 {
		t.Fatalf("expected exactly one provider call, got %d", stub.calls)
	}
}

func TestClassifyCacheHitRewritesMethodToAICached(t *testing.T) {
	stub := &stubProvider{text: `{"primary_category":"billing","all_categories":{"billing":0.9},"confidence":0.9,"reasoning":"refund request"}`}
	c := classify.New(stub, classify.Config{Cache: dedup.NewMemoryCache()})

	text := "I was charged twice, please refund this invoice"
	first, err := c.Classify(context.Background(), text, "en", true)
	if err != nil {
		t.Fatalf("first classify: %v", err)
	}
	if first.Method != "ai" {
		t.Fatalf("expected ai on the first call, got %q", first.Method)
	}

	second, err := c.Classify(context.Background(), text, "en", true)
	if err != nil {
		t.Fatalf("second classify: %v", err)
	}
	if second.Method != "ai_cached" {
		t.Fatalf("expected ai_cached on the cache hit, got %q", second.Method)
	}
	if second.PrimaryCategory != first.PrimaryCategory || second.Confidence != first.Confidence {
		t.Fatalf("cached body must match the original: %+v vs %+v", first, second)
	}
	if stub.calls != 1 {
		t.Fatalf("cache hit must not reach the provider, got %d calls", stub.calls)
	}
}

func TestClassifyCoercesUnknownProviderCategory(t *testing.T) {
	stub := &stubProvider{text: `{"primary_category":"weather_complaints","all_categories":{"weather_complaints":1},"confidence":0.7}`}
	c := classify.New(stub, classify.Config{})

	result, err := c.Classify(context.Background(), "it keeps raining on my parade", "en", false)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if result.PrimaryCategory != "general_inquiry" {
		t.Fatalf("expected coercion to general_inquiry, got %q", result.PrimaryCategory)
	}
	if result.Method != "ai" {
		t.Fatalf("expected ai method after coercion, got %q", result.Method)
	}
}

func TestClassifyFallsBackWhenProviderErrors(t *testing.T) {
	stub := &stubProvider{err: errors.New("provider unreachable")}
	c := classify.New(stub, classify.Config{MaxRetries: 1})

	result, err := c.Classify(context.Background(), "I was charged twice, please refund this invoice", "en", false)
	if err != nil {
		t.Fatalf("classify must not surface provider errors: %v", err)
	}
	if result.Method != "rule_based" {
		t.Fatalf("expected rule_based fallback, got %q", result.Method)
	}
	if result.PrimaryCategory != "billing" {
		t.Fatalf("expected billing from keyword scoring, got %q", result.PrimaryCategory)
	}
	if stub.calls != 2 {
		t.Fatalf("expected initial attempt plus one retry, got %d calls", stub.calls)
	}
}
