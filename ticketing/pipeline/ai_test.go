package pipeline_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ticketflow/engine/llm"
	"github.com/ticketflow/engine/ticketing/classify"
	ticketingconfig "github.com/ticketflow/engine/ticketing/config"
	"github.com/ticketflow/engine/ticketing/dedup"
	"github.com/ticketflow/engine/ticketing/knowledgebase"
	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/ticketing/pipeline"
	"github.com/ticketflow/engine/ticketing/routing"
	"github.com/ticketflow/engine/ticketing/sentiment"
	"github.com/ticketflow/engine/ticketing/storage/memory"
)

// stubProvider answers each pipeline stage by recognizing its system prompt,
// mirroring llm/middleware_test.go's stub so the AI-backed primary paths run
// end to end without a live provider.
type stubProvider struct {
	mu              sync.Mutex
	classifications int
	sentiments      int
	generations     int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) GenerateCompletion(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var text string
	switch {
	case strings.HasPrefix(req.SystemPrompt, "Classify the support ticket"):
		p.classifications++
		text = `{"primary_category":"billing","all_categories":{"billing":0.85,"complaint":0.1},` +
			`"confidence":0.85,"reasoning":"duplicate charge and refund request"}`
	case strings.HasPrefix(req.SystemPrompt, "Analyze the customer support message"):
		p.sentiments++
		text = `{"sentiment":"negative","score":-0.55,"confidence":0.9,"anger_level":0.3,` +
			`"satisfaction_prediction":2,"key_phrases":["charged twice"],"reasoning":"billing frustration"}`
	default:
		p.generations++
		text = "We are sorry about the duplicate charge; a refund is on its way."
	}
	return &llm.CompletionResponse{Text: text, TokensUsed: 42, Model: req.Model}, nil
}

func (p *stubProvider) GenerateChat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Message: llm.Message{Role: "assistant", Content: "ok"}, TokensUsed: 42, Model: req.Model}, nil
}

func newAITestCoordinator(t *testing.T, provider llm.Provider) (*pipeline.Coordinator, *memory.Store) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	agent := &models.SupportAgent{
		ID: "agent-1", Name: "Agent One", MaxLoad: 5, Status: models.AgentOnline, IsActive: true,
		Skills: []string{"billing"}, Specializations: map[string]float64{"billing": 0.9}, Languages: []string{"en"},
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := store.Agents().Create(ctx, agent); err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	if err := store.Categories().Upsert(ctx, &models.Category{Slug: "billing", PriorityBoost: 1, SLAHours: 12}); err != nil {
		t.Fatalf("seed category: %v", err)
	}

	kb, err := knowledgebase.New(knowledgebase.Config{Generator: provider})
	if err != nil {
		t.Fatalf("new knowledge base: %v", err)
	}

	coordinator := pipeline.New(pipeline.Deps{
		Store:             store,
		Classifier:        classify.New(provider, classify.Config{Cache: dedup.NewMemoryCache()}),
		SentimentAnalyzer: sentiment.New(provider, sentiment.Config{}),
		Router:            routing.New(routing.Config{}),
		KnowledgeBase:     kb,
		Config:            &ticketingconfig.Config{AssignmentRetryAttempts: 3, PipelineDeadlineSeconds: 30},
	})
	return coordinator, store
}

func TestSubmitRunsAIPrimaryPathsEndToEnd(t *testing.T) {
	stub := &stubProvider{}
	coordinator, _ := newAITestCoordinator(t, stub)

	result, err := coordinator.Submit(context.Background(), pipeline.SubmitRequest{
		Content:       "I was charged twice for my subscription, please refund the duplicate charge.",
		CustomerEmail: "customer@example.com",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if result.Classification == nil || result.Classification.Method != "ai" {
		t.Fatalf("expected ai classification, got %+v", result.Classification)
	}
	if result.Classification.PrimaryCategory != "billing" || result.Classification.Confidence != 0.85 {
		t.Fatalf("unexpected classification: %+v", result.Classification)
	}

	if result.Sentiment == nil || result.Sentiment.Method != "ai" {
		t.Fatalf("expected ai sentiment, got %+v", result.Sentiment)
	}
	if result.Sentiment.Label != models.SentimentNegative || result.Sentiment.SatisfactionPrediction != 2 {
		t.Fatalf("unexpected sentiment: %+v", result.Sentiment)
	}

	if result.Routing == nil || result.Routing.AgentID != "agent-1" {
		t.Fatalf("expected billing skill match on agent-1, got %+v", result.Routing)
	}

	foundGenerated := false
	for _, s := range result.SuggestedResponses {
		if s.Source == models.SourceAIGenerated {
			foundGenerated = true
			if s.Relevance != 0.9 {
				t.Fatalf("expected relevance 0.9 on the generated entry, got %v", s.Relevance)
			}
		}
	}
	if !foundGenerated {
		t.Fatalf("expected an ai_generated suggestion, got %+v", result.SuggestedResponses)
	}

	if stub.classifications != 1 || stub.sentiments != 1 || stub.generations != 1 {
		t.Fatalf("expected one call per stage, got classify=%d sentiment=%d generate=%d",
			stub.classifications, stub.sentiments, stub.generations)
	}
}

func TestSubmitSecondTicketHitsClassifierCache(t *testing.T) {
	stub := &stubProvider{}
	coordinator, _ := newAITestCoordinator(t, stub)
	ctx := context.Background()

	req := pipeline.SubmitRequest{
		Content:       "I was charged twice for my subscription, please refund the duplicate charge.",
		CustomerEmail: "customer@example.com",
	}

	first, err := coordinator.Submit(ctx, req)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if first.Classification.Method != "ai" {
		t.Fatalf("expected ai on the first submission, got %q", first.Classification.Method)
	}

	second, err := coordinator.Submit(ctx, req)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if second.Classification.Method != "ai_cached" {
		t.Fatalf("expected ai_cached on the repeat submission, got %q", second.Classification.Method)
	}
	if second.Classification.PrimaryCategory != first.Classification.PrimaryCategory {
		t.Fatalf("cached classification must match the original: %+v vs %+v",
			first.Classification, second.Classification)
	}

	if stub.classifications != 1 {
		t.Fatalf("expected the classifier cache to absorb the second call, got %d", stub.classifications)
	}
	if stub.sentiments != 2 {
		t.Fatalf("sentiment is uncached and should run per ticket, got %d calls", stub.sentiments)
	}
}
