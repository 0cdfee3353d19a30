package knowledgebase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ticketflow/engine/llm"
	"github.com/ticketflow/engine/ticketing/knowledgebase"
	"github.com/ticketflow/engine/ticketing/models"
)

func TestAddFAQAndGenerateSuggestedResponsesWithoutEmbedderOrGenerator(t *testing.T) {
	kb, err := knowledgebase.New(knowledgebase.Config{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx := context.Background()
	if _, err := kb.AddFAQ(ctx, "faq-1", "To reset your password, visit the account settings page.", "account_access", []string{"password"}); err != nil {
		t.Fatalf("add faq: %v", err)
	}

	suggestions, err := kb.GenerateSuggestedResponses(ctx, "I forgot my password", "account_access", "en", 3)
	if err != nil {
		t.Fatalf("generate suggestions: %v", err)
	}
	if suggestions == nil {
		t.Fatal("expected a non-nil (possibly empty) suggestions slice")
	}
}

func TestFindSimilarRespectsLimit(t *testing.T) {
	kb, err := knowledgebase.New(knowledgebase.Config{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := kb.AddDocument(ctx, "", "document content", models.KBDocumentMetadata{}); err != nil {
			t.Fatalf("add document: %v", err)
		}
	}

	matches, err := kb.FindSimilar(ctx, "query", "", 2, 0)
	if err != nil {
		t.Fatalf("find similar: %v", err)
	}
	if len(matches) > 2 {
		t.Fatalf("expected at most 2 matches, got %d", len(matches))
	}
}

// stubProvider mirrors llm/middleware_test.go's stub: a canned completion
// for exercising the AI-backed response generator without a live provider.
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

func TestGenerateSuggestedResponsesAddsAIGeneratedEntry(t *testing.T) {
	stub := &stubProvider{text: "Try clearing the app cache and reinstalling the latest version."}
	kb, err := knowledgebase.New(knowledgebase.Config{Generator: stub})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	suggestions, err := kb.GenerateSuggestedResponses(context.Background(), "the app crashes on startup", "technical_issue", "en", 3)
	if err != nil {
		t.Fatalf("generate suggestions: %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("expected exactly the AI-generated entry, got %d suggestions", len(suggestions))
	}
	got := suggestions[0]
	if got.Source != models.SourceAIGenerated {
		t.Fatalf("expected ai_generated source, got %q", got.Source)
	}
	if got.Relevance != 0.9 {
		t.Fatalf("expected relevance 0.9 for generated entries, got %v", got.Relevance)
	}
	if got.Content != stub.text {
		t.Fatalf("expected generator output carried through, got %q", got.Content)
	}
	if stub.calls != 1 {
		t.Fatalf("expected exactly one generator call, got %d", stub.calls)
	}
}

func TestGenerateSuggestedResponsesSurvivesGeneratorFailure(t *testing.T) {
	stub := &stubProvider{err: errors.New("provider unreachable")}
	kb, err := knowledgebase.New(knowledgebase.Config{Generator: stub})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	suggestions, err := kb.GenerateSuggestedResponses(context.Background(), "the app crashes on startup", "technical_issue", "en", 3)
	if err != nil {
		t.Fatalf("generator failure must be non-fatal: %v", err)
	}
	if len(suggestions) != 0 {
		t.Fatalf("expected no suggestions when only the generator was available and it failed, got %d", len(suggestions))
	}
}
