package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/ticketflow/engine/ticketing/classify"
	ticketingconfig "github.com/ticketflow/engine/ticketing/config"
	"github.com/ticketflow/engine/ticketing/dedup"
	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/ticketing/pipeline"
	"github.com/ticketflow/engine/ticketing/queue"
	"github.com/ticketflow/engine/ticketing/routing"
	"github.com/ticketflow/engine/ticketing/sentiment"
	"github.com/ticketflow/engine/ticketing/storage/memory"
)

func newTestCoordinator(t *testing.T, q queue.Queue, guard *dedup.Guard) (*pipeline.Coordinator, *memory.Store) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	agent := &models.SupportAgent{
		ID: "agent-1", Name: "Agent One", MaxLoad: 2, Status: models.AgentOnline, IsActive: true,
		Specializations: map[string]float64{"billing": 0.9}, Languages: []string{"en"},
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := store.Agents().Create(ctx, agent); err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	if err := store.Categories().Upsert(ctx, &models.Category{Slug: "billing", PriorityBoost: 1, SLAHours: 12}); err != nil {
		t.Fatalf("seed category: %v", err)
	}

	coordinator := pipeline.New(pipeline.Deps{
		Store:             store,
		Classifier:        classify.New(nil, classify.Config{}),
		SentimentAnalyzer: sentiment.New(nil, sentiment.Config{}),
		Router:            routing.New(routing.Config{}),
		Queue:             q,
		DedupGuard:        guard,
		Config:            &ticketingconfig.Config{AssignmentRetryAttempts: 3, PipelineDeadlineSeconds: 30},
	})
	return coordinator, store
}

func TestSubmitSyncProcessesImmediately(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, nil, nil)

	result, err := coordinator.Submit(context.Background(), pipeline.SubmitRequest{
		Content:       "I was charged twice for my subscription, please refund the duplicate charge.",
		CustomerEmail: "customer@example.com",
		ProcessAsync:  false,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Status != "processed" {
		t.Fatalf("expected status processed, got %q", result.Status)
	}
	if result.Classification == nil || result.Sentiment == nil || result.Priority == nil {
		t.Fatalf("expected every enrichment stage populated, got %+v", result)
	}
}

func TestSubmitValidatesContentLength(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, nil, nil)

	_, err := coordinator.Submit(context.Background(), pipeline.SubmitRequest{
		Content:       "",
		CustomerEmail: "customer@example.com",
	})
	if err == nil {
		t.Fatal("expected validation error for empty content")
	}
	perr, ok := err.(*pipeline.Error)
	if !ok || perr.Kind != pipeline.KindValidation {
		t.Fatalf("expected a validation Error, got %v (%T)", err, err)
	}
}

func TestSubmitRequiresCustomerEmail(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, nil, nil)

	_, err := coordinator.Submit(context.Background(), pipeline.SubmitRequest{Content: "hello"})
	if err == nil {
		t.Fatal("expected validation error for missing customer email")
	}
}

func TestSubmitSkipRoutingLeavesTicketUnassigned(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, nil, nil)

	result, err := coordinator.Submit(context.Background(), pipeline.SubmitRequest{
		Content:       "billing question about my invoice",
		CustomerEmail: "customer@example.com",
		SkipRouting:   true,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Routing == nil || result.Routing.Reason != models.ReasonSkipped {
		t.Fatalf("expected routing skipped, got %+v", result.Routing)
	}
	if result.Routing.AgentID != "" {
		t.Fatalf("expected no agent assigned, got %q", result.Routing.AgentID)
	}
}

func TestSubmitAsyncEnqueuesThenWorkerProcesses(t *testing.T) {
	q := queue.NewMemoryQueue(10)
	defer q.Close()
	coordinator, store := newTestCoordinator(t, q, nil)

	result, err := coordinator.Submit(context.Background(), pipeline.SubmitRequest{
		Content:       "billing question about my invoice",
		CustomerEmail: "customer@example.com",
		ProcessAsync:  true,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Status != "queued" {
		t.Fatalf("expected status queued, got %q", result.Status)
	}

	workerCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	done := make(chan struct{})
	go func() {
		coordinator.RunWorkers(workerCtx, 1)
		close(done)
	}()

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		ticket, err := store.Tickets().Get(context.Background(), result.TicketID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if ticket.IsProcessed {
			cancel()
			<-done
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
	t.Fatal("async ticket was never processed by the worker")
}

func TestSubmitDedupRejectsRepeatExternalID(t *testing.T) {
	guard := dedup.New(dedup.DefaultConfig(), dedup.NewMemoryBackend())
	coordinator, _ := newTestCoordinator(t, nil, guard)

	req := pipeline.SubmitRequest{
		Content:        "please help with my order",
		CustomerEmail:  "customer@example.com",
		ExternalID:     "1042",
		ExternalSystem: "zendesk",
	}

	if _, err := coordinator.Submit(context.Background(), req); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err := coordinator.Submit(context.Background(), req)
	if err == nil {
		t.Fatal("expected conflict error for duplicate external id")
	}
	perr, ok := err.(*pipeline.Error)
	if !ok || perr.Kind != pipeline.KindConflict {
		t.Fatalf("expected a conflict Error, got %v (%T)", err, err)
	}
}

func TestSubmitAssignsAgentWhenRoutingSucceeds(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, nil, nil)

	result, err := coordinator.Submit(context.Background(), pipeline.SubmitRequest{
		Content:       "I need help with a billing dispute on my account",
		CustomerEmail: "customer@example.com",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Routing == nil || result.Routing.AgentID != "agent-1" {
		t.Fatalf("expected agent-1 assigned, got %+v", result.Routing)
	}
}
