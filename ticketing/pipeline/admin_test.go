package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/ticketing/pipeline"
)

func submitAssigned(t *testing.T, coordinator *pipeline.Coordinator) *pipeline.SubmitResult {
	t.Helper()
	result, err := coordinator.Submit(context.Background(), pipeline.SubmitRequest{
		Content:       "I need help with a billing dispute on my account",
		CustomerEmail: "customer@example.com",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Routing == nil || result.Routing.AgentID == "" {
		t.Fatalf("expected an assigned ticket, got %+v", result.Routing)
	}
	return result
}

func TestResolveReturnsAgentLoad(t *testing.T) {
	coordinator, store := newTestCoordinator(t, nil, nil)
	ctx := context.Background()

	result := submitAssigned(t, coordinator)

	agent, err := store.Agents().Get(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if agent.CurrentLoad != 1 {
		t.Fatalf("expected load 1 after assignment, got %d", agent.CurrentLoad)
	}

	ticket, err := coordinator.ResolveTicket(ctx, result.TicketID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ticket.Status != models.StatusResolved || ticket.ResolvedAt == nil {
		t.Fatalf("expected resolved ticket with timestamp, got %+v", ticket)
	}
	if ticket.ResolvedAt.Before(ticket.CreatedAt) {
		t.Fatal("resolved_at must not precede created_at")
	}

	agent, err = store.Agents().Get(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if agent.CurrentLoad != 0 {
		t.Fatalf("expected load back to 0 after resolution, got %d", agent.CurrentLoad)
	}

	// Resolving again is a no-op and must not underflow the counter.
	if _, err := coordinator.ResolveTicket(ctx, result.TicketID); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	agent, _ = store.Agents().Get(ctx, "agent-1")
	if agent.CurrentLoad != 0 {
		t.Fatalf("expected load to stay 0, got %d", agent.CurrentLoad)
	}
}

func TestReassignMovesLoadBetweenAgents(t *testing.T) {
	coordinator, store := newTestCoordinator(t, nil, nil)
	ctx := context.Background()

	second := &models.SupportAgent{
		ID: "agent-2", Name: "Agent Two", MaxLoad: 5, Status: models.AgentOnline, IsActive: true,
		Languages: []string{"en"},
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := store.Agents().Create(ctx, second); err != nil {
		t.Fatalf("seed second agent: %v", err)
	}

	result := submitAssigned(t, coordinator)

	ticket, err := coordinator.ReassignTicket(ctx, result.TicketID, "agent-2", "manual rebalance")
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if ticket.Assignment.AgentID != "agent-2" {
		t.Fatalf("expected agent-2 assigned, got %q", ticket.Assignment.AgentID)
	}
	if ticket.Assignment.PreviousAgentID != "agent-1" {
		t.Fatalf("expected previous agent recorded, got %q", ticket.Assignment.PreviousAgentID)
	}

	prev, _ := store.Agents().Get(ctx, "agent-1")
	next, _ := store.Agents().Get(ctx, "agent-2")
	if prev.CurrentLoad != 0 || next.CurrentLoad != 1 {
		t.Fatalf("expected load moved 1->0 and 0->1, got %d and %d", prev.CurrentLoad, next.CurrentLoad)
	}
}

func TestReassignWithoutTargetExcludesCurrentAgent(t *testing.T) {
	coordinator, store := newTestCoordinator(t, nil, nil)
	ctx := context.Background()

	second := &models.SupportAgent{
		ID: "agent-2", Name: "Agent Two", MaxLoad: 5, Status: models.AgentOnline, IsActive: true,
		Languages: []string{"en"},
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := store.Agents().Create(ctx, second); err != nil {
		t.Fatalf("seed second agent: %v", err)
	}

	result := submitAssigned(t, coordinator)

	ticket, err := coordinator.ReassignTicket(ctx, result.TicketID, "", "agent unavailable")
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if ticket.Assignment.AgentID != "agent-2" {
		t.Fatalf("expected router to pick the other agent, got %q", ticket.Assignment.AgentID)
	}
}

func TestEscalateBumpsPriorityAndCaps(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, nil, nil)
	ctx := context.Background()

	result := submitAssigned(t, coordinator)

	before, err := coordinator.GetTicket(ctx, result.TicketID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	prevScore := before.Priority.Score

	ticket, err := coordinator.EscalateTicket(ctx, result.TicketID, "customer called twice")
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if ticket.Status != models.StatusEscalated {
		t.Fatalf("expected escalated status, got %q", ticket.Status)
	}
	want := prevScore + 1
	if want > 5 {
		want = 5
	}
	if ticket.Priority.Score != want {
		t.Fatalf("expected priority %d, got %d", want, ticket.Priority.Score)
	}

	// Escalating repeatedly never pushes past 5.
	for i := 0; i < 6; i++ {
		if ticket, err = coordinator.EscalateTicket(ctx, result.TicketID, "again"); err != nil {
			t.Fatalf("escalate %d: %v", i, err)
		}
	}
	if ticket.Priority.Score != 5 {
		t.Fatalf("expected priority capped at 5, got %d", ticket.Priority.Score)
	}
}

func TestDeleteTicketReleasesLoad(t *testing.T) {
	coordinator, store := newTestCoordinator(t, nil, nil)
	ctx := context.Background()

	result := submitAssigned(t, coordinator)

	if err := coordinator.DeleteTicket(ctx, result.TicketID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := coordinator.GetTicket(ctx, result.TicketID); err == nil {
		t.Fatal("expected not-found after hard delete")
	} else if perr, ok := err.(*pipeline.Error); !ok || perr.Kind != pipeline.KindNotFound {
		t.Fatalf("expected a not-found Error, got %v (%T)", err, err)
	}

	agent, _ := store.Agents().Get(ctx, "agent-1")
	if agent.CurrentLoad != 0 {
		t.Fatalf("expected load released on delete, got %d", agent.CurrentLoad)
	}
}

func TestUpdateTicketPatchesFields(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, nil, nil)
	ctx := context.Background()

	result := submitAssigned(t, coordinator)

	subject := "updated subject"
	priority := 5
	ticket, err := coordinator.UpdateTicket(ctx, result.TicketID, pipeline.TicketPatch{
		Subject:  &subject,
		Priority: &priority,
		Tags:     []string{"vip-escalation"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if ticket.Subject != subject || ticket.Priority.Score != 5 || len(ticket.Tags) != 1 {
		t.Fatalf("patch not applied: %+v", ticket)
	}

	badStatus := models.TicketStatus("bogus")
	if _, err := coordinator.UpdateTicket(ctx, result.TicketID, pipeline.TicketPatch{Status: &badStatus}); err == nil {
		t.Fatal("expected validation error for unknown status")
	}
	badPriority := 9
	if _, err := coordinator.UpdateTicket(ctx, result.TicketID, pipeline.TicketPatch{Priority: &badPriority}); err == nil {
		t.Fatal("expected validation error for out-of-range priority")
	}
}

func TestAgentLifecycle(t *testing.T) {
	coordinator, store := newTestCoordinator(t, nil, nil)
	ctx := context.Background()

	agent := &models.SupportAgent{
		Name: "New Agent", Email: "new.agent@example.com",
		ExperienceLevel: 2, MaxLoad: 4, Languages: []string{"en"},
		IsActive: true,
	}
	if err := coordinator.CreateAgent(ctx, agent); err != nil {
		t.Fatalf("create agent: %v", err)
	}
	if agent.ID == "" || agent.Status != models.AgentOffline {
		t.Fatalf("expected generated id and offline default, got %+v", agent)
	}

	if err := coordinator.SetAgentStatus(ctx, agent.ID, models.AgentOnline); err != nil {
		t.Fatalf("set status: %v", err)
	}
	stored, _ := store.Agents().Get(ctx, agent.ID)
	if stored.Status != models.AgentOnline {
		t.Fatalf("expected online, got %q", stored.Status)
	}

	if err := coordinator.SetAgentStatus(ctx, agent.ID, "sleeping"); err == nil {
		t.Fatal("expected validation error for unknown status")
	}

	if err := coordinator.DeleteAgent(ctx, agent.ID); err != nil {
		t.Fatalf("delete agent: %v", err)
	}
	stored, _ = store.Agents().Get(ctx, agent.ID)
	if stored.IsActive || stored.Status != models.AgentOffline {
		t.Fatalf("expected soft-deleted agent, got %+v", stored)
	}

	bad := &models.SupportAgent{Name: "No Email", ExperienceLevel: 3, MaxLoad: 4}
	if err := coordinator.CreateAgent(ctx, bad); err == nil {
		t.Fatal("expected validation error for missing email")
	}
}

func TestUpsertRoutingRuleRefreshesRouterSnapshot(t *testing.T) {
	coordinator, store := newTestCoordinator(t, nil, nil)
	ctx := context.Background()

	second := &models.SupportAgent{
		ID: "agent-2", Name: "Agent Two", MaxLoad: 5, Status: models.AgentOnline, IsActive: true,
		Languages: []string{"en"},
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := store.Agents().Create(ctx, second); err != nil {
		t.Fatalf("seed second agent: %v", err)
	}

	rule := &models.RoutingRule{
		Name:     "billing to agent-2",
		Type:     models.RuleKeyword,
		Priority: 100,
		IsActive: true,
		Conditions: models.RuleConditions{
			Keywords:  []string{"billing"},
			MatchMode: "any",
		},
		Action:       models.ActionAssignAgent,
		ActionParams: models.RuleActionParams{AgentID: "agent-2"},
	}
	if err := coordinator.UpsertRoutingRule(ctx, rule); err != nil {
		t.Fatalf("upsert rule: %v", err)
	}

	result, err := coordinator.Submit(ctx, pipeline.SubmitRequest{
		Content:       "I need help with a billing dispute on my account",
		CustomerEmail: "customer@example.com",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Routing == nil || result.Routing.AgentID != "agent-2" {
		t.Fatalf("expected rule to route to agent-2, got %+v", result.Routing)
	}
	if result.Routing.Reason != models.ReasonRuleBased {
		t.Fatalf("expected rule_based reason, got %q", result.Routing.Reason)
	}

	if err := coordinator.UpsertRoutingRule(ctx, &models.RoutingRule{Type: models.RuleKeyword}); err == nil {
		t.Fatal("expected validation error for unnamed rule")
	}
}

func TestGetAvailableAgentsRanksCandidates(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, nil, nil)

	candidates, err := coordinator.GetAvailableAgents(context.Background(), "billing", "en", 3, 5)
	if err != nil {
		t.Fatalf("get available agents: %v", err)
	}
	if len(candidates) != 1 || candidates[0].AgentID != "agent-1" {
		t.Fatalf("expected agent-1 as the only candidate, got %+v", candidates)
	}

	if _, err := coordinator.GetAvailableAgents(context.Background(), "", "", 9, 5); err == nil {
		t.Fatal("expected validation error for out-of-range priority")
	}
}
