package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/ticketing/routing"
	"github.com/ticketflow/engine/ticketing/storage"
	"github.com/ticketflow/engine/validation"
)

// Admin operations: the explicit ticket and agent mutations spec'd alongside
// Submit. Everything that touches an agent's load counter goes through the
// same transactional protocol the assignment commit uses.

// GetTicket loads one ticket by id.
func (c *Coordinator) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := c.store.Tickets().Get(ctx, id)
	if err != nil {
		return nil, mapStorageErr("ticket", id, err)
	}
	return ticket, nil
}

// ListTickets returns a filtered, paginated ticket page plus the total count.
func (c *Coordinator) ListTickets(ctx context.Context, filter storage.ListTicketsFilter) ([]*models.Ticket, int, error) {
	if err := validation.NewListValidator(200).ValidatePagination(filter.Limit, filter.Offset).Validate(); err != nil {
		return nil, 0, &Error{Kind: KindValidation, Message: err.Error(), Cause: err}
	}
	return c.store.Tickets().List(ctx, filter)
}

// TicketPatch carries the updatable fields of UpdateTicket; nil pointers
// leave the corresponding field untouched.
type TicketPatch struct {
	Subject      *string
	Status       *models.TicketStatus
	Priority     *int
	Tags         []string
	CustomFields map[string]string
}

// UpdateTicket applies patch to an existing ticket.
func (c *Coordinator) UpdateTicket(ctx context.Context, id string, patch TicketPatch) (*models.Ticket, error) {
	if patch.Status != nil {
		switch *patch.Status {
		case models.StatusNew, models.StatusOpen, models.StatusPending, models.StatusInProgress,
			models.StatusResolved, models.StatusClosed, models.StatusEscalated:
		default:
			return nil, &Error{Kind: KindValidation, Message: fmt.Sprintf("unknown status %q", *patch.Status)}
		}
	}
	if patch.Priority != nil && (*patch.Priority < 1 || *patch.Priority > 5) {
		return nil, &Error{Kind: KindValidation, Message: "priority must be between 1 and 5"}
	}

	ticket, err := c.store.Tickets().Get(ctx, id)
	if err != nil {
		return nil, mapStorageErr("ticket", id, err)
	}

	if patch.Subject != nil {
		ticket.Subject = *patch.Subject
	}
	if patch.Status != nil {
		ticket.Status = *patch.Status
	}
	if patch.Priority != nil {
		if ticket.Priority == nil {
			ticket.Priority = &models.Priority{}
		}
		ticket.Priority.Score = *patch.Priority
		ticket.Priority.Level = models.LevelForScore(*patch.Priority)
	}
	if patch.Tags != nil {
		ticket.Tags = patch.Tags
	}
	if patch.CustomFields != nil {
		ticket.CustomFields = patch.CustomFields
	}
	ticket.UpdatedAt = time.Now().UTC()

	if err := c.store.Tickets().Update(ctx, ticket); err != nil {
		return nil, dependencyErr("failed to update ticket", err)
	}
	return ticket, nil
}

// ReassignTicket moves a ticket to agentID, or re-runs routing with the
// current agent excluded when agentID is empty. The previous agent's load
// is decremented in the same commit that increments the new agent's.
func (c *Coordinator) ReassignTicket(ctx context.Context, id, agentID, reason string) (*models.Ticket, error) {
	ticket, err := c.store.Tickets().Get(ctx, id)
	if err != nil {
		return nil, mapStorageErr("ticket", id, err)
	}

	previousAgentID := ""
	if ticket.Assignment != nil {
		previousAgentID = ticket.Assignment.AgentID
	}

	agents, err := c.store.Agents().List(ctx, models.ListAgentsRequest{Limit: 1000})
	if err != nil {
		return nil, dependencyErr("failed to list agents", err)
	}

	req := c.routingRequest(ticket)
	exclude := map[string]bool{}
	if previousAgentID != "" {
		exclude[previousAgentID] = true
	}

	attempts := c.cfg.AssignmentRetryAttempts
	if attempts <= 0 {
		attempts = 3
	}

	for attempt := 0; attempt < attempts; attempt++ {
		var assignment *models.Assignment
		if agentID != "" {
			assignment = &models.Assignment{
				Reason:     models.ReasonRuleBased,
				Confidence: 1.0,
				Message:    reason,
			}
		} else {
			decision := c.router.Reassign(ctx, agents, req, exclude)
			if decision.AgentID == "" {
				return nil, &Error{Kind: KindConflict, Message: "no available agent to reassign to"}
			}
			agentID = decision.AgentID
			assignment = routing.ToModel(decision)
			assignment.Message = reason
		}

		tx, err := c.store.Begin(ctx)
		if err != nil {
			return nil, dependencyErr("failed to begin reassignment transaction", err)
		}

		err = tx.AssignTicket(ctx, ticket.ID, agentID, previousAgentID, assignment)
		if err == nil {
			if cerr := tx.Commit(); cerr != nil {
				return nil, dependencyErr("failed to commit reassignment", cerr)
			}
			ticket.Assignment = assignment
			ticket.UpdatedAt = time.Now().UTC()
			return ticket, nil
		}

		_ = tx.Rollback()
		if errors.Is(err, storage.ErrAgentAtCapacity) {
			c.metrics.RecordCapacityRetry()
			exclude[agentID] = true
			agentID = ""
			continue
		}
		return nil, dependencyErr("failed to reassign ticket", err)
	}

	return nil, &Error{Kind: KindConflict, Message: "exhausted reassignment retries under capacity contention"}
}

// EscalateTicket bumps priority by one (capped at 5), marks the ticket
// escalated, and records the reason.
func (c *Coordinator) EscalateTicket(ctx context.Context, id, reason string) (*models.Ticket, error) {
	ticket, err := c.store.Tickets().Get(ctx, id)
	if err != nil {
		return nil, mapStorageErr("ticket", id, err)
	}

	ticket.Escalate(reason)
	ticket.UpdatedAt = time.Now().UTC()

	if err := c.store.Tickets().Update(ctx, ticket); err != nil {
		return nil, dependencyErr("failed to persist escalation", err)
	}
	return ticket, nil
}

// ResolveTicket marks the ticket resolved and returns the assigned agent's
// load to its pre-assignment value in the same transaction.
func (c *Coordinator) ResolveTicket(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := c.store.Tickets().Get(ctx, id)
	if err != nil {
		return nil, mapStorageErr("ticket", id, err)
	}
	if ticket.Status == models.StatusResolved || ticket.Status == models.StatusClosed {
		return ticket, nil
	}

	now := time.Now().UTC()
	ticket.Status = models.StatusResolved
	ticket.ResolvedAt = &now
	if ticket.FirstResponseAt == nil {
		ticket.FirstResponseAt = &now
	}
	ticket.UpdatedAt = now

	tx, err := c.store.Begin(ctx)
	if err != nil {
		return nil, dependencyErr("failed to begin resolution transaction", err)
	}
	if ticket.Assignment != nil && ticket.Assignment.AgentID != "" {
		if err := tx.ReleaseAgent(ctx, ticket.Assignment.AgentID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			_ = tx.Rollback()
			return nil, dependencyErr("failed to release agent load", err)
		}
	}
	if err := tx.Tickets().Update(ctx, ticket); err != nil {
		_ = tx.Rollback()
		return nil, dependencyErr("failed to persist resolution", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, dependencyErr("failed to commit resolution", err)
	}
	return ticket, nil
}

// DeleteTicket hard-deletes a ticket. If the ticket is still open and
// assigned, the agent's load is released in the same transaction so the
// counter stays consistent with the agent's open tickets.
func (c *Coordinator) DeleteTicket(ctx context.Context, id string) error {
	ticket, err := c.store.Tickets().Get(ctx, id)
	if err != nil {
		return mapStorageErr("ticket", id, err)
	}

	tx, err := c.store.Begin(ctx)
	if err != nil {
		return dependencyErr("failed to begin deletion transaction", err)
	}
	stillOpen := ticket.Status != models.StatusResolved && ticket.Status != models.StatusClosed
	if stillOpen && ticket.Assignment != nil && ticket.Assignment.AgentID != "" {
		if err := tx.ReleaseAgent(ctx, ticket.Assignment.AgentID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			_ = tx.Rollback()
			return dependencyErr("failed to release agent load", err)
		}
	}
	if err := tx.Tickets().Delete(ctx, id); err != nil {
		_ = tx.Rollback()
		return mapStorageErr("ticket", id, err)
	}
	if err := tx.Commit(); err != nil {
		return dependencyErr("failed to commit deletion", err)
	}
	return nil
}

// CreateAgent validates and persists a new support agent.
func (c *Coordinator) CreateAgent(ctx context.Context, agent *models.SupportAgent) error {
	err := validation.NewAgentValidator().
		ValidateEmail(agent.Email).
		ValidateExperienceLevel(agent.ExperienceLevel).
		ValidateLoad(agent.CurrentLoad, agent.MaxLoad).
		ValidateLanguages(agent.Languages).
		Validate()
	if err != nil {
		return &Error{Kind: KindValidation, Message: err.Error(), Cause: err}
	}

	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}
	if agent.Status == "" {
		agent.Status = models.AgentOffline
	}
	now := time.Now().UTC()
	agent.CreatedAt = now
	agent.UpdatedAt = now

	if err := c.store.Agents().Create(ctx, agent); err != nil {
		return dependencyErr("failed to persist agent", err)
	}
	return nil
}

// UpdateAgent persists changes to an existing agent. current_load is not
// updatable here; it belongs to the assignment protocol.
func (c *Coordinator) UpdateAgent(ctx context.Context, agent *models.SupportAgent) error {
	existing, err := c.store.Agents().Get(ctx, agent.ID)
	if err != nil {
		return mapStorageErr("agent", agent.ID, err)
	}
	agent.CurrentLoad = existing.CurrentLoad
	agent.UpdatedAt = time.Now().UTC()

	if err := c.store.Agents().Update(ctx, agent); err != nil {
		return dependencyErr("failed to update agent", err)
	}
	return nil
}

// SetAgentStatus flips an agent's availability state.
func (c *Coordinator) SetAgentStatus(ctx context.Context, id string, status models.SupportAgentStatus) error {
	switch status {
	case models.AgentOnline, models.AgentOffline, models.AgentBusy, models.AgentAway, models.AgentOnBreak:
	default:
		return &Error{Kind: KindValidation, Message: fmt.Sprintf("unknown agent status %q", status)}
	}

	agent, err := c.store.Agents().Get(ctx, id)
	if err != nil {
		return mapStorageErr("agent", id, err)
	}
	agent.Status = status
	agent.UpdatedAt = time.Now().UTC()

	if err := c.store.Agents().Update(ctx, agent); err != nil {
		return dependencyErr("failed to update agent status", err)
	}
	return nil
}

// DeleteAgent deactivates an agent (soft delete: is_active=false, offline).
func (c *Coordinator) DeleteAgent(ctx context.Context, id string) error {
	agent, err := c.store.Agents().Get(ctx, id)
	if err != nil {
		return mapStorageErr("agent", id, err)
	}
	agent.IsActive = false
	agent.Status = models.AgentOffline
	agent.UpdatedAt = time.Now().UTC()

	if err := c.store.Agents().Update(ctx, agent); err != nil {
		return dependencyErr("failed to deactivate agent", err)
	}
	return nil
}

// GetAvailableAgents returns a read-only ranked candidate list for manual
// assignment, without committing anything.
func (c *Coordinator) GetAvailableAgents(ctx context.Context, category, language string, priority, limit int) ([]routing.Alternative, error) {
	if priority != 0 && (priority < 1 || priority > 5) {
		return nil, &Error{Kind: KindValidation, Message: "priority must be between 1 and 5"}
	}
	agents, err := c.store.Agents().List(ctx, models.ListAgentsRequest{Limit: 1000})
	if err != nil {
		return nil, dependencyErr("failed to list agents", err)
	}
	if priority == 0 {
		priority = 3
	}
	req := routing.Request{
		Category: category,
		Language: language,
		Priority: priority,
		Now:      time.Now().UTC(),
	}
	return c.router.Recommend(ctx, agents, req, limit), nil
}

// UpsertCategory creates or replaces a category configuration entry.
// Categories are read from the store per ticket, so no snapshot refresh is
// needed.
func (c *Coordinator) UpsertCategory(ctx context.Context, category *models.Category) error {
	if category.Slug == "" {
		return &Error{Kind: KindValidation, Message: "category slug is required"}
	}
	if category.PriorityBoost < -2 || category.PriorityBoost > 2 {
		return &Error{Kind: KindValidation, Message: "priority_boost must be between -2 and 2"}
	}
	if err := c.store.Categories().Upsert(ctx, category); err != nil {
		return dependencyErr("failed to upsert category", err)
	}
	return nil
}

// UpsertRoutingRule persists a rule and refreshes the Router's rule
// snapshot from the store, so the change takes effect without a restart.
func (c *Coordinator) UpsertRoutingRule(ctx context.Context, rule *models.RoutingRule) error {
	if rule.Name == "" {
		return &Error{Kind: KindValidation, Message: "rule name is required"}
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	if _, err := c.store.Rules().Get(ctx, rule.ID); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return dependencyErr("failed to look up rule", err)
		}
		if err := c.store.Rules().Create(ctx, rule); err != nil {
			return dependencyErr("failed to create rule", err)
		}
	} else if err := c.store.Rules().Update(ctx, rule); err != nil {
		return dependencyErr("failed to update rule", err)
	}

	active, err := c.store.Rules().ListActive(ctx)
	if err != nil {
		return dependencyErr("failed to reload active rules", err)
	}
	rules := make([]models.RoutingRule, 0, len(active))
	for _, r := range active {
		rules = append(rules, *r)
	}
	c.router.SetRules(rules)
	return nil
}

// routingRequest builds the Router input for an already-enriched ticket.
func (c *Coordinator) routingRequest(ticket *models.Ticket) routing.Request {
	category := ""
	if ticket.Classification != nil {
		category = ticket.Classification.PrimaryCategory
	}
	priority := 3
	if ticket.Priority != nil {
		priority = ticket.Priority.Score
	}
	req := routing.Request{
		Category:     category,
		Priority:     priority,
		Language:     ticket.Language,
		CustomerTier: ticket.CustomerTier,
		Source:       ticket.Source,
		Content:      ticket.Content,
		Subject:      ticket.Subject,
		Now:          time.Now().UTC(),
	}
	if ticket.Sentiment != nil {
		req.Sentiment = ticket.Sentiment.Label
	}
	return req
}

func mapStorageErr(entity, id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
	}
	return dependencyErr(fmt.Sprintf("failed to load %s %s", entity, id), err)
}
