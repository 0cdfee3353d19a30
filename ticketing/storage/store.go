// Package storage defines the repository interfaces the ticketing domain
// persists through, following the Store/Transaction split the rest of this
// codebase uses for its own agent storage. Each entity gets its own
// accessor so a single backing type can implement every repository without
// CRUD method names colliding across entities.
package storage

import (
	"context"

	"github.com/ticketflow/engine/ticketing/models"
)

// TicketRepository persists tickets.
type TicketRepository interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	Get(ctx context.Context, id string) (*models.Ticket, error)
	Update(ctx context.Context, ticket *models.Ticket) error
	// Delete removes the ticket row. Hard deletion is an explicit admin
	// operation; nothing in the pipeline deletes implicitly.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListTicketsFilter) ([]*models.Ticket, int, error)
	FindDueForSLAScan(ctx context.Context) ([]*models.Ticket, error)
}

// ListTicketsFilter narrows a ticket listing.
type ListTicketsFilter struct {
	Status   models.TicketStatus
	AgentID  string
	Category string
	Limit    int
	Offset   int
}

// AgentRepository persists support agents and their load counters.
type AgentRepository interface {
	Create(ctx context.Context, agent *models.SupportAgent) error
	Get(ctx context.Context, id string) (*models.SupportAgent, error)
	Update(ctx context.Context, agent *models.SupportAgent) error
	List(ctx context.Context, filter models.ListAgentsRequest) ([]*models.SupportAgent, error)
	ResetDailyCounters(ctx context.Context) error
}

// RuleRepository persists routing rules.
type RuleRepository interface {
	Create(ctx context.Context, rule *models.RoutingRule) error
	Get(ctx context.Context, id string) (*models.RoutingRule, error)
	Update(ctx context.Context, rule *models.RoutingRule) error
	ListActive(ctx context.Context) ([]*models.RoutingRule, error)
}

// CategoryRepository persists category configuration.
type CategoryRepository interface {
	Get(ctx context.Context, slug string) (*models.Category, error)
	List(ctx context.Context) ([]*models.Category, error)
	Upsert(ctx context.Context, category *models.Category) error
}

// Store groups the four repositories behind named accessors (rather than
// embedding them directly) since Create/Get/Update/List collide by name
// across entities; it also supports transactional commits for the Router's
// assignment protocol.
type Store interface {
	Tickets() TicketRepository
	Agents() AgentRepository
	Rules() RuleRepository
	Categories() CategoryRepository

	Begin(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction is a Store bound to a single in-flight commit. AssignTicket
// implements the Router's atomic assignment protocol: lock the agent row,
// verify capacity, increment current_load, write the ticket's assignment,
// all inside one commit.
type Transaction interface {
	Tickets() TicketRepository
	Agents() AgentRepository
	Rules() RuleRepository
	Categories() CategoryRepository

	// AssignTicket performs `SELECT agent FOR UPDATE; IF current_load <
	// max_load THEN current_load += 1; UPDATE ticket`, returning
	// ErrAgentAtCapacity if the agent filled up between candidate selection
	// and commit. previousAgentID, if non-empty, is decremented in the same
	// commit (the reassignment path).
	AssignTicket(ctx context.Context, ticketID, agentID, previousAgentID string, assignment *models.Assignment) error

	// ReleaseAgent decrements an agent's current_load (floored at zero)
	// under the same locking discipline as AssignTicket. Used by the
	// resolution and unassignment paths.
	ReleaseAgent(ctx context.Context, agentID string) error

	Commit() error
	Rollback() error
}
