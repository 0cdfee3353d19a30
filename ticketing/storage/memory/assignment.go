package memory

import (
	"context"

	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/ticketing/storage"
)

// AssignTicket mirrors the Postgres commit protocol without row locks: since
// Begin already holds the store mutex for the transaction's lifetime, the
// capacity check and the load increment/decrement happen without any
// other goroutine observing an intermediate state.
func (t *Transaction) AssignTicket(ctx context.Context, ticketID, agentID, previousAgentID string, assignment *models.Assignment) error {
	agent, ok := t.store.agents[agentID]
	if !ok {
		return storage.ErrNotFound
	}
	if agent.CurrentLoad >= agent.MaxLoad {
		return storage.ErrAgentAtCapacity
	}
	ticket, ok := t.store.tickets[ticketID]
	if !ok {
		return storage.ErrNotFound
	}

	agent.CurrentLoad++

	if previousAgentID != "" && previousAgentID != agentID {
		if prev, ok := t.store.agents[previousAgentID]; ok && prev.CurrentLoad > 0 {
			prev.CurrentLoad--
		}
	}

	assignment.AgentID = agentID
	assignment.PreviousAgentID = previousAgentID
	ticket.Assignment = assignment
	return nil
}

// ReleaseAgent decrements the agent's load under the transaction's store
// lock, flooring at zero.
func (t *Transaction) ReleaseAgent(ctx context.Context, agentID string) error {
	agent, ok := t.store.agents[agentID]
	if !ok {
		return storage.ErrNotFound
	}
	if agent.CurrentLoad > 0 {
		agent.CurrentLoad--
	}
	return nil
}
