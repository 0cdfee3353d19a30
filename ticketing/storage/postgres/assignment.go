package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/ticketing/storage"
)

// AssignTicket implements the atomic assignment commit: lock the target
// agent row, verify capacity, increment current_load, decrement the
// previous agent's load if reassigning, and write the ticket's assignment,
// all inside the already-open transaction.
func (t *Transaction) AssignTicket(ctx context.Context, ticketID, agentID, previousAgentID string, assignment *models.Assignment) error {
	var currentLoad, maxLoad int
	err := t.tx.QueryRowContext(ctx,
		`SELECT current_load, max_load FROM support_agents WHERE id = $1 FOR UPDATE`, agentID,
	).Scan(&currentLoad, &maxLoad)
	if err != nil {
		if err == sql.ErrNoRows {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to lock agent row: %w", err)
	}
	if currentLoad >= maxLoad {
		return storage.ErrAgentAtCapacity
	}

	if _, err := t.tx.ExecContext(ctx,
		`UPDATE support_agents SET current_load = current_load + 1, updated_at = now() WHERE id = $1`, agentID,
	); err != nil {
		return fmt.Errorf("failed to increment agent load: %w", err)
	}

	if previousAgentID != "" && previousAgentID != agentID {
		if _, err := t.tx.ExecContext(ctx,
			`UPDATE support_agents SET current_load = GREATEST(current_load - 1, 0), updated_at = now() WHERE id = $1`,
			previousAgentID,
		); err != nil {
			return fmt.Errorf("failed to decrement previous agent load: %w", err)
		}
	}

	breakdownJSON, err := json.Marshal(assignment.ScoreBreakdown)
	if err != nil {
		return fmt.Errorf("failed to marshal score breakdown: %w", err)
	}
	altsJSON, err := json.Marshal(assignment.Alternatives)
	if err != nil {
		return fmt.Errorf("failed to marshal alternatives: %w", err)
	}

	if _, err := t.tx.ExecContext(ctx,
		`UPDATE tickets SET agent_id = $1, assignment_reason = $2, assignment_confidence = $3,
		 assignment_score = $4, assignment_score_breakdown = $5, assignment_alternatives = $6,
		 previous_agent_id = $7, updated_at = now() WHERE id = $8`,
		nullableString(agentID), string(assignment.Reason), assignment.Confidence,
		assignment.Score, breakdownJSON, altsJSON, nullableString(previousAgentID), ticketID,
	); err != nil {
		return fmt.Errorf("failed to write ticket assignment: %w", err)
	}
	return nil
}

// ReleaseAgent decrements the agent's load inside the open transaction,
// flooring at zero, with the same row lock AssignTicket takes.
func (t *Transaction) ReleaseAgent(ctx context.Context, agentID string) error {
	var currentLoad int
	err := t.tx.QueryRowContext(ctx,
		`SELECT current_load FROM support_agents WHERE id = $1 FOR UPDATE`, agentID,
	).Scan(&currentLoad)
	if err != nil {
		if err == sql.ErrNoRows {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to lock agent row: %w", err)
	}

	if _, err := t.tx.ExecContext(ctx,
		`UPDATE support_agents SET current_load = GREATEST(current_load - 1, 0), updated_at = now() WHERE id = $1`,
		agentID,
	); err != nil {
		return fmt.Errorf("failed to decrement agent load: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
