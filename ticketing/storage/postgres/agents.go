package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/ticketing/storage"
)

type agentRepo struct{ q querier }

func (r *agentRepo) Create(ctx context.Context, agent *models.SupportAgent) error {
	skillsJSON, _ := json.Marshal(agent.Skills)
	langsJSON, _ := json.Marshal(agent.Languages)
	specJSON, _ := json.Marshal(agent.Specializations)
	hoursJSON, _ := json.Marshal(agent.WorkingHours)
	perfJSON, _ := json.Marshal(agent.Performance)

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO support_agents (
			id, name, email, skills, languages, experience_level, specializations,
			current_load, max_load, status, is_active, can_handle_vip, can_handle_critical,
			working_hours, performance, tickets_handled_today, tickets_resolved_today,
			team, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		agent.ID, agent.Name, agent.Email, skillsJSON, langsJSON, agent.ExperienceLevel, specJSON,
		agent.CurrentLoad, agent.MaxLoad, string(agent.Status), agent.IsActive,
		agent.CanHandleVIP, agent.CanHandleCritical, hoursJSON, perfJSON,
		agent.TicketsHandledToday, agent.TicketsResolvedToday, agent.Team,
		agent.CreatedAt, agent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert agent: %w", err)
	}
	return nil
}

func (r *agentRepo) Get(ctx context.Context, id string) (*models.SupportAgent, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, name, email, skills, languages, experience_level, specializations,
		       current_load, max_load, status, is_active, can_handle_vip, can_handle_critical,
		       working_hours, performance, tickets_handled_today, tickets_resolved_today,
		       team, created_at, updated_at
		FROM support_agents WHERE id = $1`, id)

	var (
		agent                           models.SupportAgent
		skillsJSON, langsJSON, specJSON []byte
		hoursJSON, perfJSON             []byte
		status                          string
	)
	err := row.Scan(
		&agent.ID, &agent.Name, &agent.Email, &skillsJSON, &langsJSON, &agent.ExperienceLevel, &specJSON,
		&agent.CurrentLoad, &agent.MaxLoad, &status, &agent.IsActive, &agent.CanHandleVIP, &agent.CanHandleCritical,
		&hoursJSON, &perfJSON, &agent.TicketsHandledToday, &agent.TicketsResolvedToday,
		&agent.Team, &agent.CreatedAt, &agent.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan agent: %w", err)
	}
	agent.Status = models.SupportAgentStatus(status)
	_ = json.Unmarshal(skillsJSON, &agent.Skills)
	_ = json.Unmarshal(langsJSON, &agent.Languages)
	_ = json.Unmarshal(specJSON, &agent.Specializations)
	_ = json.Unmarshal(hoursJSON, &agent.WorkingHours)
	_ = json.Unmarshal(perfJSON, &agent.Performance)
	return &agent, nil
}

func (r *agentRepo) Update(ctx context.Context, agent *models.SupportAgent) error {
	specJSON, _ := json.Marshal(agent.Specializations)
	hoursJSON, _ := json.Marshal(agent.WorkingHours)
	perfJSON, _ := json.Marshal(agent.Performance)

	_, err := r.q.ExecContext(ctx, `
		UPDATE support_agents SET
			current_load=$1, max_load=$2, status=$3, is_active=$4,
			specializations=$5, working_hours=$6, performance=$7,
			tickets_handled_today=$8, tickets_resolved_today=$9, updated_at=now()
		WHERE id=$10`,
		agent.CurrentLoad, agent.MaxLoad, string(agent.Status), agent.IsActive,
		specJSON, hoursJSON, perfJSON, agent.TicketsHandledToday, agent.TicketsResolvedToday, agent.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update agent: %w", err)
	}
	return nil
}

func (r *agentRepo) List(ctx context.Context, filter models.ListAgentsRequest) ([]*models.SupportAgent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.q.QueryContext(ctx, `
		SELECT id FROM support_agents
		WHERE ($1 = '' OR status = $1)
		ORDER BY name LIMIT $2 OFFSET $3`,
		string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	ids, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}
	agents := make([]*models.SupportAgent, 0, len(ids))
	for _, id := range ids {
		agent, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, nil
}

func (r *agentRepo) ResetDailyCounters(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE support_agents SET tickets_handled_today = 0, tickets_resolved_today = 0, updated_at = now()`)
	if err != nil {
		return fmt.Errorf("failed to reset daily counters: %w", err)
	}
	return nil
}
