package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/ticketing/storage"
)

type ruleRepo struct{ q querier }

func (r *ruleRepo) Create(ctx context.Context, rule *models.RoutingRule) error {
	condJSON, _ := json.Marshal(rule.Conditions)
	paramsJSON, _ := json.Marshal(rule.ActionParams)
	sourcesJSON, _ := json.Marshal(rule.AppliesToSources)
	categoriesJSON, _ := json.Marshal(rule.AppliesToCategories)
	daysJSON, _ := json.Marshal(rule.ActiveDays)

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO routing_rules (
			id, name, description, type, conditions, action, action_params,
			priority, is_active, is_exclusive, applies_to_sources, applies_to_categories,
			active_from, active_until, active_hours_start, active_hours_end, active_days,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		rule.ID, rule.Name, rule.Description, string(rule.Type), condJSON, string(rule.Action), paramsJSON,
		rule.Priority, rule.IsActive, rule.IsExclusive, sourcesJSON, categoriesJSON,
		rule.ActiveFrom, rule.ActiveUntil, rule.ActiveHoursStart, rule.ActiveHoursEnd, daysJSON,
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

func (r *ruleRepo) Get(ctx context.Context, id string) (*models.RoutingRule, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, name, description, type, conditions, action, action_params,
		       priority, is_active, is_exclusive, applies_to_sources, applies_to_categories,
		       active_from, active_until, active_hours_start, active_hours_end, active_days,
		       created_at, updated_at
		FROM routing_rules WHERE id = $1`, id)
	return scanRule(row)
}

func scanRule(row *sql.Row) (*models.RoutingRule, error) {
	var rule models.RoutingRule
	var condJSON, paramsJSON, sourcesJSON, categoriesJSON, daysJSON []byte
	var typ, action string
	err := row.Scan(&rule.ID, &rule.Name, &rule.Description, &typ, &condJSON, &action, &paramsJSON,
		&rule.Priority, &rule.IsActive, &rule.IsExclusive, &sourcesJSON, &categoriesJSON,
		&rule.ActiveFrom, &rule.ActiveUntil, &rule.ActiveHoursStart, &rule.ActiveHoursEnd, &daysJSON,
		&rule.CreatedAt, &rule.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}
	rule.Type = models.RuleType(typ)
	rule.Action = models.RuleAction(action)
	_ = json.Unmarshal(condJSON, &rule.Conditions)
	_ = json.Unmarshal(paramsJSON, &rule.ActionParams)
	_ = json.Unmarshal(sourcesJSON, &rule.AppliesToSources)
	_ = json.Unmarshal(categoriesJSON, &rule.AppliesToCategories)
	_ = json.Unmarshal(daysJSON, &rule.ActiveDays)
	return &rule, nil
}

func (r *ruleRepo) Update(ctx context.Context, rule *models.RoutingRule) error {
	condJSON, _ := json.Marshal(rule.Conditions)
	paramsJSON, _ := json.Marshal(rule.ActionParams)
	_, err := r.q.ExecContext(ctx, `
		UPDATE routing_rules SET
			name=$1, description=$2, conditions=$3, action=$4, action_params=$5,
			priority=$6, is_active=$7, is_exclusive=$8, updated_at=now()
		WHERE id=$9`,
		rule.Name, rule.Description, condJSON, string(rule.Action), paramsJSON,
		rule.Priority, rule.IsActive, rule.IsExclusive, rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return nil
}

func (r *ruleRepo) ListActive(ctx context.Context) ([]*models.RoutingRule, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id FROM routing_rules WHERE is_active = true ORDER BY priority DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active rules: %w", err)
	}
	defer rows.Close()

	ids, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}
	rules := make([]*models.RoutingRule, 0, len(ids))
	for _, id := range ids {
		rule, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
