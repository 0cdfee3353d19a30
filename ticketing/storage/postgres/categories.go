package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/ticketing/storage"
)

type categoryRepo struct{ q querier }

func (r *categoryRepo) Get(ctx context.Context, slug string) (*models.Category, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT slug, display_names, priority_boost, sla_hours, keywords, default_team, requires_senior
		FROM categories WHERE slug = $1`, slug)

	var cat models.Category
	var namesJSON, keywordsJSON []byte
	err := row.Scan(&cat.Slug, &namesJSON, &cat.PriorityBoost, &cat.SLAHours, &keywordsJSON, &cat.DefaultTeam, &cat.RequiresSenior)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}
	_ = json.Unmarshal(namesJSON, &cat.DisplayNames)
	_ = json.Unmarshal(keywordsJSON, &cat.Keywords)
	return &cat, nil
}

func (r *categoryRepo) List(ctx context.Context) ([]*models.Category, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT slug FROM categories ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	slugs, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}
	cats := make([]*models.Category, 0, len(slugs))
	for _, slug := range slugs {
		cat, err := r.Get(ctx, slug)
		if err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}
	return cats, nil
}

func (r *categoryRepo) Upsert(ctx context.Context, cat *models.Category) error {
	namesJSON, _ := json.Marshal(cat.DisplayNames)
	keywordsJSON, _ := json.Marshal(cat.Keywords)
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO categories (slug, display_names, priority_boost, sla_hours, keywords, default_team, requires_senior)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (slug) DO UPDATE SET
			display_names=$2, priority_boost=$3, sla_hours=$4, keywords=$5, default_team=$6, requires_senior=$7`,
		cat.Slug, namesJSON, cat.PriorityBoost, cat.SLAHours, keywordsJSON, cat.DefaultTeam, cat.RequiresSenior,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert category: %w", err)
	}
	return nil
}
