package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/ticketing/storage"
)

type ticketRepo struct{ q querier }

func (r *ticketRepo) Create(ctx context.Context, ticket *models.Ticket) error {
	classJSON, err := json.Marshal(ticket.Classification)
	if err != nil {
		return fmt.Errorf("failed to marshal classification: %w", err)
	}
	sentimentJSON, err := json.Marshal(ticket.Sentiment)
	if err != nil {
		return fmt.Errorf("failed to marshal sentiment: %w", err)
	}
	priorityJSON, err := json.Marshal(ticket.Priority)
	if err != nil {
		return fmt.Errorf("failed to marshal priority: %w", err)
	}
	suggestionsJSON, err := json.Marshal(ticket.SuggestedResponses)
	if err != nil {
		return fmt.Errorf("failed to marshal suggested responses: %w", err)
	}
	tagsJSON, err := json.Marshal(ticket.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	customFieldsJSON, err := json.Marshal(ticket.CustomFields)
	if err != nil {
		return fmt.Errorf("failed to marshal custom fields: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO tickets (
			id, content, subject, customer_email, customer_name, customer_tier, language,
			category, classification, sentiment, priority, status,
			is_processed, suggested_responses, tags, sla_due_at, sla_breached,
			external_id, external_system, channel, custom_fields, skip_routing,
			created_at, updated_at
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24
		)`,
		ticket.ID, ticket.Content, ticket.Subject, ticket.CustomerEmail, ticket.CustomerName, string(ticket.CustomerTier),
		ticket.Language, categorySlug(ticket), classJSON, sentimentJSON, priorityJSON,
		string(ticket.Status), ticket.IsProcessed, suggestionsJSON, tagsJSON,
		ticket.SLADueAt, ticket.SLABreached,
		nullableString(ticket.ExternalID), nullableString(ticket.ExternalSystem), nullableString(ticket.Channel),
		customFieldsJSON, ticket.SkipRouting, ticket.CreatedAt, ticket.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ticket: %w", err)
	}
	return nil
}

func categorySlug(ticket *models.Ticket) string {
	if ticket.Classification == nil {
		return ""
	}
	return ticket.Classification.PrimaryCategory
}

func (r *ticketRepo) Get(ctx context.Context, id string) (*models.Ticket, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, content, subject, customer_email, customer_name, customer_tier, language,
		       classification, sentiment, priority, status, is_processed,
		       suggested_responses, tags, sla_due_at, sla_breached,
		       external_id, external_system, channel, custom_fields, skip_routing,
		       agent_id, assignment_reason, assignment_confidence,
		       assignment_score, assignment_score_breakdown, assignment_alternatives,
		       previous_agent_id, created_at, updated_at
		FROM tickets WHERE id = $1`, id)
	return scanTicket(row)
}

func scanTicket(row *sql.Row) (*models.Ticket, error) {
	var (
		ticket                                 models.Ticket
		classJSON, sentimentJSON, priorityJSON []byte
		suggestionsJSON, tagsJSON              []byte
		breakdownJSON, altsJSON                []byte
		customFieldsJSON                       []byte
		customerTier, status                   string
		agentID, reason, prevAgentID           sql.NullString
		externalID, externalSystem, channel    sql.NullString
		confidence, score                      sql.NullFloat64
	)
	err := row.Scan(
		&ticket.ID, &ticket.Content, &ticket.Subject, &ticket.CustomerEmail, &ticket.CustomerName, &customerTier, &ticket.Language,
		&classJSON, &sentimentJSON, &priorityJSON, &status, &ticket.IsProcessed,
		&suggestionsJSON, &tagsJSON, &ticket.SLADueAt, &ticket.SLABreached,
		&externalID, &externalSystem, &channel, &customFieldsJSON, &ticket.SkipRouting,
		&agentID, &reason, &confidence, &score, &breakdownJSON, &altsJSON,
		&prevAgentID, &ticket.CreatedAt, &ticket.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ticket: %w", err)
	}

	ticket.CustomerTier = models.CustomerTier(customerTier)
	ticket.Status = models.TicketStatus(status)
	ticket.ExternalID = externalID.String
	ticket.ExternalSystem = externalSystem.String
	ticket.Channel = channel.String
	if len(customFieldsJSON) > 0 {
		_ = json.Unmarshal(customFieldsJSON, &ticket.CustomFields)
	}
	if len(classJSON) > 0 {
		var c models.Classification
		if err := json.Unmarshal(classJSON, &c); err == nil {
			ticket.Classification = &c
		}
	}
	if len(sentimentJSON) > 0 {
		var sentiment models.Sentiment
		if err := json.Unmarshal(sentimentJSON, &sentiment); err == nil {
			ticket.Sentiment = &sentiment
		}
	}
	if len(priorityJSON) > 0 {
		var p models.Priority
		if err := json.Unmarshal(priorityJSON, &p); err == nil {
			ticket.Priority = &p
		}
	}
	if len(suggestionsJSON) > 0 {
		_ = json.Unmarshal(suggestionsJSON, &ticket.SuggestedResponses)
	}
	if len(tagsJSON) > 0 {
		_ = json.Unmarshal(tagsJSON, &ticket.Tags)
	}
	if agentID.Valid {
		var alts []models.RoutingAlternative
		if len(altsJSON) > 0 {
			_ = json.Unmarshal(altsJSON, &alts)
		}
		var breakdown map[string]float64
		if len(breakdownJSON) > 0 {
			_ = json.Unmarshal(breakdownJSON, &breakdown)
		}
		ticket.Assignment = &models.Assignment{
			AgentID:         agentID.String,
			Reason:          models.RoutingReason(reason.String),
			Confidence:      confidence.Float64,
			Score:           score.Float64,
			ScoreBreakdown:  breakdown,
			Alternatives:    alts,
			PreviousAgentID: prevAgentID.String,
		}
	}
	return &ticket, nil
}

func (r *ticketRepo) Update(ctx context.Context, ticket *models.Ticket) error {
	classJSON, _ := json.Marshal(ticket.Classification)
	sentimentJSON, _ := json.Marshal(ticket.Sentiment)
	priorityJSON, _ := json.Marshal(ticket.Priority)
	suggestionsJSON, _ := json.Marshal(ticket.SuggestedResponses)
	tagsJSON, _ := json.Marshal(ticket.Tags)
	customFieldsJSON, _ := json.Marshal(ticket.CustomFields)

	_, err := r.q.ExecContext(ctx, `
		UPDATE tickets SET
			content=$1, subject=$2, customer_name=$3, customer_tier=$4, language=$5,
			classification=$6, sentiment=$7, priority=$8, status=$9,
			is_processed=$10, suggested_responses=$11, tags=$12,
			sla_due_at=$13, sla_breached=$14,
			external_id=$15, external_system=$16, channel=$17, custom_fields=$18, skip_routing=$19,
			updated_at=now()
		WHERE id=$20`,
		ticket.Content, ticket.Subject, ticket.CustomerName, string(ticket.CustomerTier), ticket.Language,
		classJSON, sentimentJSON, priorityJSON, string(ticket.Status),
		ticket.IsProcessed, suggestionsJSON, tagsJSON,
		ticket.SLADueAt, ticket.SLABreached,
		nullableString(ticket.ExternalID), nullableString(ticket.ExternalSystem), nullableString(ticket.Channel),
		customFieldsJSON, ticket.SkipRouting, ticket.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	return nil
}

func (r *ticketRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *ticketRepo) List(ctx context.Context, filter storage.ListTicketsFilter) ([]*models.Ticket, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var total int
	err := r.q.QueryRowContext(ctx, `
		SELECT count(*) FROM tickets
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR agent_id = $2) AND ($3 = '' OR category = $3)`,
		string(filter.Status), filter.AgentID, filter.Category,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT id FROM tickets
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR agent_id = $2) AND ($3 = '' OR category = $3)
		ORDER BY created_at DESC LIMIT $4 OFFSET $5`,
		string(filter.Status), filter.AgentID, filter.Category, limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	ids, err := scanIDs(rows)
	if err != nil {
		return nil, 0, err
	}

	tickets := make([]*models.Ticket, 0, len(ids))
	for _, id := range ids {
		ticket, err := r.Get(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, total, nil
}

func (r *ticketRepo) FindDueForSLAScan(ctx context.Context) ([]*models.Ticket, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id FROM tickets
		WHERE sla_due_at IS NOT NULL AND sla_due_at < now()
		  AND sla_breached = false
		  AND status IN ('new','open','in_progress')`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sla-due tickets: %w", err)
	}
	defer rows.Close()

	ids, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}
	tickets := make([]*models.Ticket, 0, len(ids))
	for _, id := range ids {
		ticket, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
