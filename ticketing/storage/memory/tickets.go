package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/ticketing/storage"
)

type ticketRepo struct {
	store *Store
	inTx  bool
}

func (r *ticketRepo) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *ticketRepo) Create(ctx context.Context, ticket *models.Ticket) error {
	defer r.lock()()
	if _, exists := r.store.tickets[ticket.ID]; exists {
		return errors.New("ticket already exists")
	}
	r.store.tickets[ticket.ID] = ticket
	return nil
}

func (r *ticketRepo) Get(ctx context.Context, id string) (*models.Ticket, error) {
	defer r.lock()()
	ticket, ok := r.store.tickets[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return snapshotTicket(ticket), nil
}

func (r *ticketRepo) Update(ctx context.Context, ticket *models.Ticket) error {
	defer r.lock()()
	if _, ok := r.store.tickets[ticket.ID]; !ok {
		return storage.ErrNotFound
	}
	r.store.tickets[ticket.ID] = ticket
	return nil
}

func (r *ticketRepo) Delete(ctx context.Context, id string) error {
	defer r.lock()()
	if _, ok := r.store.tickets[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.store.tickets, id)
	return nil
}

func (r *ticketRepo) List(ctx context.Context, filter storage.ListTicketsFilter) ([]*models.Ticket, int, error) {
	defer r.lock()()

	var matched []*models.Ticket
	for _, ticket := range r.store.tickets {
		if filter.Status != "" && ticket.Status != filter.Status {
			continue
		}
		if filter.AgentID != "" && (ticket.Assignment == nil || ticket.Assignment.AgentID != filter.AgentID) {
			continue
		}
		if filter.Category != "" && (ticket.Classification == nil || ticket.Classification.PrimaryCategory != filter.Category) {
			continue
		}
		matched = append(matched, snapshotTicket(ticket))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	offset := filter.Offset
	if offset > total {
		offset = total
	}
	end := total
	if filter.Limit > 0 && offset+filter.Limit < end {
		end = offset + filter.Limit
	}
	return matched[offset:end], total, nil
}

func (r *ticketRepo) FindDueForSLAScan(ctx context.Context) ([]*models.Ticket, error) {
	defer r.lock()()

	now := time.Now()
	var due []*models.Ticket
	for _, ticket := range r.store.tickets {
		if ticket.SLADueAt == nil || ticket.SLABreached || ticket.SLADueAt.After(now) {
			continue
		}
		switch ticket.Status {
		case models.StatusNew, models.StatusOpen, models.StatusInProgress:
		default:
			continue
		}
		due = append(due, snapshotTicket(ticket))
	}
	return due, nil
}

// snapshotTicket mirrors snapshotAgent: readers outside a transaction get
// their own copy of the row.
func snapshotTicket(ticket *models.Ticket) *models.Ticket {
	copied := *ticket
	return &copied
}
