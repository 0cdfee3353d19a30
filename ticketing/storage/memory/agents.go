package memory

import (
	"context"
	"errors"

	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/ticketing/storage"
)

type agentRepo struct {
	store *Store
	inTx  bool
}

func (r *agentRepo) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *agentRepo) Create(ctx context.Context, agent *models.SupportAgent) error {
	defer r.lock()()
	if _, exists := r.store.agents[agent.ID]; exists {
		return errors.New("agent already exists")
	}
	r.store.agents[agent.ID] = agent
	return nil
}

func (r *agentRepo) Get(ctx context.Context, id string) (*models.SupportAgent, error) {
	defer r.lock()()
	agent, ok := r.store.agents[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return snapshotAgent(agent), nil
}

func (r *agentRepo) Update(ctx context.Context, agent *models.SupportAgent) error {
	defer r.lock()()
	if _, ok := r.store.agents[agent.ID]; !ok {
		return storage.ErrNotFound
	}
	r.store.agents[agent.ID] = agent
	return nil
}

func (r *agentRepo) List(ctx context.Context, filter models.ListAgentsRequest) ([]*models.SupportAgent, error) {
	defer r.lock()()

	var matched []*models.SupportAgent
	for _, agent := range r.store.agents {
		if filter.Status != "" && agent.Status != filter.Status {
			continue
		}
		if filter.Category != "" {
			if _, ok := agent.Specializations[filter.Category]; !ok {
				continue
			}
		}
		if filter.Language != "" && !agent.HasLanguage(filter.Language) {
			continue
		}
		matched = append(matched, snapshotAgent(agent))
	}

	offset := filter.Offset
	if offset > len(matched) {
		offset = len(matched)
	}
	end := len(matched)
	if filter.Limit > 0 && offset+filter.Limit < end {
		end = offset + filter.Limit
	}
	return matched[offset:end], nil
}

func (r *agentRepo) ResetDailyCounters(ctx context.Context) error {
	defer r.lock()()
	for _, agent := range r.store.agents {
		agent.TicketsHandledToday = 0
		agent.TicketsResolvedToday = 0
	}
	return nil
}

// snapshotAgent gives readers outside a transaction their own copy, per the
// concurrency model: non-transactional reads see a stale snapshot, never the
// live struct a concurrent assignment commit is mutating.
func snapshotAgent(agent *models.SupportAgent) *models.SupportAgent {
	copied := *agent
	return &copied
}
