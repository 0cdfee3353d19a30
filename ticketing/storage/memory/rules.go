package memory

import (
	"context"
	"errors"
	"sort"

	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/ticketing/storage"
)

type ruleRepo struct {
	store *Store
	inTx  bool
}

func (r *ruleRepo) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *ruleRepo) Create(ctx context.Context, rule *models.RoutingRule) error {
	defer r.lock()()
	if _, exists := r.store.rules[rule.ID]; exists {
		return errors.New("rule already exists")
	}
	r.store.rules[rule.ID] = rule
	return nil
}

func (r *ruleRepo) Get(ctx context.Context, id string) (*models.RoutingRule, error) {
	defer r.lock()()
	rule, ok := r.store.rules[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rule, nil
}

func (r *ruleRepo) Update(ctx context.Context, rule *models.RoutingRule) error {
	defer r.lock()()
	if _, ok := r.store.rules[rule.ID]; !ok {
		return storage.ErrNotFound
	}
	r.store.rules[rule.ID] = rule
	return nil
}

func (r *ruleRepo) ListActive(ctx context.Context) ([]*models.RoutingRule, error) {
	defer r.lock()()

	var active []*models.RoutingRule
	for _, rule := range r.store.rules {
		if rule.IsActive {
			active = append(active, rule)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Priority > active[j].Priority })
	return active, nil
}
