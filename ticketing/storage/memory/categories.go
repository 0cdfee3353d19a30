package memory

import (
	"context"
	"sort"

	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/ticketing/storage"
)

type categoryRepo struct {
	store *Store
	inTx  bool
}

func (r *categoryRepo) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *categoryRepo) Get(ctx context.Context, slug string) (*models.Category, error) {
	defer r.lock()()
	cat, ok := r.store.categories[slug]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cat, nil
}

func (r *categoryRepo) List(ctx context.Context) ([]*models.Category, error) {
	defer r.lock()()
	cats := make([]*models.Category, 0, len(r.store.categories))
	for _, cat := range r.store.categories {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Slug < cats[j].Slug })
	return cats, nil
}

func (r *categoryRepo) Upsert(ctx context.Context, cat *models.Category) error {
	defer r.lock()()
	r.store.categories[cat.Slug] = cat
	return nil
}
