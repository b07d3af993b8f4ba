package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"coupon-backend/internal/domains/catalog/model"
)

type MemoryProductRepository struct {
	mu       sync.RWMutex
	products map[uuid.UUID]model.Product
	calls    int
}

func NewMemoryProductRepository(products ...model.Product) *MemoryProductRepository {
	r := &MemoryProductRepository{products: make(map[uuid.UUID]model.Product)}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

var _ ProductRepository = (*MemoryProductRepository)(nil)

func (r *MemoryProductRepository) Put(p model.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
}

func (r *MemoryProductRepository) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++

	out := make(map[uuid.UUID]*model.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			cp := p
			out[id] = &cp
		}
	}
	return out, nil
}

// Calls is the number of FindByIDs round trips, for cache assertions
func (r *MemoryProductRepository) Calls() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.calls
}
