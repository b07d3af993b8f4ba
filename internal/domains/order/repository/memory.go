package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MemoryHistoryRepository keeps order statuses per user
type MemoryHistoryRepository struct {
	mu     sync.RWMutex
	orders map[uuid.UUID][]string
}

func NewMemoryHistoryRepository() *MemoryHistoryRepository {
	return &MemoryHistoryRepository{orders: make(map[uuid.UUID][]string)}
}

var (
	_ HistoryRepository = (*MemoryHistoryRepository)(nil)
	_ HistoryRepository = (*PostgresHistoryRepository)(nil)
)

// AddOrder records one order of userID with the given status
func (r *MemoryHistoryRepository) AddOrder(userID uuid.UUID, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[userID] = append(r.orders[userID], status)
}

func (r *MemoryHistoryRepository) CountCompletedOrders(_ context.Context, userID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.CountBy(r.orders[userID], func(status string) bool {
		return lo.Contains(completedStatuses, status)
	}), nil
}
