package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHistoryRepository_CountCompletedOrders(t *testing.T) {
	repo := NewMemoryHistoryRepository()
	userID := uuid.New()

	count, err := repo.CountCompletedOrders(context.Background(), userID)
	require.NoError(t, err)
	assert.Zero(t, count)

	repo.AddOrder(userID, OrderStatusPending)
	repo.AddOrder(userID, OrderStatusCancelled)
	repo.AddOrder(userID, OrderStatusReturned)

	count, _ = repo.CountCompletedOrders(context.Background(), userID)
	assert.Zero(t, count, "pending, cancelled and returned orders do not count")

	repo.AddOrder(userID, OrderStatusDelivered)
	repo.AddOrder(uuid.New(), OrderStatusDelivered)

	count, _ = repo.CountCompletedOrders(context.Background(), userID)
	assert.Equal(t, 1, count)
}
