package repository

import (
	"context"

	"github.com/google/uuid"
)

// Order statuses owned by the order service. Only the ones that count as
// a placed order matter here.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipping   = "shipping"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusReturned   = "returned"
)

// completedStatuses excludes pending: the order being priced is usually still pending
var completedStatuses = []string{
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipping,
	OrderStatusDelivered,
}

// HistoryRepository is a read-only view of a user's order history
type HistoryRepository interface {
	CountCompletedOrders(ctx context.Context, userID uuid.UUID) (int, error)
}
