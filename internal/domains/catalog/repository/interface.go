package repository

import (
	"context"

	"github.com/google/uuid"

	"coupon-backend/internal/domains/catalog/model"
)

type ProductRepository interface {
	// FindByIDs returns the active products among ids keyed by id.
	// Unknown or inactive ids are simply absent from the map.
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Product, error)
}
