package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the slice of the catalog the coupon engine needs to scope discounts
type Product struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	CategoryID uuid.UUID       `json:"category_id" db:"category_id"` // uuid.Nil when uncategorized
	Name       string          `json:"name" db:"name"`
	Price      decimal.Decimal `json:"price" db:"price"`
}
