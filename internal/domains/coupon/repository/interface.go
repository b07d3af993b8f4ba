package repository

import (
	"context"
	"time"

	"coupon-backend/internal/domains/coupon/model"

	"github.com/google/uuid"
)

// CouponRepository is the persistence contract of the coupon engine.
//
// Coupons come back without ledgers unless the method says otherwise.
// Every write that touches a counter also writes the matching ledger row in
// the same atomic step.
type CouponRepository interface {
	// Read operations
	FindByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error)
	FindByCode(ctx context.Context, code string) (*model.Coupon, error)
	// FindByCodeForUser hydrates IssuedTo and UsageHistory with the rows of one user
	FindByCodeForUser(ctx context.Context, code string, userID uuid.UUID) (*model.Coupon, error)
	// FindWithHistory hydrates the complete ledgers
	FindWithHistory(ctx context.Context, id uuid.UUID) (*model.Coupon, error)
	ListValid(ctx context.Context, now time.Time) ([]*model.Coupon, error)
	ListAdmin(ctx context.Context, filter *model.ListCouponsFilter, now time.Time) ([]*model.Coupon, int, error)
	CodeExists(ctx context.Context, code string) (bool, error)

	// Write operations
	Create(ctx context.Context, c *model.Coupon) error
	// Update persists c if the stored version still equals c.Version, then bumps c.Version
	Update(ctx context.Context, c *model.Coupon) error
	UpdateStatus(ctx context.Context, id uuid.UUID, isActive bool, updatedBy *uuid.UUID) (*model.Coupon, error)
	// Delete only succeeds while used_count is 0
	Delete(ctx context.Context, id uuid.UUID) error

	// Ledgers
	// Redeem increments used_count and appends usage only if the usage limit
	// and the user's limit still allow it.
	Redeem(ctx context.Context, usage *model.UsageRecord) error
	// Issue increments issued_count and appends iss only if the coupon can still be issued
	Issue(ctx context.Context, iss *model.Issuance, now time.Time) error
	ListUsages(ctx context.Context, couponID uuid.UUID, filter *model.UsageListFilter) ([]model.UsageRecord, int, error)
	ListIssuances(ctx context.Context, couponID uuid.UUID, filter *model.UsageListFilter) ([]model.Issuance, int, error)
	// ExpireIssuances flips up to batchSize "issued" records of expired coupons to "expired"
	ExpireIssuances(ctx context.Context, now time.Time, batchSize int) (int, error)
}
