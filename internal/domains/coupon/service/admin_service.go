package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"coupon-backend/internal/domains/coupon/model"
	"coupon-backend/pkg/logger"
)

// -------------------------------------------------------------------
// CREATE
// -------------------------------------------------------------------

// CreateCoupon validates every field at once and stores a fresh coupon.
// A taken code is a conflict, not a validation error.
func (s *couponService) CreateCoupon(ctx context.Context, req *model.CreateCouponRequest, adminID *uuid.UUID) (*model.Coupon, error) {
	req.Normalize()

	coupon, err := req.ToCoupon(s.now(), adminID)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.CodeExists(ctx, coupon.Code)
	if err != nil {
		return nil, fmt.Errorf("check coupon code: %w", err)
	}
	if exists {
		return nil, model.ErrDuplicateCode.WithDetails(map[string]interface{}{"code": coupon.Code})
	}

	// the unique index still guards the race between the check and the insert
	if err := s.repo.Create(ctx, coupon); err != nil {
		return nil, err
	}

	s.invalidateAvailable(ctx)

	logger.Info("Coupon created", map[string]interface{}{
		"coupon_id": coupon.ID.String(),
		"code":      coupon.Code,
	})
	return coupon, nil
}

// -------------------------------------------------------------------
// READ
// -------------------------------------------------------------------

func (s *couponService) GetCoupon(ctx context.Context, id uuid.UUID) (*model.CouponListItem, error) {
	coupon, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	item := model.NewCouponListItem(coupon, s.now())
	return &item, nil
}

func (s *couponService) ListCoupons(ctx context.Context, filter *model.ListCouponsFilter) ([]model.CouponListItem, int, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	now := s.now()
	coupons, total, err := s.repo.ListAdmin(ctx, filter, now)
	if err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}

	items := make([]model.CouponListItem, 0, len(coupons))
	for _, c := range coupons {
		items = append(items, model.NewCouponListItem(c, now))
	}
	return items, total, nil
}

// -------------------------------------------------------------------
// UPDATE
// -------------------------------------------------------------------

// UpdateCoupon applies a partial update guarded by the optimistic version.
//
// Business Logic:
// - code, counters and ledgers are immutable here
// - limits cannot drop below what was already consumed
// - a stale version is a conflict; the caller must reload
func (s *couponService) UpdateCoupon(ctx context.Context, id uuid.UUID, req *model.UpdateCouponRequest, adminID *uuid.UUID) (*model.Coupon, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := req.ApplyTo(current, s.now(), adminID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}

	s.invalidateAvailable(ctx)

	logger.Info("Coupon updated", map[string]interface{}{
		"coupon_id": id.String(),
		"version":   updated.Version,
	})
	return updated, nil
}

func (s *couponService) UpdateCouponStatus(ctx context.Context, id uuid.UUID, req *model.UpdateStatusRequest, adminID *uuid.UUID) (*model.Coupon, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewValidationError(err)
	}

	coupon, err := s.repo.UpdateStatus(ctx, id, *req.IsActive, adminID)
	if err != nil {
		return nil, err
	}

	s.invalidateAvailable(ctx)
	return coupon, nil
}

// DeleteCoupon removes a coupon that was never redeemed. Used coupons keep
// their history and can only be deactivated.
func (s *couponService) DeleteCoupon(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidateAvailable(ctx)

	logger.Info("Coupon deleted", map[string]interface{}{"coupon_id": id.String()})
	return nil
}

// -------------------------------------------------------------------
// STATISTICS & HISTORY
// -------------------------------------------------------------------

func (s *couponService) GetStats(ctx context.Context, id uuid.UUID) (*model.CouponStats, error) {
	coupon, err := s.repo.FindWithHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	stats := model.ComputeStats(coupon, s.now())
	return &stats, nil
}

func (s *couponService) ListUsages(ctx context.Context, id uuid.UUID, filter *model.UsageListFilter) ([]model.UsageRecord, int, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, 0, err
	}
	filter.Normalize()
	return s.repo.ListUsages(ctx, id, filter)
}

func (s *couponService) ListIssuances(ctx context.Context, id uuid.UUID, filter *model.UsageListFilter) ([]model.Issuance, int, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, 0, err
	}
	filter.Normalize()
	return s.repo.ListIssuances(ctx, id, filter)
}
