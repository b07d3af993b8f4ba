package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coupon-backend/internal/domains/coupon/model"
	"coupon-backend/internal/domains/coupon/repository"
	"coupon-backend/pkg/cache"
	"coupon-backend/pkg/logger"
)

const availableCacheKey = "coupon:available"

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	Cache            cache.Cache // nil disables caching of the public listing
	AvailableTTL     time.Duration
	MaxBulkIssue     int
	BulkIssueWorkers int
	Now              func() time.Time
}

type couponService struct {
	repo     repository.CouponRepository
	products ProductLookup
	history  OrderHistory

	cache        cache.Cache
	availableTTL time.Duration
	maxBulk      int
	workers      int
	now          func() time.Time
}

func NewCouponService(
	repo repository.CouponRepository,
	products ProductLookup,
	history OrderHistory,
	opts Options,
) ServiceInterface {
	s := &couponService{
		repo:         repo,
		products:     products,
		history:      history,
		cache:        opts.Cache,
		availableTTL: opts.AvailableTTL,
		maxBulk:      opts.MaxBulkIssue,
		workers:      opts.BulkIssueWorkers,
		now:          opts.Now,
	}
	if s.availableTTL <= 0 {
		s.availableTTL = 30 * time.Second
	}
	if s.maxBulk <= 0 {
		s.maxBulk = 1000
	}
	if s.workers <= 0 {
		s.workers = 8
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// -------------------------------------------------------------------
// VALIDATE (read-only preview)
// -------------------------------------------------------------------

// ValidateCoupon previews a coupon against an order without changing anything.
//
// Business Logic:
// - Unknown code => NotFound error
// - Any ineligibility => {valid: false, code, reason}, never an error
// - Anonymous callers skip the per-user checks unless the coupon
//   cannot be judged without a user (issued, allow-listed)
// - is_first_order is only honoured for anonymous previews
func (s *couponService) ValidateCoupon(ctx context.Context, req *model.ValidateCouponRequest) (*model.ValidationResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, model.NewValidationError(err)
	}

	coupon, err := s.loadForUser(ctx, req.Code, req.UserID)
	if err != nil {
		return nil, err
	}

	// a signed-in customer is judged on order history, the same way apply
	// judges them, never on their own claim
	firstOrder := req.IsFirstOrder
	if req.UserID != nil {
		firstOrder = nil
	}

	eval, err := s.evaluate(ctx, coupon, evaluationInput{
		UserID:       req.UserID,
		OrderAmount:  req.OrderAmount,
		CartItems:    req.CartItems,
		IsFirstOrder: firstOrder,
	})

	result := &model.ValidationResult{
		Coupon:           model.NewCouponInfo(coupon),
		DiscountAmount:   decimal.Zero,
		ApplicableAmount: decimal.Zero,
		FinalAmount:      req.OrderAmount,
		RemainingUses:    coupon.RemainingUses(),
	}
	if eval != nil {
		result.SkippedItems = eval.Skipped
		result.ApplicableAmount = eval.Applicable
	}

	if err != nil {
		var appErr *model.AppError
		if errors.As(err, &appErr) && appErr.Kind == model.KindIneligible {
			result.Code = appErr.Code
			result.Reason = appErr.Message
			return result, nil
		}
		return nil, err
	}

	result.Valid = true
	result.DiscountAmount = eval.Discount
	result.FinalAmount = eval.Final
	if req.UserID != nil {
		remaining := coupon.UserRemainingUses(*req.UserID)
		result.UserRemainingUses = &remaining
	}
	return result, nil
}

// -------------------------------------------------------------------
// APPLY (commit)
// -------------------------------------------------------------------

// ApplyCouponToOrder re-runs the validation and commits the redemption.
//
// Business Logic:
// - Same checks as ValidateCoupon, but failures are returned as errors
// - The repository re-checks usage limits atomically; losing the race
//   surfaces as a concurrency error (usage limit) or ineligible (user limit)
// - The same order cannot redeem the same coupon twice
func (s *couponService) ApplyCouponToOrder(ctx context.Context, req *model.ApplyCouponRequest) (*model.ApplyResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, model.NewValidationError(err)
	}

	coupon, err := s.loadForUser(ctx, req.Code, &req.UserID)
	if err != nil {
		return nil, err
	}

	eval, err := s.evaluate(ctx, coupon, evaluationInput{
		UserID:       &req.UserID,
		OrderAmount:  req.OrderAmount,
		CartItems:    req.CartItems,
		IsFirstOrder: req.IsFirstOrder,
	})
	if err != nil {
		return nil, err
	}

	usage := &model.UsageRecord{
		ID:             uuid.New(),
		CouponID:       coupon.ID,
		UserID:         req.UserID,
		OrderID:        req.OrderID,
		DiscountAmount: eval.Discount,
		UsedAt:         s.now(),
	}
	if err := s.repo.Redeem(ctx, usage); err != nil {
		var appErr *model.AppError
		if !errors.As(err, &appErr) {
			return nil, fmt.Errorf("redeem coupon: %w", err)
		}
		return nil, err
	}

	// the last redemption removes the coupon from the public listing
	if coupon.UsageLimit != nil && coupon.UsedCount+1 >= *coupon.UsageLimit {
		s.invalidateAvailable(ctx)
	}

	logger.Info("Coupon applied to order", map[string]interface{}{
		"coupon_id": coupon.ID.String(),
		"code":      coupon.Code,
		"user_id":   req.UserID.String(),
		"order_id":  req.OrderID.String(),
		"discount":  eval.Discount.String(),
	})

	return &model.ApplyResult{
		UsageID:          usage.ID,
		Coupon:           model.NewCouponInfo(coupon),
		OrderID:          req.OrderID,
		DiscountAmount:   eval.Discount,
		ApplicableAmount: eval.Applicable,
		FinalAmount:      eval.Final,
		SkippedItems:     eval.Skipped,
		UsedAt:           usage.UsedAt,
	}, nil
}

// -------------------------------------------------------------------
// ELIGIBILITY
// -------------------------------------------------------------------

// CheckEligibility runs the per-user chain plus the first-order rule,
// without an order amount.
func (s *couponService) CheckEligibility(ctx context.Context, code string, userID uuid.UUID) (*model.EligibilityResult, error) {
	coupon, err := s.repo.FindByCodeForUser(ctx, model.NormalizeCode(code), userID)
	if err != nil {
		return nil, err
	}

	result := coupon.CanUserUseCoupon(userID, s.now())
	if !result.CanUse {
		return &result, nil
	}

	if coupon.IsFirstTimeUserOnly {
		first, err := s.isFirstOrder(ctx, userID, nil)
		if err != nil {
			return nil, err
		}
		result = coupon.CheckFirstOrder(first)
	}
	return &result, nil
}

// -------------------------------------------------------------------
// AVAILABLE COUPONS
// -------------------------------------------------------------------

// ListAvailable returns the publicly redeemable coupons. Coupons that need
// an issuance or an allow-list entry are private and left out.
func (s *couponService) ListAvailable(ctx context.Context) ([]*model.CouponInfo, error) {
	if s.cache != nil {
		var cached []*model.CouponInfo
		hit, err := s.cache.Get(ctx, availableCacheKey, &cached)
		if err != nil {
			logger.Warn("Available coupons cache read failed", map[string]interface{}{"error": err.Error()})
		}
		if hit {
			return cached, nil
		}
	}

	coupons, err := s.repo.ListValid(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("list valid coupons: %w", err)
	}

	infos := make([]*model.CouponInfo, 0, len(coupons))
	for _, c := range coupons {
		if c.RequiresIssuance() || len(c.AllowedUsers) > 0 {
			continue
		}
		infos = append(infos, model.NewCouponInfo(c))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, availableCacheKey, infos, s.availableTTL); err != nil {
			logger.Warn("Available coupons cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return infos, nil
}

func (s *couponService) invalidateAvailable(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, availableCacheKey); err != nil {
		logger.Warn("Available coupons cache invalidation failed", map[string]interface{}{"error": err.Error()})
	}
}

// -------------------------------------------------------------------
// HELPERS
// -------------------------------------------------------------------

func (s *couponService) loadForUser(ctx context.Context, code string, userID *uuid.UUID) (*model.Coupon, error) {
	if userID != nil {
		return s.repo.FindByCodeForUser(ctx, code, *userID)
	}
	return s.repo.FindByCode(ctx, code)
}
