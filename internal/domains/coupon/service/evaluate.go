package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"coupon-backend/internal/domains/coupon/model"
)

type evaluationInput struct {
	UserID       *uuid.UUID
	OrderAmount  decimal.Decimal
	CartItems    []model.CartItem
	IsFirstOrder *bool
}

type evaluation struct {
	Lines      []model.LineItem
	Skipped    []uuid.UUID
	Applicable decimal.Decimal
	Discount   decimal.Decimal
	Final      decimal.Decimal
}

// evaluate runs every check of a redemption in order and prices the order:
//  1. coupon validity (inactive, expired, usage limit) with the specific reason
//  2. per-user chain (issuance, deny-list, allow-list, user limit)
//  3. first-time-customer rule
//  4. minimum order amount
//  5. cart scoping: at least one line must be discountable
//
// Failures are ineligible AppErrors. The evaluation is returned alongside a
// failure from step 4 on, so previews can still show the applicable amount.
func (s *couponService) evaluate(ctx context.Context, c *model.Coupon, in evaluationInput) (*evaluation, error) {
	now := s.now()

	if code, reason := c.InvalidReason(now); code != "" {
		return nil, model.NewIneligibleError(code, reason)
	}

	if in.UserID != nil {
		if res := c.CanUserUseCoupon(*in.UserID, now); !res.CanUse {
			return nil, res.Err()
		}
	} else if c.RequiresIssuance() || len(c.AllowedUsers) > 0 {
		return nil, model.NewIneligibleError(model.ErrCodeUserRequired, model.ReasonUserRequired)
	}

	if c.IsFirstTimeUserOnly {
		var first bool
		switch {
		case in.UserID != nil:
			var err error
			if first, err = s.isFirstOrder(ctx, *in.UserID, in.IsFirstOrder); err != nil {
				return nil, err
			}
		case in.IsFirstOrder != nil:
			first = *in.IsFirstOrder
		default:
			return nil, model.NewIneligibleError(model.ErrCodeUserRequired, model.ReasonUserRequired)
		}
		if res := c.CheckFirstOrder(first); !res.CanUse {
			return nil, res.Err()
		}
	}

	lines, skipped, err := s.resolveLines(ctx, in.CartItems)
	if err != nil {
		return nil, err
	}

	eval := &evaluation{
		Lines:   lines,
		Skipped: skipped,
	}
	if len(in.CartItems) == 0 {
		eval.Applicable = in.OrderAmount
	} else {
		// all lines unknown: nothing is applicable, not the whole order
		eval.Applicable = decimal.Zero
		if len(lines) > 0 {
			eval.Applicable = c.CalculateApplicableAmount(lines, in.OrderAmount)
		}
	}

	if in.OrderAmount.LessThan(c.MinimumOrderAmount) {
		return eval, model.NewIneligibleError(
			model.ErrCodeMinOrderNotMet,
			fmt.Sprintf("Minimum order amount of %s not met", c.MinimumOrderAmount.StringFixed(model.MoneyScale)),
		).WithDetails(map[string]interface{}{
			"minimum_order_amount": c.MinimumOrderAmount,
			"order_amount":         in.OrderAmount,
		})
	}

	if len(in.CartItems) > 0 && !eval.Applicable.IsPositive() {
		return eval, model.NewIneligibleError(model.ErrCodeNotApplicable, model.ReasonNotApplicable)
	}

	eval.Discount = c.CalculateDiscount(in.OrderAmount, eval.Applicable, now)
	eval.Final = in.OrderAmount.Sub(eval.Discount)
	return eval, nil
}

// resolveLines prices cart items from the catalog. Unknown products are
// reported back instead of failing the request.
func (s *couponService) resolveLines(ctx context.Context, items []model.CartItem) ([]model.LineItem, []uuid.UUID, error) {
	if len(items) == 0 {
		return nil, nil, nil
	}

	ids := lo.Map(items, func(it model.CartItem, _ int) uuid.UUID { return it.ProductID })
	products, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, nil, model.NewInternalError(err)
	}

	lines := make([]model.LineItem, 0, len(items))
	var skipped []uuid.UUID
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			skipped = append(skipped, it.ProductID)
			continue
		}
		lines = append(lines, model.LineItem{
			ProductID:  p.ID,
			CategoryID: p.CategoryID,
			UnitPrice:  p.Price,
			Quantity:   it.Quantity,
		})
	}
	return lines, lo.Uniq(skipped), nil
}

// isFirstOrder prefers the caller's flag and falls back to the order history
func (s *couponService) isFirstOrder(ctx context.Context, userID uuid.UUID, flag *bool) (bool, error) {
	if flag != nil {
		return *flag, nil
	}
	if s.history == nil {
		return false, model.NewInternalError(fmt.Errorf("order history is not configured"))
	}

	count, err := s.history.CountCompletedOrders(ctx, userID)
	if err != nil {
		return false, model.NewInternalError(err)
	}
	return count == 0, nil
}
