package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places discounts are rounded to
const MoneyScale = 2

var hundred = decimal.NewFromInt(100)

// LineItem is a cart line resolved against the catalog
type LineItem struct {
	ProductID  uuid.UUID       `json:"product_id"`
	CategoryID uuid.UUID       `json:"category_id"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
}

// Subtotal is UnitPrice x Quantity
func (l LineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// IsItemApplicable decides whether one line may be discounted.
//
// Deny-lists are checked first. When both allow-lists are set the item has
// to pass both of them.
func (c *Coupon) IsItemApplicable(item LineItem) bool {
	if lo.Contains(c.ExcludedProducts, item.ProductID) || lo.Contains(c.ExcludedCategories, item.CategoryID) {
		return false
	}
	if len(c.ApplicableProducts) > 0 && !lo.Contains(c.ApplicableProducts, item.ProductID) {
		return false
	}
	if len(c.ApplicableCategories) > 0 && !lo.Contains(c.ApplicableCategories, item.CategoryID) {
		return false
	}
	return true
}

// CalculateApplicableAmount sums the lines the coupon may discount.
// Without any lines the whole order amount is applicable.
func (c *Coupon) CalculateApplicableAmount(items []LineItem, orderAmount decimal.Decimal) decimal.Decimal {
	if len(items) == 0 {
		return orderAmount
	}

	total := decimal.Zero
	for _, item := range items {
		if c.IsItemApplicable(item) {
			total = total.Add(item.Subtotal())
		}
	}
	return total
}

// DiscountBreakdown records each step of a discount computation
type DiscountBreakdown struct {
	OrderAmount      decimal.Decimal `json:"order_amount"`
	ApplicableAmount decimal.Decimal `json:"applicable_amount"`
	DiscountType     DiscountType    `json:"discount_type"`
	RawDiscount      decimal.Decimal `json:"raw_discount"`
	FinalDiscount    decimal.Decimal `json:"final_discount"`
	Capped           bool            `json:"capped"`
	CapReason        string          `json:"cap_reason,omitempty"`
	ZeroReason       string          `json:"zero_reason,omitempty"`
}

// CalculateDiscount returns the discount for an order, already rounded to MoneyScale
func (c *Coupon) CalculateDiscount(orderAmount, applicableAmount decimal.Decimal, now time.Time) decimal.Decimal {
	return c.CalculateWithBreakdown(orderAmount, applicableAmount, now).FinalDiscount
}

// CalculateWithBreakdown computes the discount step by step:
//   - invalid coupon or order below the minimum => 0
//   - percentage: applicable x value / 100, capped by MaximumDiscountAmount
//   - fixed: min(value, applicable)
//   - never more than the order amount
//
// Rounding is decimal.Round (half away from zero, i.e. half-up for
// non-negative amounts) to MoneyScale places. A rounded value that would pass
// the order amount or a cap drops to that limit floored to MoneyScale.
func (c *Coupon) CalculateWithBreakdown(orderAmount, applicableAmount decimal.Decimal, now time.Time) DiscountBreakdown {
	b := DiscountBreakdown{
		OrderAmount:      orderAmount,
		ApplicableAmount: applicableAmount,
		DiscountType:     c.DiscountType,
		RawDiscount:      decimal.Zero,
		FinalDiscount:    decimal.Zero,
	}

	if !c.IsValid(now) {
		b.ZeroReason = "coupon_not_valid"
		return b
	}
	if orderAmount.LessThan(c.MinimumOrderAmount) {
		b.ZeroReason = "minimum_order_not_met"
		return b
	}
	if applicableAmount.IsNegative() {
		applicableAmount = decimal.Zero
	}

	// ceilings are floored to MoneyScale so rounding can never lift the
	// discount over one of them
	ceilings := []decimal.Decimal{orderAmount}

	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountTypePercentage:
		discount = applicableAmount.Mul(c.DiscountValue).Div(hundred)
		b.RawDiscount = discount
		if c.MaximumDiscountAmount != nil {
			ceilings = append(ceilings, *c.MaximumDiscountAmount)
			if discount.GreaterThan(*c.MaximumDiscountAmount) {
				discount = *c.MaximumDiscountAmount
				b.Capped = true
				b.CapReason = "maximum_discount_amount"
			}
		}

	case DiscountTypeFixed:
		discount = c.DiscountValue
		b.RawDiscount = discount
		ceilings = append(ceilings, applicableAmount)
		if discount.GreaterThan(applicableAmount) {
			discount = applicableAmount
			b.Capped = true
			b.CapReason = "exceeds_applicable_amount"
		}

	default:
		b.ZeroReason = "unknown_discount_type"
		return b
	}

	if discount.GreaterThan(orderAmount) {
		discount = orderAmount
		b.Capped = true
		b.CapReason = "exceeds_order_amount"
	}

	discount = discount.Round(MoneyScale)
	for _, ceiling := range ceilings {
		if floor := ceiling.RoundFloor(MoneyScale); discount.GreaterThan(floor) {
			discount = floor
		}
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	b.FinalDiscount = discount
	return b
}
