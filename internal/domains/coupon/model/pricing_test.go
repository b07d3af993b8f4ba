package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func decStr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func newTestCoupon(mutate ...func(c *Coupon)) *Coupon {
	c := &Coupon{
		ID:                 uuid.New(),
		Code:               "SAVE20",
		Name:               "Save 20",
		DiscountType:       DiscountTypePercentage,
		DiscountValue:      decimal.NewFromInt(20),
		MinimumOrderAmount: decimal.Zero,
		ExpirationDate:     fixedNow.Add(30 * 24 * time.Hour),
		UserUsageLimit:     1,
		IsActive:           true,
		Version:            1,
	}
	for _, m := range mutate {
		m(c)
	}
	return c
}

func TestCoupon_CalculateDiscount(t *testing.T) {
	tests := []struct {
		name       string
		coupon     *Coupon
		order      decimal.Decimal
		applicable decimal.Decimal
		want       decimal.Decimal
	}{
		{
			name: "percentage capped by maximum discount",
			coupon: newTestCoupon(func(c *Coupon) {
				c.MaximumDiscountAmount = decPtr(500)
				c.MinimumOrderAmount = decimal.NewFromInt(1000)
			}),
			order:      decimal.NewFromInt(3000),
			applicable: decimal.NewFromInt(3000),
			want:       decimal.NewFromInt(500),
		},
		{
			name: "order below minimum gets nothing",
			coupon: newTestCoupon(func(c *Coupon) {
				c.MaximumDiscountAmount = decPtr(500)
				c.MinimumOrderAmount = decimal.NewFromInt(1000)
			}),
			order:      decimal.NewFromInt(900),
			applicable: decimal.NewFromInt(900),
			want:       decimal.Zero,
		},
		{
			name: "fixed discount limited to order amount",
			coupon: newTestCoupon(func(c *Coupon) {
				c.Code = "FLAT100"
				c.DiscountType = DiscountTypeFixed
				c.DiscountValue = decimal.NewFromInt(100)
			}),
			order:      decimal.NewFromInt(50),
			applicable: decimal.NewFromInt(50),
			want:       decimal.NewFromInt(50),
		},
		{
			name: "fixed discount limited to applicable amount",
			coupon: newTestCoupon(func(c *Coupon) {
				c.DiscountType = DiscountTypeFixed
				c.DiscountValue = decimal.NewFromInt(100)
			}),
			order:      decimal.NewFromInt(500),
			applicable: decimal.NewFromInt(30),
			want:       decimal.NewFromInt(30),
		},
		{
			name:       "percentage applies to applicable amount only",
			coupon:     newTestCoupon(),
			order:      decimal.NewFromInt(1000),
			applicable: decimal.NewFromInt(250),
			want:       decimal.NewFromInt(50),
		},
		{
			name:       "rounds half away from zero to two places",
			coupon:     newTestCoupon(func(c *Coupon) { c.DiscountValue = decimal.NewFromFloat(12.5) }),
			order:      decimal.RequireFromString("10.10"),
			applicable: decimal.RequireFromString("10.10"),
			want:       decimal.RequireFromString("1.26"), // 1.2625
		},
		{
			name:       "inactive coupon gets nothing",
			coupon:     newTestCoupon(func(c *Coupon) { c.IsActive = false }),
			order:      decimal.NewFromInt(100),
			applicable: decimal.NewFromInt(100),
			want:       decimal.Zero,
		},
		{
			name: "exhausted coupon gets nothing",
			coupon: newTestCoupon(func(c *Coupon) {
				c.UsageLimit = intPtr(1)
				c.UsedCount = 1
			}),
			order:      decimal.NewFromInt(100),
			applicable: decimal.NewFromInt(100),
			want:       decimal.Zero,
		},
		{
			name:       "zero applicable amount gets nothing",
			coupon:     newTestCoupon(),
			order:      decimal.NewFromInt(100),
			applicable: decimal.Zero,
			want:       decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.coupon.CalculateDiscount(tt.order, tt.applicable, fixedNow)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestCoupon_CalculateDiscount_NeverExceedsOrderOrCap(t *testing.T) {
	amounts := []string{
		"0", "0.004", "0.005", "0.015", "1", "7", "9.999", "49", "50", "99.995",
		"100", "101", "333.335", "999", "1000", "5000",
	}
	coupons := []*Coupon{
		newTestCoupon(func(c *Coupon) { c.DiscountValue = decimal.NewFromInt(100) }),
		newTestCoupon(func(c *Coupon) { c.MaximumDiscountAmount = decPtr(15) }),
		newTestCoupon(func(c *Coupon) {
			c.DiscountValue = decimal.NewFromInt(50)
			c.MaximumDiscountAmount = decStr("4.995")
		}),
		newTestCoupon(func(c *Coupon) {
			c.DiscountValue = decimal.RequireFromString("33.333")
			c.MaximumDiscountAmount = decStr("10.005")
		}),
		newTestCoupon(func(c *Coupon) {
			c.DiscountType = DiscountTypeFixed
			c.DiscountValue = decimal.NewFromInt(75)
		}),
		newTestCoupon(func(c *Coupon) {
			c.DiscountType = DiscountTypeFixed
			c.DiscountValue = decimal.NewFromInt(100)
		}),
	}

	for _, c := range coupons {
		for _, order := range amounts {
			for _, applicable := range amounts {
				o := decimal.RequireFromString(order)
				a := decimal.RequireFromString(applicable)
				got := c.CalculateDiscount(o, a, fixedNow)
				require.False(t, got.GreaterThan(o), "discount %s exceeds order %s", got, o)
				require.False(t, got.IsNegative())
				require.True(t, got.Equal(got.Round(MoneyScale)), "discount %s is not rounded", got)
				if c.MaximumDiscountAmount != nil {
					require.False(t, got.GreaterThan(*c.MaximumDiscountAmount),
						"discount %s exceeds cap %s", got, c.MaximumDiscountAmount)
				}
			}
		}
	}
}

func TestCoupon_CalculateDiscount_SubCentLimits(t *testing.T) {
	tests := []struct {
		name       string
		coupon     *Coupon
		order      string
		applicable string
		want       string
	}{
		{
			name: "fixed discount on half-cent order",
			coupon: newTestCoupon(func(c *Coupon) {
				c.DiscountType = DiscountTypeFixed
				c.DiscountValue = decimal.NewFromInt(100)
			}),
			order:      "0.005",
			applicable: "0.005",
			want:       "0",
		},
		{
			name: "percentage cap with half cent",
			coupon: newTestCoupon(func(c *Coupon) {
				c.DiscountValue = decimal.NewFromInt(50)
				c.MaximumDiscountAmount = decStr("4.995")
			}),
			order:      "100",
			applicable: "100",
			want:       "4.99",
		},
		{
			name: "fixed discount on sub-cent applicable amount",
			coupon: newTestCoupon(func(c *Coupon) {
				c.DiscountType = DiscountTypeFixed
				c.DiscountValue = decimal.NewFromInt(5)
			}),
			order:      "100",
			applicable: "2.345",
			want:       "2.34",
		},
		{
			name:       "uncapped percentage still rounds half up",
			coupon:     newTestCoupon(),
			order:      "100",
			applicable: "0.025",
			want:       "0.01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.coupon.CalculateDiscount(
				decimal.RequireFromString(tt.order),
				decimal.RequireFromString(tt.applicable),
				fixedNow,
			)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestCoupon_CalculateWithBreakdown(t *testing.T) {
	c := newTestCoupon(func(c *Coupon) { c.MaximumDiscountAmount = decPtr(500) })

	b := c.CalculateWithBreakdown(decimal.NewFromInt(3000), decimal.NewFromInt(3000), fixedNow)

	assert.True(t, decimal.NewFromInt(600).Equal(b.RawDiscount))
	assert.True(t, decimal.NewFromInt(500).Equal(b.FinalDiscount))
	assert.True(t, b.Capped)
	assert.Equal(t, "maximum_discount_amount", b.CapReason)

	b = c.CalculateWithBreakdown(decimal.NewFromInt(3000), decimal.NewFromInt(3000), fixedNow.Add(365*24*time.Hour))
	assert.Equal(t, "coupon_not_valid", b.ZeroReason)
	assert.True(t, b.FinalDiscount.IsZero())
}

func TestCoupon_CalculateApplicableAmount(t *testing.T) {
	books, toys, food := uuid.New(), uuid.New(), uuid.New()
	novel, puzzle, bread := uuid.New(), uuid.New(), uuid.New()

	items := []LineItem{
		{ProductID: novel, CategoryID: books, UnitPrice: decimal.NewFromInt(100), Quantity: 2},
		{ProductID: puzzle, CategoryID: toys, UnitPrice: decimal.NewFromInt(50), Quantity: 1},
		{ProductID: bread, CategoryID: food, UnitPrice: decimal.NewFromInt(10), Quantity: 3},
	}

	tests := []struct {
		name   string
		mutate func(c *Coupon)
		items  []LineItem
		want   int64
	}{
		{
			name:  "no restrictions covers every line",
			items: items,
			want:  280,
		},
		{
			name:  "no cart items means the whole order is applicable",
			items: nil,
			want:  999,
		},
		{
			name:   "excluded product",
			mutate: func(c *Coupon) { c.ExcludedProducts = []uuid.UUID{novel} },
			items:  items,
			want:   80,
		},
		{
			name:   "excluded category",
			mutate: func(c *Coupon) { c.ExcludedCategories = []uuid.UUID{food} },
			items:  items,
			want:   250,
		},
		{
			name:   "product allow-list",
			mutate: func(c *Coupon) { c.ApplicableProducts = []uuid.UUID{puzzle} },
			items:  items,
			want:   50,
		},
		{
			name:   "category allow-list",
			mutate: func(c *Coupon) { c.ApplicableCategories = []uuid.UUID{books, food} },
			items:  items,
			want:   230,
		},
		{
			name: "exclusion wins over inclusion",
			mutate: func(c *Coupon) {
				c.ApplicableCategories = []uuid.UUID{books}
				c.ExcludedProducts = []uuid.UUID{novel}
			},
			items: items,
			want:  0,
		},
		{
			// Both allow-lists set: an item must be in both, the category
			// list does not widen the product list.
			name: "product and category allow-lists intersect",
			mutate: func(c *Coupon) {
				c.ApplicableProducts = []uuid.UUID{novel}
				c.ApplicableCategories = []uuid.UUID{books, toys}
			},
			items: items,
			want:  200,
		},
		{
			name: "disjoint allow-lists match nothing",
			mutate: func(c *Coupon) {
				c.ApplicableProducts = []uuid.UUID{puzzle}
				c.ApplicableCategories = []uuid.UUID{books}
			},
			items: items,
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCoupon()
			if tt.mutate != nil {
				tt.mutate(c)
			}
			got := c.CalculateApplicableAmount(tt.items, decimal.NewFromInt(999))
			assert.True(t, decimal.NewFromInt(tt.want).Equal(got), "want %d got %s", tt.want, got)
		})
	}
}
