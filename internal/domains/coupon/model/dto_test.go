package model

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCreateRequest() CreateCouponRequest {
	return CreateCouponRequest{
		Code:                  " save20 ",
		Name:                  "Summer sale",
		DiscountType:          DiscountTypePercentage,
		DiscountValue:         decimal.NewFromInt(20),
		MinimumOrderAmount:    decimal.NewFromInt(1000),
		MaximumDiscountAmount: decPtr(500),
		ExpirationDate:        "2025-07-01",
	}
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var appErr *AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, KindValidation, appErr.Kind)
	fields, ok := appErr.Details["fields"].(map[string]string)
	require.True(t, ok)
	return fields
}

func TestCreateCouponRequest_ToCoupon(t *testing.T) {
	admin := uuid.New()

	c, err := validCreateRequest().ToCoupon(fixedNow, &admin)
	require.NoError(t, err)

	assert.Equal(t, "SAVE20", c.Code)
	assert.Equal(t, 1, c.UserUsageLimit)
	assert.True(t, c.IsActive)
	assert.Equal(t, 0, c.UsedCount)
	assert.Equal(t, 0, c.IssuedCount)
	assert.Equal(t, 1, c.Version)
	assert.Equal(t, &admin, c.CreatedBy)
	assert.Equal(t, time.Date(2025, 7, 1, 23, 59, 59, 999999999, time.UTC), c.ExpirationDate)
	assert.NotNil(t, c.ApplicableProducts)
}

func TestCreateCouponRequest_ToCoupon_CollectsAllFieldErrors(t *testing.T) {
	req := validCreateRequest()
	req.Code = "x!"
	req.Name = ""
	req.DiscountValue = decimal.NewFromInt(150)
	req.MinimumOrderAmount = decimal.NewFromInt(-1)
	req.UserUsageLimit = intPtr(0)
	req.ExpirationDate = "2025-06-14"

	_, err := req.ToCoupon(fixedNow, nil)
	fields := fieldErrors(t, err)

	for _, f := range []string{"code", "name", "discount_value", "minimum_order_amount", "user_usage_limit", "expiration_date"} {
		assert.Contains(t, fields, f)
	}
}

func TestCreateCouponRequest_ExpirationDate(t *testing.T) {
	tests := []struct {
		name    string
		date    string
		wantErr bool
	}{
		{name: "today is allowed", date: "2025-06-15"},
		{name: "earlier today as timestamp is allowed", date: "2025-06-15T01:00:00Z"},
		{name: "future", date: "2026-01-01"},
		{name: "yesterday", date: "2025-06-14", wantErr: true},
		{name: "garbage", date: "next week", wantErr: true},
		{name: "blank", date: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			req.ExpirationDate = tt.date
			_, err := req.ToCoupon(fixedNow, nil)
			if tt.wantErr {
				assert.Contains(t, fieldErrors(t, err), "expiration_date")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCreateCouponRequest_DiscountRules(t *testing.T) {
	tests := []struct {
		name    string
		typ     DiscountType
		value   string
		wantErr bool
	}{
		{name: "percentage 100", typ: DiscountTypePercentage, value: "100"},
		{name: "percentage above 100", typ: DiscountTypePercentage, value: "100.01", wantErr: true},
		{name: "percentage zero", typ: DiscountTypePercentage, value: "0", wantErr: true},
		{name: "fixed above 100", typ: DiscountTypeFixed, value: "250"},
		{name: "fixed negative", typ: DiscountTypeFixed, value: "-5", wantErr: true},
		{name: "unknown type", typ: "bogo", value: "5", wantErr: true},
		{name: "fixed with trailing zeros", typ: DiscountTypeFixed, value: "12.500"},
		{name: "fixed below a cent", typ: DiscountTypeFixed, value: "12.505", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			req.DiscountType = tt.typ
			req.DiscountValue = decimal.RequireFromString(tt.value)
			_, err := req.ToCoupon(fixedNow, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestUpdateCouponRequest_ApplyTo(t *testing.T) {
	c := newTestCoupon(func(c *Coupon) {
		c.UsageLimit = intPtr(10)
		c.UsedCount = 4
		c.MaximumDiscountAmount = decPtr(50)
	})

	t.Run("partial update leaves other fields alone", func(t *testing.T) {
		name := "Renamed"
		next, err := UpdateCouponRequest{Name: &name}.ApplyTo(c, fixedNow, nil)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", next.Name)
		assert.Equal(t, "Save 20", c.Name)
		assert.Equal(t, 10, *next.UsageLimit)
	})

	t.Run("remove flags clear optional limits", func(t *testing.T) {
		next, err := UpdateCouponRequest{RemoveUsageLimit: true, RemoveMaximumDiscount: true}.ApplyTo(c, fixedNow, nil)
		require.NoError(t, err)
		assert.Nil(t, next.UsageLimit)
		assert.Nil(t, next.MaximumDiscountAmount)
	})

	t.Run("limit below consumption is a conflict", func(t *testing.T) {
		_, err := UpdateCouponRequest{UsageLimit: intPtr(3)}.ApplyTo(c, fixedNow, nil)
		appErr := AsAppError(err)
		assert.Equal(t, KindConflict, appErr.Kind)
		assert.Equal(t, ErrCodeLimitBelowUsage, appErr.Code)
	})

	t.Run("stale version", func(t *testing.T) {
		_, err := UpdateCouponRequest{Version: intPtr(7)}.ApplyTo(c, fixedNow, nil)
		assert.ErrorIs(t, err, ErrVersionConflict)
	})

	t.Run("switching to percentage re-checks the value", func(t *testing.T) {
		fixed := newTestCoupon(func(c *Coupon) {
			c.DiscountType = DiscountTypeFixed
			c.DiscountValue = decimal.NewFromInt(250)
		})
		pct := DiscountTypePercentage
		_, err := UpdateCouponRequest{DiscountType: &pct}.ApplyTo(fixed, fixedNow, nil)
		assert.Contains(t, fieldErrors(t, err), "discount_value")
	})
}

func TestIssueCouponRequest_Validate(t *testing.T) {
	req := IssueCouponRequest{UserIDs: []uuid.UUID{uuid.New()}}
	require.NoError(t, req.Validate(10))
	assert.Equal(t, ChannelAdmin, req.Channel)

	req = IssueCouponRequest{UserIDs: []uuid.UUID{uuid.New()}, Channel: "carrier-pigeon"}
	assert.Contains(t, fieldErrors(t, req.Validate(10)), "channel")

	req = IssueCouponRequest{UserIDs: []uuid.UUID{uuid.New(), uuid.New()}}
	assert.Contains(t, fieldErrors(t, req.Validate(1)), "user_ids")
}

func TestListCouponsFilter(t *testing.T) {
	f := ListCouponsFilter{Page: -1, Limit: 1000}
	require.NoError(t, f.Validate())
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 20, f.Limit)
	assert.Equal(t, "all", f.Status)

	bad := ListCouponsFilter{Status: "pending"}
	assert.Error(t, bad.Validate())

	active := newTestCoupon()
	expired := newTestCoupon(func(c *Coupon) { c.ExpirationDate = fixedNow.Add(-time.Hour) })

	f = ListCouponsFilter{Status: "expired"}
	assert.False(t, f.Matches(active, fixedNow))
	assert.True(t, f.Matches(expired, fixedNow))

	f = ListCouponsFilter{Status: "all", Search: "save"}
	assert.True(t, f.Matches(active, fixedNow))
}

func TestCreateCouponRequest_MoneyScale(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreateCouponRequest)
		field  string
	}{
		{
			name:   "minimum order amount",
			mutate: func(r *CreateCouponRequest) { r.MinimumOrderAmount = decimal.RequireFromString("999.999") },
			field:  "minimum_order_amount",
		},
		{
			name:   "maximum discount amount",
			mutate: func(r *CreateCouponRequest) { r.MaximumDiscountAmount = decStr("4.995") },
			field:  "maximum_discount_amount",
		},
		{
			name:   "discount value",
			mutate: func(r *CreateCouponRequest) { r.DiscountValue = decimal.RequireFromString("12.345") },
			field:  "discount_value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)
			_, err := req.ToCoupon(fixedNow, nil)
			require.Error(t, err)
			assert.Contains(t, fieldErrors(t, err), tt.field)
		})
	}
}

func TestOrderAmount_MoneyScale(t *testing.T) {
	tests := []struct {
		amount  string
		wantErr bool
	}{
		{amount: "0"},
		{amount: "10.5"},
		{amount: "10.500"},
		{amount: "0.005", wantErr: true},
		{amount: "99.999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			amount := decimal.RequireFromString(tt.amount)

			validateReq := ValidateCouponRequest{Code: "SAVE20", OrderAmount: amount}
			applyReq := ApplyCouponRequest{
				Code:        "SAVE20",
				UserID:      uuid.New(),
				OrderID:     uuid.New(),
				OrderAmount: amount,
			}

			if tt.wantErr {
				assert.ErrorContains(t, validateReq.Validate(), "order_amount")
				assert.ErrorContains(t, applyReq.Validate(), "order_amount")
				return
			}
			assert.NoError(t, validateReq.Validate())
			assert.NoError(t, applyReq.Validate())
		})
	}
}

func TestApplyCouponRequest_Validate(t *testing.T) {
	req := ApplyCouponRequest{Code: "SAVE20", OrderAmount: decimal.NewFromInt(10)}
	err := req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user_id")
	assert.Contains(t, err.Error(), "order_id")

	req.UserID, req.OrderID = uuid.New(), uuid.New()
	req.CartItems = []CartItem{{ProductID: uuid.New(), Quantity: 0}}
	assert.Error(t, req.Validate())

	req.CartItems[0].Quantity = 2
	assert.NoError(t, req.Validate())
}

func TestComputeStats(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	c := newTestCoupon(func(c *Coupon) { c.UsageLimit = intPtr(4) })
	c.RecordUsage(UsageRecord{UserID: u1, DiscountAmount: decimal.NewFromInt(10), UsedAt: fixedNow})
	c.RecordUsage(UsageRecord{UserID: u2, DiscountAmount: decimal.NewFromInt(5), UsedAt: fixedNow.Add(time.Hour)})
	c.RecordIssuance(Issuance{UserID: u1, Status: IssuanceStatusIssued})
	c.RecordIssuance(Issuance{UserID: u2, Status: IssuanceStatusExpired})

	stats := ComputeStats(c, fixedNow)

	assert.Equal(t, 2, stats.TotalRedemptions)
	assert.Equal(t, 2, stats.UniqueUsers)
	assert.True(t, decimal.NewFromInt(15).Equal(stats.TotalDiscount))
	assert.True(t, decimal.RequireFromString("7.5").Equal(stats.AverageDiscount))
	require.NotNil(t, stats.RemainingUses)
	assert.Equal(t, 2, *stats.RemainingUses)
	require.NotNil(t, stats.UsageRate)
	assert.InDelta(t, 50.0, *stats.UsageRate, 0.001)
	assert.Equal(t, 1, stats.IssuancesOpen)
	assert.Equal(t, 1, stats.IssuancesExpired)
	assert.Equal(t, fixedNow, *stats.FirstUsedAt)
	assert.Equal(t, fixedNow.Add(time.Hour), *stats.LastUsedAt)
}
