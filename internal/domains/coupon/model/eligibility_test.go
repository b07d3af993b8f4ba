package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoupon_ValidityPredicates(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Coupon)
		valid       bool
		issuable    bool
		status      CouponStatus
		invalidCode ErrorCode
	}{
		{
			name:     "fresh coupon",
			valid:    true,
			issuable: true,
			status:   StatusActive,
		},
		{
			name:        "inactive",
			mutate:      func(c *Coupon) { c.IsActive = false },
			status:      StatusInactive,
			invalidCode: ErrCodeCouponInactive,
		},
		{
			name:        "expired",
			mutate:      func(c *Coupon) { c.ExpirationDate = fixedNow.Add(-time.Second) },
			status:      StatusExpired,
			invalidCode: ErrCodeCouponExpired,
		},
		{
			name: "usage limit reached but still issuable",
			mutate: func(c *Coupon) {
				c.UsageLimit = intPtr(1)
				c.UsedCount = 1
			},
			issuable:    true,
			status:      StatusExhausted,
			invalidCode: ErrCodeUsageLimitExceeded,
		},
		{
			name: "issuance limit reached but still redeemable",
			mutate: func(c *Coupon) {
				c.IssuanceLimit = intPtr(2)
				c.IssuedCount = 2
			},
			valid:  true,
			status: StatusActive,
		},
		{
			name: "inactive takes precedence over expired",
			mutate: func(c *Coupon) {
				c.IsActive = false
				c.ExpirationDate = fixedNow.Add(-time.Hour)
			},
			status:      StatusInactive,
			invalidCode: ErrCodeCouponInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCoupon()
			if tt.mutate != nil {
				tt.mutate(c)
			}
			assert.Equal(t, tt.valid, c.IsValid(fixedNow))
			assert.Equal(t, tt.issuable, c.CanBeIssued(fixedNow))
			assert.Equal(t, tt.status, c.Status(fixedNow))

			code, _ := c.InvalidReason(fixedNow)
			assert.Equal(t, tt.invalidCode, code)
		})
	}
}

func TestCoupon_ExpiresAfterExactInstant(t *testing.T) {
	c := newTestCoupon(func(c *Coupon) { c.ExpirationDate = fixedNow })

	assert.True(t, c.IsValid(fixedNow))
	assert.False(t, c.IsValid(fixedNow.Add(time.Nanosecond)))
}

func TestCoupon_UsageLimitReachedReason(t *testing.T) {
	c := newTestCoupon(func(c *Coupon) {
		c.UsageLimit = intPtr(1)
		c.UsedCount = 1
	})

	code, reason := c.InvalidReason(fixedNow)
	assert.Equal(t, ErrCodeUsageLimitExceeded, code)
	assert.Equal(t, "This coupon has reached its usage limit", reason)
}

func TestCoupon_CanUserUseCoupon(t *testing.T) {
	user := uuid.New()
	other := uuid.New()

	issued := func(status IssuanceStatus) func(c *Coupon) {
		return func(c *Coupon) {
			c.IssuanceLimit = intPtr(10)
			c.IssuedCount = 1
			c.IssuedTo = []Issuance{{ID: uuid.New(), CouponID: c.ID, UserID: user, Channel: ChannelAdmin, Status: status}}
		}
	}

	tests := []struct {
		name   string
		mutate []func(c *Coupon)
		want   EligibilityResult
	}{
		{
			name: "eligible",
			want: EligibilityResult{CanUse: true},
		},
		{
			name:   "invalid coupon",
			mutate: []func(c *Coupon){func(c *Coupon) { c.IsActive = false }},
			want:   EligibilityResult{Code: ErrCodeCouponNotValid, Reason: "Coupon is not valid"},
		},
		{
			name: "limited issuance and not issued",
			mutate: []func(c *Coupon){func(c *Coupon) {
				c.IssuanceLimit = intPtr(10)
			}},
			want: EligibilityResult{Code: ErrCodeNotIssued, Reason: "This coupon was not issued to you"},
		},
		{
			name:   "limited issuance and issued",
			mutate: []func(c *Coupon){issued(IssuanceStatusIssued)},
			want:   EligibilityResult{CanUse: true},
		},
		{
			name:   "issuance already used",
			mutate: []func(c *Coupon){issued(IssuanceStatusUsed)},
			want:   EligibilityResult{Code: ErrCodeNotIssued, Reason: ReasonNotIssued},
		},
		{
			name:   "issuance expired",
			mutate: []func(c *Coupon){issued(IssuanceStatusExpired)},
			want:   EligibilityResult{Code: ErrCodeNotIssued, Reason: ReasonNotIssued},
		},
		{
			name:   "user excluded",
			mutate: []func(c *Coupon){func(c *Coupon) { c.ExcludedUsers = []uuid.UUID{user} }},
			want:   EligibilityResult{Code: ErrCodeUserExcluded, Reason: "You are not eligible to use this coupon"},
		},
		{
			name:   "not on allow-list",
			mutate: []func(c *Coupon){func(c *Coupon) { c.AllowedUsers = []uuid.UUID{other} }},
			want:   EligibilityResult{Code: ErrCodeUserNotAllowed, Reason: "This coupon is not available for your account"},
		},
		{
			name:   "on allow-list",
			mutate: []func(c *Coupon){func(c *Coupon) { c.AllowedUsers = []uuid.UUID{other, user} }},
			want:   EligibilityResult{CanUse: true},
		},
		{
			name: "per-user limit reached",
			mutate: []func(c *Coupon){func(c *Coupon) {
				c.UsageHistory = []UsageRecord{{UserID: user, OrderID: uuid.New()}}
				c.UsedCount = 1
			}},
			want: EligibilityResult{Code: ErrCodeUserLimitExceeded, Reason: "You have already used this coupon the maximum number of times"},
		},
		{
			name: "other users' history does not count",
			mutate: []func(c *Coupon){func(c *Coupon) {
				c.UsageHistory = []UsageRecord{{UserID: other, OrderID: uuid.New()}}
				c.UsedCount = 1
			}},
			want: EligibilityResult{CanUse: true},
		},
		{
			name: "exclusion checked before allow-list",
			mutate: []func(c *Coupon){func(c *Coupon) {
				c.ExcludedUsers = []uuid.UUID{user}
				c.AllowedUsers = []uuid.UUID{other}
			}},
			want: EligibilityResult{Code: ErrCodeUserExcluded, Reason: ReasonUserExcluded},
		},
		{
			name: "issuance checked before exclusion",
			mutate: []func(c *Coupon){func(c *Coupon) {
				c.IssuanceLimit = intPtr(10)
				c.ExcludedUsers = []uuid.UUID{user}
			}},
			want: EligibilityResult{Code: ErrCodeNotIssued, Reason: ReasonNotIssued},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCoupon(tt.mutate...)

			got := c.CanUserUseCoupon(user, fixedNow)
			assert.Equal(t, tt.want, got)

			// pure: a second call gives the same answer
			assert.Equal(t, got, c.CanUserUseCoupon(user, fixedNow))
		})
	}
}

func TestEligibilityResult_Err(t *testing.T) {
	assert.NoError(t, EligibilityResult{CanUse: true}.Err())

	err := EligibilityResult{Code: ErrCodeNotIssued, Reason: ReasonNotIssued}.Err()
	require.Error(t, err)

	appErr := AsAppError(err)
	assert.Equal(t, KindIneligible, appErr.Kind)
	assert.Equal(t, 422, appErr.HTTPStatus)
	assert.Equal(t, ReasonNotIssued, appErr.Message)
}

func TestCoupon_CheckFirstOrder(t *testing.T) {
	c := newTestCoupon()
	assert.True(t, c.CheckFirstOrder(false).CanUse)

	c.IsFirstTimeUserOnly = true
	assert.True(t, c.CheckFirstOrder(true).CanUse)

	res := c.CheckFirstOrder(false)
	assert.False(t, res.CanUse)
	assert.Equal(t, ErrCodeFirstOrderOnly, res.Code)
	assert.Equal(t, "This coupon is only available for first-time customers", res.Reason)
}

func TestCoupon_RecordUsage(t *testing.T) {
	user := uuid.New()
	c := newTestCoupon(func(c *Coupon) {
		c.UserUsageLimit = 2
		c.IssuanceLimit = intPtr(5)
	})
	c.RecordIssuance(Issuance{ID: uuid.New(), CouponID: c.ID, UserID: user, Status: IssuanceStatusIssued})
	require.Equal(t, 1, c.IssuedCount)

	c.RecordUsage(UsageRecord{ID: uuid.New(), UserID: user, OrderID: uuid.New(), DiscountAmount: decimal.NewFromInt(5), UsedAt: fixedNow})
	assert.Equal(t, 1, c.UsedCount)
	assert.Equal(t, IssuanceStatusIssued, c.IssuanceFor(user).Status)
	assert.Equal(t, 1, c.UserRemainingUses(user))

	c.RecordUsage(UsageRecord{ID: uuid.New(), UserID: user, OrderID: uuid.New(), DiscountAmount: decimal.NewFromInt(5), UsedAt: fixedNow})
	assert.Equal(t, 2, c.UsedCount)
	assert.Equal(t, IssuanceStatusUsed, c.IssuanceFor(user).Status)
	require.NotNil(t, c.IssuanceFor(user).UsedAt)
	assert.Equal(t, 0, c.UserRemainingUses(user))
}

func TestCoupon_ReopenIssuances(t *testing.T) {
	user, other := uuid.New(), uuid.New()
	c := newTestCoupon(func(c *Coupon) { c.IssuanceLimit = intPtr(5) })
	c.RecordIssuance(Issuance{ID: uuid.New(), CouponID: c.ID, UserID: user, Status: IssuanceStatusIssued})
	c.RecordIssuance(Issuance{ID: uuid.New(), CouponID: c.ID, UserID: other, Status: IssuanceStatusIssued})

	c.RecordUsage(UsageRecord{ID: uuid.New(), UserID: user, OrderID: uuid.New(), DiscountAmount: decimal.NewFromInt(5), UsedAt: fixedNow})
	require.Equal(t, IssuanceStatusUsed, c.IssuanceFor(user).Status)
	assert.Equal(t, 0, c.ReopenIssuances(), "limit unchanged")

	c.UserUsageLimit = 2
	assert.Equal(t, 1, c.ReopenIssuances())
	assert.Equal(t, IssuanceStatusIssued, c.IssuanceFor(user).Status)
	assert.Nil(t, c.IssuanceFor(user).UsedAt)
	assert.Equal(t, IssuanceStatusIssued, c.IssuanceFor(other).Status)
	assert.Equal(t, 1, c.UserRemainingUses(user))
}

func TestCoupon_CloneAndUserScoped(t *testing.T) {
	user, other := uuid.New(), uuid.New()
	c := newTestCoupon(func(c *Coupon) {
		c.UsageLimit = intPtr(10)
		c.AllowedUsers = []uuid.UUID{user, other}
		c.UsageHistory = []UsageRecord{{UserID: user}, {UserID: other}, {UserID: other}}
		c.IssuedTo = []Issuance{{UserID: other, Status: IssuanceStatusIssued}}
	})

	cp := c.Clone()
	*cp.UsageLimit = 1
	cp.AllowedUsers[0] = uuid.Nil
	assert.Equal(t, 10, *c.UsageLimit)
	assert.Equal(t, user, c.AllowedUsers[0])

	scoped := c.UserScoped(other)
	assert.Len(t, scoped.UsageHistory, 2)
	assert.Len(t, scoped.IssuedTo, 1)
	assert.Len(t, c.UsageHistory, 3)
	assert.Nil(t, c.UserScoped(user).IssuanceFor(user))
}
