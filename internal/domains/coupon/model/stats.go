package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CouponStats summarises the usage and issuance ledgers of one coupon
type CouponStats struct {
	CouponID           uuid.UUID       `json:"coupon_id"`
	Code               string          `json:"code"`
	Status             CouponStatus    `json:"status"`
	TotalRedemptions   int             `json:"total_redemptions"`
	UniqueUsers        int             `json:"unique_users"`
	TotalDiscount      decimal.Decimal `json:"total_discount"`
	AverageDiscount    decimal.Decimal `json:"average_discount"`
	RemainingUses      *int            `json:"remaining_uses,omitempty"`
	UsageRate          *float64        `json:"usage_rate,omitempty"`
	IssuedCount        int             `json:"issued_count"`
	IssuancesOpen      int             `json:"issuances_open"`
	IssuancesUsed      int             `json:"issuances_used"`
	IssuancesExpired   int             `json:"issuances_expired"`
	RemainingIssuances *int            `json:"remaining_issuances,omitempty"`
	FirstUsedAt        *time.Time      `json:"first_used_at,omitempty"`
	LastUsedAt         *time.Time      `json:"last_used_at,omitempty"`
}

// ComputeStats reduces the ledgers loaded on c. The coupon must carry its
// full history, not a user-scoped copy.
func ComputeStats(c *Coupon, now time.Time) CouponStats {
	stats := CouponStats{
		CouponID:           c.ID,
		Code:               c.Code,
		Status:             c.Status(now),
		TotalRedemptions:   len(c.UsageHistory),
		TotalDiscount:      decimal.Zero,
		AverageDiscount:    decimal.Zero,
		RemainingUses:      c.RemainingUses(),
		IssuedCount:        c.IssuedCount,
		RemainingIssuances: c.RemainingIssuances(),
	}

	users := make(map[uuid.UUID]struct{})
	for i := range c.UsageHistory {
		u := &c.UsageHistory[i]
		users[u.UserID] = struct{}{}
		stats.TotalDiscount = stats.TotalDiscount.Add(u.DiscountAmount)

		if stats.FirstUsedAt == nil || u.UsedAt.Before(*stats.FirstUsedAt) {
			t := u.UsedAt
			stats.FirstUsedAt = &t
		}
		if stats.LastUsedAt == nil || u.UsedAt.After(*stats.LastUsedAt) {
			t := u.UsedAt
			stats.LastUsedAt = &t
		}
	}
	stats.UniqueUsers = len(users)

	if stats.TotalRedemptions > 0 {
		stats.AverageDiscount = stats.TotalDiscount.
			Div(decimal.NewFromInt(int64(stats.TotalRedemptions))).
			Round(MoneyScale)
	}

	if c.UsageLimit != nil && *c.UsageLimit > 0 {
		rate := float64(c.UsedCount) / float64(*c.UsageLimit) * 100
		stats.UsageRate = &rate
	}

	for _, iss := range c.IssuedTo {
		switch iss.Status {
		case IssuanceStatusIssued:
			stats.IssuancesOpen++
		case IssuanceStatusUsed:
			stats.IssuancesUsed++
		case IssuanceStatusExpired:
			stats.IssuancesExpired++
		}
	}

	return stats
}
