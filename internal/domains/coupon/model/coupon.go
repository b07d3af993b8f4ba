package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountType represents valid discount types
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

func (dt DiscountType) IsValid() bool {
	switch dt {
	case DiscountTypePercentage, DiscountTypeFixed:
		return true
	}
	return false
}

func (dt DiscountType) String() string {
	return string(dt)
}

// Coupon is a discount code together with its usage and issuance accounting.
//
// IssuedTo and UsageHistory are append-only. Repositories may hydrate them
// with only the rows that belong to one user (see UserScoped), which is all
// the eligibility checks need.
type Coupon struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Code        string    `json:"code" db:"code"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`

	// Discount configuration
	DiscountType          DiscountType     `json:"discount_type" db:"discount_type"`
	DiscountValue         decimal.Decimal  `json:"discount_value" db:"discount_value"`
	MinimumOrderAmount    decimal.Decimal  `json:"minimum_order_amount" db:"minimum_order_amount"`
	MaximumDiscountAmount *decimal.Decimal `json:"maximum_discount_amount,omitempty" db:"maximum_discount_amount"`

	ExpirationDate time.Time `json:"expiration_date" db:"expiration_date"`

	// Usage accounting (nil limit = unlimited)
	UsageLimit     *int `json:"usage_limit,omitempty" db:"usage_limit"`
	UsedCount      int  `json:"used_count" db:"used_count"`
	UserUsageLimit int  `json:"user_usage_limit" db:"user_usage_limit"`

	// Issuance accounting (nil limit = no issuance requirement)
	IssuanceLimit *int `json:"issuance_limit,omitempty" db:"issuance_limit"`
	IssuedCount   int  `json:"issued_count" db:"issued_count"`

	// Applicability
	ApplicableProducts   []uuid.UUID `json:"applicable_products" db:"applicable_products"`
	ApplicableCategories []uuid.UUID `json:"applicable_categories" db:"applicable_categories"`
	ExcludedProducts     []uuid.UUID `json:"excluded_products" db:"excluded_products"`
	ExcludedCategories   []uuid.UUID `json:"excluded_categories" db:"excluded_categories"`

	// User restrictions
	IsFirstTimeUserOnly bool        `json:"is_first_time_user_only" db:"is_first_time_user_only"`
	AllowedUsers        []uuid.UUID `json:"allowed_users" db:"allowed_users"`
	ExcludedUsers       []uuid.UUID `json:"excluded_users" db:"excluded_users"`

	IsActive  bool       `json:"is_active" db:"is_active"`
	CreatedBy *uuid.UUID `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy *uuid.UUID `json:"updated_by,omitempty" db:"updated_by"`
	Version   int        `json:"version" db:"version"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`

	IssuedTo     []Issuance    `json:"issued_to,omitempty" db:"-"`
	UsageHistory []UsageRecord `json:"usage_history,omitempty" db:"-"`
}

// NormalizeCode uppercases and trims a coupon code. Codes are stored uppercase.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// -------------------------------------------------------------------
// DERIVED STATE
// -------------------------------------------------------------------

// IsExpired reports whether now is past the expiration date
func (c *Coupon) IsExpired(now time.Time) bool {
	return now.After(c.ExpirationDate)
}

// IsUsageLimitExceeded reports whether the global redemption cap is reached
func (c *Coupon) IsUsageLimitExceeded() bool {
	return c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit
}

// IsIssuanceLimitExceeded reports whether the issuance cap is reached
func (c *Coupon) IsIssuanceLimitExceeded() bool {
	return c.IssuanceLimit != nil && c.IssuedCount >= *c.IssuanceLimit
}

// IsValid reports whether the coupon can be redeemed at all
func (c *Coupon) IsValid(now time.Time) bool {
	return c.IsActive && !c.IsExpired(now) && !c.IsUsageLimitExceeded()
}

// CanBeIssued reports whether the coupon can be granted to another user.
// Independent from IsValid: issuance and redemption have separate caps.
func (c *Coupon) CanBeIssued(now time.Time) bool {
	return c.IsActive && !c.IsExpired(now) && !c.IsIssuanceLimitExceeded()
}

// RequiresIssuance reports whether users must be issued the coupon before redeeming it
func (c *Coupon) RequiresIssuance() bool {
	return c.IssuanceLimit != nil
}

// Status returns the admin-facing status label, in the same precedence the
// listing filter uses.
func (c *Coupon) Status(now time.Time) CouponStatus {
	switch {
	case !c.IsActive:
		return StatusInactive
	case c.IsExpired(now):
		return StatusExpired
	case c.IsUsageLimitExceeded():
		return StatusExhausted
	default:
		return StatusActive
	}
}

// InvalidReason returns the most specific reason the coupon is not valid,
// or "" when it is.
func (c *Coupon) InvalidReason(now time.Time) (ErrorCode, string) {
	switch {
	case !c.IsActive:
		return ErrCodeCouponInactive, ReasonInactive
	case c.IsExpired(now):
		return ErrCodeCouponExpired, ReasonExpired
	case c.IsUsageLimitExceeded():
		return ErrCodeUsageLimitExceeded, ReasonUsageLimitReached
	}
	return "", ""
}

// RemainingUses returns how many redemptions are left, nil when unlimited
func (c *Coupon) RemainingUses() *int {
	if c.UsageLimit == nil {
		return nil
	}
	remaining := *c.UsageLimit - c.UsedCount
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// RemainingIssuances returns how many issuances are left, nil when unlimited
func (c *Coupon) RemainingIssuances() *int {
	if c.IssuanceLimit == nil {
		return nil
	}
	remaining := *c.IssuanceLimit - c.IssuedCount
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// -------------------------------------------------------------------
// ACCOUNTING
// -------------------------------------------------------------------

// IssuanceFor returns the issuance record of a user, if any
func (c *Coupon) IssuanceFor(userID uuid.UUID) *Issuance {
	for i := range c.IssuedTo {
		if c.IssuedTo[i].UserID == userID {
			return &c.IssuedTo[i]
		}
	}
	return nil
}

// UserUsageCount counts the redemptions of one user in the loaded history
func (c *Coupon) UserUsageCount(userID uuid.UUID) int {
	count := 0
	for _, u := range c.UsageHistory {
		if u.UserID == userID {
			count++
		}
	}
	return count
}

// RecordUsage appends a redemption and bumps UsedCount in one step.
// Callers hold whatever lock protects the coupon; no eligibility is re-checked.
func (c *Coupon) RecordUsage(usage UsageRecord) {
	c.UsageHistory = append(c.UsageHistory, usage)
	c.UsedCount++

	if iss := c.IssuanceFor(usage.UserID); iss != nil && iss.Status == IssuanceStatusIssued {
		if c.UserUsageCount(usage.UserID) >= c.UserUsageLimit {
			iss.Status = IssuanceStatusUsed
			usedAt := usage.UsedAt
			iss.UsedAt = &usedAt
		}
	}
}

// ReopenIssuances puts "used" issuances back to "issued" for users who have
// uses left under the current UserUsageLimit. Called after the limit changes.
func (c *Coupon) ReopenIssuances() int {
	reopened := 0
	for i := range c.IssuedTo {
		iss := &c.IssuedTo[i]
		if iss.Status == IssuanceStatusUsed && c.UserUsageCount(iss.UserID) < c.UserUsageLimit {
			iss.Status = IssuanceStatusIssued
			iss.UsedAt = nil
			reopened++
		}
	}
	return reopened
}

// RecordIssuance appends an issuance and bumps IssuedCount in one step
func (c *Coupon) RecordIssuance(issuance Issuance) {
	c.IssuedTo = append(c.IssuedTo, issuance)
	c.IssuedCount++
}

// Clone returns a deep copy, so snapshots handed out by a store cannot be
// mutated behind its back.
func (c *Coupon) Clone() *Coupon {
	cp := *c
	if c.Description != nil {
		d := *c.Description
		cp.Description = &d
	}
	if c.MaximumDiscountAmount != nil {
		m := *c.MaximumDiscountAmount
		cp.MaximumDiscountAmount = &m
	}
	if c.UsageLimit != nil {
		u := *c.UsageLimit
		cp.UsageLimit = &u
	}
	if c.IssuanceLimit != nil {
		i := *c.IssuanceLimit
		cp.IssuanceLimit = &i
	}
	if c.CreatedBy != nil {
		v := *c.CreatedBy
		cp.CreatedBy = &v
	}
	if c.UpdatedBy != nil {
		v := *c.UpdatedBy
		cp.UpdatedBy = &v
	}
	cp.ApplicableProducts = cloneIDs(c.ApplicableProducts)
	cp.ApplicableCategories = cloneIDs(c.ApplicableCategories)
	cp.ExcludedProducts = cloneIDs(c.ExcludedProducts)
	cp.ExcludedCategories = cloneIDs(c.ExcludedCategories)
	cp.AllowedUsers = cloneIDs(c.AllowedUsers)
	cp.ExcludedUsers = cloneIDs(c.ExcludedUsers)
	cp.IssuedTo = append([]Issuance(nil), c.IssuedTo...)
	for i := range cp.IssuedTo {
		if cp.IssuedTo[i].UsedAt != nil {
			t := *cp.IssuedTo[i].UsedAt
			cp.IssuedTo[i].UsedAt = &t
		}
	}
	cp.UsageHistory = append([]UsageRecord(nil), c.UsageHistory...)
	return &cp
}

// UserScoped returns a copy whose IssuedTo and UsageHistory only keep the rows of userID
func (c *Coupon) UserScoped(userID uuid.UUID) *Coupon {
	cp := c.Clone()
	cp.IssuedTo = cp.IssuedTo[:0:0]
	for _, iss := range c.IssuedTo {
		if iss.UserID == userID {
			cp.IssuedTo = append(cp.IssuedTo, iss)
		}
	}
	cp.UsageHistory = cp.UsageHistory[:0:0]
	for _, u := range c.UsageHistory {
		if u.UserID == userID {
			cp.UsageHistory = append(cp.UsageHistory, u)
		}
	}
	return cp
}

func cloneIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return nil
	}
	return append([]uuid.UUID(nil), ids...)
}
