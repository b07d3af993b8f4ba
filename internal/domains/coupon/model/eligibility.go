package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// EligibilityResult is the outcome of the per-user checks
type EligibilityResult struct {
	CanUse bool      `json:"can_use"`
	Code   ErrorCode `json:"code,omitempty"`
	Reason string    `json:"reason,omitempty"`
}

// Err converts a negative result into an ineligible AppError, nil otherwise
func (r EligibilityResult) Err() error {
	if r.CanUse {
		return nil
	}
	return NewIneligibleError(r.Code, r.Reason)
}

func eligible() EligibilityResult {
	return EligibilityResult{CanUse: true}
}

func ineligible(code ErrorCode, reason string) EligibilityResult {
	return EligibilityResult{Code: code, Reason: reason}
}

// CanUserUseCoupon runs the per-user checks in order and stops at the first failure:
//  1. the coupon itself is valid
//  2. limited-issuance coupons need an "issued" record for the user
//  3. the user is not on the deny-list
//  4. a non-empty allow-list contains the user
//  5. the user has redemptions left
//
// The coupon must carry the user's issuance and usage rows (a full snapshot
// or one returned by UserScoped).
func (c *Coupon) CanUserUseCoupon(userID uuid.UUID, now time.Time) EligibilityResult {
	if !c.IsValid(now) {
		return ineligible(ErrCodeCouponNotValid, ReasonNotValid)
	}

	if c.RequiresIssuance() {
		iss := c.IssuanceFor(userID)
		if iss == nil || iss.Status != IssuanceStatusIssued {
			return ineligible(ErrCodeNotIssued, ReasonNotIssued)
		}
	}

	if lo.Contains(c.ExcludedUsers, userID) {
		return ineligible(ErrCodeUserExcluded, ReasonUserExcluded)
	}

	if len(c.AllowedUsers) > 0 && !lo.Contains(c.AllowedUsers, userID) {
		return ineligible(ErrCodeUserNotAllowed, ReasonUserNotAllowed)
	}

	if c.UserUsageCount(userID) >= c.UserUsageLimit {
		return ineligible(ErrCodeUserLimitExceeded, ReasonUserLimitReached)
	}

	return eligible()
}

// CheckFirstOrder enforces IsFirstTimeUserOnly given the caller's order history
func (c *Coupon) CheckFirstOrder(isFirstOrder bool) EligibilityResult {
	if c.IsFirstTimeUserOnly && !isFirstOrder {
		return ineligible(ErrCodeFirstOrderOnly, ReasonFirstOrderOnly)
	}
	return eligible()
}

// UserRemainingUses returns how many more times the user may redeem
func (c *Coupon) UserRemainingUses(userID uuid.UUID) int {
	remaining := c.UserUsageLimit - c.UserUsageCount(userID)
	if remaining < 0 {
		return 0
	}
	return remaining
}
