package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IssuanceChannel tags how a coupon reached a user
type IssuanceChannel string

const (
	ChannelAdmin     IssuanceChannel = "admin"
	ChannelAuto      IssuanceChannel = "auto"
	ChannelAPI       IssuanceChannel = "api"
	ChannelPromotion IssuanceChannel = "promotion"
	ChannelReferral  IssuanceChannel = "referral"
	ChannelLoyalty   IssuanceChannel = "loyalty"
)

func (ch IssuanceChannel) IsValid() bool {
	switch ch {
	case ChannelAdmin, ChannelAuto, ChannelAPI, ChannelPromotion, ChannelReferral, ChannelLoyalty:
		return true
	}
	return false
}

// IssuanceStatus is the lifecycle of one issuance record
type IssuanceStatus string

const (
	IssuanceStatusIssued  IssuanceStatus = "issued"
	IssuanceStatusUsed    IssuanceStatus = "used"
	IssuanceStatusExpired IssuanceStatus = "expired"
)

// CouponStatus is the derived, admin-facing state of a coupon
type CouponStatus string

const (
	StatusActive    CouponStatus = "active"
	StatusExpired   CouponStatus = "expired"
	StatusExhausted CouponStatus = "exhausted"
	StatusInactive  CouponStatus = "inactive"
	StatusAll       CouponStatus = "all"
)

// Issuance grants one user the right to redeem a limited-issuance coupon
type Issuance struct {
	ID       uuid.UUID       `json:"id" db:"id"`
	CouponID uuid.UUID       `json:"coupon_id" db:"coupon_id"`
	UserID   uuid.UUID       `json:"user_id" db:"user_id"`
	IssuedBy *uuid.UUID      `json:"issued_by,omitempty" db:"issued_by"`
	Channel  IssuanceChannel `json:"channel" db:"channel"`
	Status   IssuanceStatus  `json:"status" db:"status"`
	IssuedAt time.Time       `json:"issued_at" db:"issued_at"`
	UsedAt   *time.Time      `json:"used_at,omitempty" db:"used_at"`
}

// UsageRecord is one redemption of a coupon against an order
type UsageRecord struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	CouponID       uuid.UUID       `json:"coupon_id" db:"coupon_id"`
	UserID         uuid.UUID       `json:"user_id" db:"user_id"`
	OrderID        uuid.UUID       `json:"order_id" db:"order_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	UsedAt         time.Time       `json:"used_at" db:"used_at"`
}
