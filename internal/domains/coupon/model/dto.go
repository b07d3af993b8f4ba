package model

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// -------------------------------------------------------------------
// PUBLIC / INTERNAL REQUESTS
// -------------------------------------------------------------------

// CartItem is one line of the caller's cart. Category and price are resolved from the catalog.
type CartItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

func (ci CartItem) Validate() error {
	return validation.ValidateStruct(&ci,
		validation.Field(&ci.ProductID, validation.By(requiredID)),
		validation.Field(&ci.Quantity, validation.Required, validation.Min(1), validation.Max(1000)),
	)
}

// ValidateCouponRequest previews a coupon against an order without changing anything
type ValidateCouponRequest struct {
	Code         string          `json:"code"`
	OrderAmount  decimal.Decimal `json:"order_amount"`
	CartItems    []CartItem      `json:"cart_items"`
	IsFirstOrder *bool           `json:"is_first_order,omitempty"`
	UserID       *uuid.UUID      `json:"-"` // from the JWT, never from the body
}

func (r ValidateCouponRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required, validation.Length(3, 20), is.Alphanumeric),
		validation.Field(&r.OrderAmount, validation.By(nonNegativeDecimal), validation.By(moneyScale)),
		validation.Field(&r.CartItems, validation.Length(0, 200)),
	)
}

// Normalize uppercases the code
func (r *ValidateCouponRequest) Normalize() {
	r.Code = NormalizeCode(r.Code)
}

// ApplyCouponRequest commits a coupon to an order. Sent by the order service.
type ApplyCouponRequest struct {
	Code         string          `json:"code"`
	UserID       uuid.UUID       `json:"user_id"`
	OrderID      uuid.UUID       `json:"order_id"`
	OrderAmount  decimal.Decimal `json:"order_amount"`
	CartItems    []CartItem      `json:"cart_items"`
	IsFirstOrder *bool           `json:"is_first_order,omitempty"`
}

func (r ApplyCouponRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required, validation.Length(3, 20), is.Alphanumeric),
		validation.Field(&r.UserID, validation.By(requiredID)),
		validation.Field(&r.OrderID, validation.By(requiredID)),
		validation.Field(&r.OrderAmount, validation.By(nonNegativeDecimal), validation.By(moneyScale)),
		validation.Field(&r.CartItems, validation.Length(0, 200)),
	)
}

func (r *ApplyCouponRequest) Normalize() {
	r.Code = NormalizeCode(r.Code)
}

// -------------------------------------------------------------------
// ADMIN REQUESTS
// -------------------------------------------------------------------

// CreateCouponRequest creates a coupon. Omitted user_usage_limit defaults to 1, omitted is_active to true.
type CreateCouponRequest struct {
	Code                  string           `json:"code"`
	Name                  string           `json:"name"`
	Description           *string          `json:"description"`
	DiscountType          DiscountType     `json:"discount_type"`
	DiscountValue         decimal.Decimal  `json:"discount_value"`
	MinimumOrderAmount    decimal.Decimal  `json:"minimum_order_amount"`
	MaximumDiscountAmount *decimal.Decimal `json:"maximum_discount_amount"`
	ExpirationDate        string           `json:"expiration_date"` // YYYY-MM-DD or RFC3339
	UsageLimit            *int             `json:"usage_limit"`
	UserUsageLimit        *int             `json:"user_usage_limit"`
	IssuanceLimit         *int             `json:"issuance_limit"`
	ApplicableProducts    []uuid.UUID      `json:"applicable_products"`
	ApplicableCategories  []uuid.UUID      `json:"applicable_categories"`
	ExcludedProducts      []uuid.UUID      `json:"excluded_products"`
	ExcludedCategories    []uuid.UUID      `json:"excluded_categories"`
	IsFirstTimeUserOnly   bool             `json:"is_first_time_user_only"`
	AllowedUsers          []uuid.UUID      `json:"allowed_users"`
	ExcludedUsers         []uuid.UUID      `json:"excluded_users"`
	IsActive              *bool            `json:"is_active"`
}

// Normalize uppercases the code
func (r *CreateCouponRequest) Normalize() {
	r.Code = NormalizeCode(r.Code)
	r.Name = strings.TrimSpace(r.Name)
}

// ToCoupon validates the request and builds a fresh coupon with zeroed counters.
// Every invalid field is reported in one validation error.
func (r CreateCouponRequest) ToCoupon(now time.Time, createdBy *uuid.UUID) (*Coupon, error) {
	errs := validation.Errors{}

	exp, err := ParseExpirationDate(r.ExpirationDate)
	if r.ExpirationDate == "" {
		errs["expiration_date"] = errors.New("cannot be blank")
	} else if err != nil {
		errs["expiration_date"] = err
	} else if err := notBeforeToday(exp, now); err != nil {
		errs["expiration_date"] = err
	}

	userLimit := 1
	if r.UserUsageLimit != nil {
		userLimit = *r.UserUsageLimit
	}
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}

	c := &Coupon{
		ID:                    uuid.New(),
		Code:                  NormalizeCode(r.Code),
		Name:                  strings.TrimSpace(r.Name),
		Description:           r.Description,
		DiscountType:          r.DiscountType,
		DiscountValue:         r.DiscountValue,
		MinimumOrderAmount:    r.MinimumOrderAmount,
		MaximumDiscountAmount: r.MaximumDiscountAmount,
		ExpirationDate:        exp,
		UsageLimit:            r.UsageLimit,
		UserUsageLimit:        userLimit,
		IssuanceLimit:         r.IssuanceLimit,
		ApplicableProducts:    dedupeIDs(r.ApplicableProducts),
		ApplicableCategories:  dedupeIDs(r.ApplicableCategories),
		ExcludedProducts:      dedupeIDs(r.ExcludedProducts),
		ExcludedCategories:    dedupeIDs(r.ExcludedCategories),
		IsFirstTimeUserOnly:   r.IsFirstTimeUserOnly,
		AllowedUsers:          dedupeIDs(r.AllowedUsers),
		ExcludedUsers:         dedupeIDs(r.ExcludedUsers),
		IsActive:              active,
		CreatedBy:             createdBy,
		UpdatedBy:             createdBy,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := c.Validate(); err != nil {
		var fieldErrs validation.Errors
		if !errors.As(err, &fieldErrs) {
			return nil, NewInternalError(err)
		}
		for field, ferr := range fieldErrs {
			if _, seen := errs[field]; !seen {
				errs[field] = ferr
			}
		}
	}

	if len(errs) > 0 {
		return nil, NewValidationError(errs)
	}
	return c, nil
}

// UpdateCouponRequest changes a coupon. Nil fields are left untouched; the
// Remove* flags clear an optional limit back to "unlimited".
// Counters and history cannot be edited.
type UpdateCouponRequest struct {
	Name                  *string          `json:"name"`
	Description           *string          `json:"description"`
	DiscountType          *DiscountType    `json:"discount_type"`
	DiscountValue         *decimal.Decimal `json:"discount_value"`
	MinimumOrderAmount    *decimal.Decimal `json:"minimum_order_amount"`
	MaximumDiscountAmount *decimal.Decimal `json:"maximum_discount_amount"`
	RemoveMaximumDiscount bool             `json:"remove_maximum_discount"`
	ExpirationDate        *string          `json:"expiration_date"`
	UsageLimit            *int             `json:"usage_limit"`
	RemoveUsageLimit      bool             `json:"remove_usage_limit"`
	UserUsageLimit        *int             `json:"user_usage_limit"`
	IssuanceLimit         *int             `json:"issuance_limit"`
	RemoveIssuanceLimit   bool             `json:"remove_issuance_limit"`
	ApplicableProducts    *[]uuid.UUID     `json:"applicable_products"`
	ApplicableCategories  *[]uuid.UUID     `json:"applicable_categories"`
	ExcludedProducts      *[]uuid.UUID     `json:"excluded_products"`
	ExcludedCategories    *[]uuid.UUID     `json:"excluded_categories"`
	IsFirstTimeUserOnly   *bool            `json:"is_first_time_user_only"`
	AllowedUsers          *[]uuid.UUID     `json:"allowed_users"`
	ExcludedUsers         *[]uuid.UUID     `json:"excluded_users"`
	IsActive              *bool            `json:"is_active"`
	Version               *int             `json:"version"` // optional optimistic check
}

// ApplyTo returns an updated copy of c. The original is never modified.
func (r UpdateCouponRequest) ApplyTo(c *Coupon, now time.Time, updatedBy *uuid.UUID) (*Coupon, error) {
	if r.Version != nil && *r.Version != c.Version {
		return nil, ErrVersionConflict.WithDetails(map[string]interface{}{
			"current_version": c.Version,
		})
	}

	errs := validation.Errors{}
	next := c.Clone()

	if r.Name != nil {
		next.Name = strings.TrimSpace(*r.Name)
	}
	if r.Description != nil {
		next.Description = r.Description
	}
	if r.DiscountType != nil {
		next.DiscountType = *r.DiscountType
	}
	if r.DiscountValue != nil {
		next.DiscountValue = *r.DiscountValue
	}
	if r.MinimumOrderAmount != nil {
		next.MinimumOrderAmount = *r.MinimumOrderAmount
	}
	if r.RemoveMaximumDiscount {
		next.MaximumDiscountAmount = nil
	} else if r.MaximumDiscountAmount != nil {
		m := *r.MaximumDiscountAmount
		next.MaximumDiscountAmount = &m
	}
	if r.ExpirationDate != nil {
		exp, err := ParseExpirationDate(*r.ExpirationDate)
		if err != nil {
			errs["expiration_date"] = err
		} else if err := notBeforeToday(exp, now); err != nil {
			errs["expiration_date"] = err
		} else {
			next.ExpirationDate = exp
		}
	}
	if r.RemoveUsageLimit {
		next.UsageLimit = nil
	} else if r.UsageLimit != nil {
		u := *r.UsageLimit
		next.UsageLimit = &u
	}
	if r.UserUsageLimit != nil {
		next.UserUsageLimit = *r.UserUsageLimit
	}
	if r.RemoveIssuanceLimit {
		next.IssuanceLimit = nil
	} else if r.IssuanceLimit != nil {
		i := *r.IssuanceLimit
		next.IssuanceLimit = &i
	}
	if r.ApplicableProducts != nil {
		next.ApplicableProducts = dedupeIDs(*r.ApplicableProducts)
	}
	if r.ApplicableCategories != nil {
		next.ApplicableCategories = dedupeIDs(*r.ApplicableCategories)
	}
	if r.ExcludedProducts != nil {
		next.ExcludedProducts = dedupeIDs(*r.ExcludedProducts)
	}
	if r.ExcludedCategories != nil {
		next.ExcludedCategories = dedupeIDs(*r.ExcludedCategories)
	}
	if r.IsFirstTimeUserOnly != nil {
		next.IsFirstTimeUserOnly = *r.IsFirstTimeUserOnly
	}
	if r.AllowedUsers != nil {
		next.AllowedUsers = dedupeIDs(*r.AllowedUsers)
	}
	if r.ExcludedUsers != nil {
		next.ExcludedUsers = dedupeIDs(*r.ExcludedUsers)
	}
	if r.IsActive != nil {
		next.IsActive = *r.IsActive
	}

	// Limits may shrink, but never below what has already been consumed
	if next.UsageLimit != nil && *next.UsageLimit < next.UsedCount {
		return nil, NewConflictError(ErrCodeLimitBelowUsage, "Usage limit cannot be lower than the current used count").
			WithDetails(map[string]interface{}{"used_count": next.UsedCount})
	}
	if next.IssuanceLimit != nil && *next.IssuanceLimit < next.IssuedCount {
		return nil, NewConflictError(ErrCodeLimitBelowUsage, "Issuance limit cannot be lower than the current issued count").
			WithDetails(map[string]interface{}{"issued_count": next.IssuedCount})
	}

	if err := next.Validate(); err != nil {
		var fieldErrs validation.Errors
		if !errors.As(err, &fieldErrs) {
			return nil, NewInternalError(err)
		}
		for field, ferr := range fieldErrs {
			if _, seen := errs[field]; !seen {
				errs[field] = ferr
			}
		}
	}
	if len(errs) > 0 {
		return nil, NewValidationError(errs)
	}

	next.UpdatedBy = updatedBy
	next.UpdatedAt = now
	return next, nil
}

// UpdateStatusRequest toggles the administrative kill-switch
type UpdateStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

func (r UpdateStatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IsActive, validation.NotNil),
	)
}

// IssueCouponRequest grants a coupon to a batch of users
type IssueCouponRequest struct {
	UserIDs []uuid.UUID     `json:"user_ids"`
	Channel IssuanceChannel `json:"channel"`
}

// Validate checks the batch against maxBatch and defaults the channel to admin
func (r *IssueCouponRequest) Validate(maxBatch int) error {
	if r.Channel == "" {
		r.Channel = ChannelAdmin
	}
	err := validation.ValidateStruct(r,
		validation.Field(&r.UserIDs, validation.Required, validation.Length(1, maxBatch)),
		validation.Field(&r.Channel, validation.By(func(value interface{}) error {
			ch, _ := value.(IssuanceChannel)
			if !ch.IsValid() {
				return errors.New("must be one of admin, auto, api, promotion, referral, loyalty")
			}
			return nil
		})),
	)
	if err != nil {
		return NewValidationError(err)
	}
	return nil
}

// ListCouponsFilter is the typed option set of the admin listing
type ListCouponsFilter struct {
	Status       string `form:"status"` // active, expired, exhausted, inactive, all
	Search       string `form:"search"` // matches code or name
	DiscountType string `form:"discount_type"`
	IsActive     *bool  `form:"is_active"`
	Sort         string `form:"sort"`
	Page         int    `form:"page"`
	Limit        int    `form:"limit"`
}

// Sort options
const (
	SortCreatedDesc    = "created_at_desc"
	SortCreatedAsc     = "created_at_asc"
	SortExpirationAsc  = "expiration_asc"
	SortExpirationDesc = "expiration_desc"
	SortUsageDesc      = "usage_desc"
	SortCodeAsc        = "code_asc"
)

// Validate applies defaults and checks enumerations
func (f *ListCouponsFilter) Validate() error {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Status == "" {
		f.Status = string(StatusAll)
	}
	if f.Sort == "" {
		f.Sort = SortCreatedDesc
	}
	f.Search = strings.TrimSpace(f.Search)

	err := validation.ValidateStruct(f,
		validation.Field(&f.Status, validation.In(
			string(StatusActive), string(StatusExpired), string(StatusExhausted), string(StatusInactive), string(StatusAll),
		)),
		validation.Field(&f.DiscountType, validation.In(string(DiscountTypePercentage), string(DiscountTypeFixed))),
		validation.Field(&f.Sort, validation.In(
			SortCreatedDesc, SortCreatedAsc, SortExpirationAsc, SortExpirationDesc, SortUsageDesc, SortCodeAsc,
		)),
		validation.Field(&f.Search, validation.Length(0, 100)),
	)
	if err != nil {
		return NewValidationError(err)
	}
	return nil
}

// Offset of the requested page
func (f ListCouponsFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Matches reports whether c passes every filter option. Used by the in-memory
// store; Postgres evaluates the same conditions in SQL.
func (f ListCouponsFilter) Matches(c *Coupon, now time.Time) bool {
	if f.Status != "" && f.Status != string(StatusAll) && string(c.Status(now)) != f.Status {
		return false
	}
	if f.DiscountType != "" && string(c.DiscountType) != f.DiscountType {
		return false
	}
	if f.IsActive != nil && c.IsActive != *f.IsActive {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(c.Code), q) && !strings.Contains(strings.ToLower(c.Name), q) {
			return false
		}
	}
	return true
}

// UsageListFilter pages through usage or issuance history
type UsageListFilter struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

func (f *UsageListFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 200 {
		f.Limit = 50
	}
}

func (f UsageListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// -------------------------------------------------------------------
// RESPONSES
// -------------------------------------------------------------------

// CouponInfo is the public view of a coupon
type CouponInfo struct {
	ID                    uuid.UUID        `json:"id"`
	Code                  string           `json:"code"`
	Name                  string           `json:"name"`
	Description           *string          `json:"description,omitempty"`
	DiscountType          DiscountType     `json:"discount_type"`
	DiscountValue         decimal.Decimal  `json:"discount_value"`
	MinimumOrderAmount    decimal.Decimal  `json:"minimum_order_amount"`
	MaximumDiscountAmount *decimal.Decimal `json:"maximum_discount_amount,omitempty"`
	ExpirationDate        time.Time        `json:"expiration_date"`
	IsFirstTimeUserOnly   bool             `json:"is_first_time_user_only"`
}

func NewCouponInfo(c *Coupon) *CouponInfo {
	return &CouponInfo{
		ID:                    c.ID,
		Code:                  c.Code,
		Name:                  c.Name,
		Description:           c.Description,
		DiscountType:          c.DiscountType,
		DiscountValue:         c.DiscountValue,
		MinimumOrderAmount:    c.MinimumOrderAmount,
		MaximumDiscountAmount: c.MaximumDiscountAmount,
		ExpirationDate:        c.ExpirationDate,
		IsFirstTimeUserOnly:   c.IsFirstTimeUserOnly,
	}
}

// ValidationResult is the read-only preview of a coupon against an order
type ValidationResult struct {
	Valid             bool            `json:"valid"`
	Coupon            *CouponInfo     `json:"coupon,omitempty"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	ApplicableAmount  decimal.Decimal `json:"applicable_amount"`
	FinalAmount       decimal.Decimal `json:"final_amount"`
	Code              ErrorCode       `json:"code,omitempty"`
	Reason            string          `json:"reason,omitempty"`
	SkippedItems      []uuid.UUID     `json:"skipped_items,omitempty"`
	RemainingUses     *int            `json:"remaining_uses,omitempty"`
	UserRemainingUses *int            `json:"user_remaining_uses,omitempty"`
}

// ApplyResult is returned once a redemption is committed
type ApplyResult struct {
	UsageID          uuid.UUID       `json:"usage_id"`
	Coupon           *CouponInfo     `json:"coupon"`
	OrderID          uuid.UUID       `json:"order_id"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	ApplicableAmount decimal.Decimal `json:"applicable_amount"`
	FinalAmount      decimal.Decimal `json:"final_amount"`
	SkippedItems     []uuid.UUID     `json:"skipped_items,omitempty"`
	UsedAt           time.Time       `json:"used_at"`
}

// Issue result statuses
const (
	IssueStatusIssued = "issued"
	IssueStatusFailed = "failed"
)

// IssueResult reports the outcome for one user of a bulk issuance
type IssueResult struct {
	UserID uuid.UUID `json:"user_id"`
	Status string    `json:"status"`
	Code   ErrorCode `json:"code,omitempty"`
	Error  string    `json:"error,omitempty"`
	Issued *Issuance `json:"issuance,omitempty"`
}

// BulkIssueResult aggregates a bulk issuance; failures never abort the batch
type BulkIssueResult struct {
	CouponID  uuid.UUID     `json:"coupon_id"`
	Requested int           `json:"requested"`
	Issued    int           `json:"issued"`
	Failed    int           `json:"failed"`
	Results   []IssueResult `json:"results"`
}

// CouponListItem is one row of the admin listing
type CouponListItem struct {
	*Coupon
	Status             CouponStatus `json:"status"`
	RemainingUses      *int         `json:"remaining_uses,omitempty"`
	RemainingIssuances *int         `json:"remaining_issuances,omitempty"`
	UsageRate          *float64     `json:"usage_rate,omitempty"` // percent of usage_limit consumed
}

func NewCouponListItem(c *Coupon, now time.Time) CouponListItem {
	item := CouponListItem{
		Coupon:             c,
		Status:             c.Status(now),
		RemainingUses:      c.RemainingUses(),
		RemainingIssuances: c.RemainingIssuances(),
	}
	if c.UsageLimit != nil && *c.UsageLimit > 0 {
		rate := float64(c.UsedCount) / float64(*c.UsageLimit) * 100
		item.UsageRate = &rate
	}
	return item
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	return lo.Uniq(ids)
}
