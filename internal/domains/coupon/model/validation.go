package model

import (
	"errors"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const dateOnlyLayout = "2006-01-02"

var (
	codePattern = regexp.MustCompile(`^[A-Z0-9]{3,20}$`)

	errMustBePositive    = errors.New("must be greater than 0")
	errMustBeNonNegative = errors.New("must be greater than or equal to 0")
	errTooManyDecimals   = errors.New("must have at most 2 decimal places")
)

// ParseExpirationDate accepts RFC3339 or a bare date. A bare date means the
// end of that day in UTC, so the coupon stays usable for the whole day.
func ParseExpirationDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.Parse(dateOnlyLayout, s)
	if err != nil {
		return time.Time{}, errors.New("must be a date (YYYY-MM-DD) or RFC3339 timestamp")
	}
	return d.Add(24*time.Hour - time.Nanosecond), nil
}

// notBeforeToday compares at day granularity, in UTC
func notBeforeToday(exp, now time.Time) error {
	expDay := exp.UTC().Truncate(24 * time.Hour)
	today := now.UTC().Truncate(24 * time.Hour)
	if expDay.Before(today) {
		return errors.New("must be today or later")
	}
	return nil
}

func requiredID(value interface{}) error {
	id, ok := value.(uuid.UUID)
	if ok && id == uuid.Nil {
		return errors.New("cannot be blank")
	}
	return nil
}

func positiveDecimal(value interface{}) error {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return nil
	}
	if !d.IsPositive() {
		return errMustBePositive
	}
	return nil
}

func nonNegativeDecimal(value interface{}) error {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return nil
	}
	if d.IsNegative() {
		return errMustBeNonNegative
	}
	return nil
}

// moneyScale rejects amounts finer than MoneyScale ("10.500" is fine, "10.505" is not)
func moneyScale(value interface{}) error {
	var d decimal.Decimal
	switch v := value.(type) {
	case decimal.Decimal:
		d = v
	case *decimal.Decimal:
		if v == nil {
			return nil
		}
		d = *v
	default:
		return nil
	}
	if !d.Equal(d.Round(MoneyScale)) {
		return errTooManyDecimals
	}
	return nil
}

func positiveDecimalPtr(value interface{}) error {
	d, ok := value.(*decimal.Decimal)
	if !ok || d == nil {
		return nil
	}
	return positiveDecimal(*d)
}

func percentageCap(discountType DiscountType) validation.RuleFunc {
	return func(value interface{}) error {
		d, ok := value.(decimal.Decimal)
		if !ok {
			return nil
		}
		if discountType == DiscountTypePercentage && d.GreaterThan(hundred) {
			return errors.New("percentage discount cannot exceed 100")
		}
		return nil
	}
}

// Validate checks the field-level invariants of a coupon and reports every
// broken field at once. Expiration is checked by the request types, since an
// already stored coupon may legitimately be past its date.
func (c *Coupon) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Code,
			validation.Required,
			validation.Match(codePattern).Error("must be 3-20 uppercase letters or digits"),
		),
		validation.Field(&c.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&c.Description, validation.NilOrNotEmpty, validation.Length(0, 1000)),
		validation.Field(&c.DiscountType,
			validation.Required,
			validation.In(DiscountTypePercentage, DiscountTypeFixed).Error("must be 'percentage' or 'fixed'"),
		),
		validation.Field(&c.DiscountValue,
			validation.By(positiveDecimal),
			validation.By(percentageCap(c.DiscountType)),
			validation.By(moneyScale),
		),
		validation.Field(&c.MinimumOrderAmount, validation.By(nonNegativeDecimal), validation.By(moneyScale)),
		validation.Field(&c.MaximumDiscountAmount, validation.By(positiveDecimalPtr), validation.By(moneyScale)),
		validation.Field(&c.ExpirationDate, validation.Required),
		validation.Field(&c.UsageLimit, validation.NilOrNotEmpty, validation.Min(1)),
		validation.Field(&c.UserUsageLimit, validation.Required, validation.Min(1)),
		validation.Field(&c.IssuanceLimit, validation.NilOrNotEmpty, validation.Min(1)),
		validation.Field(&c.UsedCount, validation.Min(0), validation.By(c.countWithinLimit(c.UsageLimit))),
		validation.Field(&c.IssuedCount, validation.Min(0), validation.By(c.countWithinLimit(c.IssuanceLimit))),
	)
}

func (c *Coupon) countWithinLimit(limit *int) validation.RuleFunc {
	return func(value interface{}) error {
		count, ok := value.(int)
		if !ok || limit == nil {
			return nil
		}
		if count > *limit {
			return errors.New("cannot exceed its limit")
		}
		return nil
	}
}
