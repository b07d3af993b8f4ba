package model

import (
	"errors"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrorKind groups error codes by how callers should react to them
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindNotFound    ErrorKind = "not_found"
	KindIneligible  ErrorKind = "ineligible"
	KindConflict    ErrorKind = "conflict"
	KindConcurrency ErrorKind = "concurrency"
	KindInternal    ErrorKind = "internal"
)

type ErrorCode string

const (
	// Lookup (404)
	ErrCodeCouponNotFound ErrorCode = "COUPON_NOT_FOUND"

	// Eligibility (422)
	ErrCodeCouponInactive     ErrorCode = "COUPON_INACTIVE"
	ErrCodeCouponExpired      ErrorCode = "COUPON_EXPIRED"
	ErrCodeUsageLimitExceeded ErrorCode = "COUPON_USAGE_LIMIT_EXCEEDED"
	ErrCodeCouponNotValid     ErrorCode = "COUPON_NOT_VALID"
	ErrCodeNotIssued          ErrorCode = "COUPON_NOT_ISSUED"
	ErrCodeUserExcluded       ErrorCode = "COUPON_USER_EXCLUDED"
	ErrCodeUserNotAllowed     ErrorCode = "COUPON_USER_NOT_ALLOWED"
	ErrCodeUserLimitExceeded  ErrorCode = "COUPON_USER_LIMIT_EXCEEDED"
	ErrCodeFirstOrderOnly     ErrorCode = "COUPON_FIRST_ORDER_ONLY"
	ErrCodeMinOrderNotMet     ErrorCode = "COUPON_MIN_ORDER_NOT_MET"
	ErrCodeNotApplicable      ErrorCode = "COUPON_NOT_APPLICABLE"
	ErrCodeCannotBeIssued     ErrorCode = "COUPON_CANNOT_BE_ISSUED"
	ErrCodeUserRequired       ErrorCode = "COUPON_USER_REQUIRED"

	// Admin conflicts (409)
	ErrCodeDuplicateCode   ErrorCode = "BIZ_DUPLICATE_CODE"
	ErrCodeAlreadyIssued   ErrorCode = "BIZ_ALREADY_ISSUED"
	ErrCodeCannotDelete    ErrorCode = "BIZ_CANNOT_DELETE_USED_COUPON"
	ErrCodeUpdateConflict  ErrorCode = "BIZ_UPDATE_CONFLICT"
	ErrCodeDuplicateUsage  ErrorCode = "BIZ_DUPLICATE_USAGE"
	ErrCodeLimitBelowUsage ErrorCode = "BIZ_LIMIT_BELOW_USAGE"

	// Redemption lost the race against the usage limit (409)
	ErrCodeRedemptionRace ErrorCode = "CONC_USAGE_LIMIT_RACE"

	// Validation (400)
	ErrCodeValidationFailed ErrorCode = "VAL_INVALID_INPUT"

	// System (500)
	ErrCodeInternalError ErrorCode = "SYS_INTERNAL_ERROR"
)

// Human-readable eligibility reasons
const (
	ReasonNotFound          = "Invalid coupon code"
	ReasonInactive          = "This coupon is no longer active"
	ReasonExpired           = "This coupon has expired"
	ReasonUsageLimitReached = "This coupon has reached its usage limit"
	ReasonNotValid          = "Coupon is not valid"
	ReasonNotIssued         = "This coupon was not issued to you"
	ReasonUserExcluded      = "You are not eligible to use this coupon"
	ReasonUserNotAllowed    = "This coupon is not available for your account"
	ReasonUserLimitReached  = "You have already used this coupon the maximum number of times"
	ReasonFirstOrderOnly    = "This coupon is only available for first-time customers"
	ReasonNotApplicable     = "This coupon is not applicable to any items in your cart"
	ReasonCannotBeIssued    = "Coupon cannot be issued"
	ReasonAlreadyIssued     = "Coupon already issued to this user"
	ReasonRedemptionRace    = "This coupon has just reached its usage limit"
	ReasonUserRequired      = "Sign in to use this coupon"
)

// AppError is the structured error every coupon operation returns
type AppError struct {
	Kind       ErrorKind              `json:"-"`
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

// Is matches on code, so errors.Is(err, model.ErrCouponNotFound) works for
// copies carrying different details.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails returns a copy of the error carrying details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func statusFor(kind ErrorKind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindIneligible:
		return http.StatusUnprocessableEntity
	case KindConflict, KindConcurrency:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind ErrorKind, code ErrorCode, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, HTTPStatus: statusFor(kind)}
}

// NewIneligibleError wraps an eligibility reason
func NewIneligibleError(code ErrorCode, reason string) *AppError {
	return newError(KindIneligible, code, reason)
}

// NewConflictError reports a well-formed but disallowed request
func NewConflictError(code ErrorCode, message string) *AppError {
	return newError(KindConflict, code, message)
}

// NewValidationError turns ozzo field errors into one validation error listing every field
func NewValidationError(err error) *AppError {
	fields := map[string]string{}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			fields[field] = ferr.Error()
		}
	} else if err != nil {
		fields["_"] = err.Error()
	}

	appErr := newError(KindValidation, ErrCodeValidationFailed, "Invalid input")
	appErr.Details = map[string]interface{}{"fields": fields}
	return appErr
}

// NewFieldError is a single-field validation error
func NewFieldError(field, message string) *AppError {
	return NewValidationError(validation.Errors{field: errors.New(message)})
}

// NewInternalError hides infrastructure failures behind a generic message
func NewInternalError(err error) *AppError {
	appErr := newError(KindInternal, ErrCodeInternalError, "Internal server error")
	if err != nil {
		appErr.Details = map[string]interface{}{"cause": fmt.Sprintf("%v", err)}
	}
	return appErr
}

// Predefined errors
var (
	ErrCouponNotFound  = newError(KindNotFound, ErrCodeCouponNotFound, ReasonNotFound)
	ErrDuplicateCode   = newError(KindConflict, ErrCodeDuplicateCode, "Coupon code already exists")
	ErrAlreadyIssued   = newError(KindConflict, ErrCodeAlreadyIssued, ReasonAlreadyIssued)
	ErrCannotBeIssued  = newError(KindIneligible, ErrCodeCannotBeIssued, ReasonCannotBeIssued)
	ErrCannotDelete    = newError(KindConflict, ErrCodeCannotDelete, "Coupon has been used; deactivate it instead of deleting")
	ErrVersionConflict = newError(KindConflict, ErrCodeUpdateConflict, "Coupon was modified by another request")
	ErrDuplicateUsage  = newError(KindConflict, ErrCodeDuplicateUsage, "Coupon already applied to this order")
	ErrRedemptionRace  = newError(KindConcurrency, ErrCodeRedemptionRace, ReasonRedemptionRace)
	ErrUserLimitRace   = newError(KindIneligible, ErrCodeUserLimitExceeded, ReasonUserLimitReached)
)

// AsAppError extracts an AppError, wrapping anything else as internal
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(err)
}
