package common

import (
	"errors"
	"net/http"
)

// Stable machine-readable error codes surfaced by the pricing API.
const (
	CodePriceBookNotFound = "PRICE_BOOK_NOT_FOUND"
	CodeTaxRuleNotFound   = "TAX_RULE_NOT_FOUND"
	CodePromoCodeNotFound = "PROMO_CODE_NOT_FOUND"

	CodeInvalidDiscountValue = "INVALID_DISCOUNT_VALUE"
	CodeDiscountExceeds100   = "DISCOUNT_EXCEEDS_100"
	CodeInvalidDateRange     = "INVALID_DATE_RANGE"
	CodeInvalidTaxRate       = "INVALID_TAX_RATE"
	CodeUnknownOptionID      = "UNKNOWN_OPTION_ID"
	CodeCurrencyMismatch     = "CURRENCY_MISMATCH"

	CodePromoCodeExpired           = "PROMO_CODE_EXPIRED"
	CodePromoCodeUsageLimitReached = "PROMO_CODE_USAGE_LIMIT_REACHED"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// NotFoundError builds a 404-class domain error.
func NotFoundError(code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: http.StatusNotFound}
}

// ValidationError builds a 422-class domain error raised before pricing runs.
func ValidationError(code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: http.StatusUnprocessableEntity}
}

// ExhaustionError builds an error for expired or used-up discount sources. The
// class is kept distinct from not-found so clients can render "expired" rather
// than "not recognised".
func ExhaustionError(code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: http.StatusGone}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// ErrorCode extracts the machine-readable code, or empty when not an AppError.
func ErrorCode(err error) string {
	var target *AppError
	if errors.As(err, &target) && target != nil {
		return target.Code
	}
	return ""
}

// WriteError renders err as the canonical JSON error payload, mapping unknown
// errors to a 500 with an INTERNAL code.
func WriteError(w http.ResponseWriter, err error) {
	var app *AppError
	if errors.As(err, &app) && app != nil {
		status := app.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		JSONError(w, status, app.Code, app.Message, app.Details)
		return
	}
	JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
