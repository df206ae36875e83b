package common

import (
	"errors"
	"net/http"
)

// Error codes shared across the engine. Validation and business-rule
// conditions are resolved at the call site; transport failures propagate to
// the presentation layer.
const (
	CodeValidation   = "VALIDATION"
	CodeConflict     = "CONFLICT"
	CodeNotFound     = "NOT_FOUND"
	CodeInvalidState = "INVALID_STATE"
	CodeOverpayment  = "OVERPAYMENT"
	CodeNotSettled   = "NOT_SETTLED"
	CodePartialFetch = "PARTIAL_FETCH"
	CodeUnavailable  = "UNAVAILABLE"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL"
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

// ValidationError reports locally recoverable bad input.
func ValidationError(message string) *AppError {
	return NewAppError(CodeValidation, message, http.StatusBadRequest, nil)
}

// ConflictError reports state that already changed elsewhere, such as a
// session already open or closed.
func ConflictError(message string) *AppError {
	return NewAppError(CodeConflict, message, http.StatusConflict, nil)
}

// NotFoundError reports an unknown tab or session identifier.
func NotFoundError(message string) *AppError {
	return NewAppError(CodeNotFound, message, http.StatusNotFound, nil)
}

// InvalidStateError reports an entity that exists but cannot take part in
// the requested operation, such as a closed tab added to a checkout.
func InvalidStateError(message string) *AppError {
	return NewAppError(CodeInvalidState, message, http.StatusConflict, nil)
}

// OverpaymentError rejects a single payment that exceeds the balance due.
// The rest of the ledger stays intact.
func OverpaymentError(message string, details any) *AppError {
	return &AppError{Code: CodeOverpayment, Message: message, HTTPStatus: http.StatusUnprocessableEntity, Details: details}
}

// NotSettledError reports a finalize attempted while a balance remains.
func NotSettledError(message string) *AppError {
	return NewAppError(CodeNotSettled, message, http.StatusUnprocessableEntity, nil)
}

// PartialFetchError reports that some tabs in a group failed to load. The
// details carry the tab numbers that failed so the caller can retry them.
func PartialFetchError(message string, failedTabs []string) *AppError {
	return &AppError{Code: CodePartialFetch, Message: message, HTTPStatus: http.StatusBadGateway, Details: failedTabs}
}

// UnavailableError reports a transport or server failure talking to the
// backend. Money-moving operations are never retried silently.
func UnavailableError(message string, err error) *AppError {
	return NewAppError(CodeUnavailable, message, http.StatusBadGateway, err)
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// CodeOf returns the taxonomy code carried by err, or CodeInternal when the
// error is untyped.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the provided taxonomy code.
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}
