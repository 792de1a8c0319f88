// Package errors provides custom error types for the Cashlog API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Card & category errors.
var (
	ErrCardNotFound     = &AppError{Code: "CARD_NOT_FOUND", Message: "Card not found", StatusCode: http.StatusNotFound}
	ErrCategoryNotFound = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
)

// Transaction errors.
var (
	ErrTransactionNotFound = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrInvalidDirection    = &AppError{Code: "INVALID_DIRECTION", Message: "Direction must be 'in' or 'out'", StatusCode: http.StatusBadRequest}
)

// Recurring errors.
var (
	ErrRecurringNotFound     = &AppError{Code: "RECURRING_NOT_FOUND", Message: "Recurring definition not found", StatusCode: http.StatusNotFound}
	ErrRecurringNotActive    = &AppError{Code: "RECURRING_NOT_ACTIVE", Message: "Recurring definition is not active", StatusCode: http.StatusConflict}
	ErrRecurringNotPaused    = &AppError{Code: "RECURRING_NOT_PAUSED", Message: "Recurring definition is not paused", StatusCode: http.StatusConflict}
	ErrInstanceNotFound      = &AppError{Code: "INSTANCE_NOT_FOUND", Message: "Recurring instance not found", StatusCode: http.StatusNotFound}
	ErrInstanceNotPending    = &AppError{Code: "INSTANCE_NOT_PENDING", Message: "Recurring instance can no longer be skipped", StatusCode: http.StatusConflict}
	ErrInstanceNotActionable = &AppError{Code: "INSTANCE_NOT_ACTIONABLE", Message: "Recurring instance is in a terminal state", StatusCode: http.StatusConflict}
)
