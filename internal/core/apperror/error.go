// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal        = "INTERNAL_ERROR"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Business rule violations (422)
	CodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	CodeProviderInactive   = "PROVIDER_INACTIVE"
	CodeNoEligibleRequests = "NO_ELIGIBLE_REQUESTS"

	// Lifecycle violations (409)
	CodeInvalidState           = "INVALID_STATE"
	CodeImmutableState         = "IMMUTABLE_STATE"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Authorization errors (401)
	CodeUnauthorized = "UNAUTHORIZED"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict    = "CONFLICT"
	CodeIdempotency = "IDEMPOTENCY_CONFLICT"
)

// AppError is the standard error type of the service.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (offending ids, amounts, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s %v not found", entity, id),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInvalidState is returned when an operation is attempted from a disallowed lifecycle state.
func NewInvalidState(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidState,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewImmutableState is returned on attempts to edit a record that can no longer change.
func NewImmutableState(entity string, id any, state string) *AppError {
	return &AppError{
		Code:       CodeImmutableState,
		Message:    fmt.Sprintf("%s %v is %s and can no longer be modified", entity, id, state),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id, "state": state},
	}
}

// NewInsufficientFunds creates a balance shortage error (422).
// Amounts are passed preformatted so the message reads "required 500, available 300".
func NewInsufficientFunds(providerID int64, required, available string) *AppError {
	return &AppError{
		Code:       CodeInsufficientFunds,
		Message:    fmt.Sprintf("provider %d insufficient balance: required %s, available %s", providerID, required, available),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"provider_id": providerID,
			"required":    required,
			"available":   available,
		},
	}
}

// NewProviderInactive creates an inactive provider error (422)
func NewProviderInactive(providerID int64) *AppError {
	return &AppError{
		Code:       CodeProviderInactive,
		Message:    fmt.Sprintf("provider %d is inactive", providerID),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"provider_id": providerID},
	}
}

// NewNoEligibleRequests is returned when a posting batch selects nothing.
func NewNoEligibleRequests(ids []int64) *AppError {
	return &AppError{
		Code:       CodeNoEligibleRequests,
		Message:    fmt.Sprintf("none of the requests %s are eligible for posting", JoinIDs(ids)),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"request_ids": ids},
	}
}

// NewExternalService wraps a failure of a remote collaborator (502).
func NewExternalService(service, message string) *AppError {
	return &AppError{
		Code:       CodeExternalService,
		Message:    fmt.Sprintf("%s: %s", service, message),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"service": service},
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another user. Please refresh and try again.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewIdempotencyConflict creates error when operation is already in progress
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Operation already in progress or completed",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewIdempotencyMismatch is returned when the same idempotency key is reused for
// a different request (different operation/body hash).
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Idempotency key mismatch",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// --- Helper functions ---

// JoinIDs renders ids as "1, 2, 3" for error messages.
func JoinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, v := range ids {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool {
	return HasCode(err, CodeConcurrentModification)
}
