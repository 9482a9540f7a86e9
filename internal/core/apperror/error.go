// Package apperror provides structured error handling for the sales engine.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes grouped by taxonomy.
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"

	// Validation errors (400)
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// Business rule violations (422)
	CodeCurrencyMismatch  = "CURRENCY_MISMATCH"
	CodeAlreadyLinked     = "ALREADY_LINKED"
	CodeNotLinked         = "NOT_LINKED"
	CodeInvalidSourceType = "INVALID_SOURCE_TYPE"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeIncompleteFields  = "INCOMPLETE_REQUIRED_FIELDS"
	CodeUnknownTheme      = "UNKNOWN_BRANDING_THEME"
	CodeSaleLocked        = "SALE_LOCKED"

	// Concurrency (409)
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeConflict               = "CONFLICT"

	// External gateway (502 / 401)
	CodeGatewayAuth        = "GATEWAY_AUTH"
	CodeGatewayUnavailable = "GATEWAY_UNAVAILABLE"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"
)

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, amounts, etc.)
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

// --- Factory functions ---

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
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewCurrencyMismatch is returned when a linked invoice currency differs from the sale currency.
func NewCurrencyMismatch(saleCurrency, importCurrency string) *AppError {
	return &AppError{
		Code:       CodeCurrencyMismatch,
		Message:    "Invoice currency does not match sale currency",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"sale_currency":   saleCurrency,
			"import_currency": importCurrency,
		},
	}
}

// NewAlreadyLinked is returned when an external invoice is already allocated to a sale.
func NewAlreadyLinked(externalInvoiceID string) *AppError {
	return &AppError{
		Code:       CodeAlreadyLinked,
		Message:    "External invoice is already linked",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"external_invoice_id": externalInvoiceID},
	}
}

// NewNotLinked is returned when unlinking an invoice that is not in the sale's linked set.
func NewNotLinked(externalInvoiceID string) *AppError {
	return &AppError{
		Code:       CodeNotLinked,
		Message:    "External invoice is not linked to this sale",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"external_invoice_id": externalInvoiceID},
	}
}

// NewInvalidSourceType is returned when an operation targets a sale of the wrong origin.
func NewInvalidSourceType(expected, actual string) *AppError {
	return &AppError{
		Code:       CodeInvalidSourceType,
		Message:    fmt.Sprintf("Operation requires a %s record", expected),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"expected": expected, "actual": actual},
	}
}

// NewInvalidTransition is returned when a lifecycle transition is not allowed.
func NewInvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("Cannot transition sale from %s to %s", from, to),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"from": from, "to": to},
	}
}

// NewIncompleteFields is returned when the completeness gate rejects a transition.
func NewIncompleteFields(missing []string) *AppError {
	return &AppError{
		Code:       CodeIncompleteFields,
		Message:    fmt.Sprintf("Required fields are missing: %s", strings.Join(missing, ", ")),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"missing_fields": missing},
	}
}

// NewUnknownTheme is returned when a branding theme key cannot be resolved.
// Unknown themes are never defaulted; monetary recalculation is fail-closed.
func NewUnknownTheme(themeKey string) *AppError {
	return &AppError{
		Code:       CodeUnknownTheme,
		Message:    "Unknown branding theme",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"theme_key": themeKey},
	}
}

// NewSaleLocked is returned when mutating money fields or linked invoices on a locked sale.
func NewSaleLocked(saleID any, status string) *AppError {
	return &AppError{
		Code:       CodeSaleLocked,
		Message:    "Sale is locked for commission and cannot be modified",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"sale_id": saleID, "status": status},
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

// NewGatewayAuth is returned when the invoicing gateway rejects credentials.
// The caller must re-authorize; the condition is never retried automatically.
func NewGatewayAuth(message string) *AppError {
	return &AppError{
		Code:       CodeGatewayAuth,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewGatewayUnavailable is returned for transient gateway failures (timeouts, 5xx).
func NewGatewayUnavailable(message string) *AppError {
	return &AppError{
		Code:       CodeGatewayUnavailable,
		Message:    message,
		HTTPStatus: http.StatusBadGateway,
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

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
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

// HasCode checks if error carries the given code.
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

// IsGatewayAuth checks if error is CodeGatewayAuth (reconnect required).
func IsGatewayAuth(err error) bool {
	return HasCode(err, CodeGatewayAuth)
}
