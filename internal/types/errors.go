package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationUnitSize      ErrorCode = "validation_upgrade_unit_size"
	ErrCodeValidationUnitRange     ErrorCode = "validation_upgrade_unit_range"
	ErrCodeValidationMissingReason ErrorCode = "validation_missing_reason"
	ErrCodeValidationAmount        ErrorCode = "validation_invalid_amount"
	ErrCodeValidationDisco         ErrorCode = "validation_invalid_disco"
	ErrCodeValidationMeterNumber   ErrorCode = "validation_invalid_meter_number"
	ErrCodeValidationMissingField  ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidJSON   ErrorCode = "validation_invalid_json"
	ErrCodeValidationCursor        ErrorCode = "validation_invalid_cursor"

	// Auth (401)
	ErrCodeAuthKeyMissing ErrorCode = "auth_api_key_missing"
	ErrCodeAuthKeyInvalid ErrorCode = "auth_api_key_invalid"
	ErrCodeAuthKeyRevoked ErrorCode = "auth_api_key_revoked"

	// Permission (403)
	ErrCodePermissionRole           ErrorCode = "permission_role_insufficient"
	ErrCodePermissionVendorMismatch ErrorCode = "permission_vendor_mismatch"
	ErrCodeVendorNotApproved        ErrorCode = "vendor_not_approved"

	// Not Found (404)
	ErrCodeNotFoundVendor   ErrorCode = "not_found_vendor"
	ErrCodeNotFoundUpgrade  ErrorCode = "not_found_upgrade_entry"
	ErrCodeNotFoundPricing  ErrorCode = "not_found_disco_pricing"
	ErrCodeNotFoundCustomer ErrorCode = "not_found_customer"

	// Conflict (409)
	ErrCodeInvalidStateTransition ErrorCode = "invalid_state_transition"
	ErrCodeCapacityBelowUsage     ErrorCode = "capacity_below_usage"
	ErrCodeConflictConcurrent     ErrorCode = "conflict_concurrent_modification"
	ErrCodeConflictMeterNumber    ErrorCode = "conflict_meter_number_exists"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamQueue      ErrorCode = "upstream_queue_unavailable"
	ErrCodeUpstreamWebhook    ErrorCode = "upstream_webhook_unavailable"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized // 401
	case strings.HasPrefix(s, "permission_"), s == string(ErrCodeVendorNotApproved):
		return http.StatusForbidden // 403
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "conflict_"),
		s == string(ErrCodeInvalidStateTransition),
		s == string(ErrCodeCapacityBelowUsage):
		return http.StatusConflict // 409
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the platform.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
// This is useful for adding context without mutating the original error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// NewInvalidTransition builds the standard error for an upgrade entry event
// attempted against a state that does not permit it. The entry is left
// unchanged by the caller; this error carries both states for diagnostics.
func NewInvalidTransition(entryID string, from UpgradeStatus, event string) *AppError {
	return NewAppErrorWithDetails(
		ErrCodeInvalidStateTransition,
		fmt.Sprintf("entry %s in status %q does not permit %s", entryID, from, event),
		nil,
		map[string]any{
			"entry_id": entryID,
			"status":   string(from),
			"event":    event,
		},
	)
}

// NewCapacityBelowUsage builds the error for an admin reduction that would
// leave effective capacity under the current customer count. floor is the
// minimum capacity the vendor can be reduced to (its current usage).
func NewCapacityBelowUsage(vendorID string, floor int, requested int) *AppError {
	return NewAppErrorWithDetails(
		ErrCodeCapacityBelowUsage,
		"capacity reduction would drop below current customer usage",
		nil,
		map[string]any{
			"vendor_id":       vendorID,
			"floor":           floor,
			"requested_limit": requested,
		},
	)
}
