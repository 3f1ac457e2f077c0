package errors

import (
	"net/http"
)

// NewError creates a LucidError with full control over every field.
//
// Example:
//
//	err := NewError(InternalError, "render failed", 500, "req_123", nil, tmplErr)
func NewError(errType ErrorType, message string, code int, requestID string, details map[string]interface{}, err error) *LucidError {
	return &LucidError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewValidationError creates a 400 error for malformed requests, such as:
//   - bodies that are not valid JSON
//   - unknown backend kinds
//   - fields failing struct validation
func NewValidationError(requestID, message string, validationDetails map[string]interface{}) *LucidError {
	return &LucidError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		Details:   validationDetails,
	}
}

// NewBackendError creates a 502 error for failures reported by a model
// backend: network errors, non-2xx answers, missing credentials or empty
// choice lists. The cause is kept for logging and errors.Is.
func NewBackendError(requestID, message string, err error) *LucidError {
	return &LucidError{
		Type:      BackendError,
		Message:   message,
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewRateLimitError creates a 429 error.
func NewRateLimitError(requestID string, retryAfter int) *LucidError {
	return &LucidError{
		Type:      RateLimitError,
		Message:   "Rate limit exceeded",
		Code:      http.StatusTooManyRequests,
		RequestID: requestID,
		Details: map[string]interface{}{
			"retry_after": retryAfter,
		},
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(requestID string, err error) *LucidError {
	return &LucidError{
		Type:      InternalError,
		Message:   "An internal error occurred",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}
