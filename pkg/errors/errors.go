package errors

import (
	"fmt"
	"net/http"
)

// Error codes used by the request-defense layer. Validation failures all
// surface to clients as a generic "Invalid input" message; the code stays
// internal so rejected probes learn nothing about which signature matched.
const (
	CodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	CodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	CodeMalformedStructure   = "MALFORMED_STRUCTURE"
	CodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	CodeDisallowedContent    = "DISALLOWED_CONTENT"
	CodeInvalidEnumValue     = "INVALID_ENUM_VALUE"
	CodeAlertDeliveryFailed  = "ALERT_DELIVERY_FAILED"
	CodeInternalError        = "INTERNAL_ERROR"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(code string, message string) *AppError {
	return NewError(http.StatusBadRequest, code, message)
}

// NewUnauthorizedError creates a 401 Unauthorized error
func NewUnauthorizedError(code string, message string) *AppError {
	return NewError(http.StatusUnauthorized, code, message)
}

// NewForbiddenError creates a 403 Forbidden error
func NewForbiddenError(code string, message string) *AppError {
	return NewError(http.StatusForbidden, code, message)
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(code string, message string) *AppError {
	return NewError(http.StatusNotFound, code, message)
}

// NewTooManyRequestsError creates a 429 Too Many Requests error
func NewTooManyRequestsError(message string) *AppError {
	return NewError(http.StatusTooManyRequests, CodeRateLimitExceeded, message)
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(code string, message string) *AppError {
	return NewError(http.StatusInternalServerError, code, message)
}

// FromError converts a standard error to an AppError.
// If the error is already an AppError, it is returned as-is.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	return NewInternalServerError(
		CodeInternalError,
		fmt.Sprintf("An unexpected error occurred: %s", err.Error()),
	)
}

// GetStatusCode extracts the HTTP status code from an AppError, returns 500 if not an AppError
func GetStatusCode(err error) int {
	if appErr, ok := err.(*AppError); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsValidationCode reports whether a code belongs to the input-validation
// family of errors.
func IsValidationCode(code string) bool {
	switch code {
	case CodePayloadTooLarge, CodeMalformedStructure, CodeMissingRequiredField,
		CodeDisallowedContent, CodeInvalidEnumValue:
		return true
	}
	return false
}
