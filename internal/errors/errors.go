package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// ErrorTypeValidation rejects arguments before any portal request is made
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeTransient covers token expiry, login rejection and quota quirks
	ErrorTypeTransient ErrorType = "transient"
	// ErrorTypeNetwork covers transport failures and unexpected portal status codes
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeProcessing covers pages or images that cannot be parsed
	ErrorTypeProcessing ErrorType = "processing"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeInternal   ErrorType = "internal"
)

var statusCodes = map[ErrorType]int{
	ErrorTypeValidation: http.StatusBadRequest,
	ErrorTypeTransient:  http.StatusServiceUnavailable,
	ErrorTypeNetwork:    http.StatusBadGateway,
	ErrorTypeProcessing: http.StatusUnprocessableEntity,
	ErrorTypeTimeout:    http.StatusGatewayTimeout,
	ErrorTypeNotFound:   http.StatusNotFound,
	ErrorTypeInternal:   http.StatusInternalServerError,
}

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Details != "" {
		msg += " [" + e.Details + "]"
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails attaches diagnostic context such as the plate or page involved
func (e *AppError) WithDetails(format string, args ...interface{}) *AppError {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

func newError(t ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: statusCodes[t],
		Cause:      cause,
	}
}

// NewValidationError is returned for arguments rejected before any network activity
func NewValidationError(message string, cause error) *AppError {
	return newError(ErrorTypeValidation, message, cause)
}

// NewTransientError marks a portal condition that clears up by retrying the
// owning step
func NewTransientError(message string, cause error) *AppError {
	return newError(ErrorTypeTransient, message, cause)
}

func NewNetworkError(message string, cause error) *AppError {
	return newError(ErrorTypeNetwork, message, cause)
}

func NewProcessingError(message string, cause error) *AppError {
	return newError(ErrorTypeProcessing, message, cause)
}

func NewTimeoutError(message string, cause error) *AppError {
	return newError(ErrorTypeTimeout, message, cause)
}

func NewNotFoundError(message string, cause error) *AppError {
	return newError(ErrorTypeNotFound, message, cause)
}

func NewInternalError(message string, cause error) *AppError {
	return newError(ErrorTypeInternal, message, cause)
}

// IsType checks if the error chain carries an AppError of the given type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// Retryable reports whether repeating the failed lookup can succeed. Only
// invalid input is final. A timed out request is retryable even though its
// chain holds context.DeadlineExceeded; callers check their own context.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return !IsType(err, ErrorTypeValidation)
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
