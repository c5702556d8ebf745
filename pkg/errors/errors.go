package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

// Error codes used across the 2FA lifecycle packages
const (
	// Generic errors
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodeMalformedResponse   ErrorCode = "MALFORMED_RESPONSE"
	ErrCodeRateLimitExceeded   ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Authentication errors
	ErrCodeNotAuthenticated   ErrorCode = "NOT_AUTHENTICATED"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"

	// Factor lifecycle errors
	ErrCodeAlreadyEnrolled   ErrorCode = "ALREADY_ENROLLED"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeFactorNotVerified ErrorCode = "FACTOR_NOT_VERIFIED"

	// Challenge lifecycle errors
	ErrCodeChallengeNotFound        ErrorCode = "CHALLENGE_NOT_FOUND"
	ErrCodeChallengeAlreadyConsumed ErrorCode = "CHALLENGE_ALREADY_CONSUMED"
	ErrCodeChallengeExpired         ErrorCode = "CHALLENGE_EXPIRED"

	// Code verification errors
	ErrCodeInvalidCode ErrorCode = "INVALID_CODE"
)

// Error represents a structured error with code, message, and optional details
type Error struct {
	Code    ErrorCode              // Unique error code
	Message string                 // Human-readable error message
	Details map[string]interface{} // Optional additional details
	Err     error                  // Wrapped underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	return MapErrorCodeToHTTPStatus(e.Code)
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrapf wraps an existing error with code and formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
// Returns ErrCodeInternal if the error is not a structured Error
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	// 400 Bad Request
	case ErrCodeInvalidInput:
		return http.StatusBadRequest

	// 401 Unauthorized
	case ErrCodeNotAuthenticated, ErrCodeInvalidCredentials, ErrCodeInvalidCode,
		ErrCodeChallengeExpired:
		return http.StatusUnauthorized

	// 404 Not Found
	case ErrCodeChallengeNotFound:
		return http.StatusNotFound

	// 409 Conflict
	case ErrCodeAlreadyEnrolled, ErrCodeInvalidTransition,
		ErrCodeChallengeAlreadyConsumed, ErrCodeFactorNotVerified:
		return http.StatusConflict

	// 429 Too Many Requests
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests

	// 502 Bad Gateway
	case ErrCodeMalformedResponse:
		return http.StatusBadGateway

	// 503 Service Unavailable
	case ErrCodeUpstreamUnavailable:
		return http.StatusServiceUnavailable

	// 500 Internal Server Error (default)
	case ErrCodeInternal:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// Common error constructors for frequently used errors

// NotAuthenticated creates a "not authenticated" error
func NotAuthenticated(message string) *Error {
	return New(ErrCodeNotAuthenticated, message)
}

// InvalidCredentials creates an "invalid credentials" error with a
// non-distinguishing message so callers cannot tell which check failed
func InvalidCredentials() *Error {
	return New(ErrCodeInvalidCredentials, "invalid credentials")
}

// InvalidCode creates an "invalid code" error with a generic message
func InvalidCode() *Error {
	return New(ErrCodeInvalidCode, "invalid verification code")
}

// InvalidInput creates an "invalid input" error
func InvalidInput(field, reason string) *Error {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason))
}

// UpstreamUnavailable wraps a storage or provider failure
func UpstreamUnavailable(err error, message string) *Error {
	return Wrap(err, ErrCodeUpstreamUnavailable, message)
}

// Internal creates an "internal error"
func Internal(message string) *Error {
	return New(ErrCodeInternal, message)
}

// RateLimitExceeded creates a "rate limit exceeded" error
func RateLimitExceeded(message string) *Error {
	return New(ErrCodeRateLimitExceeded, message)
}
