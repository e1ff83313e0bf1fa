package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the different ways a cache request can fail
type ErrorType string

const (
	ErrorTypePrecondition ErrorType = "precondition"
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeEmptyBody    ErrorType = "empty_body"
	ErrorTypeNotAnImage   ErrorType = "not_an_image"
	ErrorTypeWriteFailed  ErrorType = "write_failed"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeStore        ErrorType = "store"
	ErrorTypeUnknown      ErrorType = "unknown"
)

// Error is a typed cache error. Code carries the HTTP status when one is known.
type Error struct {
	Type    ErrorType
	Message string
	URL     string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Type, e.Message)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	if e.URL != "" {
		msg += " [" + e.URL + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given type
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates an error of the given type around a cause
func Wrap(t ErrorType, message string, err error) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// WithURL attaches the request URL and returns the same error
func (e *Error) WithURL(url string) *Error {
	e.URL = url
	return e
}

// TypeOf extracts the ErrorType of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given ErrorType
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsTransient reports whether a failed download may succeed if requested
// again later: timeouts, transport errors and retryable HTTP statuses.
func IsTransient(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeTimeout:
		return true
	case ErrorTypeNetwork:
		return IsRetryableStatusCode(StatusCode(err))
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a transient failure
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0, 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
