// Package errors provides the error taxonomy shared by the intake pipeline,
// the store and the HTTP layer.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrTimeout             = errors.New("operation timed out")
	ErrRateLimit           = errors.New("rate limit exceeded")
	ErrUnavailable         = errors.New("service unavailable")
	ErrNoProvider          = errors.New("no structured extraction provider configured")
	ErrMalformedExtraction = errors.New("malformed structured extraction")
)

// APIError represents a failed call to an external structured-generation API.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s API error (status %d): %s: %v", e.Service, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError creates a new API error.
func NewAPIError(service string, statusCode int, message string) *APIError {
	return &APIError{Service: service, StatusCode: statusCode, Message: message}
}

// Malformed wraps a decoding problem of a structured response.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedExtraction, fmt.Sprintf(format, args...))
}

// IsRetryable returns true if the error is likely transient and worth retrying.
// A cancelled or expired caller context is never retryable.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504, 529:
			return true
		}
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}
