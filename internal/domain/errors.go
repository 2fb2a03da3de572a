package domain

import (
	"errors"
	"time"
)

// Common domain errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	// Storage planning errors. Neither escapes the planner as a failure:
	// an unmeasurable tier counts as full, and no usable tier yields NoCache.
	ErrMeasurementUnavailable = errors.New("free space measurement unavailable")
	ErrNoUsableTier           = errors.New("no storage tier has usable space")

	// Cache errors
	ErrCacheDisabled = errors.New("disk cache disabled")
	ErrEntryTooLarge = errors.New("entry exceeds disk cache budget")
	ErrCacheMiss     = errors.New("cache miss")

	// Download errors
	ErrOffline        = errors.New("network unavailable")
	ErrHostNotAllowed = errors.New("host not allowed")
	ErrQueueClosed    = errors.New("download queue closed")
	ErrQueueFull      = errors.New("download queue full")
	ErrBodyTooLarge   = errors.New("response body exceeds limit")
	ErrUnexpectedType = errors.New("response is not an image")
)

// RetryableError represents an error that should trigger a retry.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
}

// Error returns the error message
func (e *RetryableError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "retryable error"
}

// Unwrap returns the underlying error
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error, retryAfter time.Duration) *RetryableError {
	return &RetryableError{Err: err, RetryAfter: retryAfter}
}

// IsRetryable returns true if the error should be retried
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// GetRetryAfter returns the retry duration if the error is retryable
func GetRetryAfter(err error) (time.Duration, bool) {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.RetryAfter, true
	}
	return 0, false
}
