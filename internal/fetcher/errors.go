package fetcher

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
	// Such requests are never retried.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrTransientStatus marks HTTP statuses that are worth retrying.
	ErrTransientStatus = errors.New("transient HTTP status")

	// ErrPermanentStatus marks HTTP statuses that will not change on retry.
	ErrPermanentStatus = errors.New("permanent HTTP status")

	// ErrRetriesExhausted is returned when every attempt failed transiently.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// retryableStatuses are the response codes that trigger another attempt.
var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// StatusError reports a non-2xx response.
type StatusError struct {
	// URL is the requested address.
	URL string

	// StatusCode is the HTTP status of the final response.
	StatusCode int

	// RetryAfter is the server's Retry-After hint, zero when absent.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// Retryable reports whether the status is one of the transient codes.
func (e *StatusError) Retryable() bool {
	return retryableStatuses[e.StatusCode]
}

// Unwrap lets callers match ErrTransientStatus or ErrPermanentStatus.
func (e *StatusError) Unwrap() error {
	if e.Retryable() {
		return ErrTransientStatus
	}
	return ErrPermanentStatus
}
