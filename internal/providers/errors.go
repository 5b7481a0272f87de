package providers

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind classifies an inference failure for retry decisions.
type ErrorKind string

const (
	// KindRateLimited maps to HTTP 429 / quota exhaustion. Retryable, but the
	// caller should wait at least RetryAfter (or 1s) before the next attempt.
	KindRateLimited ErrorKind = "rate_limited"

	// KindTransient covers timeouts, connection resets, and 5xx responses.
	KindTransient ErrorKind = "transient"

	// KindPermanent covers auth failures, bad requests, and anything a retry
	// cannot fix.
	KindPermanent ErrorKind = "permanent"
)

// InferError wraps a provider failure with its classification.
type InferError struct {
	Kind     ErrorKind
	Provider string
	Err      error

	// RetryAfter is a provider-suggested wait, zero when unknown.
	RetryAfter time.Duration
}

func (e *InferError) Error() string {
	return fmt.Sprintf("%s inference failed (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *InferError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is a rate-limit failure.
func IsRateLimited(err error) bool {
	var ie *InferError
	return errors.As(err, &ie) && ie.Kind == KindRateLimited
}

// IsRetryable reports whether err is worth retrying within an attempt budget.
// Unclassified errors are treated as transient: the pipeline prefers wasting
// a retry over dropping an image on an unknown failure.
func IsRetryable(err error) bool {
	var ie *InferError
	if errors.As(err, &ie) {
		return ie.Kind != KindPermanent
	}
	return true
}

// RetryAfterHint extracts the provider-suggested wait from err, zero if none.
func RetryAfterHint(err error) time.Duration {
	var ie *InferError
	if errors.As(err, &ie) {
		return ie.RetryAfter
	}
	return 0
}

// classifyStatus maps an HTTP status code to an ErrorKind.
func classifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusRequestTimeout, code >= 500:
		return KindTransient
	default:
		return KindPermanent
	}
}
