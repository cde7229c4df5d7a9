package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrServiceUnavailable marks failures to obtain a usable reply from the
// text-generation service after the retry policy was exhausted.
var ErrServiceUnavailable = errors.New("text generation service unavailable")

// UnavailableError records which stage gave up and why
type UnavailableError struct {
	Stage    string
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s after %d attempt(s): %v", ErrServiceUnavailable, e.Stage, e.Attempts, e.Err)
}

// Unwrap exposes both the sentinel and the last underlying error
func (e *UnavailableError) Unwrap() []error {
	return []error{ErrServiceUnavailable, e.Err}
}

// StatusError is a non-2xx reply from a provider API
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable reports whether a failed call is worth repeating.
// Client errors other than timeouts and rate limits are permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= 500:
			return true
		case statusErr.StatusCode >= 400:
			return false
		}
	}
	return true
}
