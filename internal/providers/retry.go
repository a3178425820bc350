package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// RetryConfig controls retry behavior for transient API failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig retries rate limits and server errors a few times with
// exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   15 * time.Second,
	}
}

// apiError is an HTTP-level failure from a provider.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.status, e.body)
}

// retryable reports whether the error is worth another attempt: rate limits,
// server errors, and transport failures. 4xx other than 429 are permanent,
// and so is a malformed body on an otherwise successful response.
func retryable(err error) bool {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status == 429 || ae.status >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// RetryDo runs fn with exponential backoff until it succeeds, exhausts the
// retry budget, or hits a permanent error.
func RetryDo[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	delay := cfg.BaseDelay

	for attempt := 0; ; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if attempt >= cfg.MaxRetries || !retryable(err) {
			return zero, err
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, cfg.MaxDelay)
	}
}
