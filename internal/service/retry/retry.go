// Package retry provides exponential backoff retry for transient
// upstream failures. Every external call in the pipeline is wrapped by
// it, together with the rate limiter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config holds the retry policy for one external API.
type Config struct {
	MaxRetries   int // retries after the first attempt
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultConfig matches the typical upstream API policy.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// HTTPError carries an upstream status code for retry classification.
type HTTPError struct {
	Status int
	Msg    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Msg)
}

// retryableError marks an error as transient regardless of its type.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable wraps err so the handler will retry it.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// retryableStatuses are the upstream statuses worth retrying.
var retryableStatuses = map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true}

// IsRetryable reports whether err should be retried: an explicitly
// wrapped transient error, or an HTTP error with a retryable status.
// All other errors propagate immediately.
func IsRetryable(err error) bool {
	var re *retryableError
	if errors.As(err, &re) {
		return true
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return retryableStatuses[he.Status]
	}
	return false
}

// Do executes fn, retrying retryable failures up to cfg.MaxRetries with
// delay min(initial*multiplier^attempt, max). Exhaustion returns the
// last error wrapped with the attempt count.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}

	var lastErr error
	delay := cfg.InitialDelay
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt+1, err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt >= cfg.MaxRetries {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff: %w", ctx.Err())
		case <-timer.C:
		}

		next := float64(delay) * cfg.Multiplier
		if next > float64(cfg.MaxDelay) {
			delay = cfg.MaxDelay
		} else {
			delay = time.Duration(next)
		}
	}
	return fmt.Errorf("retry exhausted after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}

// DoWithResult executes fn with retry and returns both result and error.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}

// Backoff returns the delay before the given retry attempt (0-based),
// shared with the work queue's reschedule policy.
func Backoff(cfg Config, attempt int) time.Duration {
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	d := float64(cfg.InitialDelay)
	for i := 0; i < attempt; i++ {
		d *= cfg.Multiplier
		if d >= float64(cfg.MaxDelay) {
			return cfg.MaxDelay
		}
	}
	if d > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(d)
}
