package errors

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int

	// InitialBackoff is the pause after the first failed attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the pause between attempts.
	MaxBackoff time.Duration

	// BackoffFactor multiplies the pause after each attempt.
	BackoffFactor float64

	// Jitter is the random jitter factor (0.0-1.0).
	Jitter float64

	// RetryableFunc overrides the default check (IsRetryable).
	RetryableFunc func(error) bool
}

// DefaultRetry suits one-time setup that talks to slow external resources.
var DefaultRetry = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// NoRetry disables retries.
var NoRetry = RetryConfig{
	MaxAttempts: 1,
}

// Retry runs fn until it succeeds, returns a non-retryable error,
// exhausts MaxAttempts, or ctx is done. It returns the number of
// attempts made and the last error wrapped in a CategorizedError.
func Retry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) (int, error) {
	isRetryable := cfg.RetryableFunc
	if isRetryable == nil {
		isRetryable = IsRetryable
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	backoff := cfg.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, &CategorizedError{Err: err, Category: CategoryFatal, Attempts: attempt - 1, Context: "context cancelled"}
		}

		err := fn(ctx)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return attempt, &CategorizedError{Err: err, Category: Categorize(err), Attempts: attempt}
		}

		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(withJitter(backoff, cfg.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, &CategorizedError{Err: ctx.Err(), Category: CategoryFatal, Attempts: attempt, Context: "context cancelled during backoff"}
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffFactor)
		if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return maxAttempts, &CategorizedError{
		Err:      lastErr,
		Category: CategoryFatal,
		Attempts: maxAttempts,
		Context:  "max retries exceeded",
	}
}

// withJitter returns base +/- (base * jitter * random).
func withJitter(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 || base <= 0 {
		return base
	}
	delta := float64(base) * jitter * (rand.Float64()*2 - 1)
	return time.Duration(float64(base) + delta)
}

// RetryOption configures retry behavior.
type RetryOption func(*RetryConfig)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) RetryOption {
	return func(cfg *RetryConfig) {
		cfg.MaxAttempts = n
	}
}

// WithInitialBackoff sets the initial backoff duration.
func WithInitialBackoff(d time.Duration) RetryOption {
	return func(cfg *RetryConfig) {
		cfg.InitialBackoff = d
	}
}

// WithMaxBackoff sets the maximum backoff duration.
func WithMaxBackoff(d time.Duration) RetryOption {
	return func(cfg *RetryConfig) {
		cfg.MaxBackoff = d
	}
}

// WithJitter sets the jitter factor.
func WithJitter(j float64) RetryOption {
	return func(cfg *RetryConfig) {
		cfg.Jitter = j
	}
}

// WithRetryableFunc sets a custom retryability check.
func WithRetryableFunc(fn func(error) bool) RetryOption {
	return func(cfg *RetryConfig) {
		cfg.RetryableFunc = fn
	}
}

// NewRetryConfig creates a retry configuration from DefaultRetry and opts.
func NewRetryConfig(opts ...RetryOption) RetryConfig {
	cfg := DefaultRetry
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
