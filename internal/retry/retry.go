// Package retry provides a generic retry executor with exponential backoff
// and jitter. Whether an error is worth retrying is decided by a
// caller-supplied classifier; the engine itself knows nothing about
// platforms or transports.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/gopost/publisher/internal/domain"
)

// Classification is the verdict of a Classifier.
type Classification int

const (
	// Fatal errors fail immediately with no retry.
	Fatal Classification = iota
	// Retryable errors are retried with backoff until attempts run out.
	Retryable
)

// Classifier maps an error to Fatal or Retryable. Classifiers are pure
// functions supplied by the adapter, since retryability is
// platform-specific.
type Classifier func(error) Classification

// Operation is one retriable unit of work. The attempt number starts at 1
// so callers can record every attempt in the execution ledger themselves.
type Operation[T any] func(ctx context.Context, attempt int) (T, error)

// SleepFunc waits for the given duration or until the context is done.
// Injectable for tests.
type SleepFunc func(ctx context.Context, d time.Duration) error

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 1 * time.Second
	defaultMaxDelay    = 60 * time.Second
	jitterFraction     = 0.25
	backoffMultiplier  = 2.0
)

// Config controls backoff behavior.
type Config struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
	// Sleep overrides the backoff wait, used by tests with a fake clock.
	Sleep SleepFunc
}

// DefaultConfig returns the production backoff settings: 5 total attempts,
// 1s base delay doubled per attempt, ±25% jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   defaultBaseDelay,
		MaxDelay:    defaultMaxDelay,
	}
}

func (c *Config) setDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.Sleep == nil {
		c.Sleep = sleepContext
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff returns the jittered delay before the retry following the given
// attempt: base * 2^(attempt-1) with ±25% uniform jitter, capped at
// MaxDelay before jitter is applied.
func (c Config) Backoff(attempt int) time.Duration {
	delay := float64(c.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= backoffMultiplier
	}
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	jitter := delay * jitterFraction * (2*rand.Float64() - 1)
	return time.Duration(delay + jitter)
}

// Execute runs op until it succeeds, fails fatally, is cancelled, or
// exhausts all attempts. After the final failed attempt the last error is
// wrapped as RetryExhausted. Cancellation is checked before every retry
// attempt and interrupts the backoff sleep.
func Execute[T any](ctx context.Context, cfg Config, op Operation[T], classify Classifier) (T, error) {
	cfg.setDefaults()

	var zero T
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, domain.WrapError(domain.KindCancelled, err, "cancelled before attempt %d", attempt)
		}

		result, err := op(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if classify(err) == Fatal {
			return zero, err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		if err := cfg.Sleep(ctx, cfg.Backoff(attempt)); err != nil {
			return zero, domain.WrapError(domain.KindCancelled, err, "cancelled during backoff after attempt %d", attempt)
		}
	}

	return zero, domain.WrapError(domain.KindRetryExhausted, lastErr, "gave up after %d attempts", cfg.MaxAttempts)
}
