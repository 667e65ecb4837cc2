package export

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig controls backoff between attempts.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	InitialWait time.Duration `mapstructure:"initial_wait"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

// DefaultRetryConfig retries three times starting at half a second.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     10 * time.Second,
		Multiplier:  2.0,
	}
}

// RetryPersister is a decorator that retries transient save errors with
// exponential backoff and jitter.
type RetryPersister struct {
	inner  Persister
	config RetryConfig
}

// WithRetry wraps a Persister with retry logic.
func WithRetry(p Persister, cfg RetryConfig) Persister {
	return &RetryPersister{inner: p, config: cfg}
}

func (r *RetryPersister) Save(ctx context.Context, blob Blob) error {
	return retry(ctx, r.config, func() error { return r.inner.Save(ctx, blob) })
}

// RetryNotifier retries mail notifications like RetryPersister.
type RetryNotifier struct {
	inner  Notifier
	config RetryConfig
}

// WithRetryNotifier wraps a Notifier with retry logic.
func WithRetryNotifier(n Notifier, cfg RetryConfig) Notifier {
	return &RetryNotifier{inner: n, config: cfg}
}

func (r *RetryNotifier) Mail(ctx context.Context, name string) error {
	return retry(ctx, r.config, func() error { return r.inner.Mail(ctx, name) })
}

func retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	attempts := max(cfg.MaxAttempts, 1)
	var lastErr error
	for attempt := range attempts {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(cfg, attempt)):
		}
	}
	return lastErr
}

func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, ErrPermanent)
}

// backoff computes the wait before the next attempt.
func backoff(cfg RetryConfig, attempt int) time.Duration {
	wait := float64(cfg.InitialWait) * math.Pow(cfg.Multiplier, float64(attempt))
	if wait > float64(cfg.MaxWait) {
		wait = float64(cfg.MaxWait)
	}

	// ±20% jitter.
	wait += wait * 0.2 * (2*rand.Float64() - 1)
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
