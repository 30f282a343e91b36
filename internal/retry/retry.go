// Package retry wraps calls to external extraction backends with exponential
// backoff.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	perrors "github.com/p-blackswan/tally/internal/errors"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool

	// OnRetry, if set, is called before sleeping ahead of attempt+1.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns sensible retry defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      true,
	}
}

// Value executes fn with exponential backoff and returns its result. Only
// retryable errors are retried.
func Value[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		out     T
		lastErr error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		out, lastErr = fn(ctx)
		if lastErr == nil {
			return out, nil
		}
		if !perrors.IsRetryable(lastErr) || attempt == attempts-1 {
			break
		}

		delay := backoff(cfg, attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr, delay)
		}

		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-time.After(delay):
		}
	}
	return out, lastErr
}

func backoff(cfg Config, attempt int) time.Duration {
	delay := time.Duration(float64(cfg.BaseDelay) * math.Pow(2, float64(attempt)))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if cfg.Jitter {
		delay = time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
	}
	return delay
}
