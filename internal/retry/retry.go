// Package retry runs caller-side retries with exponential backoff.
//
// The capture core never retries hardware faults itself; tools that want a
// second chance at opening a camera wrap the call here.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config contains configuration for exponential backoff
type Config struct {
	MaxRetries    int           // Maximum number of retries after the first attempt (default: 3)
	RetryDelay    time.Duration // Initial retry delay (default: 500ms)
	MaxRetryDelay time.Duration // Maximum retry delay cap (default: 5s)
}

// DefaultConfig returns the default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		RetryDelay:    500 * time.Millisecond,
		MaxRetryDelay: 5 * time.Second,
	}
}

// Func is one attempt of the operation being retried
type Func func(ctx context.Context) error

// Do runs fn until it succeeds, the retry budget is spent or ctx is done.
//
// Backoff schedule with the default config:
//   - Retry 1: 500ms
//   - Retry 2: 1s
//   - Retry 3: 2s
//
// The returned error wraps the last failure of fn. Attempts reports how many
// times fn ran.
func Do(ctx context.Context, name string, cfg Config, fn Func) (attempts int, err error) {
	for {
		if err := ctx.Err(); err != nil {
			return attempts, err
		}

		attempts++
		lastErr := fn(ctx)
		if lastErr == nil {
			if attempts > 1 {
				slog.Info("retry: succeeded", "op", name, "attempts", attempts)
			}
			return attempts, nil
		}

		if attempts > cfg.MaxRetries {
			return attempts, fmt.Errorf("retry: %s: giving up after %d attempts: %w", name, attempts, lastErr)
		}

		delay := Backoff(attempts, cfg)
		slog.Warn("retry: attempt failed",
			"op", name,
			"attempt", attempts,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
			"error", lastErr,
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return attempts, fmt.Errorf("retry: %s: %w (last error: %v)", name, ctx.Err(), lastErr)
		}
	}
}

// Backoff returns the delay before retry number attempt (1-based):
// RetryDelay * 2^(attempt-1), capped at MaxRetryDelay.
func Backoff(attempt int, cfg Config) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		return cfg.MaxRetryDelay
	}
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if cfg.MaxRetryDelay > 0 && delay > cfg.MaxRetryDelay {
		delay = cfg.MaxRetryDelay
	}
	return delay
}
