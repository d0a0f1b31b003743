package agent

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures exponential backoff with jitter.
type RetryConfig struct {
	MaxAttempts uint32
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Jitter      float64 // fraction in [0, 1): adds up to Jitter*capped extra delay
}

// DefaultRetryConfig is a general-purpose default, distinct from the
// LLM-specific preset below.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, MinDelay: 300 * time.Millisecond, MaxDelay: 30 * time.Second, Jitter: 0.2}
}

// LLMRetryConfig is the preset used for LLM driver calls (spec §4.2.2):
// 3 attempts, 1s base, 60s cap, 20% jitter.
func LLMRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, MinDelay: time.Second, MaxDelay: 60 * time.Second, Jitter: 0.2}
}

// NetworkRetryConfig is the preset for generic network calls.
func NetworkRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, MinDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second, Jitter: 0.1}
}

// ChannelRetryConfig is the preset for channel-adapter send retries.
func ChannelRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, MinDelay: 400 * time.Millisecond, MaxDelay: 15 * time.Second, Jitter: 0.1}
}

// computeBackoff returns min_delay * 2^attempt capped at max_delay,
// plus multiplicative jitter in [0, jitter) of the capped value.
func computeBackoff(cfg RetryConfig, attempt uint32) time.Duration {
	base := cfg.MinDelay * time.Duration(math.Pow(2, float64(attempt)))
	if base <= 0 || base > cfg.MaxDelay {
		base = cfg.MaxDelay
	}
	if cfg.Jitter <= 0 {
		return base
	}
	frac := rand.Float64() // [0,1)
	withJitter := base + time.Duration(float64(base)*frac*cfg.Jitter)
	if withJitter > cfg.MaxDelay {
		withJitter = cfg.MaxDelay
	}
	return withJitter
}

// Outcome is the result of a retried operation.
type Outcome[T any] struct {
	Result   T
	Success  bool
	LastErr  error
	Attempts uint32
}

// Retry runs operation up to cfg.MaxAttempts times. shouldRetry
// classifies a failure as transient (retry) or permanent (stop
// immediately). retryAfter, if non-nil, lets the error carry a
// server-provided hint (e.g. HTTP Retry-After) that overrides the
// computed backoff, capped at cfg.MaxDelay. Retry returns as soon as
// ctx is done.
func Retry[T any](ctx context.Context, cfg RetryConfig, operation func(ctx context.Context, attempt uint32) (T, error), shouldRetry func(error) bool, retryAfter func(error) (time.Duration, bool)) Outcome[T] {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 1
	}

	var lastErr error
	var zero T
	for attempt := uint32(0); attempt < maxAttempts; attempt++ {
		result, err := operation(ctx, attempt)
		if err == nil {
			return Outcome[T]{Result: result, Success: true, Attempts: attempt + 1}
		}
		lastErr = err

		isLast := attempt+1 >= maxAttempts
		if isLast || (shouldRetry != nil && !shouldRetry(err)) {
			return Outcome[T]{Result: zero, Success: false, LastErr: err, Attempts: attempt + 1}
		}

		delay := computeBackoff(cfg, attempt)
		if retryAfter != nil {
			if hint, ok := retryAfter(err); ok {
				delay = hint
				if delay > cfg.MaxDelay {
					delay = cfg.MaxDelay
				}
			}
		}

		select {
		case <-ctx.Done():
			return Outcome[T]{Result: zero, Success: false, LastErr: ctx.Err(), Attempts: attempt + 1}
		case <-time.After(delay):
		}
	}
	return Outcome[T]{Result: zero, Success: false, LastErr: lastErr, Attempts: maxAttempts}
}
