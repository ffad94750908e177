// Package retry provides exponential backoff with jitter for reconnect
// scheduling and upstream calls.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy defines backoff behavior. The zero value is not usable; construct
// via NewPolicy or DefaultPolicy.
type Policy struct {
	BaseDelay     time.Duration // Base delay before the first retry
	MaxDelay      time.Duration // Maximum delay between retries
	BackoffFactor float64       // Exponential backoff multiplier
	JitterFactor  float64       // Jitter factor to prevent thundering herd

	// rnd returns a value in [0,1). Injectable so tests get deterministic
	// schedules.
	rnd func() float64
}

// NewPolicy creates a backoff policy with the given bounds.
func NewPolicy(base, max time.Duration, factor, jitter float64) *Policy {
	return &Policy{
		BaseDelay:     base,
		MaxDelay:      max,
		BackoffFactor: factor,
		JitterFactor:  jitter,
		rnd:           rand.Float64,
	}
}

// DefaultPolicy returns the default reconnect backoff policy.
func DefaultPolicy() *Policy {
	return NewPolicy(1*time.Second, 30*time.Second, 2.0, 0.1)
}

// WithRand replaces the random source. Used by tests.
func (p *Policy) WithRand(rnd func() float64) *Policy {
	p.rnd = rnd
	return p
}

// Delay calculates the delay for the given attempt number, starting at 0.
func (p *Policy) Delay(attempt int) time.Duration {
	// Calculate exponential backoff
	backoff := float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt))

	// Apply jitter to prevent thundering herd
	jitter := backoff * p.JitterFactor * (p.rnd() - 0.5) * 2
	delay := time.Duration(backoff + jitter)

	// Cap at maximum delay
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if delay < 0 {
		delay = 0
	}

	return delay
}

// Operation is an operation that can be retried.
type Operation func() error

// Config bundles a policy with attempt bounds and a retryability classifier.
type Config struct {
	Policy      *Policy
	MaxAttempts int
	// Retryable reports whether the error is worth another attempt. A nil
	// classifier retries everything.
	Retryable func(error) bool
}

// DefaultConfig returns retry configuration for upstream HTTP calls.
func DefaultConfig() Config {
	return Config{
		Policy:      NewPolicy(100*time.Millisecond, 5*time.Second, 2.0, 0.1),
		MaxAttempts: 3,
	}
}

// Do executes an operation with exponential backoff retry logic.
func Do(ctx context.Context, config Config, operation Operation) error {
	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		// Check if context is cancelled
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Execute the operation
		err := operation()
		if err == nil {
			return nil // Success
		}

		lastErr = err

		// Check if error is retryable
		if config.Retryable != nil && !config.Retryable(err) {
			return err // Non-retryable error
		}

		// Don't wait after the last attempt
		if attempt == config.MaxAttempts-1 {
			break
		}

		// Wait before next attempt
		timer := time.NewTimer(config.Policy.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxAttempts, lastErr)
}
