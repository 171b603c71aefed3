package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"songreel/internal/logging"
)

// ErrRetriesExhausted wraps the final underlying failure after every retry
// attempt has been spent.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy configures the retry-with-backoff layer of a Guard.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	BackoffFactor float64
	// Retryable decides whether a failure is worth another attempt. When nil,
	// every error except a breaker rejection or context cancellation retries.
	Retryable func(error) bool
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Second
	}
	if p.BackoffFactor < 1 {
		p.BackoffFactor = 2.0
	}
	return p
}

// Guard wraps a fallible operation with retry-with-backoff and an optional
// circuit breaker. The breaker is consulted per attempt inside the retry loop,
// so an open breaker short-circuits the remaining attempts without spending
// backoff delay against a known-failing dependency.
//
// Guarded operations must be safe to repeat; the Guard assumes idempotence but
// cannot enforce it.
type Guard struct {
	name    string
	retry   RetryPolicy
	breaker *Breaker
	logger  *slog.Logger
	sleep   func(context.Context, time.Duration) error
}

// GuardOption customizes Guard construction.
type GuardOption func(*Guard)

// WithLogger attaches a logger for attempt-level diagnostics.
func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithSleeper overrides how backoff waits are performed. Used in tests.
func WithSleeper(sleep func(context.Context, time.Duration) error) GuardOption {
	return func(g *Guard) {
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// NewGuard builds a Guard for the named operation. A nil breaker disables the
// circuit-breaking layer (retry-only guards are used for local store calls).
func NewGuard(name string, retry RetryPolicy, breaker *Breaker, opts ...GuardOption) *Guard {
	guard := &Guard{
		name:    name,
		retry:   retry.normalized(),
		breaker: breaker,
		logger:  logging.NewNop(),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(guard)
	}
	return guard
}

// Do invokes op under the guard's retry and breaker policies. The error
// returned after exhausting attempts wraps ErrRetriesExhausted around the last
// underlying failure; a breaker rejection is returned as-is without an attempt.
func (g *Guard) Do(ctx context.Context, op func(context.Context) error) error {
	delay := g.retry.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= g.retry.MaxAttempts; attempt++ {
		var trial bool
		if g.breaker != nil {
			var err error
			trial, err = g.breaker.allow()
			if err != nil {
				g.logger.Warn("call rejected by open breaker",
					logging.String("operation", g.name),
					logging.Int("attempt", attempt),
				)
				return err
			}
		}

		err := op(ctx)
		if err == nil {
			if g.breaker != nil {
				g.breaker.success()
			}
			return nil
		}
		if g.breaker != nil {
			g.breaker.failure(trial)
		}
		lastErr = err

		if !g.retryable(err) {
			return err
		}
		if attempt == g.retry.MaxAttempts {
			break
		}

		g.logger.Warn("attempt failed, retrying",
			logging.String("operation", g.name),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := g.sleep(ctx, delay); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * g.retry.BackoffFactor)
	}

	return fmt.Errorf("%w: %s: failed after %d attempts: %w", ErrRetriesExhausted, g.name, g.retry.MaxAttempts, lastErr)
}

func (g *Guard) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrBreakerOpen) {
		return false
	}
	if g.retry.Retryable != nil {
		return g.retry.Retryable(err)
	}
	return true
}

// DoValue invokes op under the guard's policies and returns its value.
func DoValue[T any](ctx context.Context, g *Guard, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := g.Do(ctx, func(ctx context.Context) error {
		value, err := op(ctx)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
