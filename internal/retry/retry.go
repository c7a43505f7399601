// Package retry provides a bounded retry executor with exponential backoff.
// Every capability call on the interview flow path runs through it, which
// makes the attempt counter an explicit, testable variable instead of an
// implicit recursion parameter.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SleepFunc suspends for d or until ctx is cancelled. Injectable for tests.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor runs operations under a retry policy.
type Executor struct {
	sleep  SleepFunc
	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithSleep sets a custom sleep primitive.
func WithSleep(sleep SleepFunc) Option {
	return func(e *Executor) {
		e.sleep = sleep
	}
}

// WithLogger sets the logger for attempt-level diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// New creates a new Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		sleep:  defaultSleep,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Policy bounds one class of capability call.
type Policy struct {
	// Name identifies the call in logs and wrapped errors.
	Name string

	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// PerAttempt, when positive, wraps each attempt in a deadline context.
	PerAttempt time.Duration

	// Backoff is the base of the exponential backoff between failed
	// attempts: attempt i sleeps Backoff << i. Zero disables the sleep;
	// interactive capture policies re-prompt via OnRetry instead.
	Backoff time.Duration

	// RetryIf gates retries. When set and it returns false for an error,
	// the loop stops immediately. Nil retries every error.
	RetryIf func(error) bool

	// OnRetry runs after a failed attempt, before the backoff sleep and
	// the next attempt. attempt is the 0-based index of the attempt that
	// just failed.
	OnRetry func(ctx context.Context, attempt int, err error)
}

// Do executes op up to p.MaxAttempts times. It returns nil as soon as one
// attempt succeeds, the context error if ctx is cancelled, or the last
// attempt's error wrapped with the attempt count.
func (e *Executor) Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	name := p.Name
	if name == "" {
		name = "operation"
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if p.PerAttempt > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.PerAttempt)
		}

		err := op(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		e.logger.Warn("attempt failed",
			slog.String("call", name),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", attempts),
			slog.String("error", err.Error()))

		// A cancelled parent context stops the loop; per-attempt
		// deadlines are a normal failure and keep retrying.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if p.RetryIf != nil && !p.RetryIf(err) {
			return fmt.Errorf("%s failed after %d attempts: %w", name, attempt+1, err)
		}

		if attempt == attempts-1 {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(ctx, attempt, err)
		}

		if p.Backoff > 0 {
			if err := e.sleep(ctx, p.Backoff<<attempt); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}
