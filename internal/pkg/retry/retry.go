// Package retry runs an operation under a classification-aware exponential
// backoff. Errors are classified through apierr; only Retryable kinds are
// attempted again.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/yungbote/coursegen/internal/platform/apierr"
	"github.com/yungbote/coursegen/internal/platform/httpx"
	"github.com/yungbote/coursegen/internal/platform/logger"
)

const DefaultMaxAttempts = 3

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// MaxDelay caps a single backoff sleep. Zero means uncapped.
	MaxDelay time.Duration
	// AttemptTimeout bounds each attempt. Expiry is a retryable timeout.
	AttemptTimeout time.Duration
	Jitter         bool
	Log            *logger.Logger
	// Sleep waits for d or until ctx ends. Tests replace it to record delays.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnAttempt, when set, observes each finished attempt.
	OnAttempt func(op string, attempt int, err error)
}

// Delay is the backoff before attempt+1: BaseDelay × 2^(attempt-1).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay << uint(attempt-1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do calls fn until it succeeds, fails with a non-retryable error, the
// attempt budget is spent, or ctx ends. The returned error is always an
// *apierr.Error; Exhausted is set only when the budget ran out.
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var last *apierr.Error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, canceled(op, attempt-1, err, last)
		}

		val, err := runAttempt(ctx, p.AttemptTimeout, attempt, fn)
		if p.OnAttempt != nil {
			p.OnAttempt(op, attempt, err)
		}
		if err == nil {
			if attempt > 1 && p.Log != nil {
				p.Log.Info("operation succeeded after retry", "op", op, "attempt", attempt)
			}
			return val, nil
		}

		// Caller went away: unwind without another attempt.
		if ctx.Err() != nil {
			return zero, canceled(op, attempt, ctx.Err(), nil)
		}

		last = classifyAttempt(op, err)
		last.Attempts = attempt
		if !last.Retryable() {
			return zero, last
		}
		if attempt == maxAttempts {
			break
		}

		delay := p.Delay(attempt)
		if p.Jitter {
			delay = httpx.Jitter(delay)
		}
		// An upstream Retry-After is a floor, not a suggestion.
		if last.RetryAfter > delay {
			delay = last.RetryAfter
		}
		if p.Log != nil {
			p.Log.Warn("operation failed, retrying",
				"op", op,
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"kind", string(last.Kind),
				"next_delay", delay.String(),
			)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, canceled(op, attempt, err, last)
		}
	}

	last.Exhausted = true
	last.Attempts = maxAttempts
	return zero, last
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, attempt int, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx, attempt)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	val, err := fn(actx, attempt)
	if err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		// The per-attempt deadline fired, whatever the op reported.
		return val, apierr.New(apierr.KindTimeout, "", err)
	}
	return val, err
}

func classifyAttempt(op string, err error) *apierr.Error {
	ae := apierr.Classify(op, err)
	// Copy so attempt bookkeeping never mutates an error owned by the callee.
	cp := *ae
	if cp.Op == "" {
		cp.Op = op
	}
	return &cp
}

func canceled(op string, attempts int, cause error, last *apierr.Error) *apierr.Error {
	out := &apierr.Error{Kind: apierr.KindCanceled, Op: op, Attempts: attempts, Err: cause}
	if errors.Is(cause, context.DeadlineExceeded) {
		out.Kind = apierr.KindTimeout
	}
	if last != nil && last.Err != nil {
		out.Err = errors.Join(cause, last)
	}
	return out
}
