package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

type Action int

const (
	Stop  Action = iota // permanent error, abort immediately
	Retry               // transient error, use normal backoff
	After               // rate-limited, wait for the server-provided delay
)

type Policy struct {
	MaxAttempts      int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration // 0 means uncapped
	RateLimitBackoff time.Duration // used for After when the error carries no delay
	OnRetry          func(attempt int, err error, backoff time.Duration)
	Clock            clockwork.Clock // defaults to the real clock
}

// Delayer is implemented by errors that know how long the server asked us to wait.
type Delayer interface {
	RetryAfter() time.Duration
}

type Classify func(err error) Action
type Operation[T any] func(ctx context.Context) (T, error)
type VoidOperation func(ctx context.Context) error

func Do[T any](ctx context.Context, p Policy, classify Classify, op Operation[T]) (T, error) {
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	backoff := p.InitialBackoff

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		val, err := op(ctx)
		if err == nil {
			return val, nil
		}

		action := classify(err)
		if action == Stop {
			var zero T
			return zero, &PermanentError{Err: err}
		}

		if attempt == p.MaxAttempts {
			var zero T
			return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, err)
		}

		wait := backoff
		if action == After {
			wait = rateLimitDelay(err, p.RateLimitBackoff)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}

		select {
		case <-clock.After(wait):
			backoff *= 2
			if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
				backoff = p.MaxBackoff
			}
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}

	panic("unreachable: MaxAttempts must be >= 1")
}

func DoVoid(ctx context.Context, p Policy, classify Classify, op VoidOperation) error {
	_, err := Do(ctx, p, classify, func(ctx context.Context) (struct{}, error) { return struct{}{}, op(ctx) })
	return err
}

func rateLimitDelay(err error, fallback time.Duration) time.Duration {
	var d Delayer
	if errors.As(err, &d) {
		if delay := d.RetryAfter(); delay > 0 {
			return delay
		}
	}
	return fallback
}

type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }
