// Package retry runs a call a bounded number of times until it yields a usable value.
package retry

import (
	"context"
	"errors"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// MaxConfirmRetries bounds provider confirm calls: one initial attempt plus three retries.
const MaxConfirmRetries = 3

// ErrExhausted is returned when every attempt produced an empty value or an error.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy configures Bounded. Delay of zero retries immediately.
type Policy struct {
	MaxRetries uint64
	Delay      time.Duration
}

// ConfirmPolicy is the policy used for confirm-by-token lookups.
func ConfirmPolicy() Policy {
	return Policy{MaxRetries: MaxConfirmRetries}
}

// Attempt reports the outcome of a single try.
type Attempt[T any] func(ctx context.Context, attempt int) (T, error)

// Bounded calls fn until it returns a non-zero value without error, or until
// the policy is exhausted. Both errors and zero values are retried. The number
// of attempts made is always returned. When attempts run out the last error,
// if any, is joined with ErrExhausted.
func Bounded[T comparable](ctx context.Context, p Policy, fn Attempt[T]) (T, int, error) {
	var (
		zero     T
		attempts int
		lastErr  error
	)

	value, err := goretry.DoValue(ctx, backoff(p), func(ctx context.Context) (T, error) {
		attempts++
		v, err := fn(ctx, attempts)
		if err != nil {
			lastErr = err
			return zero, goretry.RetryableError(err)
		}
		if v == zero {
			lastErr = nil
			return zero, goretry.RetryableError(ErrExhausted)
		}
		return v, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, attempts, ctxErr
		}
		if lastErr != nil {
			return zero, attempts, errors.Join(ErrExhausted, lastErr)
		}
		return zero, attempts, ErrExhausted
	}
	return value, attempts, nil
}

func backoff(p Policy) goretry.Backoff {
	delay := p.Delay
	if delay < 0 {
		delay = 0
	}
	// NewConstant rejects a zero interval, so build the constant backoff directly.
	base := goretry.BackoffFunc(func() (time.Duration, bool) {
		return delay, false
	})
	return goretry.WithMaxRetries(p.MaxRetries, base)
}
