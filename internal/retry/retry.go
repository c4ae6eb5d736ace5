package retry

import (
	"context"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultUnit       = time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy is a bounded exponential backoff: attempt 0 runs immediately and
// attempt k waits Unit * 2^(k-1) before running. At most MaxRetries+1
// attempts are made.
type Policy struct {
	MaxRetries int
	Unit       time.Duration
	Sleep      SleepFunc
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		Unit:       DefaultUnit,
		Sleep:      Sleep,
	}
}

// Backoff returns the delay before the given attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	return p.Unit << (attempt - 1)
}

// Do runs op until it succeeds or the policy is exhausted. notify, if not nil,
// is called after every failed attempt that will be retried. The error of the
// last attempt is returned on exhaustion; ctx errors stop the loop early.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error), notify func(attempt int, delay time.Duration, err error)) (result T, err error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.Backoff(attempt)
			if notify != nil {
				notify(attempt, delay, err)
			}

			if sleepErr := sleep(ctx, delay); sleepErr != nil {
				return result, sleepErr
			}
		}

		result, err = op(ctx)
		if err == nil {
			return result, nil
		}

		if ctx.Err() != nil {
			return result, ctx.Err()
		}
	}

	return result, err
}

func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
