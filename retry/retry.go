package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

// Policy is an exponential backoff schedule with a bounded number of attempts.
type Policy struct {
	MaxAttempts         uint
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
	MaxElapsed          time.Duration // 0 means unbounded
	// Retryable reports whether err may succeed on a later attempt. Nil
	// retries every error.
	Retryable func(err error) bool
}

// DefaultPolicy retries up to 10 times, waiting between 1s and 60s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:         10,
		InitialInterval:     time.Second,
		MaxInterval:         60 * time.Second,
		Multiplier:          2,
		RandomizationFactor: 0.5,
	}
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}
	if p.RandomizationFactor >= 0 && p.RandomizationFactor <= 1 {
		b.RandomizationFactor = p.RandomizationFactor
	}
	return b
}

// Do runs op until it succeeds, returns a non-retryable error, exhausts the
// policy or ctx is done. The last error is returned unwrapped.
func Do[T any](ctx context.Context, p Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	options := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(attempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Warn().Err(err).Str("op", name).Dur("wait", wait).Msg("retrying")
		}),
		backoff.WithMaxElapsedTime(p.MaxElapsed),
	}

	return backoff.Retry(ctx, func() (T, error) {
		result, err := op(ctx)
		if err != nil && p.Retryable != nil && !p.Retryable(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}, options...)
}
