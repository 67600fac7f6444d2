// Package retry provides the shared, context-aware retry engine used by
// the target invoker. The reference backoff is linear: the delay before
// retry k is BaseDelay * k, with no delay before the first attempt.
package retry

import (
	"context"
	"errors"
	"time"
)

// Strategy selects how the inter-attempt delay grows.
type Strategy int

const (
	// Linear grows the delay by BaseDelay each retry: 1s, 2s, 3s, …
	Linear Strategy = iota
	// Exponential doubles the delay each retry: 1s, 2s, 4s, …
	Exponential
	// Constant keeps the delay at BaseDelay for every retry.
	Constant
)

// Config controls retry behaviour.
type Config struct {
	// Attempts is the total number of attempts, including the first.
	Attempts int

	// BaseDelay is the backoff unit (default 1s when zero).
	BaseDelay time.Duration

	// MaxDelay caps any single delay. Zero means uncapped.
	MaxDelay time.Duration

	// Strategy selects the backoff curve (default Linear).
	Strategy Strategy
}

// Permanent wraps an error to signal that retrying is pointless; Do
// returns the wrapped error immediately.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Stop marks err as permanent.
func Stop(err error) error { return &Permanent{Err: err} }

// sleeper lets tests replace the real clock.
type sleeper interface {
	sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn up to cfg.Attempts times, passing the 1-based attempt
// number, and sleeps cfg's backoff between failures. It returns nil on
// the first success, ctx.Err() on cancellation, and the last error when
// every attempt fails.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	return doWithSleeper(ctx, cfg, fn, realSleeper{})
}

func doWithSleeper(ctx context.Context, cfg Config, fn func(attempt int) error, s sleeper) error {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}

		var perm *Permanent
		if errors.As(lastErr, &perm) {
			return perm.Err
		}

		if attempt < cfg.Attempts {
			if err := s.sleep(ctx, cfg.Delay(attempt)); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// Delay computes the backoff before the retry that follows the given
// 1-based attempt.
func (c Config) Delay(attempt int) time.Duration {
	base := c.BaseDelay
	if base <= 0 {
		base = time.Second
	}

	var d time.Duration
	switch c.Strategy {
	case Exponential:
		d = base << (attempt - 1)
	case Constant:
		d = base
	default: // Linear
		d = base * time.Duration(attempt)
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}
