// Package ratelimit provides request pacing for the offline tester:
// either a fixed delay between requests or a requests-per-second token
// bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter paces requests. The zero value never blocks.
type Limiter struct {
	mu         sync.Mutex
	delay      time.Duration
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per nanosecond
	lastRefill time.Time
}

// NewPerSecond creates a limiter allowing rps requests per second with a
// burst of one, so calls are spaced 1/rps apart.
func NewPerSecond(rps int) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}
	return &Limiter{
		tokens:     1,
		maxTokens:  1,
		refillRate: float64(rps) / float64(time.Second),
		lastRefill: time.Now(),
	}
}

// NewWithDelay creates a limiter enforcing a fixed delay between calls.
func NewWithDelay(d time.Duration) *Limiter {
	return &Limiter{delay: d}
}

// Wait blocks until the limiter allows another request or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.delay > 0 {
		return sleep(ctx, l.delay)
	}
	if l.refillRate == 0 {
		return ctx.Err()
	}
	for {
		if wait := l.take(); wait <= 0 {
			return nil
		} else if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// take consumes a token if available, otherwise returns how long to wait
// for one.
func (l *Limiter) take() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.tokens += float64(now.Sub(l.lastRefill)) * l.refillRate
	l.lastRefill = now
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}

	if l.tokens >= 1 {
		l.tokens--
		return 0
	}
	return time.Duration((1 - l.tokens) / l.refillRate)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
