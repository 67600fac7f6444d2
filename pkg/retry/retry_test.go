package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeSleeper records requested delays without sleeping.
type fakeSleeper struct {
	delays []time.Duration
	err    error
}

func (f *fakeSleeper) sleep(_ context.Context, d time.Duration) error {
	f.delays = append(f.delays, d)
	return f.err
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	s := &fakeSleeper{}
	calls := 0
	err := doWithSleeper(context.Background(), Config{Attempts: 3}, func(attempt int) error {
		calls++
		if attempt != 1 {
			t.Errorf("attempt = %d, want 1", attempt)
		}
		return nil
	}, s)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 || len(s.delays) != 0 {
		t.Errorf("calls = %d, delays = %v; want single attempt with no sleeping", calls, s.delays)
	}
}

func TestDoLinearBackoffDelays(t *testing.T) {
	s := &fakeSleeper{}
	sentinel := errors.New("boom")
	attempts := []int{}

	err := doWithSleeper(context.Background(), Config{Attempts: 3}, func(attempt int) error {
		attempts = append(attempts, attempt)
		return sentinel
	}, s)

	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("attempts = %v, want 3 attempts", attempts)
	}
	// No delay before the first attempt, then 1s, 2s.
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(s.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", s.delays, want)
	}
	for i := range want {
		if s.delays[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, s.delays[i], want[i])
		}
	}
}

func TestDoExponentialDelays(t *testing.T) {
	cfg := Config{Attempts: 4, Strategy: Exponential, BaseDelay: time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := cfg.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestDoMaxDelayCap(t *testing.T) {
	cfg := Config{Attempts: 10, BaseDelay: time.Second, MaxDelay: 2 * time.Second}
	if got := cfg.Delay(5); got != 2*time.Second {
		t.Errorf("Delay(5) = %v, want cap at 2s", got)
	}
}

func TestDoPermanentStopsRetrying(t *testing.T) {
	s := &fakeSleeper{}
	calls := 0
	inner := errors.New("bad config")
	err := doWithSleeper(context.Background(), Config{Attempts: 5}, func(int) error {
		calls++
		return Stop(inner)
	}, s)
	if !errors.Is(err, inner) {
		t.Fatalf("err = %v, want inner error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := doWithSleeper(ctx, Config{Attempts: 3}, func(int) error {
		t.Error("fn should not run with cancelled context")
		return nil
	}, &fakeSleeper{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDoZeroAttemptsStillRunsOnce(t *testing.T) {
	calls := 0
	err := doWithSleeper(context.Background(), Config{}, func(int) error {
		calls++
		return nil
	}, &fakeSleeper{})
	if err != nil || calls != 1 {
		t.Errorf("err = %v, calls = %d; want one attempt", err, calls)
	}
}
