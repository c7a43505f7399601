package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func noSleep(slept *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	var slept []time.Duration
	e := New(WithSleep(noSleep(&slept)))

	calls := 0
	err := e.Do(context.Background(), Policy{Name: "call", MaxAttempts: 3, Backoff: time.Second}, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(slept) != 0 {
		t.Errorf("slept = %v, want none", slept)
	}
}

func TestDo_ExponentialBackoff(t *testing.T) {
	var slept []time.Duration
	e := New(WithSleep(noSleep(&slept)))

	calls := 0
	err := e.Do(context.Background(), Policy{Name: "gen", MaxAttempts: 4, Backoff: time.Second}, func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("Do() error = nil, want failure")
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}

	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("slept = %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("slept[%d] = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestDo_WrapsLastErrorWithAttemptCount(t *testing.T) {
	e := New(WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))

	sentinel := errors.New("boom")
	err := e.Do(context.Background(), Policy{Name: "gen", MaxAttempts: 2, Backoff: time.Second}, func(ctx context.Context) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("Do() error = %v, want wrapped sentinel", err)
	}
	if want := "gen failed after 2 attempts"; err == nil || len(err.Error()) < len(want) || err.Error()[:len(want)] != want {
		t.Errorf("Do() error = %v, want prefix %q", err, want)
	}
}

func TestDo_ZeroBackoffSkipsSleep(t *testing.T) {
	var slept []time.Duration
	e := New(WithSleep(noSleep(&slept)))

	_ = e.Do(context.Background(), Policy{Name: "capture", MaxAttempts: 3}, func(ctx context.Context) error {
		return errors.New("no answer")
	})
	if len(slept) != 0 {
		t.Errorf("slept = %v, want none for zero backoff", slept)
	}
}

func TestDo_RetryIfGatesRetries(t *testing.T) {
	e := New(WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))

	calls := 0
	err := e.Do(context.Background(), Policy{
		Name:        "transcribe",
		MaxAttempts: 4,
		RetryIf: func(err error) bool {
			return errors.Is(err, errAudio)
		},
	}, func(ctx context.Context) error {
		calls++
		return errors.New("connection refused")
	})
	if err == nil {
		t.Fatal("Do() error = nil, want failure")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (non-retryable error)", calls)
	}
}

var errAudio = errors.New("audio device unavailable")

func TestDo_RetryIfAllowsTransientErrors(t *testing.T) {
	e := New(WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))

	calls := 0
	err := e.Do(context.Background(), Policy{
		Name:        "transcribe",
		MaxAttempts: 3,
		Backoff:     time.Second,
		RetryIf:     func(err error) bool { return errors.Is(err, errAudio) },
	}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("stream: %w", errAudio)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_OnRetryObservesAttempts(t *testing.T) {
	e := New(WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))

	var attempts []int
	_ = e.Do(context.Background(), Policy{
		Name:        "capture",
		MaxAttempts: 3,
		OnRetry: func(ctx context.Context, attempt int, err error) {
			attempts = append(attempts, attempt)
		},
	}, func(ctx context.Context) error {
		return errors.New("no answer")
	})

	// OnRetry fires between attempts, not after the last one.
	if len(attempts) != 2 || attempts[0] != 0 || attempts[1] != 1 {
		t.Errorf("OnRetry attempts = %v, want [0 1]", attempts)
	}
}

func TestDo_ContextCancellationStopsLoop(t *testing.T) {
	e := New(WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := e.Do(ctx, Policy{Name: "gen", MaxAttempts: 5, Backoff: time.Second}, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_PerAttemptDeadline(t *testing.T) {
	e := New(WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))

	var deadlines []bool
	err := e.Do(context.Background(), Policy{
		Name:        "gen",
		MaxAttempts: 2,
		PerAttempt:  30 * time.Second,
	}, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		deadlines = append(deadlines, ok)
		if len(deadlines) == 1 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	for i, ok := range deadlines {
		if !ok {
			t.Errorf("attempt %d missing deadline", i)
		}
	}
}
