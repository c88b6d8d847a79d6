package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	policy := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for attempt, expected := range want {
		if got := policy.Delay(attempt); got != expected {
			t.Fatalf("attempt %d: got %s want %s", attempt, got, expected)
		}
	}
}

func TestFixedBackoff(t *testing.T) {
	policy := Fixed(time.Second)
	for attempt := 0; attempt < 5; attempt++ {
		if got := policy.Delay(attempt); got != time.Second {
			t.Fatalf("attempt %d: got %s", attempt, got)
		}
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Fixed(time.Millisecond), 5, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoGivesUp(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Fixed(time.Millisecond), 2, func(context.Context) error {
		calls++
		return errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBackoffWithoutMaxNeverWraps(t *testing.T) {
	policy := Backoff{Initial: time.Second, Multiplier: 2}

	prev := time.Duration(0)
	for attempt := 0; attempt < 200; attempt++ {
		got := policy.Delay(attempt)
		if got <= 0 {
			t.Fatalf("attempt %d: non-positive delay %s", attempt, got)
		}
		if got < prev {
			t.Fatalf("attempt %d: delay shrank from %s to %s", attempt, prev, got)
		}
		prev = got
	}
	if got := policy.Delay(34); got != MaxDelay {
		t.Fatalf("attempt 34: got %s want %s", got, MaxDelay)
	}
	if got := policy.Delay(33); got != 8589934592*time.Second {
		t.Fatalf("attempt 33: got %s", got)
	}
}
