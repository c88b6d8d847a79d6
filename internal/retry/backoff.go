package retry

import (
	"context"
	"math"
	"time"
)

// MaxDelay bounds every delay when Max is unset.
const MaxDelay = time.Duration(math.MaxInt64)

// Backoff is the delay policy applied between failed loop iterations.
// A Multiplier of 1 (or less) yields a fixed Initial interval.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// Fixed returns a policy that always waits d.
func Fixed(d time.Duration) Backoff {
	return Backoff{Initial: d, Max: d, Multiplier: 1}
}

// Delay returns the wait before retry number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	initial := b.Initial
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	if b.Multiplier <= 1 || attempt <= 0 {
		return b.clamp(initial)
	}

	ceiling := b.ceiling()
	delay := float64(initial)
	for i := 0; i < attempt; i++ {
		delay *= b.Multiplier
		if delay >= float64(ceiling) {
			return ceiling
		}
	}
	return time.Duration(delay)
}

func (b Backoff) ceiling() time.Duration {
	if b.Max > 0 {
		return b.Max
	}
	return MaxDelay
}

func (b Backoff) clamp(d time.Duration) time.Duration {
	if d > b.ceiling() {
		return b.ceiling()
	}
	return d
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs fn until it succeeds, ctx is done, or maxRetries retries are used.
// A negative maxRetries retries forever.
func Do(ctx context.Context, policy Backoff, maxRetries int, fn func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if maxRetries >= 0 && attempt >= maxRetries {
			return err
		}
		if err := Sleep(ctx, policy.Delay(attempt)); err != nil {
			return err
		}
	}
}
