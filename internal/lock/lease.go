// Package lock keeps a single active writer per engine with a Redis lease.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "explorer:lease:"

var (
	// ErrNotHeld is returned when the lease belongs to someone else.
	ErrNotHeld = errors.New("lease not held")
	// ErrLost cancels the guarded work when the lease could not be renewed.
	ErrLost = errors.New("lease lost")
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`)

// Lease is an expiring Redis key owned by one process. The owner renews it
// while working; a crashed owner loses it after ttl.
type Lease struct {
	client redis.UniversalClient
	key    string
	value  string
	ttl    time.Duration
	logger *zap.Logger
}

// NewLease builds a lease named name. A zero ttl means 30s.
func NewLease(client redis.UniversalClient, name string, ttl time.Duration, logger *zap.Logger) *Lease {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lease{
		client: client,
		key:    keyPrefix + name,
		value:  uuid.New().String(),
		ttl:    ttl,
		logger: logger,
	}
}

// Key returns the Redis key of the lease.
func (l *Lease) Key() string {
	return l.key
}

// Acquire takes the lease if it is free.
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	return ok, nil
}

// AcquireOrWait polls every interval until the lease is taken or ctx is done.
func (l *Lease) AcquireOrWait(ctx context.Context, interval time.Duration) error {
	for {
		ok, err := l.Acquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		l.logger.Info("lease busy, waiting", zap.String("key", l.key), zap.Duration("interval", interval))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Extend resets the lease expiry to ttl.
func (l *Lease) Extend(ctx context.Context) error {
	result, err := extendScript.Run(ctx, l.client, []string{l.key}, l.value, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lease %s: %w", l.key, err)
	}
	if result == 0 {
		return ErrNotHeld
	}
	return nil
}

// Release gives the lease up.
func (l *Lease) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Int64()
	if err != nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	if result == 0 {
		return ErrNotHeld
	}
	return nil
}

// Hold waits for the lease, runs fn while renewing it every ttl/3 and
// releases it afterwards. fn's context is cancelled if a renewal fails, in
// which case Hold returns ErrLost.
func (l *Lease) Hold(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.AcquireOrWait(ctx, l.ttl/3); err != nil {
		return err
	}
	l.logger.Info("lease acquired", zap.String("key", l.key))

	workCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-workCtx.Done():
				return
			case <-ticker.C:
				if err := l.Extend(workCtx); err != nil {
					if workCtx.Err() != nil {
						return
					}
					l.logger.Error("lease renewal failed", zap.String("key", l.key), zap.Error(err))
					cancel(fmt.Errorf("%w: %w", ErrLost, err))
					return
				}
			}
		}
	}()

	err := fn(workCtx)
	cause := context.Cause(workCtx)
	cancel(nil)
	<-done

	releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer releaseCancel()
	if releaseErr := l.Release(releaseCtx); releaseErr != nil && !errors.Is(releaseErr, ErrNotHeld) {
		l.logger.Warn("lease release failed", zap.String("key", l.key), zap.Error(releaseErr))
	}

	if errors.Is(cause, ErrLost) {
		return cause
	}
	return err
}
