// Package lock provides the per-workflow mutual-exclusion port. Every
// workflow mutation runs under a named, TTL-bounded lock so that all
// progress on one workflow is serialized across processes.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotHeld is returned when releasing or extending a lock that is not
// currently held.
var ErrNotHeld = errors.New("lock not held")

// Lock is a named, TTL-bounded mutual-exclusion port. An acquired lock is
// either released by the caller, expired by TTL, or prolonged via Extend.
type Lock interface {
	// TryAcquire takes the lock iff it is free. It does not block.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release frees the lock. Releasing an expired or foreign lock
	// returns ErrNotHeld.
	Release(ctx context.Context, key string) error

	// Extend pushes the expiry of a held lock forward.
	Extend(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsHeld reports whether the lock currently exists.
	IsHeld(ctx context.Context, key string) (bool, error)

	// TTLRemaining returns how long until the lock expires on its own.
	TTLRemaining(ctx context.Context, key string) (time.Duration, error)
}

// Acquire polls TryAcquire with a fixed backoff until the lock is taken,
// maxWait elapses, or the context is done.
func Acquire(ctx context.Context, l Lock, key string, ttl, maxWait time.Duration) (bool, error) {
	const backoff = 50 * time.Millisecond

	deadline := time.Now().Add(maxWait)
	for {
		ok, err := l.TryAcquire(ctx, key, ttl)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(backoff):
		}
	}
}
