// Package lock provides named, deployment-wide mutual exclusion.
//
// A lock is addressed by a global string name and carries a TTL used as
// a safety net: if the holding process dies without releasing, the lock
// expires and the next acquirer proceeds. The TTL is not a cancellation
// signal to the holder.
//
// Two implementations exist: MemoryLocker for single-process deployments
// and tests, and PostgresLocker for multi-process deployments sharing a
// PostgreSQL database.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned when the named lock is currently held by
// another holder and has not expired.
var ErrNotAcquired = errors.New("lock is held by another holder")

// Locker acquires named locks with an expiry.
type Locker interface {
	// Acquire takes the named lock for at most ttl. It fails fast with
	// ErrNotAcquired when the lock is held elsewhere; callers decide
	// whether to retry.
	Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

// Lease is a successfully acquired lock. Release is idempotent and must
// be called on every exit path; an unreleased lease self-expires at ttl.
type Lease interface {
	// Name returns the lock name the lease was acquired under.
	Name() string

	// Release frees the lock. Releasing an expired or already released
	// lease is not an error.
	Release(ctx context.Context) error
}
