package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLocker implements Locker with an in-process table. It gives the
// full exclusion guarantee only within one process; deployments running
// multiple workers must use PostgresLocker.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]*memoryEntry
	clock func() time.Time
}

type memoryEntry struct {
	holder  string
	expires time.Time
}

// NewMemoryLocker creates an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held:  make(map[string]*memoryEntry),
		clock: time.Now,
	}
}

// Acquire implements Locker.
func (l *MemoryLocker) Acquire(_ context.Context, name string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if entry, ok := l.held[name]; ok && now.Before(entry.expires) {
		return nil, ErrNotAcquired
	}

	holder := uuid.New().String()
	l.held[name] = &memoryEntry{holder: holder, expires: now.Add(ttl)}
	return &memoryLease{locker: l, name: name, holder: holder}, nil
}

type memoryLease struct {
	locker *MemoryLocker
	name   string
	holder string
}

func (l *memoryLease) Name() string {
	return l.name
}

func (l *memoryLease) Release(_ context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	// Only the current holder may free the entry; an expired lease whose
	// name was re-acquired must not release the new holder's lock.
	if entry, ok := l.locker.held[l.name]; ok && entry.holder == l.holder {
		delete(l.locker.held, l.name)
	}
	return nil
}
