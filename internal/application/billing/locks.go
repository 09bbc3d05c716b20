package billing

import (
	"sync"

	"github.com/google/uuid"
)

// SubscriptionLocks hands out one mutex per subscription so that usage
// recording, rollover and cancellation for the same subscription serialize
// without a global lock. Entries are reference counted and removed once the
// last holder releases, so the map does not grow with the subscription count.
type SubscriptionLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewSubscriptionLocks creates an empty lock manager
func NewSubscriptionLocks() *SubscriptionLocks {
	return &SubscriptionLocks{
		locks: make(map[uuid.UUID]*lockEntry),
	}
}

// Acquire blocks until the subscription's lock is held and returns the
// release function. Callers must not start payment processor calls while
// holding the lock.
func (l *SubscriptionLocks) Acquire(id uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &lockEntry{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()

			l.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(l.locks, id)
			}
			l.mu.Unlock()
		})
	}
}
