package financing

import (
	"sync"

	"github.com/google/uuid"
)

// scheduleLocks hands out one mutex per schedule. Entries are reference counted
// and dropped once no goroutine holds or waits for them.
type scheduleLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*scheduleLock
}

type scheduleLock struct {
	mu   sync.Mutex
	refs int
}

func newScheduleLocks() *scheduleLocks {
	return &scheduleLocks{locks: make(map[uuid.UUID]*scheduleLock)}
}

// Lock blocks until the schedule's mutex is held and returns its release func
func (l *scheduleLocks) Lock(scheduleID uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.locks[scheduleID]
	if !ok {
		entry = &scheduleLock{}
		l.locks[scheduleID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, scheduleID)
		}
		l.mu.Unlock()
	}
}

func (l *scheduleLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
