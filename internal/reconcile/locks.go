package reconcile

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

// userLocks serializes reconciliation per user. The existence-check-then-
// insert pattern in the ledger is only safe when one run per user is active
// at a time, so the lock is explicit rather than assumed from webhook
// delivery behavior.
type userLocks struct {
	mu    sync.Mutex
	locks map[snowflake.ID]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[snowflake.ID]*sync.Mutex)}
}

func (l *userLocks) acquire(userID snowflake.ID) func() {
	l.mu.Lock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
