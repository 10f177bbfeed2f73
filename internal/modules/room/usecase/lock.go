package usecase

import "sync"

// DeletionLock is the per-room mutual-exclusion marker for disbanding: at most
// one disband is in flight per room, and every other mutating operation checks
// the marker before touching the room. Modelled as an explicit try-lock so the
// invariant lives in the API instead of ad hoc set membership.
type DeletionLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewDeletionLock creates an empty lock table.
func NewDeletionLock() *DeletionLock {
	return &DeletionLock{held: make(map[string]struct{})}
}

// TryAcquire acquires the lock for the room code. It returns false when the
// lock is already held; it never blocks.
func (l *DeletionLock) TryAcquire(code string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[code]; ok {
		return false
	}
	l.held[code] = struct{}{}
	return true
}

// Release releases the lock for the room code. Releasing an unheld lock is a
// no-op.
func (l *DeletionLock) Release(code string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, code)
}

// Held reports whether a disband is in flight for the room code.
func (l *DeletionLock) Held(code string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[code]
	return ok
}
