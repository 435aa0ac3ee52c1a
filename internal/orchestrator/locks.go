package orchestrator

import "sync"

// userLocks serializes units of work per user ID. Turns for different users
// run fully in parallel; a second message for the same user waits until the
// in-flight turn releases the key.
type userLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{entries: make(map[string]*lockEntry)}
}

// Lock acquires the per-user lock, creating the entry on first use.
func (l *userLocks) Lock(userID string) {
	l.mu.Lock()
	entry, ok := l.entries[userID]
	if !ok {
		entry = &lockEntry{}
		l.entries[userID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

// Unlock releases the per-user lock, dropping the entry once nobody waits on
// it.
func (l *userLocks) Unlock(userID string) {
	l.mu.Lock()
	entry := l.entries[userID]
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, userID)
	}
	l.mu.Unlock()

	entry.mu.Unlock()
}
