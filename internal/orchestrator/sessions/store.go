package sessions

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore implements the Store interface with process-local storage.
// Sessions are cloned on the way in and out so callers never share mutable
// state with the store.
type InMemoryStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]*Session
}

// NewInMemoryStore creates a new in-memory store with the given TTL.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// GetSession returns a clone of the live session, or (nil, nil) when the
// session is absent or expired.
func (s *InMemoryStore) GetSession(ctx context.Context, userID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[userID]
	if !exists {
		return nil, nil
	}
	if session.Expired(time.Now(), s.ttl) {
		return nil, nil
	}

	return session.Clone(), nil
}

// PutSession stores a clone of the session, overwriting unconditionally.
func (s *InMemoryStore) PutSession(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.UserID] = session.Clone()
	return nil
}

// DeleteSession removes the session for userID if present.
func (s *InMemoryStore) DeleteSession(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, userID)
	return nil
}

// SweepExpired removes every expired session and returns the count removed.
func (s *InMemoryStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, session := range s.sessions {
		if session.Expired(now, s.ttl) {
			delete(s.sessions, userID)
			removed++
		}
	}

	return removed, nil
}

// ExpiredUserIDs lists users whose sessions are expired as of now.
func (s *InMemoryStore) ExpiredUserIDs(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []string
	for userID, session := range s.sessions {
		if session.Expired(now, s.ttl) {
			expired = append(expired, userID)
		}
	}

	return expired, nil
}

// EvictIfExpired removes the session for userID only if it is still expired,
// so a concurrently refreshed session survives the sweep.
func (s *InMemoryStore) EvictIfExpired(ctx context.Context, userID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[userID]
	if !exists || !session.Expired(now, s.ttl) {
		return false, nil
	}

	delete(s.sessions, userID)
	return true, nil
}
