package sessions

import (
	"context"
	"time"
)

// Store defines the session storage contract. A session past its TTL must be
// treated as absent by GetSession regardless of whether a sweep has physically
// removed it yet, so expiry is observable immediately.
//
// GetSession returns (nil, nil) when no live session exists. Backend failures
// are reported as a *StoreError, never as an absent session: restarting a
// flow because the cache is down would corrupt the dialogue.
type Store interface {
	// GetSession returns the live session for userID, or (nil, nil) when
	// there is none (including expired ones not yet swept).
	GetSession(ctx context.Context, userID string) (*Session, error)

	// PutSession overwrites the stored session unconditionally. Callers own
	// concurrency control.
	PutSession(ctx context.Context, session *Session) error

	// DeleteSession removes a session. Deleting an absent session is not an
	// error.
	DeleteSession(ctx context.Context, userID string) error

	// SweepExpired removes every expired session and returns the count
	// removed. Intended for out-of-band cleanup; lazy expiry in GetSession
	// remains the source of truth.
	SweepExpired(ctx context.Context, now time.Time) (int, error)

	// ExpiredUserIDs lists users whose sessions are expired as of now, so a
	// lock-aware sweeper can evict them one key at a time.
	ExpiredUserIDs(ctx context.Context, now time.Time) ([]string, error)

	// EvictIfExpired removes the session for userID only if it is still
	// expired as of now, reporting whether an eviction happened.
	EvictIfExpired(ctx context.Context, userID string, now time.Time) (bool, error)
}
