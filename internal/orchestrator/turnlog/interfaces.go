package turnlog

import (
	"context"
	"time"
)

// TurnStore persists turn log entries.
type TurnStore interface {
	// CreateTurnLog appends one entry.
	CreateTurnLog(ctx context.Context, log *TurnLog) error

	// GetTurnsByUser returns a user's entries newest first. limit <= 0 means
	// no limit.
	GetTurnsByUser(ctx context.Context, userID string, limit int) ([]*TurnLog, error)

	// GetTurnsByTimeRange returns entries with start <= Timestamp < end,
	// oldest first.
	GetTurnsByTimeRange(ctx context.Context, start, end time.Time) ([]*TurnLog, error)

	// DeleteTurnLogsBefore removes entries older than cutoff and returns how
	// many were removed.
	DeleteTurnLogsBefore(ctx context.Context, cutoff time.Time) (int, error)
}
