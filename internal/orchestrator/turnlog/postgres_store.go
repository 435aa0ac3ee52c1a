package turnlog

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// PostgresStore persists turn logs in Postgres via bun.
type PostgresStore struct {
	db *bun.DB
}

// NewPostgresStore creates a Postgres-backed turn store.
func NewPostgresStore(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the turn_logs table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*TurnLog)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create turn_logs table: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateTurnLog(ctx context.Context, log *TurnLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	_, err := s.db.NewInsert().Model(log).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert turn log: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTurnsByUser(ctx context.Context, userID string, limit int) ([]*TurnLog, error) {
	var logs []*TurnLog
	q := s.db.NewSelect().
		Model(&logs).
		Where("user_id = ?", userID).
		Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to query turn logs: %w", err)
	}
	return logs, nil
}

func (s *PostgresStore) GetTurnsByTimeRange(ctx context.Context, start, end time.Time) ([]*TurnLog, error) {
	var logs []*TurnLog
	err := s.db.NewSelect().
		Model(&logs).
		Where("timestamp >= ?", start).
		Where("timestamp < ?", end).
		Order("timestamp ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query turn logs by time range: %w", err)
	}
	return logs, nil
}

func (s *PostgresStore) DeleteTurnLogsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.NewDelete().
		Model((*TurnLog)(nil)).
		Where("timestamp < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old turn logs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(affected), nil
}
