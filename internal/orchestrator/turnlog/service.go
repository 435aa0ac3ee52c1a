package turnlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service records processed turns and answers analytics queries over them.
type Service struct {
	store  TurnStore
	logger *zap.Logger
}

// NewService creates a turn log service on the given store.
func NewService(store TurnStore, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Record persists one turn entry, filling the log ID and timestamp. Recording
// is best-effort: a storage failure is logged and swallowed so the user
// still gets their reply.
func (s *Service) Record(ctx context.Context, log *TurnLog) {
	if log.LogID == "" {
		log.LogID = uuid.New().String()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}
	if err := s.store.CreateTurnLog(ctx, log); err != nil {
		s.logger.Error("failed to record turn",
			zap.String("user_id", log.UserID),
			zap.Error(err))
	}
}

// RecentTurns returns a user's most recent entries, newest first.
func (s *Service) RecentTurns(ctx context.Context, userID string, limit int) ([]*TurnLog, error) {
	return s.store.GetTurnsByUser(ctx, userID, limit)
}

// UserAnalytics aggregates a user's full turn history.
func (s *Service) UserAnalytics(ctx context.Context, userID string) (*UserAnalytics, error) {
	logs, err := s.store.GetTurnsByUser(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	analytics := &UserAnalytics{
		UserID:       userID,
		IntentCounts: make(map[string]int),
		ActionCounts: make(map[string]int),
	}
	for _, log := range logs {
		analytics.TotalTurns++
		if !log.Success {
			analytics.FailedTurns++
		}
		if log.Intent != "" {
			analytics.IntentCounts[log.Intent]++
		}
		analytics.ActionCounts[log.Action]++
		if analytics.FirstTurn.IsZero() || log.Timestamp.Before(analytics.FirstTurn) {
			analytics.FirstTurn = log.Timestamp
		}
		if log.Timestamp.After(analytics.LastTurn) {
			analytics.LastTurn = log.Timestamp
		}
	}
	return analytics, nil
}

// PurgeOlderThan deletes entries past the retention window.
func (s *Service) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return s.store.DeleteTurnLogsBefore(ctx, cutoff)
}
