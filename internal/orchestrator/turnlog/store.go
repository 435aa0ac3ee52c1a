package turnlog

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps turn logs in process memory. It backs single-node
// deployments and tests; multi-node deployments use PostgresStore.
type InMemoryStore struct {
	mu   sync.RWMutex
	logs []*TurnLog
}

// NewInMemoryStore creates an empty in-memory turn store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) CreateTurnLog(ctx context.Context, log *TurnLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	copied := *log
	s.mu.Lock()
	s.logs = append(s.logs, &copied)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) GetTurnsByUser(ctx context.Context, userID string, limit int) ([]*TurnLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*TurnLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].UserID != userID {
			continue
		}
		copied := *s.logs[i]
		out = append(out, &copied)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) GetTurnsByTimeRange(ctx context.Context, start, end time.Time) ([]*TurnLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*TurnLog
	for _, log := range s.logs {
		if log.Timestamp.Before(start) || !log.Timestamp.Before(end) {
			continue
		}
		copied := *log
		out = append(out, &copied)
	}
	return out, nil
}

func (s *InMemoryStore) DeleteTurnLogsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.logs[:0]
	removed := 0
	for _, log := range s.logs {
		if log.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, log)
	}
	s.logs = kept
	return removed, nil
}
