package sessions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// PostgresStore implements the Store interface with PostgreSQL storage via
// bun. Expiry stays lazy: GetSession applies the same TTL predicate as the
// in-memory store, and SweepExpired is a plain cleanup pass.
type PostgresStore struct {
	db  *bun.DB
	ttl time.Duration
}

// NewPostgresStore creates a new PostgreSQL-backed session store.
func NewPostgresStore(db *bun.DB, ttl time.Duration) *PostgresStore {
	return &PostgresStore{
		db:  db,
		ttl: ttl,
	}
}

// SessionSchema represents the sessions table schema.
type SessionSchema struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	UserID            string            `bun:"user_id,pk" json:"user_id"`
	State             string            `bun:"state,notnull" json:"state"`
	ActiveFlow        string            `bun:"active_flow,nullzero" json:"active_flow,omitempty"`
	SlotIndex         int               `bun:"slot_index,notnull,default:0" json:"slot_index"`
	Slots             map[string]string `bun:"slots,type:jsonb" json:"slots"`
	PendingPrompt     string            `bun:"pending_prompt,nullzero" json:"pending_prompt,omitempty"`
	History           []Turn            `bun:"history,type:jsonb" json:"history"`
	CreatedAt         time.Time         `bun:"created_at,notnull" json:"created_at"`
	LastInteractionAt time.Time         `bun:"last_interaction_at,notnull" json:"last_interaction_at"`
	TicketID          string            `bun:"ticket_id,nullzero" json:"ticket_id,omitempty"`
}

// EnsureSchema creates the sessions table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*SessionSchema)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return NewStoreUnavailableError("ensure_schema", "", err)
	}
	return nil
}

// GetSession retrieves the live session for userID, treating expired rows as
// absent even before a sweep removes them.
func (s *PostgresStore) GetSession(ctx context.Context, userID string) (*Session, error) {
	var schema SessionSchema
	err := s.db.NewSelect().
		Model(&schema).
		Where("user_id = ?", userID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, NewStoreUnavailableError("get_session", userID, err)
	}

	session := schemaToSession(schema)
	if session.Expired(time.Now(), s.ttl) {
		return nil, nil
	}

	return session, nil
}

// PutSession upserts the session row unconditionally.
func (s *PostgresStore) PutSession(ctx context.Context, session *Session) error {
	schema := sessionToSchema(session)

	_, err := s.db.NewInsert().
		Model(schema).
		On("CONFLICT (user_id) DO UPDATE").
		Set("state = EXCLUDED.state").
		Set("active_flow = EXCLUDED.active_flow").
		Set("slot_index = EXCLUDED.slot_index").
		Set("slots = EXCLUDED.slots").
		Set("pending_prompt = EXCLUDED.pending_prompt").
		Set("history = EXCLUDED.history").
		Set("last_interaction_at = EXCLUDED.last_interaction_at").
		Set("ticket_id = EXCLUDED.ticket_id").
		Exec(ctx)
	if err != nil {
		return NewStoreUnavailableError("put_session", session.UserID, err)
	}

	return nil
}

// DeleteSession removes the session row for userID.
func (s *PostgresStore) DeleteSession(ctx context.Context, userID string) error {
	_, err := s.db.NewDelete().
		Model((*SessionSchema)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return NewStoreUnavailableError("delete_session", userID, err)
	}

	return nil
}

// SweepExpired deletes every row whose last interaction is past the TTL.
func (s *PostgresStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.NewDelete().
		Model((*SessionSchema)(nil)).
		Where("last_interaction_at < ?", now.Add(-s.ttl)).
		Exec(ctx)
	if err != nil {
		return 0, NewStoreQueryError("sweep_expired", "", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, NewStoreQueryError("sweep_expired", "", err)
	}

	return int(rows), nil
}

// ExpiredUserIDs lists users whose sessions are expired as of now.
func (s *PostgresStore) ExpiredUserIDs(ctx context.Context, now time.Time) ([]string, error) {
	var userIDs []string
	err := s.db.NewSelect().
		Model((*SessionSchema)(nil)).
		Column("user_id").
		Where("last_interaction_at < ?", now.Add(-s.ttl)).
		Scan(ctx, &userIDs)
	if err != nil {
		return nil, NewStoreQueryError("expired_user_ids", "", err)
	}

	return userIDs, nil
}

// EvictIfExpired deletes the row for userID only if it is still expired.
func (s *PostgresStore) EvictIfExpired(ctx context.Context, userID string, now time.Time) (bool, error) {
	result, err := s.db.NewDelete().
		Model((*SessionSchema)(nil)).
		Where("user_id = ?", userID).
		Where("last_interaction_at < ?", now.Add(-s.ttl)).
		Exec(ctx)
	if err != nil {
		return false, NewStoreQueryError("evict_if_expired", userID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, NewStoreQueryError("evict_if_expired", userID, err)
	}

	return rows > 0, nil
}

// sessionToSchema converts the session model to its database schema.
func sessionToSchema(session *Session) *SessionSchema {
	return &SessionSchema{
		UserID:            session.UserID,
		State:             string(session.State),
		ActiveFlow:        session.ActiveFlow,
		SlotIndex:         session.SlotIndex,
		Slots:             session.Slots,
		PendingPrompt:     string(session.PendingPrompt),
		History:           session.History,
		CreatedAt:         session.CreatedAt,
		LastInteractionAt: session.LastInteractionAt,
		TicketID:          session.TicketID,
	}
}

// schemaToSession converts a database row back to the session model.
func schemaToSession(schema SessionSchema) *Session {
	slots := schema.Slots
	if slots == nil {
		slots = make(map[string]string)
	}
	history := schema.History
	if history == nil {
		history = []Turn{}
	}
	return &Session{
		UserID:            schema.UserID,
		State:             State(schema.State),
		ActiveFlow:        schema.ActiveFlow,
		SlotIndex:         schema.SlotIndex,
		Slots:             slots,
		PendingPrompt:     Prompt(schema.PendingPrompt),
		History:           history,
		CreatedAt:         schema.CreatedAt,
		LastInteractionAt: schema.LastInteractionAt,
		TicketID:          schema.TicketID,
	}
}
