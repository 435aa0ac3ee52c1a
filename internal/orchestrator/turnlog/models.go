package turnlog

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// TurnLog is one processed turn: what the user state was, what the
// classifier said, and what the bot did about it. Sessions expire; this is
// the durable audit trail.
type TurnLog struct {
	bun.BaseModel `bun:"table:turn_logs"`

	LogID      string    `bun:"log_id,pk" json:"log_id"`
	UserID     string    `bun:"user_id,notnull" json:"user_id"`
	State      string    `bun:"state" json:"state"`
	Intent     string    `bun:"intent" json:"intent"`
	Confidence float64   `bun:"confidence" json:"confidence"`
	Action     string    `bun:"action,notnull" json:"action"`
	Success    bool      `bun:"success" json:"success"`
	ErrorMsg   string    `bun:"error_msg" json:"error_msg,omitempty"`
	ReplyText  string    `bun:"reply_text" json:"reply_text"`
	Timestamp  time.Time `bun:"timestamp,notnull" json:"timestamp"`
}

// Validate checks the log entry has the fields every record needs.
func (t *TurnLog) Validate() error {
	if t.LogID == "" {
		return fmt.Errorf("log ID is required")
	}
	if t.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if t.Action == "" {
		return fmt.Errorf("action is required")
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

// UserAnalytics summarizes one user's recorded turns.
type UserAnalytics struct {
	UserID       string         `json:"user_id"`
	TotalTurns   int            `json:"total_turns"`
	FailedTurns  int            `json:"failed_turns"`
	IntentCounts map[string]int `json:"intent_counts"`
	ActionCounts map[string]int `json:"action_counts"`
	FirstTurn    time.Time      `json:"first_turn,omitempty"`
	LastTurn     time.Time      `json:"last_turn,omitempty"`
}
