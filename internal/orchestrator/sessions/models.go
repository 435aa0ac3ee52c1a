package sessions

import (
	"time"
)

// State identifies where a conversation currently is in the dialogue state
// machine. awaiting_slot and ready_to_confirm are flow states and require
// ActiveFlow to be set; every other state requires it to be empty.
type State string

const (
	StateIdle           State = "idle"
	StateAwaitingSlot   State = "awaiting_slot"
	StateReadyToConfirm State = "ready_to_confirm"
	StateEscalated      State = "escalated"
	StateCompleted      State = "completed"
)

// Prompt marks a sub-prompt issued while idle (no flow active), so the next
// reply can be interpreted without starting a flow.
type Prompt string

const (
	PromptNone          Prompt = ""
	PromptRequestNumber Prompt = "request_number"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Turn is one message in the bounded conversation history. History feeds
// classifier context only; business logic never reads it.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the per-user conversation state. Exactly one session exists per
// user ID at a time; an expired session is indistinguishable from no session.
type Session struct {
	UserID            string            `json:"user_id"`
	State             State             `json:"state"`
	ActiveFlow        string            `json:"active_flow,omitempty"`
	SlotIndex         int               `json:"slot_index"`
	Slots             map[string]string `json:"slots"`
	PendingPrompt     Prompt            `json:"pending_prompt,omitempty"`
	History           []Turn            `json:"history"`
	CreatedAt         time.Time         `json:"created_at"`
	LastInteractionAt time.Time         `json:"last_interaction_at"`
	TicketID          string            `json:"ticket_id,omitempty"`
}

// NewSession creates a fresh idle session for the given user.
func NewSession(userID string, now time.Time) *Session {
	return &Session{
		UserID:            userID,
		State:             StateIdle,
		Slots:             make(map[string]string),
		History:           []Turn{},
		CreatedAt:         now,
		LastInteractionAt: now,
	}
}

// Expired reports whether the session's inactivity window has passed. Expiry
// is a pure function of LastInteractionAt so lazy reads and periodic sweeps
// always agree.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastInteractionAt) > ttl
}

// InFlow reports whether a multi-turn flow is in progress.
func (s *Session) InFlow() bool {
	return s.State == StateAwaitingSlot || s.State == StateReadyToConfirm
}

// SetSlot records a collected slot value. Unfilled slots are absent from the
// map, never present with an empty placeholder.
func (s *Session) SetSlot(name, value string) {
	if s.Slots == nil {
		s.Slots = make(map[string]string)
	}
	s.Slots[name] = value
}

// ClearSlots discards all collected slot values (flow restart).
func (s *Session) ClearSlots() {
	s.Slots = make(map[string]string)
}

// AppendTurn adds a turn to the history, evicting the oldest entries beyond
// the window.
func (s *Session) AppendTurn(t Turn, window int) {
	s.History = append(s.History, t)
	if window > 0 && len(s.History) > window {
		s.History = s.History[len(s.History)-window:]
	}
}

// Touch advances LastInteractionAt. The timestamp is monotonically
// non-decreasing across updates to the same session.
func (s *Session) Touch(now time.Time) {
	if now.After(s.LastInteractionAt) {
		s.LastInteractionAt = now
	}
}

// Clone returns a deep copy safe for independent mutation, so store callers
// never share map or slice state with the store's own copy.
func (s *Session) Clone() *Session {
	clone := *s
	clone.Slots = make(map[string]string, len(s.Slots))
	for k, v := range s.Slots {
		clone.Slots[k] = v
	}
	clone.History = make([]Turn, len(s.History))
	copy(clone.History, s.History)
	return &clone
}
