package sessions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionExpired(t *testing.T) {
	ttl := 30 * time.Minute
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sess := NewSession("user-1", base)

	t.Run("FreshSessionIsLive", func(t *testing.T) {
		assert.False(t, sess.Expired(base, ttl))
	})

	t.Run("JustInsideWindow", func(t *testing.T) {
		assert.False(t, sess.Expired(base.Add(29*time.Minute+59*time.Second), ttl))
	})

	t.Run("ExactlyAtWindow", func(t *testing.T) {
		// The window is inclusive: expiry requires strictly more than TTL of
		// inactivity.
		assert.False(t, sess.Expired(base.Add(30*time.Minute), ttl))
	})

	t.Run("JustPastWindow", func(t *testing.T) {
		assert.True(t, sess.Expired(base.Add(30*time.Minute+1*time.Second), ttl))
	})
}

func TestSessionTouchIsMonotonic(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sess := NewSession("user-1", base)

	sess.Touch(base.Add(5 * time.Minute))
	assert.Equal(t, base.Add(5*time.Minute), sess.LastInteractionAt)

	// An out-of-order timestamp never rolls the session backwards.
	sess.Touch(base.Add(2 * time.Minute))
	assert.Equal(t, base.Add(5*time.Minute), sess.LastInteractionAt)
}

func TestSessionAppendTurnBoundsHistory(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sess := NewSession("user-1", base)

	for i := 0; i < 15; i++ {
		sess.AppendTurn(Turn{Role: RoleUser, Text: "message", Timestamp: base}, 10)
	}

	assert.Len(t, sess.History, 10)
}

func TestSessionCloneIsIndependent(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sess := NewSession("user-1", base)
	sess.SetSlot("location", "5th and Main")
	sess.AppendTurn(Turn{Role: RoleUser, Text: "hello", Timestamp: base}, 10)

	clone := sess.Clone()
	clone.SetSlot("location", "somewhere else")
	clone.History[0].Text = "mutated"

	assert.Equal(t, "5th and Main", sess.Slots["location"])
	assert.Equal(t, "hello", sess.History[0].Text)
}

func TestSessionInFlow(t *testing.T) {
	sess := NewSession("user-1", time.Now())

	assert.False(t, sess.InFlow())

	sess.State = StateAwaitingSlot
	assert.True(t, sess.InFlow())

	sess.State = StateReadyToConfirm
	assert.True(t, sess.InFlow())

	sess.State = StateEscalated
	assert.False(t, sess.InFlow())
}
