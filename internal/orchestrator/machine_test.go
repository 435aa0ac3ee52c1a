package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivic/civbot/internal/classifier"
	"github.com/opencivic/civbot/internal/orchestrator/flows"
	"github.com/opencivic/civbot/internal/orchestrator/sessions"
)

func newTestSession() *sessions.Session {
	return sessions.NewSession("user-1", time.Now())
}

func classification(intent classifier.Intent, confidence float64, entities map[string]string) *classifier.Classification {
	return &classifier.Classification{
		Intent:     intent,
		Confidence: confidence,
		Entities:   entities,
	}
}

func TestTransitionStatusCheck(t *testing.T) {
	reg := flows.DefaultRegistry()
	th := DefaultThresholds()

	t.Run("WithRequestNumberEntity", func(t *testing.T) {
		sess := newTestSession()
		cls := classification(classifier.IntentStatusCheck, 0.9, map[string]string{
			classifier.EntityRequestNumber: "24-00123456",
		})

		action := Transition(sess, "what's the status of 24-00123456?", cls, reg, th)

		assert.Equal(t, ActionStatusLookup, action.Type)
		assert.Equal(t, "24-00123456", action.RequestNumber)
		assert.Equal(t, sessions.StateIdle, sess.State)
	})

	t.Run("WithoutRequestNumberAsksForIt", func(t *testing.T) {
		sess := newTestSession()
		cls := classification(classifier.IntentStatusCheck, 0.9, nil)

		action := Transition(sess, "where is my request?", cls, reg, th)

		assert.Equal(t, ActionAskRequestNumber, action.Type)
		assert.Equal(t, sessions.PromptRequestNumber, sess.PendingPrompt)
	})

	t.Run("MalformedEntityAsksForIt", func(t *testing.T) {
		sess := newTestSession()
		cls := classification(classifier.IntentStatusCheck, 0.9, map[string]string{
			classifier.EntityRequestNumber: "abc123",
		})

		action := Transition(sess, "status of abc123", cls, reg, th)

		assert.Equal(t, ActionAskRequestNumber, action.Type)
	})

	t.Run("PendingPromptAcceptsBareNumber", func(t *testing.T) {
		sess := newTestSession()
		sess.PendingPrompt = sessions.PromptRequestNumber

		// The classifier makes nothing of bare digits; the pending prompt
		// still routes them as the answer.
		cls := classification(classifier.IntentGeneralInquiry, 0.2, nil)

		action := Transition(sess, "  24-00123456 ", cls, reg, th)

		assert.Equal(t, ActionStatusLookup, action.Type)
		assert.Equal(t, "24-00123456", action.RequestNumber)
		assert.Equal(t, sessions.PromptNone, sess.PendingPrompt)
	})

	t.Run("PendingPromptWithNonNumberFallsThrough", func(t *testing.T) {
		sess := newTestSession()
		sess.PendingPrompt = sessions.PromptRequestNumber
		cls := classification(classifier.IntentGeneralInquiry, 0.2, nil)

		action := Transition(sess, "never mind", cls, reg, th)

		assert.Equal(t, ActionClarify, action.Type)
	})
}

func TestTransitionLowConfidenceClarifies(t *testing.T) {
	sess := newTestSession()
	cls := classification(classifier.IntentReportIssue, 0.3, nil)

	action := Transition(sess, "umm the thing", cls, flows.DefaultRegistry(), DefaultThresholds())

	assert.Equal(t, ActionClarify, action.Type)
	assert.Equal(t, sessions.StateIdle, sess.State)
	assert.Empty(t, sess.ActiveFlow)
}

func TestTransitionStartReportFlow(t *testing.T) {
	reg := flows.DefaultRegistry()
	th := DefaultThresholds()

	t.Run("NoEntitiesPromptsFirstSlot", func(t *testing.T) {
		sess := newTestSession()
		cls := classification(classifier.IntentReportIssue, 0.9, nil)

		action := Transition(sess, "I want to report an issue", cls, reg, th)

		assert.Equal(t, ActionPromptSlot, action.Type)
		assert.Equal(t, flows.SlotIssueType, action.SlotName)
		assert.Equal(t, sessions.StateAwaitingSlot, sess.State)
		assert.Equal(t, flows.FlowReportIssue, sess.ActiveFlow)
		assert.Equal(t, 0, sess.SlotIndex)
	})

	t.Run("OpportunisticEntityFillSkipsAhead", func(t *testing.T) {
		sess := newTestSession()
		cls := classification(classifier.IntentReportIssue, 0.9, map[string]string{
			flows.SlotIssueType: "pothole",
			flows.SlotLocation:  "5th Ave and Pine St",
		})

		action := Transition(sess, "there's a pothole at 5th and Pine", cls, reg, th)

		assert.Equal(t, ActionPromptSlot, action.Type)
		assert.Equal(t, flows.SlotDescription, action.SlotName)
		assert.Equal(t, 2, sess.SlotIndex)
		assert.Equal(t, "pothole", sess.Slots[flows.SlotIssueType])
	})

	t.Run("UndeclaredEntityIsIgnored", func(t *testing.T) {
		sess := newTestSession()
		cls := classification(classifier.IntentReportIssue, 0.9, map[string]string{
			"priority":          "urgent",
			flows.SlotIssueType: "graffiti",
		})

		Transition(sess, "urgent graffiti report", cls, reg, th)

		assert.NotContains(t, sess.Slots, "priority")
		assert.Equal(t, "graffiti", sess.Slots[flows.SlotIssueType])
	})

	t.Run("AllSlotsFromEntitiesGoesStraightToConfirm", func(t *testing.T) {
		sess := newTestSession()
		cls := classification(classifier.IntentReportIssue, 0.9, map[string]string{
			flows.SlotIssueType:   "pothole",
			flows.SlotLocation:    "5th Ave and Pine St",
			flows.SlotDescription: "large pothole in the right lane",
		})

		action := Transition(sess, "report it all", cls, reg, th)

		assert.Equal(t, ActionConfirmFlow, action.Type)
		assert.Equal(t, sessions.StateReadyToConfirm, sess.State)
		assert.Len(t, action.Slots, 3)
	})
}

func TestTransitionAwaitingSlot(t *testing.T) {
	reg := flows.DefaultRegistry()
	th := DefaultThresholds()

	inFlow := func(slotIndex int) *sessions.Session {
		sess := newTestSession()
		sess.State = sessions.StateAwaitingSlot
		sess.ActiveFlow = flows.FlowReportIssue
		sess.SlotIndex = slotIndex
		return sess
	}

	t.Run("ValidAnswerFillsAndAdvances", func(t *testing.T) {
		sess := inFlow(0)
		cls := classification(classifier.IntentGeneralInquiry, 0.4, nil)

		action := Transition(sess, "pothole", cls, reg, th)

		assert.Equal(t, ActionPromptSlot, action.Type)
		assert.Equal(t, flows.SlotLocation, action.SlotName)
		assert.Equal(t, "pothole", sess.Slots[flows.SlotIssueType])
		assert.Equal(t, 1, sess.SlotIndex)
	})

	t.Run("InvalidAnswerRePromptsWithGuidance", func(t *testing.T) {
		sess := inFlow(1)
		sess.SetSlot(flows.SlotIssueType, "pothole")
		cls := classification(classifier.IntentGeneralInquiry, 0.4, nil)

		action := Transition(sess, "hm", cls, reg, th)

		assert.Equal(t, ActionPromptSlot, action.Type)
		assert.Equal(t, flows.SlotLocation, action.SlotName)
		assert.NotEmpty(t, action.Guidance)
		assert.Equal(t, 1, sess.SlotIndex)
		assert.NotContains(t, sess.Slots, flows.SlotLocation)
	})

	t.Run("LastSlotMovesToConfirm", func(t *testing.T) {
		sess := inFlow(2)
		sess.SetSlot(flows.SlotIssueType, "pothole")
		sess.SetSlot(flows.SlotLocation, "5th Ave and Pine St")
		cls := classification(classifier.IntentGeneralInquiry, 0.4, nil)

		action := Transition(sess, "large pothole in the right lane", cls, reg, th)

		assert.Equal(t, ActionConfirmFlow, action.Type)
		assert.Equal(t, sessions.StateReadyToConfirm, sess.State)
	})

	t.Run("StrayIntentBelowOverrideIsSlotContent", func(t *testing.T) {
		// "the light by the library" misread as a status check must not
		// derail the flow.
		sess := inFlow(1)
		sess.SetSlot(flows.SlotIssueType, "broken streetlight")
		cls := classification(classifier.IntentStatusCheck, 0.6, nil)

		action := Transition(sess, "the light by the library entrance", cls, reg, th)

		assert.Equal(t, ActionPromptSlot, action.Type)
		assert.Equal(t, flows.SlotDescription, action.SlotName)
		assert.Equal(t, "the light by the library entrance", sess.Slots[flows.SlotLocation])
	})

	t.Run("ConfidentRestatementMergesEntities", func(t *testing.T) {
		sess := inFlow(1)
		sess.SetSlot(flows.SlotIssueType, "pothole")
		cls := classification(classifier.IntentReportIssue, 0.9, map[string]string{
			flows.SlotLocation: "5th Ave and Pine St",
		})

		action := Transition(sess, "it's the pothole at 5th and Pine", cls, reg, th)

		assert.Equal(t, ActionPromptSlot, action.Type)
		assert.Equal(t, flows.SlotDescription, action.SlotName)
		assert.Equal(t, "5th Ave and Pine St", sess.Slots[flows.SlotLocation])
	})
}

func TestTransitionEscalation(t *testing.T) {
	reg := flows.DefaultRegistry()
	th := DefaultThresholds()

	t.Run("IdleEscalatesAtLowThreshold", func(t *testing.T) {
		sess := newTestSession()
		cls := classification(classifier.IntentEscalate, 0.6, nil)

		action := Transition(sess, "let me talk to a person", cls, reg, th)

		assert.Equal(t, ActionEscalate, action.Type)
		assert.Equal(t, sessions.StateEscalated, sess.State)
		assert.NotEmpty(t, action.TicketID)
		assert.Equal(t, sess.TicketID, action.TicketID)
	})

	t.Run("MidFlowRequiresOverrideConfidence", func(t *testing.T) {
		sess := newTestSession()
		sess.State = sessions.StateAwaitingSlot
		sess.ActiveFlow = flows.FlowReportIssue
		sess.SlotIndex = 1
		sess.SetSlot(flows.SlotIssueType, "pothole")

		// Below the override bar: treat the text as the slot answer.
		cls := classification(classifier.IntentEscalate, 0.6, nil)
		action := Transition(sess, "near the agency building on Main St", cls, reg, th)

		assert.Equal(t, ActionPromptSlot, action.Type)
		assert.Equal(t, sessions.StateAwaitingSlot, sess.State)
	})

	t.Run("MidFlowEscalationPreservesSlots", func(t *testing.T) {
		sess := newTestSession()
		sess.State = sessions.StateAwaitingSlot
		sess.ActiveFlow = flows.FlowReportIssue
		sess.SlotIndex = 1
		sess.SetSlot(flows.SlotIssueType, "pothole")

		cls := classification(classifier.IntentEscalate, 0.9, nil)
		action := Transition(sess, "stop, I need a human", cls, reg, th)

		assert.Equal(t, ActionEscalate, action.Type)
		assert.Equal(t, sessions.StateEscalated, sess.State)
		assert.Empty(t, sess.ActiveFlow)
		// Collected answers survive the hand-off so the flow can resume.
		assert.Equal(t, "pothole", sess.Slots[flows.SlotIssueType])
	})

	t.Run("TicketIDIsStable", func(t *testing.T) {
		sess := newTestSession()
		cls := classification(classifier.IntentEscalate, 0.9, nil)

		first := Transition(sess, "human please", cls, reg, th)
		second := Transition(sess, "human please", cls, reg, th)

		assert.Equal(t, first.TicketID, second.TicketID)
	})
}

func TestTransitionConfirmation(t *testing.T) {
	reg := flows.DefaultRegistry()
	th := DefaultThresholds()

	readyToConfirm := func() *sessions.Session {
		sess := newTestSession()
		sess.State = sessions.StateReadyToConfirm
		sess.ActiveFlow = flows.FlowReportIssue
		sess.SetSlot(flows.SlotIssueType, "pothole")
		sess.SetSlot(flows.SlotLocation, "5th Ave and Pine St")
		sess.SetSlot(flows.SlotDescription, "large pothole in the right lane")
		return sess
	}

	t.Run("YesSubmitsAndCompletes", func(t *testing.T) {
		sess := readyToConfirm()
		cls := classification(classifier.IntentConfirm, 0.9, nil)

		action := Transition(sess, "yes", cls, reg, th)

		assert.Equal(t, ActionSubmitFlow, action.Type)
		assert.Equal(t, sessions.StateCompleted, sess.State)
		assert.Empty(t, sess.ActiveFlow)
		assert.Equal(t, "pothole", action.Slots[flows.SlotIssueType])
	})

	t.Run("AffirmativeTextWorksWithoutConfirmIntent", func(t *testing.T) {
		sess := readyToConfirm()
		cls := classification(classifier.IntentGeneralInquiry, 0.3, nil)

		action := Transition(sess, "Yep!", cls, reg, th)

		assert.Equal(t, ActionSubmitFlow, action.Type)
	})

	t.Run("NoRestartsTheFlow", func(t *testing.T) {
		sess := readyToConfirm()
		cls := classification(classifier.IntentRestart, 0.9, nil)

		action := Transition(sess, "no, start over", cls, reg, th)

		assert.Equal(t, ActionPromptSlot, action.Type)
		assert.Equal(t, flows.SlotIssueType, action.SlotName)
		assert.Equal(t, sessions.StateAwaitingSlot, sess.State)
		assert.Empty(t, sess.Slots)
		assert.Equal(t, 0, sess.SlotIndex)
	})

	t.Run("AmbiguousAnswerRepeatsSummary", func(t *testing.T) {
		sess := readyToConfirm()
		cls := classification(classifier.IntentGeneralInquiry, 0.3, nil)

		action := Transition(sess, "what happens next?", cls, reg, th)

		assert.Equal(t, ActionConfirmFlow, action.Type)
		assert.Equal(t, sessions.StateReadyToConfirm, sess.State)
	})
}

func TestTransitionTerminalStatesRouteFreshIntents(t *testing.T) {
	reg := flows.DefaultRegistry()
	th := DefaultThresholds()

	t.Run("EscalatedUserCanStillCheckStatus", func(t *testing.T) {
		sess := newTestSession()
		sess.State = sessions.StateEscalated
		sess.TicketID = "CIV-ABC12345"

		cls := classification(classifier.IntentStatusCheck, 0.9, map[string]string{
			classifier.EntityRequestNumber: "24-00123456",
		})
		action := Transition(sess, "status of 24-00123456", cls, reg, th)

		assert.Equal(t, ActionStatusLookup, action.Type)
	})

	t.Run("GreetingGetsStaticResponse", func(t *testing.T) {
		sess := newTestSession()
		cls := classification(classifier.IntentGreeting, 0.9, nil)

		action := Transition(sess, "hi there", cls, reg, th)

		assert.Equal(t, ActionStaticResponse, action.Type)
		assert.Equal(t, "greeting", action.Topic)
	})
}

func TestTransitionMultiTurnReportScenario(t *testing.T) {
	reg := flows.DefaultRegistry()
	th := DefaultThresholds()
	sess := newTestSession()

	// Turn 1: open the flow.
	action := Transition(sess, "I want to report a pothole",
		classification(classifier.IntentReportIssue, 0.9, map[string]string{flows.SlotIssueType: "pothole"}), reg, th)
	require.Equal(t, ActionPromptSlot, action.Type)
	require.Equal(t, flows.SlotLocation, action.SlotName)

	// Turn 2: location.
	action = Transition(sess, "5th Ave and Pine St",
		classification(classifier.IntentGeneralInquiry, 0.4, nil), reg, th)
	require.Equal(t, ActionPromptSlot, action.Type)
	require.Equal(t, flows.SlotDescription, action.SlotName)

	// Turn 3: description completes the slots.
	action = Transition(sess, "large pothole in the right lane",
		classification(classifier.IntentGeneralInquiry, 0.4, nil), reg, th)
	require.Equal(t, ActionConfirmFlow, action.Type)
	require.Equal(t, sessions.StateReadyToConfirm, sess.State)

	// Turn 4: confirm and submit.
	action = Transition(sess, "yes",
		classification(classifier.IntentConfirm, 0.9, nil), reg, th)
	require.Equal(t, ActionSubmitFlow, action.Type)
	require.Equal(t, sessions.StateCompleted, sess.State)
	assert.Equal(t, map[string]string{
		flows.SlotIssueType:   "pothole",
		flows.SlotLocation:    "5th Ave and Pine St",
		flows.SlotDescription: "large pothole in the right lane",
	}, action.Slots)
}
