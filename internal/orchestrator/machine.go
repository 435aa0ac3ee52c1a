package orchestrator

import (
	"strings"

	"github.com/google/uuid"

	"github.com/opencivic/civbot/internal/citydata"
	"github.com/opencivic/civbot/internal/classifier"
	"github.com/opencivic/civbot/internal/orchestrator/flows"
	"github.com/opencivic/civbot/internal/orchestrator/sessions"
)

// Transition applies one user turn to the session and returns the action the
// bot takes next. It mutates sess in place and performs no I/O; every
// external effect (lookups, persistence, delivery) belongs to the caller.
func Transition(sess *sessions.Session, text string, cls *classifier.Classification, reg *flows.Registry, th Thresholds) Action {
	// Escalation pre-empts everything, including an in-progress flow. Diverting
	// a flow demands the higher bar so that a stray mention of "agent" inside a
	// slot answer does not hijack the collection.
	if cls.Intent == classifier.IntentEscalate && escalationConfident(sess, cls, th) {
		return escalate(sess)
	}

	switch sess.State {
	case sessions.StateAwaitingSlot:
		return continueFlow(sess, text, cls, reg, th)
	case sessions.StateReadyToConfirm:
		return resolveConfirmation(sess, text, cls, reg)
	default:
		// Idle, escalated and completed sessions all route fresh intents the
		// same way; a returning user is not trapped in a terminal state.
		return routeIntent(sess, text, cls, reg, th)
	}
}

func escalationConfident(sess *sessions.Session, cls *classifier.Classification, th Thresholds) bool {
	if sess.InFlow() {
		return cls.Confidence >= th.OverrideConfidence
	}
	return cls.Confidence >= th.LowConfidence
}

// escalate moves the session to the escalated state, minting a ticket ID on
// the first escalation only. Collected slots survive so an interrupted flow
// can resume after the hand-off.
func escalate(sess *sessions.Session) Action {
	if sess.TicketID == "" {
		sess.TicketID = newTicketID()
	}
	sess.State = sessions.StateEscalated
	sess.ActiveFlow = ""
	sess.SlotIndex = 0
	sess.PendingPrompt = sessions.PromptNone
	return Action{Type: ActionEscalate, TicketID: sess.TicketID}
}

func newTicketID() string {
	return "CIV-" + strings.ToUpper(uuid.New().String()[:8])
}

// routeIntent handles a turn with no flow in progress.
func routeIntent(sess *sessions.Session, text string, cls *classifier.Classification, reg *flows.Registry, th Thresholds) Action {
	// A pending request-number prompt means the previous turn asked for one;
	// a number-shaped answer satisfies it regardless of what the classifier
	// made of the bare digits.
	if sess.PendingPrompt == sessions.PromptRequestNumber {
		if rn := extractRequestNumber(text, cls); rn != "" {
			sess.PendingPrompt = sessions.PromptNone
			return Action{Type: ActionStatusLookup, RequestNumber: rn}
		}
	}

	if cls.Confidence < th.LowConfidence {
		return Action{Type: ActionClarify}
	}

	switch cls.Intent {
	case classifier.IntentStatusCheck:
		sess.PendingPrompt = sessions.PromptNone
		if rn := cls.Entity(classifier.EntityRequestNumber); citydata.ValidRequestNumber(rn) {
			return Action{Type: ActionStatusLookup, RequestNumber: rn}
		}
		sess.PendingPrompt = sessions.PromptRequestNumber
		return Action{Type: ActionAskRequestNumber}

	case classifier.IntentReportIssue:
		return startFlow(sess, cls, reg)

	case classifier.IntentGreeting:
		return Action{Type: ActionStaticResponse, Topic: "greeting"}

	case classifier.IntentGeneralInquiry:
		return Action{Type: ActionStaticResponse, Topic: cls.Entity(classifier.EntityTopic)}

	default:
		return Action{Type: ActionClarify}
	}
}

func extractRequestNumber(text string, cls *classifier.Classification) string {
	if rn := cls.Entity(classifier.EntityRequestNumber); citydata.ValidRequestNumber(rn) {
		return rn
	}
	if trimmed := strings.TrimSpace(text); citydata.ValidRequestNumber(trimmed) {
		return trimmed
	}
	return ""
}

// startFlow enters the report-issue flow, filling any slots the classifier
// already extracted from the opening message before prompting for the rest.
func startFlow(sess *sessions.Session, cls *classifier.Classification, reg *flows.Registry) Action {
	schema := reg.Get(flows.FlowReportIssue)
	if schema == nil {
		return Action{Type: ActionClarify}
	}
	sess.ActiveFlow = schema.ID
	sess.PendingPrompt = sessions.PromptNone
	mergeEntities(sess, cls, schema)
	return advanceFlow(sess, schema)
}

// mergeEntities copies classifier entities into session slots, keeping only
// names the schema declares and values its validators accept.
func mergeEntities(sess *sessions.Session, cls *classifier.Classification, schema *flows.Schema) {
	for name, value := range cls.Entities {
		slot, ok := schema.Slot(name)
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if slot.Validate != nil && slot.Validate(value) != nil {
			continue
		}
		sess.SetSlot(name, value)
	}
}

// advanceFlow points the session at the first unfilled slot, or moves it to
// confirmation when every slot is filled.
func advanceFlow(sess *sessions.Session, schema *flows.Schema) Action {
	idx, ok := schema.FirstUnfilled(sess.Slots)
	if !ok {
		sess.State = sessions.StateReadyToConfirm
		sess.SlotIndex = 0
		return Action{
			Type:   ActionConfirmFlow,
			FlowID: schema.ID,
			Slots:  snapshotSlots(sess),
		}
	}
	sess.State = sessions.StateAwaitingSlot
	sess.SlotIndex = idx
	slot := schema.Slots[idx]
	return Action{
		Type:       ActionPromptSlot,
		FlowID:     schema.ID,
		SlotName:   slot.Name,
		PromptText: slot.Prompt,
	}
}

// continueFlow treats the turn as the answer to the currently prompted slot.
// A stray intent below the override threshold never diverts the flow; the
// text is taken at face value as the slot content.
func continueFlow(sess *sessions.Session, text string, cls *classifier.Classification, reg *flows.Registry, th Thresholds) Action {
	schema := reg.Get(sess.ActiveFlow)
	if schema == nil || sess.SlotIndex >= len(schema.Slots) {
		// A stored session referencing a flow this build no longer knows.
		resetToIdle(sess)
		return Action{Type: ActionClarify}
	}

	// A confident re-statement of the report intent can carry entities for
	// other slots; merge them before reading the prompted one.
	if cls.Intent == classifier.IntentReportIssue && cls.Confidence >= th.OverrideConfidence {
		mergeEntities(sess, cls, schema)
		if _, filled := sess.Slots[schema.Slots[sess.SlotIndex].Name]; filled {
			return advanceFlow(sess, schema)
		}
	}

	slot := schema.Slots[sess.SlotIndex]
	value := strings.TrimSpace(text)
	if slot.Validate != nil {
		if err := slot.Validate(value); err != nil {
			// Re-prompt the same slot with guidance; the index stays put.
			return Action{
				Type:       ActionPromptSlot,
				FlowID:     schema.ID,
				SlotName:   slot.Name,
				PromptText: slot.Prompt,
				Guidance:   slot.Guidance,
			}
		}
	}
	sess.SetSlot(slot.Name, value)
	return advanceFlow(sess, schema)
}

// resolveConfirmation handles the yes/no turn after every slot is filled.
func resolveConfirmation(sess *sessions.Session, text string, cls *classifier.Classification, reg *flows.Registry) Action {
	schema := reg.Get(sess.ActiveFlow)
	if schema == nil {
		resetToIdle(sess)
		return Action{Type: ActionClarify}
	}

	switch {
	case cls.Intent == classifier.IntentConfirm || isAffirmative(text):
		slots := snapshotSlots(sess)
		sess.State = sessions.StateCompleted
		sess.ActiveFlow = ""
		sess.SlotIndex = 0
		return Action{Type: ActionSubmitFlow, FlowID: schema.ID, Slots: slots}

	case cls.Intent == classifier.IntentRestart || isNegative(text):
		sess.ClearSlots()
		sess.State = sessions.StateAwaitingSlot
		sess.SlotIndex = 0
		slot := schema.Slots[0]
		return Action{
			Type:       ActionPromptSlot,
			FlowID:     schema.ID,
			SlotName:   slot.Name,
			PromptText: slot.Prompt,
		}

	default:
		// Neither a yes nor a no: repeat the summary and ask again.
		return Action{
			Type:   ActionConfirmFlow,
			FlowID: schema.ID,
			Slots:  snapshotSlots(sess),
		}
	}
}

func resetToIdle(sess *sessions.Session) {
	sess.State = sessions.StateIdle
	sess.ActiveFlow = ""
	sess.SlotIndex = 0
	sess.PendingPrompt = sessions.PromptNone
	sess.ClearSlots()
}

func snapshotSlots(sess *sessions.Session) map[string]string {
	out := make(map[string]string, len(sess.Slots))
	for k, v := range sess.Slots {
		out[k] = v
	}
	return out
}

var affirmatives = map[string]struct{}{
	"yes": {}, "y": {}, "yep": {}, "yeah": {}, "yup": {},
	"confirm": {}, "confirmed": {}, "correct": {}, "submit": {},
	"ok": {}, "okay": {}, "sure": {}, "that's right": {}, "thats right": {},
}

var negatives = map[string]struct{}{
	"no": {}, "n": {}, "nope": {}, "wrong": {},
	"restart": {}, "start over": {}, "start again": {}, "redo": {}, "change": {},
}

func isAffirmative(text string) bool {
	_, ok := affirmatives[normalizeAnswer(text)]
	return ok
}

func isNegative(text string) bool {
	_, ok := negatives[normalizeAnswer(text)]
	return ok
}

func normalizeAnswer(text string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(text), ".!"))
}
