package orchestrator

// ActionType tags the variant of the action the state machine chose for a
// turn.
type ActionType string

const (
	ActionEscalate         ActionType = "escalate"
	ActionStatusLookup     ActionType = "status_lookup"
	ActionAskRequestNumber ActionType = "ask_request_number"
	ActionPromptSlot       ActionType = "prompt_slot"
	ActionConfirmFlow      ActionType = "confirm_flow"
	ActionSubmitFlow       ActionType = "submit_flow"
	ActionStaticResponse   ActionType = "static_response"
	ActionClarify          ActionType = "clarify"
)

// Action is the tagged result of the transition function: what the bot does
// next. Only the fields relevant to Type are set.
type Action struct {
	Type ActionType

	// status_lookup
	RequestNumber string

	// prompt_slot / confirm_flow / submit_flow
	FlowID     string
	SlotName   string
	PromptText string
	Guidance   string
	Slots      map[string]string

	// static_response
	Topic string

	// escalate
	TicketID string

	// Degraded marks an action chosen because a collaborator was down, so
	// the reply can say so instead of pretending to have understood.
	Degraded bool
}

// Thresholds are the confidence cut-offs the state machine routes by. They
// are configuration, not constants.
type Thresholds struct {
	// LowConfidence is the floor below which an idle-state classification is
	// treated as a general inquiry needing clarification.
	LowConfidence float64
	// OverrideConfidence is the floor a mid-flow intent must clear to divert
	// an in-progress flow.
	OverrideConfidence float64
}

// DefaultThresholds returns the conservative defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LowConfidence:      0.5,
		OverrideConfidence: 0.75,
	}
}
