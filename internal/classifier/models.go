package classifier

import "strings"

// Intent is the label the classifier assigns to an inbound message.
type Intent string

const (
	IntentStatusCheck    Intent = "STATUS_CHECK"
	IntentReportIssue    Intent = "REPORT_ISSUE"
	IntentEscalate       Intent = "ESCALATE"
	IntentGeneralInquiry Intent = "GENERAL_INQUIRY"
	IntentGreeting       Intent = "GREETING"
	IntentConfirm        Intent = "CONFIRM"
	IntentRestart        Intent = "RESTART"
)

// Entity keys the classifier is expected to extract.
const (
	EntityRequestNumber = "request_number"
	EntityTopic         = "topic"
)

// ParseIntent normalizes a raw intent label. Unknown labels map to
// GENERAL_INQUIRY so the dialogue can always route to a clarification.
func ParseIntent(raw string) Intent {
	switch Intent(strings.ToUpper(strings.TrimSpace(raw))) {
	case IntentStatusCheck:
		return IntentStatusCheck
	case IntentReportIssue:
		return IntentReportIssue
	case IntentEscalate:
		return IntentEscalate
	case IntentGreeting:
		return IntentGreeting
	case IntentConfirm:
		return IntentConfirm
	case IntentRestart:
		return IntentRestart
	default:
		return IntentGeneralInquiry
	}
}

// Classification is the structured result of classifying one message.
type Classification struct {
	Intent     Intent            `json:"intent"`
	Entities   map[string]string `json:"entities"`
	Confidence float64           `json:"confidence"`
}

// Entity returns the named entity value, or "" when absent.
func (c *Classification) Entity(name string) string {
	if c.Entities == nil {
		return ""
	}
	return c.Entities[name]
}

// Turn is one prior message passed to the classifier as context.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// escalationKeywords is the static fallback matcher that keeps escalation
// reachable when the classifier is unavailable.
var escalationKeywords = []string{
	"human",
	"agent",
	"operator",
	"representative",
	"escalate",
	"real person",
}

// MatchesEscalationKeyword reports whether the text plainly asks for a human.
func MatchesEscalationKeyword(text string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range escalationKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
