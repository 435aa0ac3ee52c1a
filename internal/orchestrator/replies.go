package orchestrator

import (
	"fmt"
	"strings"

	"github.com/opencivic/civbot/internal/citydata"
	"github.com/opencivic/civbot/internal/delivery"
	"github.com/opencivic/civbot/internal/orchestrator/flows"
)

// Canned copy for turns that need no collaborator call. Deployments wanting
// different wording swap these at the rendering layer; the state machine
// never embeds user-facing text.
const (
	replyAskRequestNumber = "Sure, I can check on that. What's your service request number? It looks like 24-00123456."
	replyClarify          = "I can check the status of a service request, help you report an issue, or connect you with a person. What would you like to do?"
	replyClarifyDegraded  = "Sorry, I'm having trouble understanding requests right now. You can try again in a moment, or say \"talk to a person\" to reach someone directly."
	replyLookupDegraded   = "I couldn't check on that right now. Please try again in a few minutes."
	replySubmitted        = "Thanks, your report has been submitted. The team will review it and you'll hear back through this channel."
)

var staticResponses = map[string]string{
	"greeting": "Hi! I'm the city services assistant. I can check the status of a service request, help you report an issue, or connect you with a person.",
	"hours":    "City service counters are open Monday through Friday, 8:30am to 4:30pm.",
	"contact":  "You can reach city services by calling 311, or online at the city services portal.",
}

const staticResponseFallback = "I can help with city service requests. Ask me to check a request's status or to report an issue."

var clarifyQuickReplies = []delivery.QuickReply{
	{Title: "Check status", Payload: "check status"},
	{Title: "Report an issue", Payload: "report an issue"},
	{Title: "Talk to a person", Payload: "talk to a person"},
}

func renderEscalation(ticketID string) delivery.Message {
	return delivery.Message{
		Text: fmt.Sprintf("I'm connecting you with our service team. Your ticket number is %s. Someone will follow up here, or you can call 311 and mention the ticket.", ticketID),
	}
}

func renderAskRequestNumber() delivery.Message {
	return delivery.Message{Text: replyAskRequestNumber}
}

func renderSlotPrompt(action Action) delivery.Message {
	if action.Guidance != "" {
		return delivery.Message{Text: action.Guidance + " " + action.PromptText}
	}
	return delivery.Message{Text: action.PromptText}
}

func renderConfirmation(schema *flows.Schema, slots map[string]string) delivery.Message {
	var b strings.Builder
	b.WriteString("Here's what I have:\n")
	for _, name := range schema.SlotNames() {
		b.WriteString(fmt.Sprintf("- %s: %s\n", humanizeSlotName(name), slots[name]))
	}
	if schema.ConfirmPrompt != "" {
		b.WriteString(schema.ConfirmPrompt)
	} else {
		b.WriteString("Shall I submit this?")
	}
	return delivery.Message{
		Text: b.String(),
		QuickReplies: []delivery.QuickReply{
			{Title: "Yes, submit", Payload: "yes"},
			{Title: "No, start over", Payload: "no"},
		},
	}
}

func renderSubmitted() delivery.Message {
	return delivery.Message{Text: replySubmitted}
}

func renderStaticResponse(topic string) delivery.Message {
	if text, ok := staticResponses[strings.ToLower(strings.TrimSpace(topic))]; ok {
		return delivery.Message{Text: text}
	}
	return delivery.Message{Text: staticResponseFallback, QuickReplies: clarifyQuickReplies}
}

func renderClarify(degraded bool) delivery.Message {
	if degraded {
		return delivery.Message{Text: replyClarifyDegraded}
	}
	return delivery.Message{Text: replyClarify, QuickReplies: clarifyQuickReplies}
}

func renderStatus(rec *citydata.ServiceRequest) delivery.Message {
	text := fmt.Sprintf("Request %s (%s) at %s is currently: %s.",
		rec.RequestNumber, rec.RequestType, rec.Location, rec.Status)
	if rec.Agency != "" {
		text += fmt.Sprintf(" It's being handled by %s.", rec.Agency)
	}
	return delivery.Message{Text: text}
}

func renderStatusNotFound(requestNumber string) delivery.Message {
	return delivery.Message{
		Text: fmt.Sprintf("I couldn't find a request with the number %s. Double-check the number and send it again, or say \"talk to a person\" for help.", requestNumber),
	}
}

func renderLookupDegraded() delivery.Message {
	return delivery.Message{Text: replyLookupDegraded}
}

func humanizeSlotName(name string) string {
	parts := strings.Split(name, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
