package delivery

// QuickReply is a tappable shortcut attached to an outbound message.
type QuickReply struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// Message is the outbound reply directive. The core returns it; the transport
// layer delivers it. The core never sends directly.
type Message struct {
	Text         string       `json:"text"`
	QuickReplies []QuickReply `json:"quick_replies,omitempty"`
	Links        []string     `json:"links,omitempty"`
}
