package whatsapp

// Event is an actionable part of an inbound message.
type Event interface {
	Sender() string
}

// TextEvent is a plain text message.
type TextEvent struct {
	From string
	Body string
}

func (e TextEvent) Sender() string { return e.From }

// ButtonReplyEvent is a tap on a button of a previously sent menu.
type ButtonReplyEvent struct {
	From     string
	ButtonID string
}

func (e ButtonReplyEvent) Sender() string { return e.From }

// Events extracts the actionable events of the first message in the payload.
// Only entry[0].changes[0].value.messages[0] is considered. A message with both
// a text and a button reply yields both, text first. An empty result means
// there is nothing to act on.
func (p *WebhookPayload) Events() []Event {
	msg, ok := p.firstMessage()
	if !ok {
		return nil
	}

	var events []Event
	if msg.Text != nil {
		events = append(events, TextEvent{From: msg.From, Body: msg.Text.Body})
	}
	if msg.Interactive != nil && msg.Interactive.ButtonReply != nil {
		events = append(events, ButtonReplyEvent{From: msg.From, ButtonID: msg.Interactive.ButtonReply.ID})
	}
	return events
}

func (p *WebhookPayload) firstMessage() (Message, bool) {
	if p == nil || len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return Message{}, false
	}
	msgs := p.Entry[0].Changes[0].Value.Messages
	if len(msgs) == 0 {
		return Message{}, false
	}
	return msgs[0], true
}
