package relay

import (
	"encoding/json"

	"github.com/papercomputeco/chatrelay/pkg/sse"
)

// Upstream event types the translator understands.
const (
	EventChatCreated      = "conversation.chat.created"
	EventMessageDelta     = "conversation.message.delta"
	EventMessageCompleted = "conversation.message.completed"
	EventChatCompleted    = "conversation.chat.completed"

	roleAnswer = "answer"
)

// upstreamPayload is the union of fields read from upstream data lines.
type upstreamPayload struct {
	ConversationID string          `json:"conversation_id"`
	Type           string          `json:"type"`
	Content        string          `json:"content"`
	Usage          json.RawMessage `json:"usage"`
}

// Translator maps upstream records to client events. It holds the
// conversation id of a single upstream call and must not be shared.
type Translator struct {
	conversationID string
	initSent       bool
}

// NewTranslator returns a Translator with empty state.
func NewTranslator() *Translator {
	return &Translator{}
}

// ConversationID returns the id cached from the chat-created record.
func (t *Translator) ConversationID() string {
	return t.conversationID
}

// Translate returns the client event for rec, if any.
func (t *Translator) Translate(rec *sse.Record) (Event, bool) {
	if rec == nil {
		return Event{}, false
	}

	var p upstreamPayload
	if err := json.Unmarshal(rec.Data, &p); err != nil {
		return Event{}, false
	}

	switch rec.Event {
	case EventChatCreated:
		if p.ConversationID == "" {
			return Event{}, false
		}
		t.conversationID = p.ConversationID
		if t.initSent {
			return Event{}, false
		}
		t.initSent = true
		return Init(p.ConversationID), true

	case EventMessageDelta:
		if p.Type != roleAnswer || p.Content == "" {
			return Event{}, false
		}
		return Delta(p.Content), true

	case EventMessageCompleted:
		if p.Type != roleAnswer {
			return Event{}, false
		}
		ev := Completed()
		ev.answer = p.Content
		return ev, true

	case EventChatCompleted:
		return Done(t.conversationID, p.Usage), true
	}

	return Event{}, false
}
