package relay

import (
	"encoding/json"
)

// Kind discriminates client events.
type Kind string

const (
	KindInit      Kind = "init"
	KindDelta     Kind = "delta"
	KindCompleted Kind = "completed"
	KindDone      Kind = "done"
	KindError     Kind = "error"
)

// emptyUsage is sent when the upstream chat completion carried no usage.
var emptyUsage = json.RawMessage(`{}`)

// Event is one client-facing stream record. Only the fields relevant to Kind
// are serialized.
type Event struct {
	Kind           Kind
	ConversationID string
	Content        string
	Usage          json.RawMessage
	Message        string
	Status         int

	// answer holds the full text of a completed answer message. It never
	// reaches the client.
	answer string
}

// Init announces the upstream conversation id.
func Init(conversationID string) Event {
	return Event{Kind: KindInit, ConversationID: conversationID}
}

// Delta carries a fragment of the answer.
func Delta(content string) Event {
	return Event{Kind: KindDelta, Content: content}
}

// Completed marks the end of one answer message.
func Completed() Event {
	return Event{Kind: KindCompleted}
}

// Done closes the chat with the conversation id and token usage.
func Done(conversationID string, usage json.RawMessage) Event {
	if len(usage) == 0 || string(usage) == "null" {
		usage = emptyUsage
	}
	return Event{Kind: KindDone, ConversationID: conversationID, Usage: usage}
}

// Failure reports a terminal error in-band. A zero status is omitted.
func Failure(message string, status int) Event {
	return Event{Kind: KindError, Message: message, Status: status}
}

// Answer returns the full answer text carried by a completed event.
func (e Event) Answer() string {
	return e.answer
}

type initWire struct {
	Type           Kind   `json:"type"`
	ConversationID string `json:"conversation_id"`
}

type deltaWire struct {
	Type    Kind   `json:"type"`
	Content string `json:"content"`
}

type completedWire struct {
	Type Kind `json:"type"`
}

type doneWire struct {
	Type           Kind            `json:"type"`
	ConversationID string          `json:"conversation_id"`
	Usage          json.RawMessage `json:"usage"`
}

type errorWire struct {
	Type   Kind   `json:"type"`
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"`
}

// MarshalJSON renders the wire form for the event kind.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindInit:
		return json.Marshal(initWire{Type: e.Kind, ConversationID: e.ConversationID})
	case KindDelta:
		return json.Marshal(deltaWire{Type: e.Kind, Content: e.Content})
	case KindDone:
		usage := e.Usage
		if len(usage) == 0 {
			usage = emptyUsage
		}
		return json.Marshal(doneWire{Type: e.Kind, ConversationID: e.ConversationID, Usage: usage})
	case KindError:
		return json.Marshal(errorWire{Type: e.Kind, Error: e.Message, Status: e.Status})
	default:
		return json.Marshal(completedWire{Type: e.Kind})
	}
}

// UnmarshalJSON reads any wire form back into an Event.
func (e *Event) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type           Kind            `json:"type"`
		ConversationID string          `json:"conversation_id"`
		Content        string          `json:"content"`
		Usage          json.RawMessage `json:"usage"`
		Error          string          `json:"error"`
		Status         int             `json:"status"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*e = Event{
		Kind:           wire.Type,
		ConversationID: wire.ConversationID,
		Content:        wire.Content,
		Usage:          wire.Usage,
		Message:        wire.Error,
		Status:         wire.Status,
	}
	return nil
}
