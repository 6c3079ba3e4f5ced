package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/chatrelay/pkg/relay"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeChatCompleted is emitted after a relayed chat turn ends.
	EventTypeChatCompleted = "chatrelay.chat.completed"
)

// ChatCompletedEvent is a transport-neutral record of one relayed turn.
type ChatCompletedEvent struct {
	SchemaVersion  int       `json:"schema_version"`
	EventType      string    `json:"event_type"`
	EventID        string    `json:"event_id"`
	EmittedAt      time.Time `json:"emitted_at"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Prompt         string    `json:"prompt"`
	Answer         string    `json:"answer"`
	Outcome        string    `json:"outcome"`
	Streaming      bool      `json:"streaming"`
	DurationMs     int64     `json:"duration_ms"`
}

// NewChatCompletedEvent builds the event for t, stamped at now.
func NewChatCompletedEvent(t relay.Transcript, now time.Time) *ChatCompletedEvent {
	return &ChatCompletedEvent{
		SchemaVersion:  SchemaVersionV1,
		EventType:      EventTypeChatCompleted,
		EventID:        uuid.NewString(),
		EmittedAt:      now.UTC(),
		UserID:         t.UserID,
		ConversationID: t.ConversationID,
		Prompt:         t.Prompt,
		Answer:         t.Answer,
		Outcome:        t.State.String(),
		Streaming:      t.Streamed,
		DurationMs:     t.Duration.Milliseconds(),
	}
}
