package relay

import (
	"strings"

	"github.com/papercomputeco/chatrelay/pkg/coze"
)

// MaxHistory is the number of prior turns forwarded upstream.
const MaxHistory = 6

// HistoryMessage is one prior turn of the conversation.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a single user turn.
type ChatRequest struct {
	Message        string           `json:"message"`
	UserID         string           `json:"user_id,omitempty"`
	ConversationID string           `json:"conversation_id,omitempty"`
	History        []HistoryMessage `json:"history,omitempty"`
}

// Validate rejects blank messages.
func (r ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return &ValidationError{Err: ErrEmptyMessage}
	}
	return nil
}

// payload builds the upstream body. The bot id is left for the client to fill.
func (r ChatRequest) payload(autoSave bool) coze.ChatPayload {
	history := r.History
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}

	messages := make([]coze.Message, 0, len(history)+1)
	for _, h := range history {
		messages = append(messages, coze.Message{Role: h.Role, Content: h.Content, ContentType: "text"})
	}
	messages = append(messages, coze.Message{Role: "user", Content: r.Message, ContentType: "text"})

	return coze.ChatPayload{
		UserID:             r.UserID,
		Stream:             true,
		AutoSaveHistory:    autoSave,
		AdditionalMessages: messages,
		ConversationID:     r.ConversationID,
	}
}
