package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const (
	sessionFile = "session.json"

	// MaxSessionTurns is how many turns a saved session keeps.
	MaxSessionTurns = 6
)

// SessionState is the chat client's resumable conversation.
type SessionState struct {
	// ConversationID is the upstream conversation being continued.
	ConversationID string `json:"conversation_id"`

	// UserID is the identity the client chats as.
	UserID string `json:"user_id,omitempty"`

	// Turns is the recent history in chronological order.
	Turns []SessionTurn `json:"turns"`
}

// SessionTurn is one message of the saved history.
type SessionTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Append adds a turn and trims the history to MaxSessionTurns.
func (s *SessionState) Append(role, content string) {
	s.Turns = append(s.Turns, SessionTurn{Role: role, Content: content})
	if len(s.Turns) > MaxSessionTurns {
		s.Turns = append([]SessionTurn(nil), s.Turns[len(s.Turns)-MaxSessionTurns:]...)
	}
}

// LoadSession loads the session from a target .chatrelay/session.json.
// Returns nil, nil if no session has been saved.
func (m *Manager) LoadSession(overrideDir string) (*SessionState, error) {
	path, err := m.File(overrideDir, sessionFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session state: %w", err)
	}

	state := &SessionState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing session state: %w", err)
	}

	return state, nil
}

// SaveSession persists state to a target .chatrelay/session.json.
func (m *Manager) SaveSession(state *SessionState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil session state")
	}

	path, err := m.File(overrideDir, sessionFile)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session state: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}

	return nil
}

// ClearSession removes the session file so the next chat starts a new
// conversation. Returns nil if there is nothing to remove.
func (m *Manager) ClearSession(overrideDir string) error {
	path, err := m.File(overrideDir, sessionFile)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing session state: %w", err)
	}

	return nil
}
