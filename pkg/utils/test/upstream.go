// Package testutils holds fixtures shared by package tests.
package testutils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// CozeServer is an httptest stand-in for the upstream chat API. It replays
// Stream line by line, flushing after each.
type CozeServer struct {
	*httptest.Server

	mu       sync.Mutex
	stream   string
	status   int
	calls    int
	payloads []map[string]any
}

// NewCozeServer starts a server that answers every chat call with stream.
func NewCozeServer(stream string) *CozeServer {
	s := &CozeServer{stream: stream, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// SetStream replaces the replayed stream.
func (s *CozeServer) SetStream(stream string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream = stream
}

// SetStatus makes later calls fail with status.
func (s *CozeServer) SetStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Calls returns the number of chat calls received.
func (s *CozeServer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// LastPayload returns the decoded body of the latest call.
func (s *CozeServer) LastPayload() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.payloads) == 0 {
		return nil
	}
	return s.payloads[len(s.payloads)-1]
}

func (s *CozeServer) handle(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)

	s.mu.Lock()
	s.calls++
	s.payloads = append(s.payloads, payload)
	status, stream := s.status, s.stream
	s.mu.Unlock()

	if status != http.StatusOK {
		w.WriteHeader(status)
		fmt.Fprint(w, `{"code":4100,"msg":"upstream failure"}`)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, line := range strings.SplitAfter(stream, "\n") {
		fmt.Fprint(w, line)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// ChatStream builds an upstream event stream for conversationID whose answer
// arrives as the given deltas.
func ChatStream(conversationID string, deltas ...string) string {
	var b strings.Builder
	writeEvent := func(event string, payload any) {
		data, _ := json.Marshal(payload)
		fmt.Fprintf(&b, "event: %s\ndata: %s\n\n", event, data)
	}

	writeEvent("conversation.chat.created", map[string]string{"conversation_id": conversationID})
	for _, d := range deltas {
		writeEvent("conversation.message.delta", map[string]string{"type": "answer", "content": d})
	}
	writeEvent("conversation.message.completed", map[string]string{"type": "answer", "content": strings.Join(deltas, "")})
	writeEvent("conversation.chat.completed", map[string]any{"usage": map[string]int{"token_count": len(deltas)}})
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}
