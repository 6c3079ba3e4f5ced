// Package coze is a minimal client for the Coze v3 chat API.
//
// Only the streaming chat call is implemented. The response body is handed
// back unread so callers can decode the event stream themselves.
package coze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

const (
	// DefaultBaseURL is the public Coze API host.
	DefaultBaseURL = "https://api.coze.cn"

	chatPath = "/v3/chat"
)

// Message is one entry of additional_messages.
type Message struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

// ChatPayload is the JSON body of a chat call.
type ChatPayload struct {
	BotID              string    `json:"bot_id"`
	UserID             string    `json:"user_id"`
	Stream             bool      `json:"stream"`
	AutoSaveHistory    bool      `json:"auto_save_history"`
	AdditionalMessages []Message `json:"additional_messages"`
	ConversationID     string    `json:"conversation_id,omitempty"`
}

// StatusError is returned when the API answers with anything but 200.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("coze: unexpected status %d", e.Status)
	}
	return fmt.Sprintf("coze: unexpected status %d: %s", e.Status, e.Body)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string
	BotID   string

	// HTTPClient defaults to a client with no overall timeout. Chat calls
	// are bounded by the caller's context instead.
	HTTPClient *http.Client
}

// Client talks to the chat endpoint. Credentials may be swapped while calls
// are in flight.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
	botID string
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	return &Client{
		baseURL:    base,
		httpClient: hc,
		token:      cfg.Token,
		botID:      cfg.BotID,
	}, nil
}

// SetCredentials replaces the bearer token and bot id used by later calls.
func (c *Client) SetCredentials(token, botID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.botID = botID
}

// BotID returns the bot id currently in use.
func (c *Client) BotID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.botID
}

func (c *Client) credentials() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.botID
}

// Chat posts payload and returns the event-stream body. The caller must close
// it. An empty payload.BotID is filled from the client's credentials.
//
// A non-200 answer is drained, closed and reported as *StatusError.
func (c *Client) Chat(ctx context.Context, payload ChatPayload) (io.ReadCloser, error) {
	token, botID := c.credentials()
	if payload.BotID == "" {
		payload.BotID = botID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	return resp.Body, nil
}

// IsStatus reports whether err carries an upstream status code and returns it.
func IsStatus(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}
	return 0, false
}
