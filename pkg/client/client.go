// Package client reads the JSON endpoints of a running chat relay.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/news"
	"github.com/papercomputeco/chatrelay/pkg/stats"
)

// DefaultTimeout bounds each request. News may wait on a full upstream
// chat turn, so it is generous.
const DefaultTimeout = 3 * time.Minute

// StatusError is returned for any non-2xx reply.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay returned %d", e.Status)
	}
	return fmt.Sprintf("relay returned %d: %s", e.Status, e.Message)
}

// Client talks to one relay.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client for baseURL. A nil hc gets a client with DefaultTimeout.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// News fetches GET /api/news.
func (c *Client) News(ctx context.Context) ([]news.Item, error) {
	var body struct {
		Success bool        `json:"success"`
		News    []news.Item `json:"news"`
	}
	if err := c.get(ctx, "/api/news", &body); err != nil {
		return nil, err
	}
	return body.News, nil
}

// Stats fetches GET /api/stats.
func (c *Client) Stats(ctx context.Context) (*stats.Snapshot, error) {
	snap := &stats.Snapshot{}
	if err := c.get(ctx, "/api/stats", snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Health fetches GET /api/health and returns the reported status.
func (c *Client) Health(ctx context.Context) (string, error) {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/api/health", &body); err != nil {
		return "", err
	}
	return body.Status, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &e)
		return &StatusError{Status: resp.StatusCode, Message: e.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
