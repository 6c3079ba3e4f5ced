// Package eventstream publishes records of relayed chat turns to an external
// event stream.
package eventstream

import "context"

// Publisher publishes chat events to an event stream backend.
type Publisher interface {
	PublishChat(ctx context.Context, event *ChatCompletedEvent) error
	Close() error
}
