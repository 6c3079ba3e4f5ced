package nop

import (
	"context"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishChat validates input and otherwise does nothing.
func (p *Publisher) PublishChat(_ context.Context, event *eventstream.ChatCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilChatEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
