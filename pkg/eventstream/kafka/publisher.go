// Package kafka publishes chat events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/logger"
)

// DefaultTopic receives chat events when no topic is configured.
const DefaultTopic = "chatrelay.chats"

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config configures a Publisher.
type Config struct {
	Brokers []string
	Topic   string
	Logger  *slog.Logger
}

// Publisher writes each event as one JSON message keyed by conversation.
type Publisher struct {
	writer MessageWriter
	topic  string
	logger *slog.Logger
}

// NewPublisher builds a Publisher backed by a kafka.Writer.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}

	return NewPublisherWithWriter(w, topic, cfg.Logger), nil
}

// NewPublisherWithWriter wraps an existing writer.
func NewPublisherWithWriter(w MessageWriter, topic string, l *slog.Logger) *Publisher {
	if l == nil {
		l = logger.Nop()
	}
	return &Publisher{writer: w, topic: topic, logger: l}
}

// PublishChat marshals event and writes it synchronously.
func (p *Publisher) PublishChat(ctx context.Context, event *eventstream.ChatCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilChatEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling chat event: %w", err)
	}

	key := event.ConversationID
	if key == "" {
		key = event.UserID
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  event.EmittedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(fmt.Sprint(event.SchemaVersion))},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing to topic %s: %w", p.topic, err)
	}

	p.logger.Debug("published chat event", "topic", p.topic, "event_id", event.EventID)
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
