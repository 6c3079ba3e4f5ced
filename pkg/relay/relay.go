// Package relay drives one chat turn against the upstream service and turns
// its event stream into the smaller client event stream.
//
// Relay.Stream forwards each client event as soon as it is translated.
// Relay.Aggregate runs the same pipeline and returns the concatenated answer.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/coze"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/sse"
)

const (
	// DefaultTimeout bounds a whole upstream call, body included.
	DefaultTimeout = 120 * time.Second

	// DefaultHeartbeat is how often Stream pings a Pinger sink.
	DefaultHeartbeat = time.Second
)

// Upstream opens one streaming chat call.
type Upstream interface {
	Chat(ctx context.Context, payload coze.ChatPayload) (io.ReadCloser, error)
}

// Sink receives client events. Done writes the terminal marker.
type Sink interface {
	WriteEvent(v any) error
	Done() error
}

// Pinger is implemented by sinks that can carry a no-op keepalive. Stream
// pings such sinks while it waits on the upstream, so a vanished client is
// noticed even when nothing is being relayed.
type Pinger interface {
	Ping() error
}

// Transcript summarizes a finished call for observers.
type Transcript struct {
	UserID         string
	ConversationID string
	Prompt         string
	Answer         string
	State          State
	Streamed       bool
	Duration       time.Duration

	// Reached is the last in-flight state before State: StateRequestSent
	// when the call ended before any upstream record, StateStreaming after.
	Reached State
}

// Observer is notified after every call that reached the upstream.
type Observer func(Transcript)

// Relay is safe for concurrent use. Per-call state lives in each call.
type Relay struct {
	upstream  Upstream
	timeout   time.Duration
	heartbeat time.Duration
	logger    *slog.Logger
	observer  Observer
}

// Option configures a Relay.
type Option func(*Relay)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithHeartbeat overrides DefaultHeartbeat. A negative d turns pings off.
func WithHeartbeat(d time.Duration) Option {
	return func(r *Relay) {
		if d != 0 {
			r.heartbeat = d
		}
	}
}

// WithLogger sets the relay logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver registers fn to receive a Transcript per call.
func WithObserver(fn Observer) Option {
	return func(r *Relay) {
		r.observer = fn
	}
}

// New returns a Relay over upstream.
func New(upstream Upstream, opts ...Option) *Relay {
	r := &Relay{
		upstream:  upstream,
		timeout:   DefaultTimeout,
		heartbeat: DefaultHeartbeat,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stream relays req to the upstream and writes client events to sink as they
// arrive. Validation failures return before anything is sent upstream or to
// sink. Every other path ends with exactly one sink.Done call, and upstream
// failures are also written to sink as an error event.
//
// If sink is a Pinger it is pinged every heartbeat interval. A failed ping
// means the client is gone: the upstream call is cancelled at once.
func (r *Relay) Stream(ctx context.Context, req ChatRequest, sink Sink) (State, error) {
	if err := req.Validate(); err != nil {
		return StateIdle, err
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var gone atomic.Bool
	stopPings := r.keepalive(ctx, sink, func(err error) {
		r.logger.Debug("client keepalive failed", "user_id", req.UserID, "error", err)
		gone.Store(true)
		cancel()
	})

	var answer strings.Builder
	tr := NewTranslator()
	reached := StateIdle

	state, err := r.pump(ctx, req.payload(true), tr, &reached, func(ev Event) error {
		if ev.Kind == KindDelta {
			answer.WriteString(ev.Content)
		}
		if err := sink.WriteEvent(ev); err != nil {
			cancel()
			return &TransportError{Err: fmt.Errorf("%w: %w", ErrClientGone, err)}
		}
		return nil
	})
	stopPings()

	if err != nil && gone.Load() && !errors.Is(err, ErrClientGone) {
		state = StateTransportError
		err = &TransportError{Err: fmt.Errorf("%w: keepalive failed", ErrClientGone)}
	}

	if err != nil && !errors.Is(err, ErrClientGone) {
		if werr := sink.WriteEvent(failureEvent(err)); werr != nil {
			r.logger.Debug("could not report failure to client", "error", werr)
		}
	}
	if derr := sink.Done(); derr != nil && err == nil {
		state = StateTransportError
		err = &TransportError{Err: fmt.Errorf("%w: %w", ErrClientGone, derr)}
	}

	r.finish(Transcript{
		UserID:         req.UserID,
		ConversationID: tr.ConversationID(),
		Prompt:         req.Message,
		Answer:         answer.String(),
		State:          state,
		Reached:        reached,
		Streamed:       true,
		Duration:       time.Since(start),
	}, err)

	return state, err
}

// AggregateOption tunes Aggregate.
type AggregateOption func(*aggregateConfig)

type aggregateConfig struct {
	completedAnswer bool
	autoSave        bool
}

// WithCompletedAnswer lets the full text of a completed answer message
// replace whatever deltas were accumulated so far.
func WithCompletedAnswer() AggregateOption {
	return func(c *aggregateConfig) {
		c.completedAnswer = true
	}
}

// WithoutHistorySave asks the upstream not to persist the exchange.
func WithoutHistorySave() AggregateOption {
	return func(c *aggregateConfig) {
		c.autoSave = false
	}
}

// Aggregate runs the relay pipeline and returns the concatenated delta
// content. Prior history is not forwarded.
func (r *Relay) Aggregate(ctx context.Context, req ChatRequest, opts ...AggregateOption) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	cfg := aggregateConfig{autoSave: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req.History = nil

	var buf strings.Builder
	tr := NewTranslator()
	reached := StateIdle

	state, err := r.pump(ctx, req.payload(cfg.autoSave), tr, &reached, func(ev Event) error {
		switch ev.Kind {
		case KindDelta:
			buf.WriteString(ev.Content)
		case KindCompleted:
			if cfg.completedAnswer && ev.answer != "" {
				buf.Reset()
				buf.WriteString(ev.answer)
			}
		}
		return nil
	})

	r.finish(Transcript{
		UserID:         req.UserID,
		ConversationID: tr.ConversationID(),
		Prompt:         req.Message,
		Answer:         buf.String(),
		State:          state,
		Reached:        reached,
		Duration:       time.Since(start),
	}, err)

	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// pump opens the upstream call and feeds every translated event to emit.
// It stops at the first emit error. reached tracks the in-flight state.
func (r *Relay) pump(ctx context.Context, payload coze.ChatPayload, tr *Translator, reached *State, emit func(Event) error) (State, error) {
	r.logger.Debug("sending chat request upstream",
		"user_id", payload.UserID,
		"conversation_id", payload.ConversationID,
		"messages", len(payload.AdditionalMessages),
	)

	*reached = StateRequestSent
	body, err := r.upstream.Chat(ctx, payload)
	if err != nil {
		return classify(ctx, err)
	}
	defer body.Close()

	reader := sse.NewReader(body)
	for {
		rec, err := reader.Next()
		if err != nil {
			return classify(ctx, err)
		}
		if rec == nil {
			return StateOK, nil
		}
		*reached = StateStreaming

		ev, ok := tr.Translate(rec)
		if !ok {
			continue
		}
		if err := emit(ev); err != nil {
			return StateTransportError, err
		}
	}
}

func (r *Relay) finish(t Transcript, err error) {
	if err != nil {
		r.logger.Warn("chat relay failed",
			"state", t.State.String(),
			"reached", t.Reached.String(),
			"user_id", t.UserID,
			"error", err,
		)
	} else {
		r.logger.Debug("chat relay complete",
			"conversation_id", t.ConversationID,
			"answer_len", len(t.Answer),
			"duration", t.Duration,
		)
	}

	if r.observer != nil {
		r.observer(t)
	}
}

// keepalive pings sink until the returned stop func is called or ctx ends.
// onGone runs once, on the first failed ping. stop waits for the pinger to
// exit, so no ping races the terminal marker.
func (r *Relay) keepalive(ctx context.Context, sink Sink, onGone func(error)) (stop func()) {
	p, ok := sink.(Pinger)
	if !ok || r.heartbeat <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(r.heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.Ping(); err != nil {
					onGone(err)
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

// classify maps an upstream failure to its terminal state and error.
func classify(ctx context.Context, err error) (State, error) {
	if status, ok := coze.IsStatus(err); ok {
		return StateUpstreamError, &UpstreamStatusError{Status: status}
	}
	if isTimeout(ctx, err) {
		return StateTimeout, ErrTimeout
	}
	return StateTransportError, &TransportError{Err: err}
}

// failureEvent renders err as the in-band error event.
func failureEvent(err error) Event {
	var use *UpstreamStatusError
	if errors.As(err, &use) {
		return Failure("request failed", use.Status)
	}
	if errors.Is(err, ErrTimeout) {
		return Failure(ErrTimeout.Error(), 0)
	}
	return Failure(err.Error(), 0)
}
