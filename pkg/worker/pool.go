// Package worker publishes finished chat turns off the request path.
//
// Relay calls hand their transcript to the pool through Observe; a small set
// of goroutines turns each into a ChatCompletedEvent and publishes it.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/relay"
)

var (
	defaultNumWorkers     uint = 2
	defaultJobQueueSize   uint = 256
	defaultPublishTimeout      = 10 * time.Second
)

// Job is a unit of work for the worker pool.
type Job struct {
	Transcript relay.Transcript
	FinishedAt time.Time
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives one event per job.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// PublishTimeout bounds a single publish call (defaults to 10s).
	PublishTimeout time.Duration

	Logger *slog.Logger
}

// Pool processes publish jobs asynchronously.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a Pool and starts its workers.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, errors.New("worker pool requires a publisher")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.PublishTimeout == 0 {
		c.PublishTimeout = defaultPublishTimeout
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Observe enqueues t. It matches relay.Observer.
func (p *Pool) Observe(t relay.Transcript) {
	p.Enqueue(Job{Transcript: t, FinishedAt: time.Now()})
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("job not queued, pool closed", "user_id", job.Transcript.UserID)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"user_id", job.Transcript.UserID,
			"conversation_id", job.Transcript.ConversationID,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"user_id", job.Transcript.UserID,
			"conversation_id", job.Transcript.ConversationID,
		)
		return false
	}
}

// Close stops accepting jobs and waits for queued ones to drain. It does not
// close the publisher.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()

	finished := job.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	event := eventstream.NewChatCompletedEvent(job.Transcript, finished)
	if err := p.config.Publisher.PublishChat(ctx, event); err != nil {
		p.logger.Error("chat event publish failed",
			"event_id", event.EventID,
			"error", err,
		)
		return
	}

	p.logger.Debug("chat event published",
		"event_id", event.EventID,
		"outcome", event.Outcome,
	)
}
