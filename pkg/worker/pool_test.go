package worker_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/relay"
	"github.com/papercomputeco/chatrelay/pkg/worker"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []*eventstream.ChatCompletedEvent
	gate   chan struct{}
	err    error
}

func (c *capturePublisher) PublishChat(_ context.Context, event *eventstream.ChatCompletedEvent) error {
	if c.gate != nil {
		<-c.gate
	}
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func (c *capturePublisher) Events() []*eventstream.ChatCompletedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*eventstream.ChatCompletedEvent(nil), c.events...)
}

var _ = Describe("Worker Pool", func() {
	var pub *capturePublisher

	BeforeEach(func() {
		pub = &capturePublisher{}
	})

	It("requires a publisher", func() {
		_, err := worker.NewPool(&worker.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("publishes observed transcripts before Close returns", func() {
		wp, err := worker.NewPool(&worker.Config{Publisher: pub})
		Expect(err).NotTo(HaveOccurred())

		wp.Observe(relay.Transcript{UserID: "u1", ConversationID: "c1", Answer: "hi", State: relay.StateOK})
		wp.Observe(relay.Transcript{UserID: "u2", State: relay.StateUpstreamError})
		wp.Close()

		events := pub.Events()
		Expect(events).To(HaveLen(2))

		outcomes := []string{events[0].Outcome, events[1].Outcome}
		Expect(outcomes).To(ConsistOf("ok", "upstream_error"))
	})

	It("drops jobs when the queue is full", func() {
		pub.gate = make(chan struct{})
		wp, err := worker.NewPool(&worker.Config{Publisher: pub, NumWorkers: 1, QueueSize: 1})
		Expect(err).NotTo(HaveOccurred())

		accepted := 0
		for range 5 {
			if wp.Enqueue(worker.Job{Transcript: relay.Transcript{UserID: "u"}}) {
				accepted++
			}
		}
		Expect(accepted).To(BeNumerically("<=", 2))
		Expect(accepted).To(BeNumerically(">=", 1))

		close(pub.gate)
		wp.Close()
		Expect(pub.Events()).To(HaveLen(accepted))
	})

	It("refuses jobs after Close", func() {
		wp, err := worker.NewPool(&worker.Config{Publisher: pub})
		Expect(err).NotTo(HaveOccurred())
		wp.Close()
		wp.Close()

		Expect(wp.Enqueue(worker.Job{})).To(BeFalse())
	})

	It("keeps going after a publish failure", func() {
		pub.err = errors.New("broker down")
		wp, err := worker.NewPool(&worker.Config{Publisher: pub})
		Expect(err).NotTo(HaveOccurred())

		Expect(wp.Enqueue(worker.Job{})).To(BeTrue())
		Expect(wp.Enqueue(worker.Job{})).To(BeTrue())
		wp.Close()
		Expect(pub.Events()).To(BeEmpty())
	})
})
