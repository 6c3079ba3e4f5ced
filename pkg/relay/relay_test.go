package relay_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/coze"
	"github.com/papercomputeco/chatrelay/pkg/relay"
	"github.com/papercomputeco/chatrelay/pkg/sse"
)

var _ = Describe("Relay", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Stream", func() {
		It("relays the created, delta and completed records in order", func() {
			up := &fakeUpstream{stream: scenarioStream}
			sink := &recordingSink{}

			state, err := relay.New(up).Stream(ctx, relay.ChatRequest{Message: "hello", UserID: "u1"}, sink)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(Equal(relay.StateOK))

			Expect(sink.raw).To(Equal([]string{
				`{"type":"init","conversation_id":"abc"}`,
				`{"type":"delta","content":"hi"}`,
				`{"type":"done","conversation_id":"abc","usage":{}}`,
			}))
			Expect(sink.dones).To(Equal(1))
		})

		It("filters non-answer chatter and malformed lines", func() {
			up := &fakeUpstream{stream: richStream}
			sink := &recordingSink{}

			_, err := relay.New(up).Stream(ctx, relay.ChatRequest{Message: "hello"}, sink)
			Expect(err).NotTo(HaveOccurred())

			Expect(sink.Kinds()).To(Equal([]relay.Kind{
				relay.KindInit,
				relay.KindDelta,
				relay.KindDelta,
				relay.KindDelta,
				relay.KindCompleted,
				relay.KindDone,
			}))
			Expect(sink.events[len(sink.events)-1].ConversationID).To(Equal("c-9"))
		})

		It("rejects an empty message before calling upstream", func() {
			up := &fakeUpstream{stream: scenarioStream}
			sink := &recordingSink{}

			state, err := relay.New(up).Stream(ctx, relay.ChatRequest{Message: "   "}, sink)
			Expect(state).To(Equal(relay.StateIdle))

			var ve *relay.ValidationError
			Expect(errors.As(err, &ve)).To(BeTrue())
			Expect(err).To(MatchError(relay.ErrEmptyMessage))
			Expect(up.Calls()).To(BeZero())
			Expect(sink.raw).To(BeEmpty())
			Expect(sink.dones).To(BeZero())
		})

		It("builds the upstream payload from the request", func() {
			up := &fakeUpstream{stream: scenarioStream}
			history := make([]relay.HistoryMessage, 0, 10)
			for i := range 10 {
				role := "user"
				if i%2 == 1 {
					role = "assistant"
				}
				history = append(history, relay.HistoryMessage{Role: role, Content: fmt.Sprintf("turn %d", i)})
			}

			_, err := relay.New(up).Stream(ctx, relay.ChatRequest{
				Message:        "now",
				UserID:         "u1",
				ConversationID: "conv-1",
				History:        history,
			}, &recordingSink{})
			Expect(err).NotTo(HaveOccurred())

			p := up.LastPayload()
			Expect(p.UserID).To(Equal("u1"))
			Expect(p.Stream).To(BeTrue())
			Expect(p.AutoSaveHistory).To(BeTrue())
			Expect(p.ConversationID).To(Equal("conv-1"))
			Expect(p.AdditionalMessages).To(HaveLen(relay.MaxHistory + 1))
			Expect(p.AdditionalMessages[0].Content).To(Equal("turn 4"))
			Expect(p.AdditionalMessages[relay.MaxHistory]).To(Equal(coze.Message{Role: "user", Content: "now", ContentType: "text"}))
		})

		It("reports an upstream status as one error event", func() {
			up := &fakeUpstream{err: &coze.StatusError{Status: http.StatusInternalServerError}}
			sink := &recordingSink{}

			state, err := relay.New(up).Stream(ctx, relay.ChatRequest{Message: "hello"}, sink)
			Expect(state).To(Equal(relay.StateUpstreamError))

			var use *relay.UpstreamStatusError
			Expect(errors.As(err, &use)).To(BeTrue())
			Expect(use.Status).To(Equal(http.StatusInternalServerError))

			Expect(sink.raw).To(Equal([]string{`{"type":"error","error":"request failed","status":500}`}))
			Expect(sink.dones).To(Equal(1))
		})

		It("reports a read failure as a transport error", func() {
			up := &fakeUpstream{body: func(context.Context) io.ReadCloser {
				return failingBody("event: conversation.message.delta\ndata: {\"type\":\"answer\",\"content\":\"par\"}\n", errReset)
			}}
			sink := &recordingSink{}

			state, err := relay.New(up).Stream(ctx, relay.ChatRequest{Message: "hello"}, sink)
			Expect(state).To(Equal(relay.StateTransportError))
			Expect(err).To(MatchError(errReset))

			Expect(sink.Kinds()).To(Equal([]relay.Kind{relay.KindDelta, relay.KindError}))
			Expect(sink.events[1].Message).To(Equal(errReset.Error()))
			Expect(sink.dones).To(Equal(1))
		})

		It("times out a stalled upstream", func() {
			up := &fakeUpstream{body: func(ctx context.Context) io.ReadCloser {
				return blockingBody{ctx: ctx}
			}}
			sink := &recordingSink{}

			r := relay.New(up, relay.WithTimeout(50*time.Millisecond))
			state, err := r.Stream(ctx, relay.ChatRequest{Message: "hello"}, sink)
			Expect(state).To(Equal(relay.StateTimeout))
			Expect(err).To(MatchError(relay.ErrTimeout))

			Expect(sink.raw).To(Equal([]string{`{"type":"error","error":"request timed out, please retry"}`}))
			Expect(sink.dones).To(Equal(1))
		})

		It("cancels the upstream when the client goes away", func() {
			var cancelled atomic.Bool
			up := &fakeUpstream{body: func(ctx context.Context) io.ReadCloser {
				pr, pw := io.Pipe()
				go func() {
					defer pw.Close()
					for i := 0; ; i++ {
						line := fmt.Sprintf("event: conversation.message.delta\ndata: {\"type\":\"answer\",\"content\":\"%d\"}\n", i)
						if _, err := pw.Write([]byte(line)); err != nil {
							cancelled.Store(ctx.Err() != nil)
							return
						}
					}
				}()
				return pr
			}}
			sink := &recordingSink{failAt: 2, failErr: io.ErrClosedPipe}

			state, err := relay.New(up).Stream(ctx, relay.ChatRequest{Message: "hello"}, sink)
			Expect(state).To(Equal(relay.StateTransportError))
			Expect(err).To(MatchError(relay.ErrClientGone))
			Expect(sink.raw).To(HaveLen(2))
			Expect(sink.dones).To(Equal(1))
			Eventually(cancelled.Load).Should(BeTrue())
		})

		It("cancels a stalled upstream when the client goes away", func() {
			released := make(chan struct{})
			up := &fakeUpstream{body: func(ctx context.Context) io.ReadCloser {
				return stallingBody(ctx, "event: conversation.chat.created\ndata: {\"conversation_id\":\"abc\"}\n", released)
			}}
			sink := &pingingSink{}
			sink.gone.Store(true)

			r := relay.New(up, relay.WithHeartbeat(10*time.Millisecond), relay.WithTimeout(time.Minute))

			type result struct {
				state relay.State
				err   error
			}
			results := make(chan result, 1)
			go func() {
				state, err := r.Stream(ctx, relay.ChatRequest{Message: "hello"}, sink)
				results <- result{state, err}
			}()

			Eventually(released).Should(BeClosed())

			var res result
			Eventually(results).Should(Receive(&res))
			Expect(res.state).To(Equal(relay.StateTransportError))
			Expect(res.err).To(MatchError(relay.ErrClientGone))

			Expect(sink.raw).To(Equal([]string{`{"type":"init","conversation_id":"abc"}`}))
			Expect(sink.dones).To(Equal(1))
		})

		It("keeps pinging a live client while the upstream is quiet", func() {
			up := &fakeUpstream{body: func(ctx context.Context) io.ReadCloser {
				pr, pw := io.Pipe()
				go func() {
					_, _ = pw.Write([]byte("event: conversation.chat.created\ndata: {\"conversation_id\":\"abc\"}\n"))
					select {
					case <-time.After(100 * time.Millisecond):
					case <-ctx.Done():
					}
					_ = pw.Close()
				}()
				return pr
			}}
			sink := &pingingSink{}

			state, err := relay.New(up, relay.WithHeartbeat(10*time.Millisecond)).
				Stream(ctx, relay.ChatRequest{Message: "hello"}, sink)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(Equal(relay.StateOK))
			Expect(sink.pings.Load()).To(BeNumerically(">", 0))
			Expect(sink.dones).To(Equal(1))
		})

		It("does not ping when heartbeats are off", func() {
			sink := &pingingSink{}
			sink.gone.Store(true)

			_, err := relay.New(&fakeUpstream{stream: scenarioStream}, relay.WithHeartbeat(-1)).
				Stream(ctx, relay.ChatRequest{Message: "hello"}, sink)
			Expect(err).NotTo(HaveOccurred())
			Expect(sink.pings.Load()).To(BeZero())
		})

		It("records how far a failed call got", func() {
			var got relay.Transcript
			observe := relay.WithObserver(func(t relay.Transcript) { got = t })

			_, err := relay.New(&fakeUpstream{err: &coze.StatusError{Status: 502}}, observe).
				Stream(ctx, relay.ChatRequest{Message: "hello"}, &recordingSink{})
			Expect(err).To(HaveOccurred())
			Expect(got.State).To(Equal(relay.StateUpstreamError))
			Expect(got.Reached).To(Equal(relay.StateRequestSent))

			_, err = relay.New(&fakeUpstream{body: func(context.Context) io.ReadCloser {
				return failingBody("event: conversation.chat.created\ndata: {\"conversation_id\":\"abc\"}\n", errReset)
			}}, observe).Stream(ctx, relay.ChatRequest{Message: "hello"}, &recordingSink{})
			Expect(err).To(HaveOccurred())
			Expect(got.State).To(Equal(relay.StateTransportError))
			Expect(got.Reached).To(Equal(relay.StateStreaming))

			_, err = relay.New(&fakeUpstream{stream: scenarioStream}, observe).
				Stream(ctx, relay.ChatRequest{Message: "hello"}, &recordingSink{})
			Expect(err).NotTo(HaveOccurred())
			Expect(got.State).To(Equal(relay.StateOK))
			Expect(got.Reached).To(Equal(relay.StateStreaming))
		})

		It("notifies the observer", func() {
			up := &fakeUpstream{stream: richStream}
			var got relay.Transcript

			r := relay.New(up, relay.WithObserver(func(t relay.Transcript) { got = t }))
			_, err := r.Stream(ctx, relay.ChatRequest{Message: "hello", UserID: "u7"}, &recordingSink{})
			Expect(err).NotTo(HaveOccurred())

			Expect(got.UserID).To(Equal("u7"))
			Expect(got.ConversationID).To(Equal("c-9"))
			Expect(got.Answer).To(Equal("Hello, world!"))
			Expect(got.State).To(Equal(relay.StateOK))
			Expect(got.Streamed).To(BeTrue())
		})
	})

	Describe("Aggregate", func() {
		It("concatenates deltas", func() {
			up := &fakeUpstream{stream: richStream}

			answer, err := relay.New(up).Aggregate(ctx, relay.ChatRequest{Message: "hello"})
			Expect(err).NotTo(HaveOccurred())
			Expect(answer).To(Equal("Hello, world!"))
		})

		It("matches the streamed deltas for the same upstream", func() {
			streams := []string{scenarioStream, richStream, "", "data: [DONE]\n"}
			for _, s := range streams {
				sink := &recordingSink{}
				_, err := relay.New(&fakeUpstream{stream: s}).Stream(ctx, relay.ChatRequest{Message: "m"}, sink)
				Expect(err).NotTo(HaveOccurred())

				var joined strings.Builder
				for _, ev := range sink.events {
					if ev.Kind == relay.KindDelta {
						joined.WriteString(ev.Content)
					}
				}

				answer, err := relay.New(&fakeUpstream{stream: s}).Aggregate(ctx, relay.ChatRequest{Message: "m"})
				Expect(err).NotTo(HaveOccurred())
				Expect(answer).To(Equal(joined.String()))
			}
		})

		It("survives an upstream line over the size limit", func() {
			stream := "event: conversation.chat.created\n" +
				"data: {\"conversation_id\":\"abc\"}\n" +
				"event: conversation.message.delta\n" +
				"data: {\"type\":\"answer\",\"content\":\"hi\"}\n" +
				"event: conversation.message.completed\n" +
				"data: {\"type\":\"answer\",\"content\":\"" + strings.Repeat("a", sse.MaxLineSize) + "\"}\n" +
				"event: conversation.chat.completed\n" +
				"data: {\"usage\":{}}\n"

			answer, err := relay.New(&fakeUpstream{stream: stream}).Aggregate(ctx, relay.ChatRequest{Message: "q"})
			Expect(err).NotTo(HaveOccurred())
			Expect(answer).To(Equal("hi"))
		})

		It("lets the completed answer replace the deltas", func() {
			stream := "event: conversation.message.delta\n" +
				"data: {\"type\":\"answer\",\"content\":\"partial\"}\n" +
				"event: conversation.message.completed\n" +
				"data: {\"type\":\"answer\",\"content\":\"[{\\\"title\\\":\\\"A\\\"}]\"}\n"

			answer, err := relay.New(&fakeUpstream{stream: stream}).
				Aggregate(ctx, relay.ChatRequest{Message: "news"}, relay.WithCompletedAnswer())
			Expect(err).NotTo(HaveOccurred())
			Expect(answer).To(Equal(`[{"title":"A"}]`))
		})

		It("drops history and honours the history save flag", func() {
			up := &fakeUpstream{stream: scenarioStream}

			_, err := relay.New(up).Aggregate(ctx, relay.ChatRequest{
				Message: "q",
				History: []relay.HistoryMessage{{Role: "user", Content: "old"}},
			}, relay.WithoutHistorySave())
			Expect(err).NotTo(HaveOccurred())

			p := up.LastPayload()
			Expect(p.AdditionalMessages).To(HaveLen(1))
			Expect(p.AutoSaveHistory).To(BeFalse())
		})

		It("returns errors synchronously", func() {
			_, err := relay.New(&fakeUpstream{}).Aggregate(ctx, relay.ChatRequest{})
			var ve *relay.ValidationError
			Expect(errors.As(err, &ve)).To(BeTrue())

			_, err = relay.New(&fakeUpstream{err: &coze.StatusError{Status: 401}}).
				Aggregate(ctx, relay.ChatRequest{Message: "q"})
			var use *relay.UpstreamStatusError
			Expect(errors.As(err, &use)).To(BeTrue())
			Expect(use.Status).To(Equal(401))

			_, err = relay.New(&fakeUpstream{body: func(ctx context.Context) io.ReadCloser {
				return blockingBody{ctx: ctx}
			}}, relay.WithTimeout(20*time.Millisecond)).Aggregate(ctx, relay.ChatRequest{Message: "q"})
			Expect(err).To(MatchError(relay.ErrTimeout))

			_, err = relay.New(&fakeUpstream{err: errReset}).Aggregate(ctx, relay.ChatRequest{Message: "q"})
			var te *relay.TransportError
			Expect(errors.As(err, &te)).To(BeTrue())
		})
	})

	Describe("over HTTP", func() {
		var (
			upstream *httptest.Server
			hits     atomic.Int32
			status   int
		)

		BeforeEach(func() {
			hits.Store(0)
			status = http.StatusOK
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				if status != http.StatusOK {
					w.WriteHeader(status)
					return
				}
				w.Header().Set("Content-Type", "text/event-stream")
				flusher := w.(http.Flusher)
				for _, line := range strings.SplitAfter(scenarioStream, "\n") {
					fmt.Fprint(w, line)
					flusher.Flush()
				}
			}))
		})

		AfterEach(func() {
			upstream.Close()
		})

		newRelay := func() *relay.Relay {
			client, err := coze.NewClient(coze.Config{BaseURL: upstream.URL, Token: "t", BotID: "b"})
			Expect(err).NotTo(HaveOccurred())
			return relay.New(client)
		}

		It("streams the scenario through the real client", func() {
			sink := &recordingSink{}
			state, err := newRelay().Stream(ctx, relay.ChatRequest{Message: "hello"}, sink)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(Equal(relay.StateOK))
			Expect(sink.Kinds()).To(Equal([]relay.Kind{relay.KindInit, relay.KindDelta, relay.KindDone}))
		})

		It("surfaces a 500 without any prior events", func() {
			status = http.StatusInternalServerError
			sink := &recordingSink{}

			state, _ := newRelay().Stream(ctx, relay.ChatRequest{Message: "hello"}, sink)
			Expect(state).To(Equal(relay.StateUpstreamError))
			Expect(sink.events).To(HaveLen(1))
			Expect(sink.events[0].Kind).To(Equal(relay.KindError))
			Expect(sink.events[0].Status).To(Equal(500))
			Expect(sink.dones).To(Equal(1))
		})

		It("never calls upstream for an empty message", func() {
			_, err := newRelay().Stream(ctx, relay.ChatRequest{}, &recordingSink{})
			Expect(err).To(HaveOccurred())
			Expect(hits.Load()).To(BeZero())
		})
	})
})
