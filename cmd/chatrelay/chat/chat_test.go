package chatcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/dotdir"
	"github.com/papercomputeco/chatrelay/pkg/relay"
)

// fakeRelay answers POST /api/chat with a fixed event sequence.
type fakeRelay struct {
	mu       sync.Mutex
	events   []relay.Event
	status   int
	requests []relay.ChatRequest
	clientID []string
}

func (f *fakeRelay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req relay.ChatRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.clientID = append(f.clientID, r.Header.Get("X-Client-ID"))
	status, events := f.status, f.events
	f.mu.Unlock()

	if status != 0 && status != http.StatusOK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, `{"error":"message must not be empty"}`)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	for _, ev := range events {
		data, _ := json.Marshal(ev)
		fmt.Fprintf(w, "data: %s\n\n", data)
	}
}

func (f *fakeRelay) lastRequest() relay.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

var _ = Describe("NewChatCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := NewChatCmd()
		Expect(cmd.Use).To(Equal("chat"))
	})

	It("has target, user-id, new and markdown flags", func() {
		cmd := NewChatCmd()
		Expect(cmd.Flags().Lookup("target").DefValue).To(Equal("http://localhost:5000"))
		Expect(cmd.Flags().Lookup("user-id")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("new")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("markdown")).NotTo(BeNil())
	})
})

var _ = Describe("Chat session", func() {
	var (
		tmpDir string
		fake   *fakeRelay
		server *httptest.Server
		out    *bytes.Buffer
		ddm    *dotdir.Manager
	)

	newCommander := func() *chatCommander {
		return &chatCommander{
			target:    server.URL,
			configDir: tmpDir,
			client:    server.Client(),
		}
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "chatrelay-chat-test-*")
		Expect(err).NotTo(HaveOccurred())

		fake = &fakeRelay{events: []relay.Event{
			relay.Init("conv-1"),
			relay.Delta("Hello"),
			relay.Delta(", world"),
			relay.Completed(),
			relay.Done("conv-1", nil),
		}}
		server = httptest.NewServer(fake)
		out = &bytes.Buffer{}
		ddm = dotdir.NewManager()
	})

	AfterEach(func() {
		server.Close()
		os.RemoveAll(tmpDir)
	})

	It("streams the answer and saves the session", func() {
		c := newCommander()
		Expect(c.run(context.Background(), strings.NewReader("hi\n/exit\n"), out)).To(Succeed())

		Expect(out.String()).To(ContainSubstring("Hello, world"))

		session, err := ddm.LoadSession(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(session).NotTo(BeNil())
		Expect(session.ConversationID).To(Equal("conv-1"))
		Expect(session.Turns).To(Equal([]dotdir.SessionTurn{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "Hello, world"},
		}))
		Expect(session.UserID).To(HavePrefix("cli_"))
		Expect(fake.clientID).To(ConsistOf(session.UserID))
	})

	It("resumes the saved conversation with its history", func() {
		Expect(ddm.SaveSession(&dotdir.SessionState{
			ConversationID: "conv-0",
			UserID:         "cli_saved",
			Turns:          []dotdir.SessionTurn{{Role: "user", Content: "earlier"}},
		}, tmpDir)).To(Succeed())

		c := newCommander()
		Expect(c.run(context.Background(), strings.NewReader("again\n"), out)).To(Succeed())

		Expect(out.String()).To(ContainSubstring("Resuming conversation"))
		req := fake.lastRequest()
		Expect(req.ConversationID).To(Equal("conv-0"))
		Expect(req.UserID).To(Equal("cli_saved"))
		Expect(req.Message).To(Equal("again"))
		Expect(req.History).To(Equal([]relay.HistoryMessage{{Role: "user", Content: "earlier"}}))
	})

	It("uses the --user-id flag over the saved id", func() {
		c := newCommander()
		c.userID = "alice"
		Expect(c.run(context.Background(), strings.NewReader("hi\n"), out)).To(Succeed())
		Expect(fake.lastRequest().UserID).To(Equal("alice"))
	})

	It("starts over on /new", func() {
		Expect(ddm.SaveSession(&dotdir.SessionState{ConversationID: "conv-0"}, tmpDir)).To(Succeed())

		c := newCommander()
		Expect(c.run(context.Background(), strings.NewReader("/new\nhi\n"), out)).To(Succeed())

		req := fake.lastRequest()
		Expect(req.ConversationID).To(BeEmpty())
		Expect(req.History).To(BeEmpty())
	})

	It("starts over with --new", func() {
		Expect(ddm.SaveSession(&dotdir.SessionState{ConversationID: "conv-0"}, tmpDir)).To(Succeed())

		c := newCommander()
		c.fresh = true
		Expect(c.run(context.Background(), strings.NewReader("hi\n"), out)).To(Succeed())
		Expect(fake.lastRequest().ConversationID).To(BeEmpty())
	})

	It("reports in-band errors and keeps the session unchanged", func() {
		fake.events = []relay.Event{
			relay.Init("conv-1"),
			relay.Failure("request failed", http.StatusUnauthorized),
		}

		c := newCommander()
		Expect(c.run(context.Background(), strings.NewReader("hi\n"), out)).To(Succeed())

		Expect(out.String()).To(ContainSubstring("request failed (status 401)"))
		session, err := ddm.LoadSession(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(session).To(BeNil())
	})

	It("reports relay rejections", func() {
		fake.status = http.StatusBadRequest

		c := newCommander()
		Expect(c.run(context.Background(), strings.NewReader("hi\n"), out)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("relay returned 400: message must not be empty"))
	})

	It("reports streams that end without a done event", func() {
		fake.events = []relay.Event{relay.Init("conv-1"), relay.Delta("partial")}

		c := newCommander()
		Expect(c.run(context.Background(), strings.NewReader("hi\n"), out)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("stream ended before the answer finished"))
	})

	It("ignores blank lines", func() {
		c := newCommander()
		Expect(c.run(context.Background(), strings.NewReader("\n   \n"), out)).To(Succeed())
		Expect(fake.requests).To(BeEmpty())
	})
})
