package newscmder_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	newscmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/news"
	"github.com/papercomputeco/chatrelay/pkg/news"
)

var _ = Describe("News command", func() {
	var (
		server *httptest.Server
		body   string
		status int
	)

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := newscmder.NewNewsCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(append([]string{"--target", server.URL}, args...))
		err := cmd.Execute()
		return out.String(), err
	}

	BeforeEach(func() {
		status = http.StatusOK
		body = `{"success":true,"news":[{"title":"Rates cut","content":"The bank cut rates.","url":"https://example.com/rates"}]}`
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/news" {
				http.NotFound(w, r)
				return
			}
			w.WriteHeader(status)
			fmt.Fprint(w, body)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("creates a command with the correct use string", func() {
		Expect(newscmder.NewNewsCmd().Use).To(Equal("news"))
	})

	It("prints the news list", func() {
		out, err := run()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Rates cut"))
		Expect(out).To(ContainSubstring("The bank cut rates."))
		Expect(out).To(ContainSubstring("https://example.com/rates"))
	})

	It("prints JSON with --json", func() {
		out, err := run("--json")
		Expect(err).NotTo(HaveOccurred())

		var items []news.Item
		Expect(json.Unmarshal([]byte(out), &items)).To(Succeed())
		Expect(items).To(HaveLen(1))
		Expect(items[0].Title).To(Equal("Rates cut"))
	})

	It("says so when there is no news", func() {
		body = `{"success":true,"news":[]}`
		out, err := run()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("No news available."))
	})

	It("returns the relay's error", func() {
		status = http.StatusInternalServerError
		body = `{"error":"failed to fetch news","status":401}`
		_, err := run()
		Expect(err).To(MatchError(ContainSubstring("failed to fetch news")))
	})
})
