package client_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/client"
	"github.com/papercomputeco/chatrelay/pkg/news"
)

var _ = Describe("Client", func() {
	var (
		server *httptest.Server
		c      *client.Client
	)

	BeforeEach(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/news", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"success":true,"news":[{"title":"A","content":"a","url":"https://a"}]}`)
		})
		mux.HandleFunc("/api/stats", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"start_date":"2025-10-08","total_visits":521,"total_api_calls":1232,"today_visits":1,"today_api_calls":1,"daily":[{"date":"2025-10-08","visits":1,"api_calls":1}]}`)
		})
		mux.HandleFunc("/api/health", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"status":"healthy","service":"chatrelay"}`)
		})
		server = httptest.NewServer(mux)
		c = client.New(server.URL+"/", server.Client())
	})

	AfterEach(func() {
		server.Close()
	})

	It("fetches news", func() {
		items, err := c.News(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(Equal([]news.Item{{Title: "A", Content: "a", URL: "https://a"}}))
	})

	It("fetches stats", func() {
		snap, err := c.Stats(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.TotalVisits).To(Equal(int64(521)))
		Expect(snap.Daily).To(HaveLen(1))
	})

	It("fetches health", func() {
		status, err := c.Health(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal("healthy"))
	})

	It("returns a StatusError carrying the relay's message", func() {
		server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusGatewayTimeout)
			fmt.Fprint(w, `{"error":"request timed out"}`)
		})

		_, err := c.News(context.Background())
		var se *client.StatusError
		Expect(errors.As(err, &se)).To(BeTrue())
		Expect(se.Status).To(Equal(http.StatusGatewayTimeout))
		Expect(se.Error()).To(Equal("relay returned 504: request timed out"))
	})
})
