package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/logger"
)

func decodeLine(buf *bytes.Buffer) map[string]any {
	var parsed map[string]any
	Expect(json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed)).To(Succeed())
	return parsed
}

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("writes text records by default", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf))
			l.Info("relay started", "listen", ":8080")

			Expect(buf.String()).To(ContainSubstring("relay started"))
			Expect(buf.String()).To(ContainSubstring("listen=:8080"))
		})

		It("drops debug records unless debug is enabled", func() {
			var quiet, loud bytes.Buffer
			logger.New(logger.WithWriter(&quiet)).Debug("hidden")
			logger.New(logger.WithWriter(&loud), logger.WithDebug(true)).Debug("shown")

			Expect(quiet.String()).To(BeEmpty())
			Expect(loud.String()).To(ContainSubstring("shown"))
		})

		It("writes JSON records", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
			l.Info("upstream responded", "status", 200)

			parsed := decodeLine(&buf)
			Expect(parsed["msg"]).To(Equal("upstream responded"))
			Expect(parsed["status"]).To(BeNumerically("==", 200))
		})

		It("writes pretty records", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf), logger.WithPretty(true)).Info("pretty output")
			Expect(buf.String()).To(ContainSubstring("pretty output"))
		})

		It("writes to every writer", func() {
			var a, b bytes.Buffer
			logger.New(logger.WithWriters(&a, &b)).Info("twice")

			Expect(a.String()).To(ContainSubstring("twice"))
			Expect(b.String()).To(ContainSubstring("twice"))
		})

		It("binds attributes with With", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
			l.With("component", "relay").Info("ready")

			Expect(decodeLine(&buf)["component"]).To(Equal("relay"))
		})
	})

	Describe("Nop", func() {
		It("is disabled at every level", func() {
			l := logger.Nop()
			Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
			Expect(func() { l.With("k", "v").Error("ignored") }).NotTo(Panic())
		})
	})

	Describe("Multi", func() {
		It("dispatches to all loggers", func() {
			var text, js bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&text)),
				logger.New(logger.WithWriter(&js), logger.WithJSON(true)),
			)
			multi.Info("broadcast", "key", "val")

			Expect(text.String()).To(ContainSubstring("broadcast"))
			Expect(decodeLine(&js)["key"]).To(Equal("val"))
		})

		It("nests grouped attributes", func() {
			var buf bytes.Buffer
			multi := logger.Multi(logger.New(logger.WithWriter(&buf), logger.WithJSON(true)))
			multi.WithGroup("request").Info("processed", "path", "/api/chat")

			group, ok := decodeLine(&buf)["request"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(group["path"]).To(Equal("/api/chat"))
		})

		It("skips handlers below their level", func() {
			var info, debug bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&info)),
				logger.New(logger.WithWriter(&debug), logger.WithDebug(true)),
			)
			multi.Debug("only debug")

			Expect(info.String()).To(BeEmpty())
			Expect(debug.String()).To(ContainSubstring("only debug"))
		})
	})
})
