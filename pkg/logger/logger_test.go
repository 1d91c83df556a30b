package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/askstream/pkg/logger"
)

func parseJSONLine(buf *bytes.Buffer) map[string]any {
	var parsed map[string]any
	err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed)
	Expect(err).NotTo(HaveOccurred())
	return parsed
}

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("creates a default text logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf))
			l.Info("stream finished", "events", 3)

			Expect(buf.String()).To(ContainSubstring("stream finished"))
			Expect(buf.String()).To(ContainSubstring("events=3"))
		})

		It("filters debug unless enabled", func() {
			var quiet, loud bytes.Buffer
			logger.New(logger.WithWriter(&quiet)).Debug("hidden")
			logger.New(logger.WithWriter(&loud), logger.WithDebug(true)).Debug("shown")

			Expect(quiet.String()).To(BeEmpty())
			Expect(loud.String()).To(ContainSubstring("shown"))
		})

		It("creates a JSON logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
			l.Info("decoded event with fallback", "event", "token")

			parsed := parseJSONLine(&buf)
			Expect(parsed["msg"]).To(Equal("decoded event with fallback"))
			Expect(parsed["event"]).To(Equal("token"))
		})

		It("creates a pretty logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true))
			l.Warn("stream ended inside a frame", "bytes", 12)

			Expect(buf.String()).To(ContainSubstring("stream ended inside a frame"))
			Expect(buf.String()).To(ContainSubstring("bytes"))
		})

		It("supports multiple writers", func() {
			var buf1, buf2 bytes.Buffer
			l := logger.New(logger.WithWriters(&buf1, &buf2))
			l.Info("multi")

			Expect(buf1.String()).To(ContainSubstring("multi"))
			Expect(buf2.String()).To(ContainSubstring("multi"))
		})
	})

	Describe("Nop", func() {
		It("discards all output", func() {
			l := logger.Nop()
			Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
			Expect(func() {
				l.With("thread", "t1").WithGroup("ask").Info("msg")
			}).NotTo(Panic())
		})
	})

	Describe("Multi", func() {
		It("dispatches to all loggers", func() {
			var text, js bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&text)),
				logger.New(logger.WithWriter(&js), logger.WithJSON(true)),
			)

			multi.With("thread", "default").Info("ask finished")

			Expect(text.String()).To(ContainSubstring("ask finished"))
			Expect(parseJSONLine(&js)["thread"]).To(Equal("default"))
		})

		It("nests keys under a group", func() {
			var buf bytes.Buffer
			multi := logger.Multi(logger.New(logger.WithWriter(&buf), logger.WithJSON(true)))
			multi.WithGroup("summary").Info("stream", "chunks", 2)

			group, ok := parseJSONLine(&buf)["summary"].(map[string]any)
			Expect(ok).To(BeTrue(), "expected 'summary' group in JSON output")
			Expect(group["chunks"]).To(BeNumerically("==", 2))
		})

		It("skips handlers that are not enabled", func() {
			var buf bytes.Buffer
			multi := logger.Multi(logger.Nop(), logger.New(logger.WithWriter(&buf)))
			multi.Debug("hidden")
			multi.Info("shown")

			Expect(buf.String()).NotTo(ContainSubstring("hidden"))
			Expect(buf.String()).To(ContainSubstring("shown"))
		})
	})
})
