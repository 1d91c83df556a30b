package replay

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/askstream/pkg/ask"
)

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleAsk answers an ask request from the transcript. Failures are
// plain text so that clients can surface the body as the description.
func (s *Server) handleAsk(c *fiber.Ctx) error {
	var req ask.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("invalid request body")
	}
	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).SendString("question must not be empty")
	}

	s.logger.Debug("replaying ask",
		"question", req.Question,
		"stream", req.Stream,
		"format", req.Format,
	)

	rec := s.current.Load()

	if !req.Stream {
		if req.Format == ask.FormatJSON {
			answer := rec.answer
			if !req.IncludeSources {
				answer.Sources = []ask.Source{}
			}
			return c.JSON(answer)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(rec.answer.Answer)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	// io.Pipe gives per-chunk flushing with backpressure; the writer runs
	// after the handler returns.
	pr, pw := io.Pipe()
	go s.writeTranscript(pw, rec.transcript)

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// writeTranscript writes transcript to pw in configured chunks.
func (s *Server) writeTranscript(pw *io.PipeWriter, transcript []byte) {
	defer pw.Close()

	size := s.config.ChunkSize
	if size == 0 {
		size = len(transcript)
	}

	for off := 0; off < len(transcript); off += size {
		end := min(off+size, len(transcript))
		if off > 0 && s.config.ChunkDelay > 0 {
			time.Sleep(s.config.ChunkDelay)
		}
		if _, err := pw.Write(transcript[off:end]); err != nil {
			s.logger.Debug("client went away during replay", "error", err)
			return
		}
	}
}
