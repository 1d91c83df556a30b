package replay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/askstream/pkg/ask"
	"github.com/papercomputeco/askstream/pkg/conversation"
	"github.com/papercomputeco/askstream/pkg/session"
	"github.com/papercomputeco/askstream/pkg/sse"
)

// Server replays a transcript for every ask.
type Server struct {
	config  Config
	current atomic.Pointer[recording]
	logger  *slog.Logger
	app     *fiber.App
}

// recording is a transcript together with the answer folded from it.
type recording struct {
	transcript []byte
	answer     ask.Answer
}

// NewServer creates a replay server for transcript. The non-streaming
// answer is folded from the transcript once, up front.
func NewServer(config Config, transcript []byte, logger *slog.Logger) (*Server, error) {
	if config.ChunkSize < 0 {
		return nil, fmt.Errorf("chunk size %d must not be negative", config.ChunkSize)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		logger: logger,
		app:    app,
	}
	if err := s.Load(transcript); err != nil {
		return nil, err
	}

	app.Get("/health", s.handleHealth)
	app.Post("/ask", s.handleAsk)

	return s, nil
}

// Run starts the replay server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting replay server",
		"listen", s.config.ListenAddr,
		"transcript_bytes", len(s.current.Load().transcript),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Load replaces the transcript. Requests already streaming keep the
// transcript they started with.
func (s *Server) Load(transcript []byte) error {
	answer, err := Fold(transcript)
	if err != nil {
		return fmt.Errorf("folding transcript: %w", err)
	}
	s.current.Store(&recording{transcript: transcript, answer: answer})
	return nil
}

// Shutdown gracefully shuts down the replay server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// Fold decodes transcript the way a client would and returns the final
// answer with the sources attached to it.
func Fold(transcript []byte) (ask.Answer, error) {
	log := conversation.NewLog()
	acc := session.NewAccumulator(log, nil)
	if err := acc.Begin(); err != nil {
		return ask.Answer{}, err
	}

	r := sse.NewReader(bytes.NewReader(transcript))
	for {
		frame, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ask.Answer{}, err
		}
		if ev, ok := ask.Decode(frame); ok {
			if err := acc.Apply(ev); err != nil {
				return ask.Answer{}, err
			}
		}
	}
	acc.Finish()

	answer := ask.Answer{Sources: []ask.Source{}}
	if msg, ok := log.Get(acc.AssistantID()); ok {
		answer.Answer = msg.Content
		if len(msg.Sources) > 0 {
			answer.Sources = msg.Sources
		}
	}
	return answer, nil
}
