// Package mcp provides an MCP (Model Context Protocol) server exposing the
// ask service as a tool, so agents can put questions to it and receive the
// streamed answer once it is complete.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/askstream/pkg/session"
	"github.com/papercomputeco/askstream/pkg/utils"
)

type Config struct {
	// Client streams answers from the ask service.
	Client session.Streamer

	// Logger is the configured slog logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler

	mu      sync.Mutex
	threads map[string]*session.Thread
}

// NewServer creates a new MCP server with the ask tool.
func NewServer(c Config) (*Server, error) {
	if c.Client == nil {
		return nil, errors.New("ask client is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	s := &Server{
		config:  c,
		threads: make(map[string]*session.Thread),
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "askstream",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        askToolName,
		Description: askDescription,
	}, s.handleAsk)

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Mount serves the MCP handler on app at path.
func (s *Server) Mount(app *fiber.App, path string) {
	app.All(path, adaptor.HTTPHandler(s.handler))
}

// thread returns the named thread, creating it on first use. An empty id
// yields a fresh thread that is not remembered.
func (s *Server) thread(id string) *session.Thread {
	opts := []session.Option{session.WithLogger(s.config.Logger)}
	if id == "" {
		return session.NewThread("", s.config.Client, opts...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[id]
	if !ok {
		t = session.NewThread(id, s.config.Client, opts...)
		s.threads[id] = t
	}
	return t
}
