package ask

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/papercomputeco/askstream/pkg/logger"
	"github.com/papercomputeco/askstream/pkg/sse"
)

const (
	askPath = "/ask"

	// LLM responses can be slow.
	defaultTimeout = 5 * time.Minute

	// maxErrorBody bounds how much of a failed response is read.
	maxErrorBody = 1 << 20
)

// Config is the configuration for a Client.
type Config struct {
	// Target is the base URL of the ask service, e.g. http://localhost:8000.
	Target string

	// Timeout bounds a whole request, including reading a streamed body.
	// Defaults to 5 minutes. Ignored when HTTPClient is set.
	Timeout time.Duration

	// IncludeSources asks the service to retrieve sources for streamed
	// answers.
	IncludeSources bool

	// HTTPClient overrides the HTTP client used for requests.
	HTTPClient *http.Client

	// Logger is the provided structured logger. Defaults to a no-op logger.
	Logger *slog.Logger
}

// Client talks to the ask service.
type Client struct {
	endpoint       string
	includeSources bool
	http           *http.Client
	logger         *slog.Logger
}

// NewClient validates the target URL and returns a Client.
func NewClient(c Config) (*Client, error) {
	u, err := url.Parse(c.Target)
	if err != nil {
		return nil, fmt.Errorf("parsing target: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("target %q must be an http or https URL", c.Target)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		timeout := c.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		endpoint:       strings.TrimSuffix(c.Target, "/") + askPath,
		includeSources: c.IncludeSources,
		http:           httpClient,
		logger:         log,
	}, nil
}

// Handler receives decoded events in arrival order. A non-nil error stops
// the stream and is returned from Stream.
type Handler func(Event) error

// Summary describes a finished stream.
type Summary struct {
	// Chunks is the number of body reads that returned data.
	Chunks int

	// Events is the number of events delivered to the handler.
	Events int

	// Fallbacks counts events produced by a fail-soft default.
	Fallbacks int

	// Ignored counts frames with an unrecognized event name.
	Ignored int

	// Dropped counts frames without an event name.
	Dropped int

	// Residual is the trailing partial frame text discarded at end of
	// stream, if any.
	Residual string
}

type streamOptions struct {
	recorder  io.Writer
	chunkSize int
}

// StreamOption configures a single Stream call.
type StreamOption func(*streamOptions)

// WithRecorder tees every raw body byte to w.
func WithRecorder(w io.Writer) StreamOption {
	return func(o *streamOptions) {
		o.recorder = w
	}
}

// WithChunkSize sets the maximum size of a single body read.
func WithChunkSize(n int) StreamOption {
	return func(o *streamOptions) {
		o.chunkSize = n
	}
}

// Stream asks question with stream=true and delivers every decoded event to
// handle. It reads until the body is exhausted, the handler fails, the
// transport fails, or ctx is done; ctx is inspected between chunk reads.
//
// Decode problems never fail the stream. Transport problems are returned;
// the Summary reflects what was consumed up to that point.
func (c *Client) Stream(ctx context.Context, question string, handle Handler, opts ...StreamOption) (summary Summary, err error) {
	var o streamOptions
	for _, opt := range opts {
		opt(&o)
	}

	resp, err := c.post(ctx, Request{
		Question:       question,
		Stream:         true,
		IncludeSources: c.includeSources,
		Format:         FormatText,
	})
	if err != nil {
		return summary, err
	}
	defer resp.Body.Close()

	var readerOpts []sse.Option
	if o.chunkSize > 0 {
		readerOpts = append(readerOpts, sse.WithChunkSize(o.chunkSize))
	}
	r := sse.NewTeeReader(resp.Body, o.recorder, readerOpts...)

	defer func() {
		summary.Chunks = r.Chunks()
		summary.Dropped = r.Dropped()
		summary.Residual = r.Residual()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		frame, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("reading stream: %w", err)
		}

		d := DecodeFrame(frame)
		if d.Event == nil {
			summary.Ignored++
			c.logger.Debug("ignoring unknown event", "event", frame.Event)
			continue
		}
		if d.Fallback {
			summary.Fallbacks++
			c.logger.Debug("decoded event with fallback",
				"event", frame.Event,
				"data", frame.Data,
				"error", d.Err,
			)
		}

		summary.Events++
		if err := handle(d.Event); err != nil {
			return summary, err
		}
	}

	if residual := r.Residual(); residual != "" {
		c.logger.Warn("stream ended inside a frame, discarding partial frame",
			"bytes", len(residual),
		)
	}

	return summary, nil
}

// AskText asks question with stream=false and returns the plain text answer.
func (c *Client) AskText(ctx context.Context, question string) (string, error) {
	resp, err := c.post(ctx, Request{
		Question: question,
		Format:   FormatText,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return string(body), nil
}

// AskJSON asks question with stream=false and format=json and returns the
// answer with its sources. Malformed sources are dropped.
func (c *Client) AskJSON(ctx context.Context, question string) (*Answer, error) {
	resp, err := c.post(ctx, Request{
		Question:       question,
		IncludeSources: true,
		Format:         FormatJSON,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw struct {
		Answer  string          `json:"answer"`
		Sources json.RawMessage `json:"sources"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &Answer{
		Answer:  raw.Answer,
		Sources: FilterSources(raw.Sources),
	}, nil
}

// post sends req and returns a successful response with a body. Any
// non-success status is returned as a *StatusError.
func (c *Client) post(ctx context.Context, req Request) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	c.logger.Debug("sending ask request",
		"endpoint", c.endpoint,
		"stream", req.Stream,
		"format", req.Format,
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request to ask service: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	// A streamed answer without a body is a transport failure; an empty
	// non-streaming answer is not. Chunked streams report ContentLength -1.
	if req.Stream && (resp.StatusCode == http.StatusNoContent || resp.ContentLength == 0) {
		resp.Body.Close()
		return nil, ErrNoBody
	}

	return resp, nil
}
