package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/papercomputeco/askstream/pkg/ask"
	"github.com/papercomputeco/askstream/pkg/conversation"
	"github.com/papercomputeco/askstream/pkg/conversation/worker"
)

// ErrAskInFlight is returned by Thread.Ask while another ask on the same
// thread has not finished.
var ErrAskInFlight = errors.New("an ask is already in flight on this thread")

// Streamer is the transport a Thread asks through. *ask.Client implements it.
type Streamer interface {
	Stream(ctx context.Context, question string, handle ask.Handler, opts ...ask.StreamOption) (ask.Summary, error)
}

// Thread is one conversation: an ordered log plus at most one outstanding
// ask.
type Thread struct {
	id        string
	client    Streamer
	log       *conversation.Log
	indicator Indicator
	pool      *worker.Pool
	logger    *slog.Logger
	opts      []ask.StreamOption

	inFlight atomic.Bool
}

// Option configures a Thread.
type Option func(*Thread)

// WithIndicator sets the thinking indicator driven by every ask.
func WithIndicator(i Indicator) Option {
	return func(t *Thread) {
		t.indicator = i
	}
}

// WithPool persists every finished turn through p.
func WithPool(p *worker.Pool) Option {
	return func(t *Thread) {
		t.pool = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Thread) {
		t.logger = l
	}
}

// WithStreamOptions passes opts to every Stream call.
func WithStreamOptions(opts ...ask.StreamOption) Option {
	return func(t *Thread) {
		t.opts = append(t.opts, opts...)
	}
}

// NewThread returns an empty thread asking through client.
func NewThread(id string, client Streamer, opts ...Option) *Thread {
	t := &Thread{
		id:     id,
		client: client,
		log:    conversation.NewLog(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ID returns the thread ID.
func (t *Thread) ID() string {
	return t.id
}

// Log returns the conversation log. Rendering surfaces Watch it.
func (t *Thread) Log() *conversation.Log {
	return t.log
}

// Messages returns a copy of the conversation so far.
func (t *Thread) Messages() []conversation.Message {
	return t.log.Messages()
}

// Load appends the persisted messages of the thread to the log and returns
// how many were restored. A thread that was never stored restores nothing.
func (t *Thread) Load(ctx context.Context, driver conversation.Driver) (int, error) {
	msgs, err := driver.List(ctx, t.id)
	if err != nil {
		var notFound conversation.NotFoundError
		if errors.As(err, &notFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("loading thread %s: %w", t.id, err)
	}

	n := 0
	for _, m := range msgs {
		if t.log.Append(m) {
			n++
		}
	}
	return n, nil
}

// Ask appends question as a user message and streams the answer into the
// log. It returns the assistant message, which is nil only when the stream
// completed without any token. On transport failure the returned message
// carries the failure description and the error is returned as well.
func (t *Thread) Ask(ctx context.Context, question string) (*conversation.Message, error) {
	if !t.inFlight.CompareAndSwap(false, true) {
		return nil, ErrAskInFlight
	}
	defer t.inFlight.Store(false)

	seq := t.log.Len()
	user := conversation.NewMessage(conversation.RoleUser, question)
	t.log.Append(user)

	acc := NewAccumulator(t.log, t.indicator)
	if err := acc.Begin(); err != nil {
		return nil, err
	}

	t.logger.Debug("asking", "thread", t.id, "question", question)

	summary, err := t.client.Stream(ctx, question, acc.Apply, t.opts...)
	if err != nil {
		acc.Fail(err)
		t.logger.Error("ask failed", "thread", t.id, "error", err)
	} else {
		acc.Finish()
		t.logger.Debug("ask finished",
			"thread", t.id,
			"chunks", summary.Chunks,
			"events", summary.Events,
			"fallbacks", summary.Fallbacks,
			"ignored", summary.Ignored,
			"dropped", summary.Dropped,
		)
	}

	turn := []conversation.Message{user}
	var answer *conversation.Message
	if id := acc.AssistantID(); id != "" {
		if m, ok := t.log.Get(id); ok {
			answer = &m
			turn = append(turn, m)
		}
	}

	if t.pool != nil {
		t.pool.Enqueue(worker.Job{Thread: t.id, Seq: seq, Messages: turn})
	}

	return answer, err
}
