// Package session folds the events of an ask invocation into the
// conversation log and drives the thinking indicator.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/papercomputeco/askstream/pkg/ask"
	"github.com/papercomputeco/askstream/pkg/conversation"
)

var (
	// ErrClosed is returned when events are applied after Finish or Fail.
	ErrClosed = errors.New("accumulator closed")

	// ErrNotStarted is returned when events are applied before Begin.
	ErrNotStarted = errors.New("accumulator not started")
)

// State is the position of an Accumulator in its lifecycle.
type State int

const (
	NotStarted State = iota
	Waiting
	Streaming
	Idle
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Waiting:
		return "waiting"
	case Streaming:
		return "streaming"
	case Idle:
		return "idle"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Indicator is the "thinking" signal shown while no answer text has
// arrived yet.
type Indicator interface {
	SetThinking(thinking bool)
}

// IndicatorFunc adapts a function to an Indicator.
type IndicatorFunc func(thinking bool)

func (f IndicatorFunc) SetThinking(thinking bool) { f(thinking) }

type nopIndicator struct{}

func (nopIndicator) SetThinking(bool) {}

// Accumulator turns the events of one ask invocation into mutations of a
// conversation log. It creates at most one assistant message, on the first
// token, carrying the sources of the most recent preceding start event.
//
// An Accumulator is not safe for concurrent use.
type Accumulator struct {
	log       *conversation.Log
	indicator Indicator

	state       State
	closed      bool
	pending     []ask.Source
	assistantID string
}

// NewAccumulator returns an accumulator writing to log. A nil indicator is
// allowed.
func NewAccumulator(log *conversation.Log, indicator Indicator) *Accumulator {
	if indicator == nil {
		indicator = nopIndicator{}
	}
	return &Accumulator{
		log:       log,
		indicator: indicator,
		pending:   []ask.Source{},
	}
}

// State returns the current state.
func (a *Accumulator) State() State {
	return a.state
}

// AssistantID returns the ID of the assistant message, or "" if none was
// created.
func (a *Accumulator) AssistantID() string {
	return a.assistantID
}

// Begin asserts the indicator and moves to Waiting. It must be called once,
// before any network activity.
func (a *Accumulator) Begin() error {
	if a.closed {
		return ErrClosed
	}
	if a.state != NotStarted {
		return fmt.Errorf("begin called in state %s", a.state)
	}
	a.state = Waiting
	a.indicator.SetThinking(true)
	return nil
}

// Apply folds ev into the log. It has the signature of ask.Handler.
//
// Events after an end event are still folded, so a token that follows end
// is appended rather than dropped.
func (a *Accumulator) Apply(ev ask.Event) error {
	if a.closed {
		return ErrClosed
	}
	if a.state == NotStarted {
		return ErrNotStarted
	}

	switch ev := ev.(type) {
	case ask.StartEvent:
		a.pending = slices.Clone(ev.Sources)
		if a.pending == nil {
			a.pending = []ask.Source{}
		}
	case ask.TokenEvent:
		return a.token(ev.Delta)
	case ask.EndEvent:
		a.indicator.SetThinking(false)
		a.state = Idle
	}
	return nil
}

func (a *Accumulator) token(delta string) error {
	if a.assistantID != "" {
		return a.log.AppendContent(a.assistantID, delta)
	}

	a.indicator.SetThinking(false)

	msg := conversation.NewMessage(conversation.RoleAssistant, delta)
	msg.Sources = a.pending
	a.log.Append(msg)
	a.assistantID = msg.ID

	if a.state == Waiting {
		a.state = Streaming
	}
	return nil
}

// Finish records normal stream completion.
func (a *Accumulator) Finish() {
	a.indicator.SetThinking(false)
	a.state = Idle
	a.closed = true
}

// Fail records a transport failure. If no assistant message exists one is
// created whose content is the failure description; otherwise the existing
// content is kept and the description is attached as its error.
func (a *Accumulator) Fail(err error) {
	a.indicator.SetThinking(false)
	a.state = Idle
	a.closed = true

	description := Describe(err)
	if a.assistantID != "" {
		_ = a.log.SetError(a.assistantID, description)
		return
	}

	msg := conversation.NewMessage(conversation.RoleAssistant, description)
	msg.Error = description
	a.log.Append(msg)
	a.assistantID = msg.ID
}

// Describe returns the human-readable description of an ask failure.
func Describe(err error) string {
	var statusErr *ask.StatusError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &statusErr):
		return statusErr.Error()
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	default:
		return err.Error()
	}
}
