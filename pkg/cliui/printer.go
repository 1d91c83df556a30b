package cliui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/papercomputeco/askstream/pkg/conversation"
)

// Printer writes assistant messages to w as a conversation log changes.
// Register Watch with conversation.Log.Watch.
//
// In markdown mode deltas are buffered and the whole answer is rendered
// with glamour on Flush; otherwise deltas are written as they arrive.
type Printer struct {
	w        io.Writer
	markdown bool

	mu      sync.Mutex
	buf     strings.Builder
	written bool
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer, markdown bool) *Printer {
	return &Printer{w: w, markdown: markdown}
}

// Watch handles a single log change.
func (p *Printer) Watch(c conversation.Change) {
	if c.Message.Role != conversation.RoleAssistant {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch c.Kind {
	case conversation.Appended:
		if c.Message.Error != "" {
			return
		}
		p.write(c.Message.Content)
	case conversation.Updated:
		p.write(c.Delta)
	}
}

func (p *Printer) write(s string) {
	if s == "" {
		return
	}
	if p.markdown {
		p.buf.WriteString(s)
		return
	}
	fmt.Fprint(p.w, s)
	p.written = true
}

// Flush ends the current answer. It renders buffered markdown and
// terminates the line when anything was written. It reports whether an
// answer was written.
func (p *Printer) Flush() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.markdown && p.buf.Len() > 0 {
		rendered, err := RenderMarkdown(p.buf.String())
		if err != nil {
			rendered = p.buf.String()
		}
		fmt.Fprint(p.w, strings.TrimRight(rendered, "\n"))
		p.buf.Reset()
		p.written = true
	}

	written := p.written
	if written {
		fmt.Fprintln(p.w)
	}
	p.written = false
	return written
}
