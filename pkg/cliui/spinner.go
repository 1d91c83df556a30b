package cliui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"charm.land/bubbles/v2/spinner"
)

// Spinner is a thinking indicator. It animates on w between SetThinking(true)
// and SetThinking(false) and erases itself when stopped, so text written
// after it lands at the start of the line.
type Spinner struct {
	w        io.Writer
	msg      string
	interval time.Duration

	mu      sync.Mutex
	done    chan struct{}
	stopped chan struct{}
}

// NewSpinner returns a stopped spinner labelled msg.
func NewSpinner(w io.Writer, msg string) *Spinner {
	return &Spinner{
		w:        w,
		msg:      msg,
		interval: spinner.Dot.FPS,
	}
}

// SetThinking starts or stops the animation. Repeated calls with the same
// value are no-ops. Stopping blocks until the line is erased.
func (s *Spinner) SetThinking(thinking bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if thinking {
		if s.done != nil {
			return
		}
		s.done = make(chan struct{})
		s.stopped = make(chan struct{})
		go s.animate(s.done, s.stopped)
		return
	}

	if s.done == nil {
		return
	}
	close(s.done)
	<-s.stopped
	s.done, s.stopped = nil, nil
}

// Active reports whether the spinner is animating.
func (s *Spinner) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

func (s *Spinner) animate(done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	frame := 0
	for {
		fmt.Fprintf(s.w, "\r%s %s",
			spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
			DimStyle.Render(s.msg),
		)

		select {
		case <-done:
			// Erase the spinner line.
			fmt.Fprint(s.w, "\r\x1b[2K")
			return
		case <-ticker.C:
			frame++
		}
	}
}
