// Package sse provides a minimal, purpose-built SSE (Server-Sent Events)
// consumer for the askstream client. It turns a chunked response body into
// complete frames, carrying partial UTF-8 sequences and partial frames across
// chunk boundaries.
//
// Framing follows the ask service rather than the full SSE specification:
// frames are separated by "\n\n", and only the first "event:" and the first
// "data:" line of a frame are recognized.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
package sse

import "strings"

const (
	// Separator delimits frames in the stream.
	Separator = "\n\n"

	eventPrefix = "event:"
	dataPrefix  = "data:"
)

// Frame represents a single raw frame, delimited by a blank line in the
// upstream byte stream.
type Frame struct {
	// Event is the trimmed value of the first "event:" line.
	// Empty when the frame has no event line.
	Event string

	// Data is the trimmed value of the first "data:" line.
	// Empty when the frame has no data line.
	Data string
}

// ParseFrame scans the lines of a complete frame for the first line
// beginning with "event:" and the first line beginning with "data:".
// Later duplicates are ignored.
func ParseFrame(raw string) Frame {
	var (
		f                   Frame
		seenEvent, seenData bool
	)

	for line := range strings.SplitSeq(raw, "\n") {
		switch {
		case !seenEvent && strings.HasPrefix(line, eventPrefix):
			f.Event = strings.TrimSpace(line[len(eventPrefix):])
			seenEvent = true
		case !seenData && strings.HasPrefix(line, dataPrefix):
			f.Data = strings.TrimSpace(line[len(dataPrefix):])
			seenData = true
		}

		if seenEvent && seenData {
			break
		}
	}

	return f
}
