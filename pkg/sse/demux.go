package sse

import "strings"

// Demuxer accumulates decoded text and splits it into complete frames.
// The trailing partial frame is retained until its separator arrives.
//
// A Demuxer is owned by a single stream and is not safe for concurrent use.
type Demuxer struct {
	dec *Decoder
	buf strings.Builder

	// dropped counts complete frames discarded for having no event name.
	dropped int
}

// NewDemuxer returns an empty Demuxer.
func NewDemuxer() *Demuxer {
	return &Demuxer{dec: NewDecoder()}
}

// Feed decodes chunk, appends it to the buffer and returns every frame that
// became complete, in arrival order. Frames without an event name are
// dropped silently.
func (m *Demuxer) Feed(chunk []byte) []Frame {
	text := m.dec.Decode(chunk)
	if text == "" {
		return nil
	}
	m.buf.WriteString(text)

	buffered := m.buf.String()
	if !strings.Contains(buffered, Separator) {
		return nil
	}

	segments := strings.Split(buffered, Separator)
	rest := segments[len(segments)-1]

	m.buf.Reset()
	m.buf.WriteString(rest)

	frames := make([]Frame, 0, len(segments)-1)
	for _, raw := range segments[:len(segments)-1] {
		f := ParseFrame(raw)
		if f.Event == "" {
			m.dropped++
			continue
		}
		frames = append(frames, f)
	}

	return frames
}

// Close signals the end of the stream. Buffered text that never saw a
// trailing separator is NOT interpreted as a frame; it is returned so the
// caller can report the loss.
func (m *Demuxer) Close() string {
	m.buf.WriteString(m.dec.Flush())
	residual := m.buf.String()
	m.buf.Reset()
	return residual
}

// Buffered returns the text of the partial frame held for the next Feed.
func (m *Demuxer) Buffered() string {
	return m.buf.String()
}

// Dropped returns the number of complete frames discarded so far because
// they carried no event name.
func (m *Demuxer) Dropped() int {
	return m.dropped
}
