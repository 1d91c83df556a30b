package sse

import (
	"errors"
	"io"
)

const defaultChunkSize = 32 * 1024

// Reader pulls byte chunks from a source io.Reader and yields complete
// frames. Suspension happens exactly at each chunk read: Next only reads
// from the source when no complete frame is queued.
//
// A tee Reader additionally writes every byte it reads verbatim to a
// destination io.Writer.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │   Reader.Next()  │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Frame       │
// └──────────────────┘
type Reader struct {
	src   io.Reader
	dest  io.Writer
	demux *Demuxer
	chunk []byte

	queue    []Frame
	residual string
	chunks   int
	done     bool
	err      error
}

// Option configures a Reader.
type Option func(*Reader)

// WithChunkSize sets the maximum number of bytes requested per read.
func WithChunkSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.chunk = make([]byte, n)
		}
	}
}

// NewReader returns a Reader that parses frames from src.
func NewReader(src io.Reader, opts ...Option) *Reader {
	return NewTeeReader(src, nil, opts...)
}

// NewTeeReader returns a Reader that parses frames from src and writes all
// raw bytes through to dest. A nil dest disables the tee.
func NewTeeReader(src io.Reader, dest io.Writer, opts ...Option) *Reader {
	r := &Reader{
		src:   src,
		dest:  dest,
		demux: NewDemuxer(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.chunk == nil {
		r.chunk = make([]byte, defaultChunkSize)
	}
	return r
}

// Next returns the next complete frame. It blocks on the source until a
// frame is available. Once the source is exhausted and every complete frame
// was returned, Next returns io.EOF. Any other source or tee error is
// returned as is and is sticky.
//
// A trailing partial frame left when the source ends is not returned; see
// Residual.
func (r *Reader) Next() (Frame, error) {
	for len(r.queue) == 0 {
		if r.err != nil {
			return Frame{}, r.err
		}
		if r.done {
			return Frame{}, io.EOF
		}
		r.fill()
	}

	f := r.queue[0]
	r.queue = r.queue[1:]
	return f, nil
}

// fill performs exactly one read from the source.
func (r *Reader) fill() {
	n, err := r.src.Read(r.chunk)
	if n > 0 {
		r.chunks++
		if r.dest != nil {
			if _, werr := r.dest.Write(r.chunk[:n]); werr != nil {
				r.err = werr
				return
			}
		}
		r.queue = append(r.queue, r.demux.Feed(r.chunk[:n])...)
	}

	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		r.done = true
		r.residual = r.demux.Close()
	default:
		r.err = err
	}
}

// Residual returns the buffered text discarded at end of stream because it
// never saw a trailing separator. Empty until the source is exhausted.
func (r *Reader) Residual() string {
	return r.residual
}

// Chunks returns the number of non-empty reads performed so far.
func (r *Reader) Chunks() int {
	return r.chunks
}

// Dropped returns the number of complete frames discarded for having no
// event name.
func (r *Reader) Dropped() int {
	return r.demux.Dropped()
}
