package sse

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder converts raw chunk bytes into text. A multi-byte UTF-8 sequence
// split across two chunks is held back until the rest of it arrives.
// Ill-formed bytes are replaced with U+FFFD.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	t       transform.Transformer
	pending []byte
}

// NewDecoder returns a Decoder with no carried-over bytes.
func NewDecoder() *Decoder {
	return &Decoder{
		t: unicode.UTF8.NewDecoder(),
	}
}

// Decode returns the text for every complete sequence in the carried-over
// bytes plus chunk. A trailing incomplete sequence is retained for the next
// call.
func (d *Decoder) Decode(chunk []byte) string {
	return d.decode(chunk, false)
}

// Flush decodes whatever is still carried over as if the stream ended.
// Dangling bytes of an incomplete sequence become U+FFFD.
func (d *Decoder) Flush() string {
	return d.decode(nil, true)
}

// Pending reports the number of bytes held back for the next call.
func (d *Decoder) Pending() int {
	return len(d.pending)
}

func (d *Decoder) decode(chunk []byte, atEOF bool) string {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	}
	if len(src) == 0 {
		return ""
	}

	// Every ill-formed byte may expand to the 3 byte replacement character.
	dst := make([]byte, len(src)*3+utf8.UTFMax)

	nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
	switch {
	case err == nil:
	case errors.Is(err, transform.ErrShortSrc):
		d.pending = append([]byte(nil), src[nSrc:]...)
	default:
		// Not reachable with the dst sizing above; keep the raw remainder
		// rather than lose it.
		return string(dst[:nDst]) + string(src[nSrc:])
	}

	return string(dst[:nDst])
}
