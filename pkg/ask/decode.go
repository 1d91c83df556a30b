package ask

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/papercomputeco/askstream/pkg/sse"
)

var (
	// ErrNotObject is reported when a start payload is not a JSON object.
	ErrNotObject = errors.New("payload is not a JSON object")

	// ErrNoSources is reported when a start payload has no sources array.
	ErrNoSources = errors.New("payload has no sources array")
)

// Result is the outcome of a fail-soft decode. When Fallback is true, Value
// holds the documented default and Err the failure that triggered it.
type Result[T any] struct {
	Value    T
	Fallback bool
	Err      error
}

// DecodeWithDefault runs decode on raw. On failure it never propagates the
// error: the returned Result carries fallback(raw, err) instead.
func DecodeWithDefault[T any](raw string, decode func(string) (T, error), fallback func(string, error) T) Result[T] {
	v, err := decode(raw)
	if err != nil {
		return Result[T]{
			Value:    fallback(raw, err),
			Fallback: true,
			Err:      err,
		}
	}
	return Result[T]{Value: v}
}

// DecodeStart decodes a start payload. Malformed payloads yield no
// sources; malformed elements are dropped individually.
func DecodeStart(raw string) Result[StartEvent] {
	return DecodeWithDefault(raw, decodeStart, func(string, error) StartEvent {
		return StartEvent{Sources: []Source{}}
	})
}

func decodeStart(raw string) (StartEvent, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return StartEvent{}, err
	}
	if obj == nil {
		return StartEvent{}, ErrNotObject
	}

	sources, ok := obj["sources"]
	if !ok || jsonKind(sources) != '[' {
		return StartEvent{}, ErrNoSources
	}

	return StartEvent{Sources: FilterSources(sources)}, nil
}

// DecodeToken decodes a token payload. A JSON string is used as the delta,
// any other JSON value is used in its compact JSON form, and anything that
// is not JSON at all is used verbatim.
func DecodeToken(raw string) Result[TokenEvent] {
	return DecodeWithDefault(raw, decodeToken, func(raw string, _ error) TokenEvent {
		return TokenEvent{Delta: raw}
	})
}

func decodeToken(raw string) (TokenEvent, error) {
	data := []byte(raw)
	if jsonKind(data) == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return TokenEvent{}, err
		}
		return TokenEvent{Delta: s}, nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return TokenEvent{}, err
	}
	return TokenEvent{Delta: buf.String()}, nil
}

// DecodeEnd accepts any payload.
func DecodeEnd(string) Result[EndEvent] {
	return Result[EndEvent]{Value: EndEvent{}}
}

// Decoded is the outcome of decoding one frame. Event is nil for frames
// whose event name is not recognized.
type Decoded struct {
	Event    Event
	Fallback bool
	Err      error
}

// DecodeFrame maps a frame to its typed event. It never fails.
func DecodeFrame(f sse.Frame) Decoded {
	switch EventKind(f.Event) {
	case KindStart:
		r := DecodeStart(f.Data)
		return Decoded{Event: r.Value, Fallback: r.Fallback, Err: r.Err}
	case KindToken:
		r := DecodeToken(f.Data)
		return Decoded{Event: r.Value, Fallback: r.Fallback, Err: r.Err}
	case KindEnd:
		return Decoded{Event: DecodeEnd(f.Data).Value}
	default:
		return Decoded{}
	}
}

// Decode maps a frame to its typed event, reporting false for unrecognized
// event names.
func Decode(f sse.Frame) (Event, bool) {
	d := DecodeFrame(f)
	return d.Event, d.Event != nil
}

// FilterSources decodes a JSON array of sources, keeping only elements whose
// chunk is a string and whose score and index are numbers. Unknown fields
// are ignored. The result is never nil.
func FilterSources(raw json.RawMessage) []Source {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return []Source{}
	}

	sources := make([]Source, 0, len(elems))
	for _, elem := range elems {
		s, err := decodeSource(elem)
		if err != nil {
			continue
		}
		sources = append(sources, s)
	}
	return sources
}

func decodeSource(raw json.RawMessage) (Source, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Source{}, err
	}
	if fields == nil {
		return Source{}, ErrNotObject
	}

	var s Source
	chunk := fields["chunk"]
	if jsonKind(chunk) != '"' {
		return Source{}, errors.New("chunk is not a string")
	}
	if err := json.Unmarshal(chunk, &s.Chunk); err != nil {
		return Source{}, err
	}

	score, err := jsonNumber(fields["score"])
	if err != nil {
		return Source{}, fmt.Errorf("score: %w", err)
	}
	s.Score = score

	index, err := jsonNumber(fields["index"])
	if err != nil {
		return Source{}, fmt.Errorf("index: %w", err)
	}
	s.Index = index

	return s, nil
}

func jsonNumber(raw json.RawMessage) (float64, error) {
	switch k := jsonKind(raw); {
	case k == '-' || (k >= '0' && k <= '9'):
	default:
		return 0, errors.New("not a number")
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	return f, nil
}

// jsonKind returns the first non-whitespace byte of a JSON value, or 0.
func jsonKind(raw []byte) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return b
		}
	}
	return 0
}
