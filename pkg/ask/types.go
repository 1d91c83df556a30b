// Package ask holds the wire types of the ask service, the fail-soft event
// decoder for its streaming responses and the HTTP client that talks to it.
package ask

// Format selects the non-streaming response encoding.
type Format string

const (
	// FormatText returns the answer as plain text.
	FormatText Format = "text"

	// FormatJSON returns an Answer object.
	FormatJSON Format = "json"
)

// Request is the JSON body of POST /ask.
type Request struct {
	Question       string `json:"question"`
	Stream         bool   `json:"stream"`
	IncludeSources bool   `json:"include_sources"`
	Format         Format `json:"format"`
}

// Source is a retrieved passage backing an answer.
type Source struct {
	Chunk string  `json:"chunk"`
	Score float64 `json:"score"`
	Index float64 `json:"index"`
}

// Answer is the non-streaming JSON response.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// EventKind names one of the recognized stream events.
type EventKind string

const (
	KindStart EventKind = "start"
	KindToken EventKind = "token"
	KindEnd   EventKind = "end"
)

// Event is one of StartEvent, TokenEvent or EndEvent.
type Event interface {
	Kind() EventKind
}

// StartEvent carries the sources retrieved for the question. Sources is
// never nil.
type StartEvent struct {
	Sources []Source
}

// TokenEvent carries a single delta of the answer.
type TokenEvent struct {
	Delta string
}

// EndEvent marks the end of the answer. Its payload is opaque and
// discarded.
type EndEvent struct{}

func (StartEvent) Kind() EventKind { return KindStart }
func (TokenEvent) Kind() EventKind { return KindToken }
func (EndEvent) Kind() EventKind   { return KindEnd }
