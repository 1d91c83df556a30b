// Package eventstream publishes conversation turns to an event stream
// backend once they are stored.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/askstream/pkg/conversation"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnStored is emitted after a conversation turn is stored.
	EventTypeTurnStored = "askstream.turn.stored"
)

// TurnStoredEvent is a transport-neutral event payload for a stored turn.
type TurnStoredEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	// Thread is the conversation thread the turn belongs to.
	Thread string `json:"thread"`

	// Seq is the log position of the first message of the turn.
	Seq int `json:"seq"`

	// Messages is the user question followed by the assistant answer,
	// when there was one.
	Messages []conversation.Message `json:"messages"`
}

// NewTurnStoredEvent builds a v1 event for the turn starting at seq.
func NewTurnStoredEvent(thread string, seq int, msgs []conversation.Message) *TurnStoredEvent {
	cloned := make([]conversation.Message, len(msgs))
	for i, m := range msgs {
		cloned[i] = m.Clone()
	}

	return &TurnStoredEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnStored,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Thread:        thread,
		Seq:           seq,
		Messages:      cloned,
	}
}
