// Package conversation owns the ordered log of messages exchanged in a
// conversation thread and the interface for persisting it.
package conversation

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/askstream/pkg/ask"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation log.
type Message struct {
	ID      string       `json:"id"`
	Role    Role         `json:"role"`
	Content string       `json:"content"`
	Sources []ask.Source `json:"sources,omitempty"`

	// Error is the failure description of an ask that did not complete.
	// Content accumulated before the failure is kept as is.
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewMessage returns a message with a fresh ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// Clone returns a copy that shares no memory with m.
func (m Message) Clone() Message {
	m.Sources = slices.Clone(m.Sources)
	return m
}
