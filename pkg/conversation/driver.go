package conversation

import (
	"context"
	"fmt"
)

// Driver defines the interface for persisting conversation threads.
type Driver interface {
	// Put inserts or replaces message msg at position seq of thread.
	Put(ctx context.Context, thread string, seq int, msg Message) error

	// List returns the messages of thread ordered by position. It returns
	// a NotFoundError for a thread with no messages.
	List(ctx context.Context, thread string) ([]Message, error)

	// Threads returns the IDs of every stored thread, sorted.
	Threads(ctx context.Context) ([]string, error)

	// Clear removes every message of thread.
	Clear(ctx context.Context, thread string) error

	// Close closes the store and releases any resources.
	Close() error
}

// NotFoundError is returned when a thread does not exist.
type NotFoundError struct {
	Thread string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("thread not found: %s", e.Thread)
}

// MessageNotFoundError is returned when a message is not in the log.
type MessageNotFoundError struct {
	ID string
}

func (e MessageNotFoundError) Error() string {
	return fmt.Sprintf("message not found: %s", e.ID)
}
