// Package inmemory provides a conversation.Driver backed by process memory.
package inmemory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/papercomputeco/askstream/pkg/conversation"
)

type entry struct {
	seq int
	msg conversation.Message
}

// Driver implements conversation.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of threads
	mu sync.RWMutex

	// threads maps a thread ID to its messages keyed by message ID
	threads map[string]map[string]entry
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		threads: make(map[string]map[string]entry),
	}
}

// Put inserts or replaces msg in thread.
func (d *Driver) Put(_ context.Context, thread string, seq int, msg conversation.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	msgs, ok := d.threads[thread]
	if !ok {
		msgs = make(map[string]entry)
		d.threads[thread] = msgs
	}
	msgs[msg.ID] = entry{seq: seq, msg: msg.Clone()}
	return nil
}

// List returns the messages of thread ordered by position.
func (d *Driver) List(_ context.Context, thread string) ([]conversation.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	msgs, ok := d.threads[thread]
	if !ok || len(msgs) == 0 {
		return nil, conversation.NotFoundError{Thread: thread}
	}

	entries := make([]entry, 0, len(msgs))
	for _, e := range msgs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})

	out := make([]conversation.Message, len(entries))
	for i, e := range entries {
		out[i] = e.msg.Clone()
	}
	return out, nil
}

// Threads returns every stored thread ID, sorted.
func (d *Driver) Threads(_ context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.threads))
	for id, msgs := range d.threads {
		if len(msgs) > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Clear removes every message of thread.
func (d *Driver) Clear(_ context.Context, thread string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.threads, thread)
	return nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
