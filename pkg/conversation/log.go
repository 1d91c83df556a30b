package conversation

import (
	"sync"
)

// ChangeKind describes how the log changed.
type ChangeKind int

const (
	// Appended is reported when a message is added to the log.
	Appended ChangeKind = iota

	// Updated is reported when an existing message changes.
	Updated
)

// Change is delivered to watchers after every mutation. Message is a copy of
// the message after the change; Delta is the appended content, if any.
type Change struct {
	Kind    ChangeKind
	Message Message
	Delta   string
}

// Log is the ordered conversation log consumed by a rendering surface.
// It is safe for concurrent use. Watchers are called synchronously, in
// mutation order, and must not call back into the log.
type Log struct {
	mu       sync.RWMutex
	messages []Message
	index    map[string]int

	watchMu  sync.Mutex
	watchers []func(Change)
}

// NewLog returns a log holding msgs in order.
func NewLog(msgs ...Message) *Log {
	l := &Log{index: make(map[string]int, len(msgs))}
	for _, m := range msgs {
		l.index[m.ID] = len(l.messages)
		l.messages = append(l.messages, m.Clone())
	}
	return l
}

// Watch registers fn to receive every subsequent change.
func (l *Log) Watch(fn func(Change)) {
	l.watchMu.Lock()
	defer l.watchMu.Unlock()
	l.watchers = append(l.watchers, fn)
}

// Append adds msg to the end of the log. It returns false if a message with
// the same ID already exists.
func (l *Log) Append(msg Message) bool {
	l.mu.Lock()
	if _, ok := l.index[msg.ID]; ok {
		l.mu.Unlock()
		return false
	}
	msg = msg.Clone()
	l.index[msg.ID] = len(l.messages)
	l.messages = append(l.messages, msg)

	l.notifyAndUnlock(Change{Kind: Appended, Message: msg.Clone()})
	return true
}

// AppendContent appends delta to the content of message id.
func (l *Log) AppendContent(id, delta string) error {
	return l.update(id, delta, func(m *Message) {
		m.Content += delta
	})
}

// SetError records a failure description on message id.
func (l *Log) SetError(id, description string) error {
	return l.update(id, "", func(m *Message) {
		m.Error = description
	})
}

func (l *Log) update(id, delta string, fn func(*Message)) error {
	l.mu.Lock()
	i, ok := l.index[id]
	if !ok {
		l.mu.Unlock()
		return MessageNotFoundError{ID: id}
	}
	fn(&l.messages[i])

	l.notifyAndUnlock(Change{Kind: Updated, Message: l.messages[i].Clone(), Delta: delta})
	return nil
}

// Get returns a copy of message id.
func (l *Log) Get(id string) (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i, ok := l.index[id]
	if !ok {
		return Message{}, false
	}
	return l.messages[i].Clone(), true
}

// Messages returns a copy of the log in order.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Message, len(l.messages))
	for i, m := range l.messages {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// notifyAndUnlock releases the write lock held by the caller and delivers
// c. watchMu is taken before mu is released so that concurrent mutations
// are delivered in the order they were applied.
func (l *Log) notifyAndUnlock(c Change) {
	l.watchMu.Lock()
	defer l.watchMu.Unlock()
	l.mu.Unlock()

	for _, fn := range l.watchers {
		fn(c)
	}
}
