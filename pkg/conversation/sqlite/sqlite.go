// Package sqlite provides a SQLite-backed conversation.Driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/askstream/pkg/ask"
	"github.com/papercomputeco/askstream/pkg/conversation"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	thread TEXT NOT NULL,
	seq INTEGER NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	sources TEXT,
	error TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_thread_seq ON messages(thread, seq);
`

// Driver implements conversation.Driver using SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver creates a new SQLite-backed driver.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// Put inserts or replaces msg in thread.
func (d *Driver) Put(ctx context.Context, thread string, seq int, msg conversation.Message) error {
	var sources sql.NullString
	if len(msg.Sources) > 0 {
		data, err := json.Marshal(msg.Sources)
		if err != nil {
			return fmt.Errorf("marshaling sources: %w", err)
		}
		sources = sql.NullString{String: string(data), Valid: true}
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO messages (id, thread, seq, role, content, sources, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			thread = excluded.thread,
			seq = excluded.seq,
			role = excluded.role,
			content = excluded.content,
			sources = excluded.sources,
			error = excluded.error`,
		msg.ID, thread, seq, string(msg.Role), msg.Content, sources,
		sql.NullString{String: msg.Error, Valid: msg.Error != ""},
		msg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storing message %s: %w", msg.ID, err)
	}
	return nil
}

// List returns the messages of thread ordered by position.
func (d *Driver) List(ctx context.Context, thread string) ([]conversation.Message, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, role, content, sources, error, created_at
		FROM messages WHERE thread = ? ORDER BY seq, created_at`, thread)
	if err != nil {
		return nil, fmt.Errorf("listing thread %s: %w", thread, err)
	}
	defer rows.Close()

	var msgs []conversation.Message
	for rows.Next() {
		var (
			msg       conversation.Message
			role      string
			sources   sql.NullString
			errText   sql.NullString
			createdAt time.Time
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &sources, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}

		msg.Role = conversation.Role(role)
		msg.Error = errText.String
		msg.CreatedAt = createdAt
		if sources.Valid {
			var s []ask.Source
			if err := json.Unmarshal([]byte(sources.String), &s); err != nil {
				return nil, fmt.Errorf("parsing sources of message %s: %w", msg.ID, err)
			}
			msg.Sources = s
		}

		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing thread %s: %w", thread, err)
	}

	if len(msgs) == 0 {
		return nil, conversation.NotFoundError{Thread: thread}
	}
	return msgs, nil
}

// Threads returns every stored thread ID, sorted.
func (d *Driver) Threads(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT DISTINCT thread FROM messages ORDER BY thread`)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	defer rows.Close()

	threads := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		threads = append(threads, id)
	}
	return threads, rows.Err()
}

// Clear removes every message of thread.
func (d *Driver) Clear(ctx context.Context, thread string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM messages WHERE thread = ?`, thread); err != nil {
		return fmt.Errorf("clearing thread %s: %w", thread, err)
	}
	return nil
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.db.Close()
}
