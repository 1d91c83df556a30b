package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	threadFile = "thread.json"
)

// ThreadState records the conversation thread that "askstream chat"
// resumes by default.
type ThreadState struct {
	// ID is the thread ID in the conversation store.
	ID string `json:"id"`

	// UpdatedAt is when the thread last received an answer.
	UpdatedAt time.Time `json:"updated_at"`
}

// LoadThreadState loads the thread state from a target .askstream/thread.json.
// Returns nil, nil if no thread state exists or no directory resolves.
// If overrideDir is non-empty, it is used instead of the default location.
func (m *Manager) LoadThreadState(overrideDir string) (*ThreadState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, threadFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading thread state: %w", err)
	}

	state := &ThreadState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing thread state: %w", err)
	}

	return state, nil
}

// SaveThreadState persists the thread state to a target .askstream/thread.json.
// With no resolvable directory it falls back to ~/.askstream/.
func (m *Manager) SaveThreadState(state *ThreadState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil thread state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}
	if dir == "" {
		if dir, err = m.Home(); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling thread state: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, threadFile), data, 0o600); err != nil {
		return fmt.Errorf("writing thread state: %w", err)
	}

	return nil
}

// ClearThreadState removes the thread state file so the next chat starts
// a new thread. Returns nil if the file doesn't exist (already cleared).
func (m *Manager) ClearThreadState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return err
	}

	if err := os.Remove(filepath.Join(dir, threadFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing thread state: %w", err)
	}

	return nil
}
