// Package sqlitepath resolves the conversation database used by commands
// that read history.
package sqlitepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const dbName = "askstream.db"

// ErrNotFound is returned when no database path is configured or found.
var ErrNotFound = errors.New("could not find askstream SQLite database; pass --sqlite")

// ResolveSQLitePath returns override when set, then ASKSTREAM_SQLITE or
// ASKSTREAM_DB, then the first existing well-known database file.
func ResolveSQLitePath(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("ASKSTREAM_SQLITE")); envPath != "" {
		return envPath, nil
	}
	if envPath := strings.TrimSpace(os.Getenv("ASKSTREAM_DB")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", ErrNotFound
}

// DefaultPath is where a new database is created when nothing exists yet.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".askstream")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, dbName), nil
}

func sqliteCandidates() []string {
	candidates := []string{
		dbName,
		filepath.Join(".askstream", dbName),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append([]string{
			filepath.Join(home, ".askstream", dbName),
		}, candidates...)
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{
			filepath.Join(xdgHome, "askstream", dbName),
		}, candidates...)
	}

	return candidates
}
