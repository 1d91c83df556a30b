// Package replay provides an HTTP server that answers POST /ask by
// replaying a recorded event-stream transcript.
package replay

import "time"

// Config is the replay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string

	// ChunkSize is the number of transcript bytes written per streamed
	// chunk. Zero writes the whole transcript at once.
	ChunkSize int

	// ChunkDelay is the pause between streamed chunks.
	ChunkDelay time.Duration
}
