// Package testutils holds helpers shared by askstream tests.
package testutils

import (
	"fmt"
	"net/http"
	"strings"
)

// HelloChunks is a three event stream split inside the JSON string literal
// of its token frame.
var HelloChunks = []string{
	"event: start\ndata: {\"sources\":[]}\n\nevent: token\ndata: \"Hel",
	"lo\"\n\nevent: end\ndata: {}\n\n",
}

// Frame serializes a single event-stream frame, separator included.
func Frame(event, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}

// Transcript joins frames into one stream body.
func Transcript(frames ...string) string {
	return strings.Join(frames, "")
}

// StreamChunks answers with an event stream, writing and flushing each
// chunk separately so the client observes separate reads.
func StreamChunks(chunks ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, chunk := range chunks {
			fmt.Fprint(w, chunk)
			flusher.Flush()
		}
	}
}
