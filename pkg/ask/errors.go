package ask

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoBody is returned when a successful response carries no body.
var ErrNoBody = errors.New("ask service returned no response body")

// StatusError is returned for any non-success HTTP status. Its message is
// the response body text, which is the human-readable failure description.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return fmt.Sprintf("ask service returned status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
