package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jonathan/qa-orchestrator/internal/pipeline"
)

// SSE event names
const (
	EventProgress  = "progress"
	EventSuspended = "suspended"
	EventComplete  = "complete"
	EventError     = "error"
)

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(err error) {
	s.WriteEvent(EventError, map[string]any{ //nolint:errcheck
		"error":  err.Error(),
		"status": HTTPStatus(err),
	})
}

// WriteResult sends the final event of a drive: suspended when the run waits
// at a gate, complete otherwise.
func (s *SSEWriter) WriteResult(res *pipeline.Result) {
	if res.Suspended() {
		s.WriteEvent(EventSuspended, res) //nolint:errcheck
		return
	}
	s.WriteEvent(EventComplete, res) //nolint:errcheck
}
