package pipeline

import (
	"context"

	"github.com/jonathan/qa-orchestrator/internal/types"
)

// ProgressEvent represents a progress update while a run is driven
type ProgressEvent struct {
	SessionKey string      `json:"session_key"`
	Stage      types.Stage `json:"stage"`
	Kind       types.Kind  `json:"kind,omitempty"`
	Message    string      `json:"message"`
	Content    any         `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

type progressKey struct{}

// WithProgress returns a context whose drives report progress to cb, in
// addition to the controller-wide callback.
func WithProgress(ctx context.Context, cb ProgressCallback) context.Context {
	return context.WithValue(ctx, progressKey{}, cb)
}

// emitProgress calls the progress callbacks if configured
func (c *Controller) emitProgress(ctx context.Context, event ProgressEvent) {
	if c.onProgress != nil {
		c.onProgress(event)
	}
	if cb, ok := ctx.Value(progressKey{}).(ProgressCallback); ok && cb != nil {
		cb(event)
	}
}
