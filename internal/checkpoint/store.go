// Package checkpoint persists whole-run snapshots keyed by session key so a
// suspended run can be resumed by any process.
package checkpoint

import (
	"context"
	"errors"

	"github.com/jonathan/qa-orchestrator/internal/state"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

// ErrNotFound is returned by Load when no checkpoint exists for a key.
var ErrNotFound = errors.New("checkpoint not found")

// Store is a last-write-wins map from session key to run state. Every
// implementation is safe for concurrent use.
type Store interface {
	// Save upserts the whole run under run.SessionKey().
	Save(ctx context.Context, run *state.Run) error
	// Load returns an independent copy of the stored run.
	Load(ctx context.Context, sessionKey string) (*state.Run, error)
	// List returns summaries of stored runs, filtered by status when non-empty.
	List(ctx context.Context, status types.Status) ([]state.Summary, error)
	Close() error
}

// Historian is implemented by stores that keep an append-only audit of
// artifact versions next to the checkpoints.
type Historian interface {
	// History returns the audited versions of kind for a run, oldest first.
	History(ctx context.Context, sessionKey string, kind types.Kind) ([]types.ArtifactVersion, error)
}

func matches(status types.Status, s state.Summary) bool {
	return status == "" || s.Status == status
}
