package checkpoint

import (
	"context"
	"errors"

	"github.com/jonathan/qa-orchestrator/internal/db"
	"github.com/jonathan/qa-orchestrator/internal/state"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

var _ Historian = (*PostgresStore)(nil)

// PostgresStore adapts the db package to Store.
type PostgresStore struct {
	DB *db.DB
}

func (p *PostgresStore) Save(ctx context.Context, run *state.Run) error {
	return p.DB.SaveCheckpoint(ctx, run)
}

func (p *PostgresStore) Load(ctx context.Context, sessionKey string) (*state.Run, error) {
	run, err := p.DB.LoadCheckpoint(ctx, sessionKey)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	return run, err
}

func (p *PostgresStore) List(ctx context.Context, status types.Status) ([]state.Summary, error) {
	return p.DB.ListCheckpoints(ctx, status)
}

// History reads the artifact_versions audit table.
func (p *PostgresStore) History(ctx context.Context, sessionKey string, kind types.Kind) ([]types.ArtifactVersion, error) {
	return p.DB.ListArtifactVersions(ctx, sessionKey, kind)
}

func (p *PostgresStore) Close() error {
	p.DB.Close()
	return nil
}
