package checkpoint

import (
	"context"
	"fmt"

	"github.com/jonathan/qa-orchestrator/internal/config"
	"github.com/jonathan/qa-orchestrator/internal/db"
)

// Open returns the backend selected by cfg.CheckpointBackend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.CheckpointBackend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendFile, "":
		dir := cfg.CheckpointDir
		if dir == "" {
			dir = config.DefaultCheckpointDir
		}
		return NewFileStore(dir)
	case config.BackendSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = config.DefaultSQLitePath
		}
		return NewSQLiteStore(path)
	case config.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres checkpoint backend requires a database URL")
		}
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &PostgresStore{DB: conn}, nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.CheckpointBackend)
	}
}
