// Package db provides PostgreSQL storage for run checkpoints and the
// artifact version audit trail.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no checkpoint exists for a session key.
var ErrNotFound = errors.New("checkpoint not found")

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Open connects and applies the schema.
func Open(ctx context.Context, databaseURL string) (*DB, error) {
	db, err := Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Migrate creates the checkpoint tables if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS run_checkpoints (
	session_key      TEXT PRIMARY KEY,
	run_id           TEXT NOT NULL,
	team_id          TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	stage            TEXT NOT NULL,
	accumulated_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
	state            JSONB NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_run_checkpoints_status ON run_checkpoints(status);

CREATE TABLE IF NOT EXISTS artifact_versions (
	session_key TEXT NOT NULL REFERENCES run_checkpoints(session_key) ON DELETE CASCADE,
	kind        TEXT NOT NULL,
	version     INTEGER NOT NULL,
	artifact_id TEXT NOT NULL,
	run_id      TEXT NOT NULL,
	content     TEXT NOT NULL,
	created_by  TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_key, kind, version)
);
`
