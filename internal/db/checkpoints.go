package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/qa-orchestrator/internal/state"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

// -----------------------------------------------------------------------------
// Run Checkpoint Methods
// -----------------------------------------------------------------------------

// SaveCheckpoint upserts the whole run state under its session key and
// records any artifact versions not yet in the audit table.
func (db *DB) SaveCheckpoint(ctx context.Context, run *state.Run) error {
	data, err := run.Marshal()
	if err != nil {
		return err
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	w := run.Workflow
	_, err = tx.Exec(ctx,
		`INSERT INTO run_checkpoints (session_key, run_id, team_id, status, stage, accumulated_cost, state, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (session_key) DO UPDATE
		 SET status = EXCLUDED.status, stage = EXCLUDED.stage,
		     accumulated_cost = EXCLUDED.accumulated_cost, state = EXCLUDED.state,
		     updated_at = EXCLUDED.updated_at`,
		w.SessionKey, w.RunID, w.TeamID, string(w.Status), string(w.CurrentStage),
		w.AccumulatedCost, data, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", w.SessionKey, err)
	}

	batch := &pgx.Batch{}
	for _, kind := range run.Artifacts.Kinds() {
		for _, v := range run.Artifacts.History(kind) {
			batch.Queue(
				`INSERT INTO artifact_versions (session_key, kind, version, artifact_id, run_id, content, created_by, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				 ON CONFLICT (session_key, kind, version) DO NOTHING`,
				w.SessionKey, string(v.Kind), v.Version, v.ArtifactID, v.RunID, v.Content, v.CreatedBy, v.CreatedAt,
			)
		}
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to record artifact versions: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint returns the run stored under sessionKey, or ErrNotFound.
func (db *DB) LoadCheckpoint(ctx context.Context, sessionKey string) (*state.Run, error) {
	var data []byte
	err := db.pool.QueryRow(ctx,
		`SELECT state FROM run_checkpoints WHERE session_key = $1`,
		sessionKey,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", sessionKey, err)
	}
	return state.Unmarshal(data)
}

// ListCheckpoints returns summaries of stored runs, newest first. An empty
// status lists every run.
func (db *DB) ListCheckpoints(ctx context.Context, status types.Status) ([]state.Summary, error) {
	query := `SELECT session_key, run_id, team_id, status, stage, accumulated_cost
	          FROM run_checkpoints`
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, string(status))
	}
	query += " ORDER BY updated_at DESC"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	summaries := []state.Summary{}
	for rows.Next() {
		var s state.Summary
		var st, stage string
		if err := rows.Scan(&s.SessionKey, &s.RunID, &s.TeamID, &st, &stage, &s.AccumulatedCost); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		s.Status = types.Status(st)
		s.Stage = types.Stage(stage)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return summaries, nil
}

// ListArtifactVersions reads the audit rows for one kind of a run, oldest first.
func (db *DB) ListArtifactVersions(ctx context.Context, sessionKey string, kind types.Kind) ([]types.ArtifactVersion, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT artifact_id, run_id, kind, version, content, created_by, created_at
		 FROM artifact_versions
		 WHERE session_key = $1 AND kind = $2
		 ORDER BY version`,
		sessionKey, string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifact versions: %w", err)
	}
	defer rows.Close()

	versions := []types.ArtifactVersion{}
	for rows.Next() {
		var v types.ArtifactVersion
		var k string
		if err := rows.Scan(&v.ArtifactID, &v.RunID, &k, &v.Version, &v.Content, &v.CreatedBy, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact version: %w", err)
		}
		v.Kind = types.Kind(k)
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
