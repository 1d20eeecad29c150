package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/jonathan/qa-orchestrator/internal/state"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

// SQLiteStore keeps checkpoints in an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and migrates it.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// One connection: writes are serialized and ":memory:" stays a single database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		session_key TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		team_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		stage TEXT NOT NULL,
		accumulated_cost REAL NOT NULL DEFAULT 0,
		state TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_checkpoints_status ON checkpoints(status);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, run *state.Run) error {
	data, err := run.Marshal()
	if err != nil {
		return err
	}
	w := run.Workflow
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (session_key, run_id, team_id, status, stage, accumulated_cost, state, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(session_key) DO UPDATE SET
		   status = excluded.status, stage = excluded.stage,
		   accumulated_cost = excluded.accumulated_cost, state = excluded.state,
		   updated_at = CURRENT_TIMESTAMP`,
		w.SessionKey, w.RunID, w.TeamID, string(w.Status), string(w.CurrentStage), w.AccumulatedCost, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", w.SessionKey, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, sessionKey string) (*state.Run, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM checkpoints WHERE session_key = ?`, sessionKey).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", sessionKey, err)
	}
	return state.Unmarshal([]byte(data))
}

func (s *SQLiteStore) List(ctx context.Context, status types.Status) ([]state.Summary, error) {
	query := `SELECT session_key, run_id, team_id, status, stage, accumulated_cost FROM checkpoints`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY session_key`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	summaries := []state.Summary{}
	for rows.Next() {
		var sum state.Summary
		var st, stage string
		if err := rows.Scan(&sum.SessionKey, &sum.RunID, &sum.TeamID, &st, &stage, &sum.AccumulatedCost); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		sum.Status = types.Status(st)
		sum.Stage = types.Stage(stage)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
