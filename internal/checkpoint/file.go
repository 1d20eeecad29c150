package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jonathan/qa-orchestrator/internal/state"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

const fileExt = ".json"

// FileStore writes one JSON file per session key under a directory.
type FileStore struct {
	dir string
	// mu orders writers within this process; rename keeps readers safe.
	mu sync.Mutex
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding the checkpoint files.
func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) path(sessionKey string) (string, error) {
	if sessionKey == "" || strings.ContainsAny(sessionKey, `/\`) || sessionKey == "." || sessionKey == ".." {
		return "", fmt.Errorf("invalid session key %q", sessionKey)
	}
	return filepath.Join(f.dir, sessionKey+fileExt), nil
}

func (f *FileStore) Save(_ context.Context, run *state.Run) error {
	path, err := f.path(run.SessionKey())
	if err != nil {
		return err
	}
	data, err := run.Marshal()
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint %s: %w", run.SessionKey(), err)
	}
	return nil
}

func (f *FileStore) Load(_ context.Context, sessionKey string) (*state.Run, error) {
	path, err := f.path(sessionKey)
	if err != nil {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", sessionKey, err)
	}
	return state.Unmarshal(data)
}

func (f *FileStore) List(_ context.Context, status types.Status) ([]state.Summary, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint dir: %w", err)
	}

	summaries := []state.Summary{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fileExt {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read checkpoint %s: %w", e.Name(), err)
		}
		run, err := state.Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("corrupt checkpoint %s: %w", e.Name(), err)
		}
		if s := run.Summary(); matches(status, s) {
			summaries = append(summaries, s)
		}
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].SessionKey < summaries[j].SessionKey })
	return summaries, nil
}

func (f *FileStore) Close() error { return nil }

// writeFileAtomic writes to a temporary file, fsyncs it and renames it over
// path, so a crash mid-write never leaves a truncated checkpoint.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, perm); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}
