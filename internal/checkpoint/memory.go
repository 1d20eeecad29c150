package checkpoint

import (
	"context"
	"sort"
	"sync"

	"github.com/jonathan/qa-orchestrator/internal/state"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

// MemoryStore keeps encoded checkpoints in process memory. Runs are stored as
// JSON so callers never share pointers with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string][]byte)}
}

func (m *MemoryStore) Save(_ context.Context, run *state.Run) error {
	data, err := run.Marshal()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.runs[run.SessionKey()] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, sessionKey string) (*state.Run, error) {
	m.mu.RLock()
	data, ok := m.runs[sessionKey]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return state.Unmarshal(data)
}

func (m *MemoryStore) List(_ context.Context, status types.Status) ([]state.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := []state.Summary{}
	for _, data := range m.runs {
		run, err := state.Unmarshal(data)
		if err != nil {
			return nil, err
		}
		if s := run.Summary(); matches(status, s) {
			summaries = append(summaries, s)
		}
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].SessionKey < summaries[j].SessionKey })
	return summaries, nil
}

func (m *MemoryStore) Close() error { return nil }
