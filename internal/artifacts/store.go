// Package artifacts holds the versioned content produced for each artifact kind of a run.
package artifacts

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/qa-orchestrator/internal/types"
)

// Artifact is the live slot for one kind: the latest content, its version,
// and the append-only history of every version ever emitted.
type Artifact struct {
	ID      string                  `json:"id"`
	Kind    types.Kind              `json:"kind"`
	Content string                  `json:"content"`
	Version int                     `json:"version"`
	History []types.ArtifactVersion `json:"history"`
}

// Store maps each kind to its artifact. The zero value is not usable; call New.
// Store is not safe for concurrent use; a run is driven by one goroutine at a time.
type Store struct {
	Artifacts map[types.Kind]*Artifact `json:"artifacts"`
}

// New returns an empty store.
func New() *Store {
	return &Store{Artifacts: make(map[types.Kind]*Artifact)}
}

// AppendVersion records new content for kind. The version counter and the
// history length move together.
func (s *Store) AppendVersion(runID string, kind types.Kind, content, createdBy string, at time.Time) types.ArtifactVersion {
	if s.Artifacts == nil {
		s.Artifacts = make(map[types.Kind]*Artifact)
	}
	a, ok := s.Artifacts[kind]
	if !ok {
		a = &Artifact{ID: uuid.New().String(), Kind: kind}
		s.Artifacts[kind] = a
	}

	v := types.ArtifactVersion{
		ArtifactID: a.ID,
		RunID:      runID,
		Kind:       kind,
		Version:    len(a.History) + 1,
		Content:    content,
		CreatedBy:  createdBy,
		CreatedAt:  at,
	}
	a.History = append(a.History, v)
	a.Version = v.Version
	a.Content = content
	return v
}

// Latest returns the live content and version for kind. A kind that has never
// been generated returns ("", 0).
func (s *Store) Latest(kind types.Kind) (string, int) {
	a, ok := s.Artifacts[kind]
	if !ok {
		return "", 0
	}
	return a.Content, a.Version
}

// History returns a copy of kind's version history, oldest first.
func (s *Store) History(kind types.Kind) []types.ArtifactVersion {
	a, ok := s.Artifacts[kind]
	if !ok {
		return []types.ArtifactVersion{}
	}
	out := make([]types.ArtifactVersion, len(a.History))
	copy(out, a.History)
	return out
}

// Generations counts the versions of kind authored by the generator.
func (s *Store) Generations(kind types.Kind) int {
	a, ok := s.Artifacts[kind]
	if !ok {
		return 0
	}
	n := 0
	for _, v := range a.History {
		if v.CreatedBy == types.CreatedByAI {
			n++
		}
	}
	return n
}

// Kinds returns the kinds with at least one version, in pipeline order.
func (s *Store) Kinds() []types.Kind {
	var kinds []types.Kind
	for _, k := range types.Kinds {
		if a, ok := s.Artifacts[k]; ok && a.Version > 0 {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
