package types

import "time"

// Artifact authors
const (
	CreatedByAI    = "ai"
	CreatedByHuman = "human"
)

// ArtifactVersion is one immutable entry in an artifact's history.
type ArtifactVersion struct {
	ArtifactID string    `json:"artifact_id"`
	RunID      string    `json:"run_id"`
	Kind       Kind      `json:"kind"`
	Version    int       `json:"version"`
	Content    string    `json:"content"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// Question is a clarification question and its answer, gathered before a run
// starts and passed to every generator.
type Question struct {
	ID       string `json:"id,omitempty"`
	Text     string `json:"text" validate:"required"`
	Category string `json:"category,omitempty"`
	Answer   string `json:"answer,omitempty"`
}

// TeamContext is the background text collected once at run start.
type TeamContext struct {
	TechContext string `json:"tech_context,omitempty"`
	CodebaseMap string `json:"codebase_map,omitempty"`
}
