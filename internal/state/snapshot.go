package state

import (
	"github.com/jonathan/qa-orchestrator/internal/types"
)

// ArtifactView is the latest content and version of one kind.
type ArtifactView struct {
	Kind    types.Kind `json:"kind"`
	Content string     `json:"content"`
	Version int        `json:"version"`
}

// RunSnapshot is a read-only dump of a run for display.
type RunSnapshot struct {
	RunID           string                                `json:"run_id"`
	SessionKey      string                                `json:"session_key"`
	TeamID          string                                `json:"team_id"`
	Status          types.Status                          `json:"status"`
	Stage           types.Stage                           `json:"stage"`
	ErrorMessage    string                                `json:"error_message,omitempty"`
	Clarifications  []types.Question                      `json:"clarifications,omitempty"`
	AccumulatedCost float64                               `json:"accumulated_cost"`
	Artifacts       []ArtifactView                        `json:"artifacts"`
	Gates           []types.ApprovalGate                  `json:"gates"`
	Iterations      map[types.Kind]int                    `json:"iterations"`
	Evaluations     map[types.Kind]types.EvaluationResult `json:"evaluations,omitempty"`
	HumanFeedback   map[types.Kind]string                 `json:"human_feedback,omitempty"`
}

// Snapshot builds a RunSnapshot. The result shares no memory with r.
func (r *Run) Snapshot() *RunSnapshot {
	snap := &RunSnapshot{
		RunID:           r.Workflow.RunID,
		SessionKey:      r.Workflow.SessionKey,
		TeamID:          r.Workflow.TeamID,
		Status:          r.Workflow.Status,
		Stage:           r.Workflow.CurrentStage,
		ErrorMessage:    r.Workflow.ErrorMessage,
		Clarifications:  append([]types.Question(nil), r.Clarifications...),
		AccumulatedCost: r.Workflow.AccumulatedCost,
		Artifacts:       make([]ArtifactView, 0, len(types.Kinds)),
		Gates:           make([]types.ApprovalGate, 0, len(types.Kinds)),
		Iterations:      make(map[types.Kind]int, len(r.Iterations)),
		Evaluations:     make(map[types.Kind]types.EvaluationResult, len(r.Evaluations)),
		HumanFeedback:   make(map[types.Kind]string, len(r.HumanFeedback)),
	}

	for _, k := range types.Kinds {
		content, version := r.Artifacts.Latest(k)
		snap.Artifacts = append(snap.Artifacts, ArtifactView{Kind: k, Content: content, Version: version})
		if gate, ok := r.Gates[k]; ok {
			g := *gate
			if gate.ReviewedAt != nil {
				at := *gate.ReviewedAt
				g.ReviewedAt = &at
			}
			snap.Gates = append(snap.Gates, g)
		}
	}
	for k, n := range r.Iterations {
		snap.Iterations[k] = n
	}
	for k, fb := range r.HumanFeedback {
		snap.HumanFeedback[k] = fb
	}
	for k, ev := range r.Evaluations {
		if ev == nil {
			continue
		}
		e := *ev
		e.Issues = append([]types.Issue(nil), ev.Issues...)
		e.Recommendations = append([]string(nil), ev.Recommendations...)
		snap.Evaluations[k] = e
	}
	return snap
}

// Artifact returns the view for kind.
func (s *RunSnapshot) Artifact(kind types.Kind) ArtifactView {
	for _, a := range s.Artifacts {
		if a.Kind == kind {
			return a
		}
	}
	return ArtifactView{Kind: kind}
}

// Gate returns the gate for kind.
func (s *RunSnapshot) Gate(kind types.Kind) types.ApprovalGate {
	for _, g := range s.Gates {
		if g.Kind == kind {
			return g
		}
	}
	return types.ApprovalGate{Kind: kind}
}

// Summary is the compact listing form of a run.
type Summary struct {
	SessionKey      string       `json:"session_key"`
	RunID           string       `json:"run_id"`
	TeamID          string       `json:"team_id"`
	Status          types.Status `json:"status"`
	Stage           types.Stage  `json:"stage"`
	AccumulatedCost float64      `json:"accumulated_cost"`
}

// Summary returns the listing form of r.
func (r *Run) Summary() Summary {
	return Summary{
		SessionKey:      r.Workflow.SessionKey,
		RunID:           r.Workflow.RunID,
		TeamID:          r.Workflow.TeamID,
		Status:          r.Workflow.Status,
		Stage:           r.Workflow.CurrentStage,
		AccumulatedCost: r.Workflow.AccumulatedCost,
	}
}
