// Package state defines the persisted record of one run: everything needed to
// resume it with no other state.
package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/qa-orchestrator/internal/artifacts"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

// Run is the checkpoint record for one session.
type Run struct {
	Workflow       types.WorkflowRun                      `json:"run"`
	RawInput       string                                 `json:"raw_input"`
	TeamContext    types.TeamContext                      `json:"team_context"`
	Clarifications []types.Question                       `json:"clarifications,omitempty"`
	Artifacts      *artifacts.Store                       `json:"artifacts"`
	Gates          map[types.Kind]*types.ApprovalGate     `json:"gates"`
	Iterations     map[types.Kind]int                     `json:"iterations"`
	Evaluations    map[types.Kind]*types.EvaluationResult `json:"evaluations"`
	HumanFeedback  map[types.Kind]string                  `json:"human_feedback,omitempty"`
}

// New allocates a run with all gates pending and the given first stage.
func New(req types.StartRequest, teamCtx types.TeamContext, first types.Stage, now time.Time) *Run {
	runID := uuid.New().String()
	return &Run{
		Workflow: types.WorkflowRun{
			RunID:               runID,
			SessionKey:          uuid.New().String(),
			TeamID:              req.TeamID,
			Status:              types.StatusRunning,
			CurrentStage:        first,
			ConfidenceThreshold: req.ConfidenceThreshold,
			CreatedAt:           now,
			UpdatedAt:           now,
		},
		RawInput:       req.RawInput,
		TeamContext:    teamCtx,
		Clarifications: req.Clarifications,
		Artifacts:      artifacts.New(),
		Gates:          types.NewPendingGates(),
		Iterations:     make(map[types.Kind]int),
		Evaluations:    make(map[types.Kind]*types.EvaluationResult),
		HumanFeedback:  make(map[types.Kind]string),
	}
}

// SessionKey returns the key the run is checkpointed under.
func (r *Run) SessionKey() string {
	return r.Workflow.SessionKey
}

// Marshal encodes the run as checkpoint JSON.
func (r *Run) Marshal() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run state: %w", err)
	}
	return data, nil
}

// Unmarshal decodes checkpoint JSON and restores any missing maps.
func Unmarshal(data []byte) (*Run, error) {
	var r Run
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run state: %w", err)
	}
	r.normalize()
	return &r, nil
}

// Clone returns a deep copy, so a failed operation can be discarded without
// touching the original.
func (r *Run) Clone() (*Run, error) {
	data, err := r.Marshal()
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

func (r *Run) normalize() {
	if r.Artifacts == nil {
		r.Artifacts = artifacts.New()
	}
	if r.Artifacts.Artifacts == nil {
		r.Artifacts.Artifacts = make(map[types.Kind]*artifacts.Artifact)
	}
	if r.Gates == nil {
		r.Gates = types.NewPendingGates()
	}
	for _, k := range types.Kinds {
		if _, ok := r.Gates[k]; !ok {
			r.Gates[k] = &types.ApprovalGate{Kind: k, Status: types.GatePending}
		}
	}
	if r.Iterations == nil {
		r.Iterations = make(map[types.Kind]int)
	}
	if r.Evaluations == nil {
		r.Evaluations = make(map[types.Kind]*types.EvaluationResult)
	}
	if r.HumanFeedback == nil {
		r.HumanFeedback = make(map[types.Kind]string)
	}
}

// Fail moves the run to the Failed terminal with msg as its error message.
func (r *Run) Fail(msg string, now time.Time) {
	r.Workflow.Status = types.StatusFailed
	r.Workflow.CurrentStage = types.StageFailed
	r.Workflow.ErrorMessage = msg
	r.Workflow.UpdatedAt = now
	r.Workflow.CompletedAt = &now
}

// Complete moves the run to the Completed terminal.
func (r *Run) Complete(now time.Time) {
	r.Workflow.Status = types.StatusCompleted
	r.Workflow.CurrentStage = types.StageCompleted
	r.Workflow.UpdatedAt = now
	r.Workflow.CompletedAt = &now
}

// ApprovedArtifacts returns the live content of every kind whose gate is
// approved, keyed by kind.
func (r *Run) ApprovedArtifacts() map[types.Kind]string {
	out := make(map[types.Kind]string)
	for _, k := range types.Kinds {
		gate, ok := r.Gates[k]
		if !ok || gate.Status != types.GateApproved {
			continue
		}
		if content, version := r.Artifacts.Latest(k); version > 0 {
			out[k] = content
		}
	}
	return out
}
