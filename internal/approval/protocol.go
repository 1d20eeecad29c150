// Package approval implements the human gate that follows every evaluation:
// suspending a run with a review payload and applying the reviewer's decision.
package approval

import (
	"strings"
	"time"

	"github.com/jonathan/qa-orchestrator/internal/routing"
	"github.com/jonathan/qa-orchestrator/internal/state"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

// Reviewer is recorded on every gate decided through Resume.
const Reviewer = "human"

// EditFeedbackPrefix annotates the feedback of an EDIT decision.
const EditFeedbackPrefix = "Approved with edits: "

// Protocol applies gate transitions for any kind. It holds no per-run state.
type Protocol struct {
	router *routing.Router
}

// NewProtocol creates a Protocol that routes approvals with router.
func NewProtocol(router *routing.Router) *Protocol {
	return &Protocol{router: router}
}

// Enter parks run at kind's gate and returns the review payload. A gate
// revisited after an earlier decision goes back to pending with the previous
// review cleared; the reviewer's feedback lives on in run.HumanFeedback.
func (p *Protocol) Enter(run *state.Run, kind types.Kind, now time.Time) *SuspendPayload {
	gate := p.gate(run, kind)
	*gate = types.ApprovalGate{Kind: kind, Status: types.GatePending}

	run.Workflow.CurrentStage = types.StageFor(kind, types.PhaseApprove)
	run.Workflow.Status = types.StatusWaitingApproval
	run.Workflow.UpdatedAt = now

	return Payload(run, kind)
}

// Payload assembles the review payload for kind without changing run.
func Payload(run *state.Run, kind types.Kind) *SuspendPayload {
	content, version := run.Artifacts.Latest(kind)
	payload := &SuspendPayload{
		SessionKey:      run.Workflow.SessionKey,
		RunID:           run.Workflow.RunID,
		Kind:            kind,
		Stage:           types.StageFor(kind, types.PhaseApprove),
		Content:         content,
		Version:         version,
		Iteration:       run.Iterations[kind],
		Feedback:        NoEvaluationFeedback,
		Issues:          []types.Issue{},
		Recommendations: []string{},
		AccumulatedCost: run.Workflow.AccumulatedCost,
	}
	if ev := run.Evaluations[kind]; ev != nil {
		score := ev.Score
		payload.Score = &score
		payload.Verdict = ev.Verdict
		payload.Feedback = ev.Feedback
		payload.Issues = append(payload.Issues, ev.Issues...)
		payload.Recommendations = append(payload.Recommendations, ev.Recommendations...)
	}
	return payload
}

// Resume applies decision to kind's gate and returns the next stage. On an
// InvalidDecisionError run is not modified.
func (p *Protocol) Resume(run *state.Run, kind types.Kind, decision types.Decision, now time.Time) (types.Stage, error) {
	cycle, err := p.router.Cycle(kind)
	if err != nil {
		return "", &InvalidDecisionError{Kind: kind, Reason: err.Error()}
	}

	_, live := run.Artifacts.Latest(kind)
	if decision.Version != 0 && decision.Version != live {
		return "", &InvalidDecisionError{
			Kind:           kind,
			Reason:         "decision references a stale artifact version",
			Version:        decision.Version,
			CurrentVersion: live,
		}
	}

	tag := types.ParseGateDecision(decision.Decision)
	if tag == types.DecisionEdit && strings.TrimSpace(decision.Content) == "" {
		return "", &InvalidDecisionError{Kind: kind, Reason: "EDIT requires replacement content", CurrentVersion: live}
	}

	gate := p.gate(run, kind)
	gate.Reviewer = Reviewer
	gate.ReviewedAt = &now
	run.Workflow.UpdatedAt = now
	run.Workflow.Status = types.StatusRunning

	switch tag {
	case types.DecisionApprove:
		gate.Status = types.GateApproved
		gate.Feedback = decision.Feedback
		gate.DocumentVersion = live
		delete(run.HumanFeedback, kind)
		return p.advance(run, kind), nil

	case types.DecisionEdit:
		v := run.Artifacts.AppendVersion(run.Workflow.RunID, kind, decision.Content, types.CreatedByHuman, now)
		gate.Status = types.GateApproved
		gate.Feedback = EditFeedbackPrefix + decision.Feedback
		gate.DocumentVersion = v.Version
		delete(run.HumanFeedback, kind)
		return p.advance(run, kind), nil

	default:
		gate.Status = types.GateRejected
		gate.Feedback = decision.Feedback
		gate.DocumentVersion = live
		if run.HumanFeedback == nil {
			run.HumanFeedback = make(map[types.Kind]string)
		}
		run.HumanFeedback[kind] = decision.Feedback
		run.Workflow.CurrentStage = cycle.Generate
		return cycle.Generate, nil
	}
}

func (p *Protocol) advance(run *state.Run, kind types.Kind) types.Stage {
	next := p.router.AfterApproval(kind)
	run.Workflow.CurrentStage = next
	return next
}

func (p *Protocol) gate(run *state.Run, kind types.Kind) *types.ApprovalGate {
	if run.Gates == nil {
		run.Gates = types.NewPendingGates()
	}
	gate, ok := run.Gates[kind]
	if !ok {
		gate = &types.ApprovalGate{Kind: kind, Status: types.GatePending}
		run.Gates[kind] = gate
	}
	return gate
}
