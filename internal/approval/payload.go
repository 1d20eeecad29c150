package approval

import (
	"github.com/jonathan/qa-orchestrator/internal/types"
)

// NoEvaluationFeedback is shown at a gate reached without an evaluation.
const NoEvaluationFeedback = "No evaluator feedback available."

// SuspendPayload is what a reviewer sees while a run waits at a gate.
type SuspendPayload struct {
	SessionKey      string        `json:"session_key"`
	RunID           string        `json:"run_id"`
	Kind            types.Kind    `json:"kind"`
	Stage           types.Stage   `json:"stage"`
	Content         string        `json:"content"`
	Version         int           `json:"version"`
	Iteration       int           `json:"iteration"`
	Score           *float64      `json:"score,omitempty"`
	Verdict         types.Verdict `json:"verdict,omitempty"`
	Feedback        string        `json:"feedback"`
	Issues          []types.Issue `json:"issues"`
	Recommendations []string      `json:"recommendations"`
	AccumulatedCost float64       `json:"accumulated_cost"`
}
