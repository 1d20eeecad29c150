// Package routing maps a run's current stage to the node the controller
// dispatches next. A Router holds no mutable state and performs no I/O.
package routing

import (
	"fmt"

	"github.com/jonathan/qa-orchestrator/internal/types"
)

// Node keys returned by Next.
const (
	NodeGenerate = "generate"
	NodeEvaluate = "evaluate"
	NodeApprove  = "approve"
	NodeEnd      = "end"
)

// Cycle is the generate/evaluate/approve triple for one kind.
type Cycle struct {
	Kind     types.Kind
	Generate types.Stage
	Evaluate types.Stage
	Approve  types.Stage
	// After is the stage entered once this kind's gate approves.
	After types.Stage
}

// Router is the transition table for the pipeline. Build one with New and
// share it; it is safe for concurrent use.
type Router struct {
	order  []types.Kind
	cycles map[types.Kind]Cycle
}

// New builds the router for the standard kind order.
func New() *Router {
	return NewWithOrder(types.Kinds)
}

// NewWithOrder builds a router visiting kinds in the given order. The last
// kind's approval completes the run.
func NewWithOrder(order []types.Kind) *Router {
	r := &Router{
		order:  append([]types.Kind(nil), order...),
		cycles: make(map[types.Kind]Cycle, len(order)),
	}
	for i, k := range order {
		after := types.StageCompleted
		if i+1 < len(order) {
			after = types.StageFor(order[i+1], types.PhaseGenerate)
		}
		r.cycles[k] = Cycle{
			Kind:     k,
			Generate: types.StageFor(k, types.PhaseGenerate),
			Evaluate: types.StageFor(k, types.PhaseEvaluate),
			Approve:  types.StageFor(k, types.PhaseApprove),
			After:    after,
		}
	}
	return r
}

// FirstStage is the stage a new run starts in.
func (r *Router) FirstStage() types.Stage {
	if len(r.order) == 0 {
		return types.StageCompleted
	}
	return r.cycles[r.order[0]].Generate
}

// Cycle returns the stage triple for kind.
func (r *Router) Cycle(kind types.Kind) (Cycle, error) {
	c, ok := r.cycles[kind]
	if !ok {
		return Cycle{}, fmt.Errorf("no cycle for kind %q", kind)
	}
	return c, nil
}

// AfterApproval returns the stage following an approved gate for kind.
func (r *Router) AfterApproval(kind types.Kind) types.Stage {
	if c, ok := r.cycles[kind]; ok {
		return c.After
	}
	return types.StageFailed
}

// Order returns the kinds in visiting order.
func (r *Router) Order() []types.Kind {
	return append([]types.Kind(nil), r.order...)
}

// Next returns the node key for the run's current position. A failed run
// always resolves to NodeEnd, whatever its stage says.
func (r *Router) Next(run types.WorkflowRun) string {
	if run.Status == types.StatusFailed || run.CurrentStage == types.StageFailed {
		return NodeEnd
	}
	stage := run.CurrentStage
	if stage.IsTerminal() || stage.IsReserved() {
		return NodeEnd
	}
	if _, ok := r.cycles[stage.Kind()]; !ok {
		return NodeEnd
	}
	switch stage.Phase() {
	case types.PhaseGenerate:
		return NodeGenerate
	case types.PhaseEvaluate:
		return NodeEvaluate
	case types.PhaseApprove:
		return NodeApprove
	}
	return NodeEnd
}
