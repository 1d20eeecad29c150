// Package evaluation turns evaluator output into a verdict and decides which
// stage a run moves to next.
package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/qa-orchestrator/internal/agents"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

// DefaultMaxIterations is the regeneration budget per kind.
const DefaultMaxIterations = 3

// MaxIterationsPrefix is prepended to the feedback of a FAIL verdict that is
// rewritten to NEEDS_HUMAN on the final iteration.
const MaxIterationsPrefix = "[MAX ITERATIONS REACHED] This document has been regenerated %d times and still does not meet quality standards. Human review is required."

// Engine evaluates one artifact and routes the result.
type Engine struct {
	Evaluator     agents.Evaluator
	MaxIterations int
	Policies      map[types.Kind]Policy
	Now           func() time.Time
}

// New creates an Engine with the default policies. A non-positive
// maxIterations falls back to DefaultMaxIterations.
func New(evaluator agents.Evaluator, maxIterations int) *Engine {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Engine{
		Evaluator:     evaluator,
		MaxIterations: maxIterations,
		Policies: map[types.Kind]Policy{
			types.KindCodePlan: CodePlanPolicy{},
		},
		Now: func() time.Time { return time.Now().UTC() },
	}
}

// Request describes the artifact under evaluation.
type Request struct {
	Kind        types.Kind
	Content     string
	Version     int
	Iteration   int
	RawInput    string
	TeamContext types.TeamContext
	Approved    map[types.Kind]string
	Stages      Stages
}

// Outcome is the recorded evaluation and the stage to move to.
type Outcome struct {
	Result *types.EvaluationResult
	Next   types.Stage
	Cost   float64
}

// Evaluate calls the evaluator, parses its verdict, applies the iteration
// cap and routes the result through the kind's policy. Evaluator failures
// and malformed output are returned as errors.
func (e *Engine) Evaluate(ctx context.Context, req Request) (*Outcome, error) {
	if e.Evaluator == nil {
		return nil, fmt.Errorf("no evaluator configured")
	}

	out, err := e.Evaluator.Evaluate(ctx, agents.EvaluateInput{
		Kind:          req.Kind,
		Content:       req.Content,
		Version:       req.Version,
		RawInput:      req.RawInput,
		TeamContext:   req.TeamContext,
		Approved:      req.Approved,
		Iteration:     req.Iteration,
		MaxIterations: e.maxIterations(),
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, &ParseError{Kind: req.Kind, Message: "evaluator returned no output"}
	}

	result, err := ParseVerdict(req.Kind, out.Raw, e.now())
	if err != nil {
		return nil, err
	}
	result.Iteration = req.Iteration
	result.Cost = out.Cost

	ApplyIterationCap(result, req.Iteration, e.maxIterations())

	return &Outcome{
		Result: result,
		Next:   e.policy(req.Kind).Route(result, req.Stages),
		Cost:   out.Cost,
	}, nil
}

// IsFinalIteration reports whether iteration is the last one allowed.
func IsFinalIteration(iteration, maxIterations int) bool {
	return iteration >= maxIterations-1
}

// ApplyIterationCap rewrites a FAIL on the final iteration to NEEDS_HUMAN.
// It reports whether the result was changed.
func ApplyIterationCap(result *types.EvaluationResult, iteration, maxIterations int) bool {
	if result.Verdict != types.VerdictFail || !IsFinalIteration(iteration, maxIterations) {
		return false
	}
	result.Verdict = types.VerdictNeedsHuman
	prefix := fmt.Sprintf(MaxIterationsPrefix, iteration)
	if result.Feedback == "" {
		result.Feedback = prefix
	} else {
		result.Feedback = prefix + "\n\n" + result.Feedback
	}
	return true
}

func (e *Engine) policy(kind types.Kind) Policy {
	if p, ok := e.Policies[kind]; ok && p != nil {
		return p
	}
	return BasePolicy{}
}

func (e *Engine) maxIterations() int {
	if e.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return e.MaxIterations
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now()
}
