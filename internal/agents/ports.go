// Package agents defines the collaborator ports the pipeline calls out to
// (generators, the evaluator, the context provider) and LLM-backed
// implementations of them.
package agents

import (
	"context"

	"github.com/jonathan/qa-orchestrator/internal/types"
)

// FirstAttemptFeedback is the feedback text a generator receives when no
// evaluation precedes the attempt.
const FirstAttemptFeedback = "First attempt - no previous feedback."

// GenerateInput is everything a generator may use to produce one artifact.
type GenerateInput struct {
	Kind           types.Kind
	Stage          types.Stage
	RunID          string
	SessionKey     string
	TeamID         string
	RawInput       string
	TeamContext    types.TeamContext
	Clarifications []types.Question
	// Approved holds the live content of every already approved kind.
	Approved map[types.Kind]string
	// Previous is the live content of this kind, empty on the first attempt.
	Previous string
	// Iteration is the regeneration count for this kind.
	Iteration int
	// Feedback is the latest evaluator feedback, or FirstAttemptFeedback.
	Feedback      string
	Issues        []types.Issue
	HumanFeedback string
}

// GenerateOutput is one generated candidate.
type GenerateOutput struct {
	Content string
	Cost    float64
}

// Generator produces the content for one artifact kind.
type Generator interface {
	Generate(ctx context.Context, in GenerateInput) (*GenerateOutput, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, in GenerateInput) (*GenerateOutput, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, in GenerateInput) (*GenerateOutput, error) {
	return f(ctx, in)
}

// EvaluateInput is the artifact under review plus its context.
type EvaluateInput struct {
	Kind          types.Kind
	Content       string
	Version       int
	RawInput      string
	TeamContext   types.TeamContext
	Approved      map[types.Kind]string
	Iteration     int
	MaxIterations int
}

// EvaluateOutput is the evaluator's unparsed verdict payload.
type EvaluateOutput struct {
	Raw  string
	Cost float64
}

// Evaluator reviews generated content. The raw payload is parsed by the
// evaluation engine, not here.
type Evaluator interface {
	Evaluate(ctx context.Context, in EvaluateInput) (*EvaluateOutput, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, in EvaluateInput) (*EvaluateOutput, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, in EvaluateInput) (*EvaluateOutput, error) {
	return f(ctx, in)
}

// ContextProvider supplies read-only background text, once per run.
type ContextProvider interface {
	Context(ctx context.Context) (types.TeamContext, error)
}

// StaticContext is a ContextProvider returning fixed text.
type StaticContext types.TeamContext

// Context returns the configured text.
func (s StaticContext) Context(_ context.Context) (types.TeamContext, error) {
	return types.TeamContext(s), nil
}
