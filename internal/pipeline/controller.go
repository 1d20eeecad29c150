// Package pipeline drives runs through the generate, evaluate and approve
// cycle of every artifact kind, checkpointing after each transition.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/qa-orchestrator/internal/agents"
	"github.com/jonathan/qa-orchestrator/internal/approval"
	"github.com/jonathan/qa-orchestrator/internal/checkpoint"
	"github.com/jonathan/qa-orchestrator/internal/evaluation"
	"github.com/jonathan/qa-orchestrator/internal/logging"
	"github.com/jonathan/qa-orchestrator/internal/routing"
	"github.com/jonathan/qa-orchestrator/internal/state"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

// Defaults applied to a StartRequest that leaves them unset.
const (
	DefaultTeamID              = "local_team"
	DefaultConfidenceThreshold = 0.85
)

// ForceFailReason is recorded when ForceFail is called without a reason.
const ForceFailReason = "run abandoned by operator"

// Deps holds everything a Controller needs. Store, Engine and one Generator
// per routed kind are required; the rest have defaults.
type Deps struct {
	Router     *routing.Router
	Engine     *evaluation.Engine
	Gates      *approval.Protocol
	Store      checkpoint.Store
	Generators map[types.Kind]agents.Generator
	Context    agents.ContextProvider
	Logger     *slog.Logger
	Now        func() time.Time
	OnProgress ProgressCallback

	DefaultTeamID    string
	DefaultThreshold float64
}

// Controller is the only component that reads and writes checkpoints. It is
// safe for concurrent use; operations on one session key are serialized.
type Controller struct {
	router     *routing.Router
	engine     *evaluation.Engine
	gates      *approval.Protocol
	store      checkpoint.Store
	generators map[types.Kind]agents.Generator
	context    agents.ContextProvider
	logger     *slog.Logger
	now        func() time.Time
	onProgress ProgressCallback
	locks      *sessionLocks

	defaultTeamID    string
	defaultThreshold float64
}

// NewController validates deps and fills defaults.
func NewController(d Deps) (*Controller, error) {
	if d.Store == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if d.Engine == nil {
		return nil, fmt.Errorf("evaluation engine is required")
	}
	if d.Router == nil {
		d.Router = routing.New()
	}
	for _, k := range d.Router.Order() {
		if d.Generators[k] == nil {
			return nil, fmt.Errorf("no generator registered for kind %s", k)
		}
	}
	if d.Gates == nil {
		d.Gates = approval.NewProtocol(d.Router)
	}
	if d.Context == nil {
		d.Context = agents.StaticContext{}
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.DefaultTeamID == "" {
		d.DefaultTeamID = DefaultTeamID
	}
	if d.DefaultThreshold == 0 {
		d.DefaultThreshold = DefaultConfidenceThreshold
	}

	return &Controller{
		router:           d.Router,
		engine:           d.Engine,
		gates:            d.Gates,
		store:            d.Store,
		generators:       d.Generators,
		context:          d.Context,
		logger:           d.Logger,
		now:              d.Now,
		onProgress:       d.OnProgress,
		locks:            newSessionLocks(),
		defaultTeamID:    d.DefaultTeamID,
		defaultThreshold: d.DefaultThreshold,
	}, nil
}

// Result is what Drive and Resume return. Snapshot is always set; Suspend is
// set only while the run waits at a gate.
type Result struct {
	Snapshot *state.RunSnapshot       `json:"snapshot"`
	Suspend  *approval.SuspendPayload `json:"suspend,omitempty"`
}

// Suspended reports whether the run is parked at a gate.
func (r *Result) Suspended() bool {
	return r.Suspend != nil
}

// StartRun allocates and checkpoints a new run. The context provider is
// called exactly once, here.
func (c *Controller) StartRun(ctx context.Context, req types.StartRequest) (string, error) {
	if req.TeamID == "" {
		req.TeamID = c.defaultTeamID
	}
	if req.ConfidenceThreshold == 0 {
		req.ConfidenceThreshold = c.defaultThreshold
	}
	if strings.TrimSpace(req.RawInput) == "" {
		return "", &ValidationError{Message: "raw input is required"}
	}
	if err := req.Validate(); err != nil {
		return "", &ValidationError{Message: "invalid start request", Err: err}
	}

	teamCtx, err := c.context.Context(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load team context: %w", err)
	}

	run := state.New(req, teamCtx, c.router.FirstStage(), c.now())
	if err := c.store.Save(ctx, run); err != nil {
		return "", fmt.Errorf("failed to checkpoint new run: %w", err)
	}

	c.log(run).Info("run started", "team_id", run.Workflow.TeamID)
	c.emitProgress(ctx, ProgressEvent{
		SessionKey: run.SessionKey(),
		Stage:      run.Workflow.CurrentStage,
		Message:    "run started",
	})
	return run.SessionKey(), nil
}

// Drive advances a run until it suspends at a gate or reaches a terminal
// stage. Calling it on a suspended or terminal run changes nothing.
func (c *Controller) Drive(ctx context.Context, sessionKey string) (*Result, error) {
	unlock := c.locks.lock(sessionKey)
	defer unlock()

	run, err := c.load(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	return c.drive(ctx, run)
}

// Resume applies a reviewer decision to the gate the run is waiting at and
// keeps driving. A terminal run is returned unchanged.
func (c *Controller) Resume(ctx context.Context, sessionKey string, decision types.Decision) (*Result, error) {
	unlock := c.locks.lock(sessionKey)
	defer unlock()

	run, err := c.decide(ctx, sessionKey, decision)
	if err != nil {
		return nil, err
	}
	return c.drive(ctx, run)
}

// Decide applies a reviewer decision and checkpoints the result without
// driving further. The next Drive continues from the routed stage.
func (c *Controller) Decide(ctx context.Context, sessionKey string, decision types.Decision) (*state.RunSnapshot, error) {
	unlock := c.locks.lock(sessionKey)
	defer unlock()

	run, err := c.decide(ctx, sessionKey, decision)
	if err != nil {
		return nil, err
	}
	return run.Snapshot(), nil
}

// decide applies decision and checkpoints it. Terminal runs come back untouched.
func (c *Controller) decide(ctx context.Context, sessionKey string, decision types.Decision) (*state.Run, error) {
	run, err := c.load(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if run.Workflow.Status.IsTerminal() || run.Workflow.CurrentStage.IsTerminal() {
		return run, nil
	}

	stage := run.Workflow.CurrentStage
	if run.Workflow.Status != types.StatusWaitingApproval || stage.Phase() != types.PhaseApprove {
		return nil, &NotSuspendedError{
			SessionKey: sessionKey,
			Status:     run.Workflow.Status,
			Stage:      stage,
		}
	}

	kind := stage.Kind()
	if err := decision.Validate(); err != nil {
		_, live := run.Artifacts.Latest(kind)
		return nil, &approval.InvalidDecisionError{Kind: kind, Reason: err.Error(), CurrentVersion: live}
	}

	next, err := c.gates.Resume(run, kind, decision, c.now())
	if err != nil {
		return nil, err
	}
	if err := c.store.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to checkpoint decision: %w", err)
	}

	gate := run.Gates[kind]
	c.log(run).Info("gate decided",
		"kind", kind,
		"decision", types.ParseGateDecision(decision.Decision),
		"gate_status", gate.Status,
		"next_stage", next,
	)
	c.emitProgress(ctx, ProgressEvent{
		SessionKey: sessionKey,
		Stage:      next,
		Kind:       kind,
		Message:    fmt.Sprintf("%s gate %s", kind, gate.Status),
		Content:    *gate,
	})
	return run, nil
}

// Inspect returns a read-only snapshot of the run.
func (c *Controller) Inspect(ctx context.Context, sessionKey string) (*state.RunSnapshot, error) {
	run, err := c.load(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	return run.Snapshot(), nil
}

// Payload returns the review payload of a run waiting at a gate.
func (c *Controller) Payload(ctx context.Context, sessionKey string) (*approval.SuspendPayload, error) {
	run, err := c.load(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	stage := run.Workflow.CurrentStage
	if run.Workflow.Status != types.StatusWaitingApproval || stage.Phase() != types.PhaseApprove {
		return nil, &NotSuspendedError{SessionKey: sessionKey, Status: run.Workflow.Status, Stage: stage}
	}
	return approval.Payload(run, stage.Kind()), nil
}

// History returns every version of kind ever emitted for the run, oldest first.
func (c *Controller) History(ctx context.Context, sessionKey string, kind types.Kind) ([]types.ArtifactVersion, error) {
	if !kind.Valid() {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown artifact kind %q", kind)}
	}
	run, err := c.load(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	// The audit table outlives checkpoint rewrites, so it wins when present.
	if h, ok := c.store.(checkpoint.Historian); ok {
		versions, err := h.History(ctx, sessionKey, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to read artifact history: %w", err)
		}
		if len(versions) > 0 {
			return versions, nil
		}
	}
	return run.Artifacts.History(kind), nil
}

// ForceFail moves a non-terminal run to Failed. Terminal runs are returned
// unchanged.
func (c *Controller) ForceFail(ctx context.Context, sessionKey, reason string) (*state.RunSnapshot, error) {
	unlock := c.locks.lock(sessionKey)
	defer unlock()

	run, err := c.load(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if run.Workflow.Status.IsTerminal() {
		return run.Snapshot(), nil
	}
	if strings.TrimSpace(reason) == "" {
		reason = ForceFailReason
	}

	run.Fail(reason, c.now())
	if err := c.store.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to checkpoint failed run: %w", err)
	}
	c.log(run).Warn("run force-failed", "reason", reason)
	c.emitProgress(ctx, ProgressEvent{SessionKey: sessionKey, Stage: types.StageFailed, Message: reason})
	return run.Snapshot(), nil
}

// List returns stored run summaries, filtered by status when non-empty.
func (c *Controller) List(ctx context.Context, status types.Status) ([]state.Summary, error) {
	if status != "" && !status.Valid() {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown status %q", status)}
	}
	return c.store.List(ctx, status)
}

// RecoverResult is the outcome of re-driving one run.
type RecoverResult struct {
	SessionKey string       `json:"session_key"`
	Status     types.Status `json:"status,omitempty"`
	Stage      types.Stage  `json:"stage,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Recover drives every RUNNING checkpoint, at most concurrency at a time.
// Runs interrupted mid-stage simply repeat that stage. The first error is
// returned after all runs have been attempted.
func (c *Controller) Recover(ctx context.Context, concurrency int) ([]RecoverResult, error) {
	summaries, err := c.store.List(ctx, types.StatusRunning)
	if err != nil {
		return nil, err
	}

	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	var mu sync.Mutex
	results := make([]RecoverResult, len(summaries))
	for i, s := range summaries {
		g.Go(func() error {
			res, err := c.Drive(ctx, s.SessionKey)

			mu.Lock()
			defer mu.Unlock()
			results[i] = RecoverResult{SessionKey: s.SessionKey}
			if err != nil {
				results[i].Error = err.Error()
				return fmt.Errorf("failed to recover %s: %w", s.SessionKey, err)
			}
			results[i].Status = res.Snapshot.Status
			results[i].Stage = res.Snapshot.Stage
			return nil
		})
	}
	err = g.Wait()
	c.logger.Info("recovery finished", "runs", len(summaries))
	return results, err
}

// drive is the dispatch loop. The caller holds the session lock.
func (c *Controller) drive(ctx context.Context, run *state.Run) (*Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stage := run.Workflow.CurrentStage
		kind := stage.Kind()
		node := c.router.Next(run.Workflow)
		c.log(run).Debug("dispatch", "node", node)

		switch node {
		case routing.NodeGenerate:
			if err := c.generate(ctx, run, kind); err != nil {
				return c.fail(ctx, run, err)
			}

		case routing.NodeEvaluate:
			if err := c.evaluate(ctx, run, kind); err != nil {
				return c.fail(ctx, run, err)
			}

		case routing.NodeApprove:
			if run.Workflow.Status == types.StatusWaitingApproval {
				return &Result{Snapshot: run.Snapshot(), Suspend: approval.Payload(run, kind)}, nil
			}
			payload := c.gates.Enter(run, kind, c.now())
			if err := c.store.Save(ctx, run); err != nil {
				return nil, fmt.Errorf("failed to checkpoint gate entry: %w", err)
			}
			c.log(run).Info("awaiting approval", "kind", kind, "version", payload.Version, "verdict", payload.Verdict)
			c.emitProgress(ctx, ProgressEvent{
				SessionKey: run.SessionKey(),
				Stage:      stage,
				Kind:       kind,
				Message:    fmt.Sprintf("waiting for %s approval", kind),
				Content:    payload,
			})
			return &Result{Snapshot: run.Snapshot(), Suspend: payload}, nil

		default:
			return c.finish(ctx, run)
		}
	}
}

// finish settles a run whose router node is end.
func (c *Controller) finish(ctx context.Context, run *state.Run) (*Result, error) {
	if run.Workflow.CurrentStage == types.StageCompleted && run.Workflow.Status != types.StatusCompleted {
		run.Complete(c.now())
		if err := c.store.Save(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to checkpoint completed run: %w", err)
		}
		c.log(run).Info("run completed", "accumulated_cost", run.Workflow.AccumulatedCost)
		c.emitProgress(ctx, ProgressEvent{SessionKey: run.SessionKey(), Stage: types.StageCompleted, Message: "run completed"})
	}
	return &Result{Snapshot: run.Snapshot()}, nil
}

func (c *Controller) generate(ctx context.Context, run *state.Run, kind types.Kind) error {
	stage := run.Workflow.CurrentStage
	cycle, err := c.router.Cycle(kind)
	if err != nil {
		return &CollaboratorFailure{Stage: stage, Kind: kind, Cause: err}
	}

	if run.Artifacts.Generations(kind) > 0 {
		run.Iterations[kind]++
	}
	iteration := run.Iterations[kind]

	previous, _ := run.Artifacts.Latest(kind)
	in := agents.GenerateInput{
		Kind:           kind,
		Stage:          stage,
		RunID:          run.Workflow.RunID,
		SessionKey:     run.SessionKey(),
		TeamID:         run.Workflow.TeamID,
		RawInput:       run.RawInput,
		TeamContext:    run.TeamContext,
		Clarifications: run.Clarifications,
		Approved:       run.ApprovedArtifacts(),
		Previous:       previous,
		Iteration:      iteration,
		Feedback:       agents.FirstAttemptFeedback,
		HumanFeedback:  run.HumanFeedback[kind],
	}
	if ev := run.Evaluations[kind]; ev != nil && iteration > 0 {
		in.Feedback = ev.Feedback
		in.Issues = ev.Issues
	}

	out, err := c.generators[kind].Generate(ctx, in)
	if err != nil {
		return &CollaboratorFailure{Stage: stage, Kind: kind, Cause: err}
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return &CollaboratorFailure{Stage: stage, Kind: kind, Cause: errors.New("generator returned empty content")}
	}

	now := c.now()
	v := run.Artifacts.AppendVersion(run.Workflow.RunID, kind, out.Content, types.CreatedByAI, now)
	run.Workflow.AddCost(out.Cost)
	run.Workflow.CurrentStage = cycle.Evaluate
	run.Workflow.UpdatedAt = now
	if err := c.store.Save(ctx, run); err != nil {
		return fmt.Errorf("failed to checkpoint %s v%d: %w", kind, v.Version, err)
	}

	c.log(run).Info("artifact generated", "kind", kind, "version", v.Version, "iteration", iteration, "cost", out.Cost)
	c.emitProgress(ctx, ProgressEvent{
		SessionKey: run.SessionKey(),
		Stage:      stage,
		Kind:       kind,
		Message:    fmt.Sprintf("generated %s v%d", kind, v.Version),
		Content:    v,
	})
	return nil
}

func (c *Controller) evaluate(ctx context.Context, run *state.Run, kind types.Kind) error {
	stage := run.Workflow.CurrentStage
	cycle, err := c.router.Cycle(kind)
	if err != nil {
		return &CollaboratorFailure{Stage: stage, Kind: kind, Cause: err}
	}

	content, version := run.Artifacts.Latest(kind)
	outcome, err := c.engine.Evaluate(ctx, evaluation.Request{
		Kind:        kind,
		Content:     content,
		Version:     version,
		Iteration:   run.Iterations[kind],
		RawInput:    run.RawInput,
		TeamContext: run.TeamContext,
		Approved:    run.ApprovedArtifacts(),
		Stages: evaluation.Stages{
			Generate: cycle.Generate,
			Review:   cycle.Approve,
			Pass:     cycle.Approve,
		},
	})
	if err != nil {
		return &CollaboratorFailure{Stage: stage, Kind: kind, Cause: err}
	}

	run.Evaluations[kind] = outcome.Result
	run.Workflow.AddCost(outcome.Cost)
	run.Workflow.CurrentStage = outcome.Next
	run.Workflow.UpdatedAt = c.now()
	if err := c.store.Save(ctx, run); err != nil {
		return fmt.Errorf("failed to checkpoint %s evaluation: %w", kind, err)
	}

	c.log(run).Info("artifact evaluated",
		"kind", kind,
		"version", version,
		"verdict", outcome.Result.Verdict,
		"score", outcome.Result.Score,
		"next_stage", outcome.Next,
	)
	c.emitProgress(ctx, ProgressEvent{
		SessionKey: run.SessionKey(),
		Stage:      stage,
		Kind:       kind,
		Message:    fmt.Sprintf("%s verdict %s", kind, outcome.Result.Verdict),
		Content:    *outcome.Result,
	})
	return nil
}

// fail records a collaborator failure on the run. Storage errors are not
// collaborator failures and are returned as-is.
func (c *Controller) fail(ctx context.Context, run *state.Run, err error) (*Result, error) {
	// The caller went away mid-call; the stage repeats on the next drive.
	// Transports report cancellation in their own error types, so the
	// context decides, not the shape of the cause.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	var cf *CollaboratorFailure
	if !errors.As(err, &cf) {
		return nil, err
	}

	run.Fail(cf.Cause.Error(), c.now())
	if saveErr := c.store.Save(ctx, run); saveErr != nil {
		return nil, errors.Join(err, fmt.Errorf("failed to checkpoint failed run: %w", saveErr))
	}
	c.log(run).Error("collaborator failed", "stage", cf.Stage, "kind", cf.Kind, "error", cf.Cause)
	c.emitProgress(ctx, ProgressEvent{
		SessionKey: run.SessionKey(),
		Stage:      types.StageFailed,
		Kind:       cf.Kind,
		Message:    run.Workflow.ErrorMessage,
	})
	return &Result{Snapshot: run.Snapshot()}, nil
}

func (c *Controller) load(ctx context.Context, sessionKey string) (*state.Run, error) {
	run, err := c.store.Load(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return nil, &UnknownSessionError{SessionKey: sessionKey}
		}
		return nil, fmt.Errorf("failed to load session %s: %w", sessionKey, err)
	}
	return run, nil
}

func (c *Controller) log(run *state.Run) *slog.Logger {
	return c.logger.With(
		"session_key", run.Workflow.SessionKey,
		"run_id", run.Workflow.RunID,
		"stage", run.Workflow.CurrentStage,
	)
}
