package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jonathan/qa-orchestrator/internal/agents"
	"github.com/jonathan/qa-orchestrator/internal/checkpoint"
	"github.com/jonathan/qa-orchestrator/internal/evaluation"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

const (
	passVerdict = `{"score": 90, "verdict": "PASS", "feedback": "looks complete"}`
	failVerdict = `{"score": 40, "verdict": "FAIL", "feedback": "missing negative paths"}`
)

// MockGenerator records every input and returns "<kind> vN" unless
// GenerateFunc is set.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, in agents.GenerateInput) (*agents.GenerateOutput, error)
	Cost         float64

	mu    sync.Mutex
	calls []agents.GenerateInput
}

func (m *MockGenerator) Generate(ctx context.Context, in agents.GenerateInput) (*agents.GenerateOutput, error) {
	m.mu.Lock()
	m.calls = append(m.calls, in)
	n := len(m.calls)
	m.mu.Unlock()
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, in)
	}
	return &agents.GenerateOutput{Content: fmt.Sprintf("%s v%d", in.Kind, n), Cost: m.Cost}, nil
}

func (m *MockGenerator) Calls() []agents.GenerateInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]agents.GenerateInput(nil), m.calls...)
}

// MockEvaluator pops scripted raw verdicts per kind and answers PASS once a
// script runs out.
type MockEvaluator struct {
	EvaluateFunc func(ctx context.Context, in agents.EvaluateInput) (*agents.EvaluateOutput, error)
	Cost         float64

	mu      sync.Mutex
	scripts map[types.Kind][]string
	calls   []agents.EvaluateInput
}

func (m *MockEvaluator) Script(kind types.Kind, raws ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scripts == nil {
		m.scripts = make(map[types.Kind][]string)
	}
	m.scripts[kind] = append(m.scripts[kind], raws...)
}

func (m *MockEvaluator) Evaluate(ctx context.Context, in agents.EvaluateInput) (*agents.EvaluateOutput, error) {
	m.mu.Lock()
	m.calls = append(m.calls, in)
	raw := passVerdict
	if queue := m.scripts[in.Kind]; len(queue) > 0 {
		raw = queue[0]
		m.scripts[in.Kind] = queue[1:]
	}
	m.mu.Unlock()
	if m.EvaluateFunc != nil {
		return m.EvaluateFunc(ctx, in)
	}
	return &agents.EvaluateOutput{Raw: raw, Cost: m.Cost}, nil
}

func (m *MockEvaluator) Calls() []agents.EvaluateInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]agents.EvaluateInput(nil), m.calls...)
}

// countingContext counts provider calls.
type countingContext struct {
	mu    sync.Mutex
	calls int
}

func (c *countingContext) Context(_ context.Context) (types.TeamContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return types.TeamContext{TechContext: "Playwright", CodebaseMap: "tests/utils/auth.ts"}, nil
}

type harness struct {
	ctrl       *Controller
	store      checkpoint.Store
	generators map[types.Kind]*MockGenerator
	evaluator  *MockEvaluator
	context    *countingContext
	events     []ProgressEvent
	eventsMu   sync.Mutex
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithStore(t, checkpoint.NewMemoryStore())
}

func newHarnessWithStore(t *testing.T, store checkpoint.Store) *harness {
	t.Helper()
	h := &harness{
		store:      store,
		generators: make(map[types.Kind]*MockGenerator),
		evaluator:  &MockEvaluator{},
		context:    &countingContext{},
	}
	gens := make(map[types.Kind]agents.Generator)
	for _, k := range types.Kinds {
		g := &MockGenerator{}
		h.generators[k] = g
		gens[k] = g
	}

	engine := evaluation.New(h.evaluator, 3)
	clock := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex

	ctrl, err := NewController(Deps{
		Engine:     engine,
		Store:      store,
		Generators: gens,
		Context:    h.context,
		Now: func() time.Time {
			clockMu.Lock()
			defer clockMu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		},
		OnProgress: func(e ProgressEvent) {
			h.eventsMu.Lock()
			h.events = append(h.events, e)
			h.eventsMu.Unlock()
		},
	})
	require.NoError(t, err)
	h.ctrl = ctrl
	return h
}

func (h *harness) start(t *testing.T) string {
	t.Helper()
	key, err := h.ctrl.StartRun(context.Background(), types.StartRequest{RawInput: "Users can reset their password by email"})
	require.NoError(t, err)
	return key
}

// approveThrough drives and approves gates until the run waits at kind's gate.
func (h *harness) approveThrough(t *testing.T, key string, kind types.Kind) *Result {
	t.Helper()
	res, err := h.ctrl.Drive(context.Background(), key)
	require.NoError(t, err)
	for res.Suspended() && res.Suspend.Kind != kind {
		res, err = h.ctrl.Resume(context.Background(), key, types.Decision{Decision: "APPROVE"})
		require.NoError(t, err)
	}
	require.True(t, res.Suspended(), "run ended before reaching %s gate", kind)
	return res
}
