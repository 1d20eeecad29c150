package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/qa-orchestrator/internal/llm"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

// MockLLMClient is a mock implementation of llm.Client for testing
type MockLLMClient struct {
	GenerateContentFunc func(ctx context.Context, prompt string, tier llm.ModelTier) (*llm.Response, error)
	GenerateJSONFunc    func(ctx context.Context, prompt string, tier llm.ModelTier) (*llm.Response, error)
	prompts             []string
}

func (m *MockLLMClient) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (*llm.Response, error) {
	m.prompts = append(m.prompts, prompt)
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, prompt, tier)
	}
	return &llm.Response{Text: "content"}, nil
}

func (m *MockLLMClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (*llm.Response, error) {
	m.prompts = append(m.prompts, prompt)
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, prompt, tier)
	}
	return &llm.Response{Text: "{}"}, nil
}

func (m *MockLLMClient) GetModel(_ llm.ModelTier) string { return "mock-model" }
func (m *MockLLMClient) Close() error                    { return nil }

func TestLLMGenerator_Generate(t *testing.T) {
	var gotTier llm.ModelTier
	mock := &MockLLMClient{
		GenerateContentFunc: func(_ context.Context, _ string, tier llm.ModelTier) (*llm.Response, error) {
			gotTier = tier
			return &llm.Response{Text: "  Feature: reset password  ", Model: "gemini-2.5-flash", InputTokens: 1_000_000}, nil
		},
	}
	gen := NewLLMGenerator(mock)

	out, err := gen.Generate(context.Background(), GenerateInput{
		Kind:     types.KindCodePlan,
		RawInput: "reset password",
		Approved: map[types.Kind]string{types.KindSpec: "approved spec text"},
		Feedback: FirstAttemptFeedback,
	})
	require.NoError(t, err)

	assert.Equal(t, "Feature: reset password", out.Content)
	assert.InDelta(t, 0.30, out.Cost, 1e-9)
	assert.Equal(t, llm.TierAdvanced, gotTier)
	require.Len(t, mock.prompts, 1)
	assert.Contains(t, mock.prompts[0], "approved spec text")
	assert.Contains(t, mock.prompts[0], FirstAttemptFeedback)
}

func TestLLMGenerator_EmptyContentIsAnError(t *testing.T) {
	mock := &MockLLMClient{
		GenerateContentFunc: func(_ context.Context, _ string, _ llm.ModelTier) (*llm.Response, error) {
			return &llm.Response{Text: "   "}, nil
		},
	}
	_, err := NewLLMGenerator(mock).Generate(context.Background(), GenerateInput{Kind: types.KindSpec})
	assert.Error(t, err)
}

func TestLLMGenerator_ClientError(t *testing.T) {
	mock := &MockLLMClient{
		GenerateContentFunc: func(_ context.Context, _ string, _ llm.ModelTier) (*llm.Response, error) {
			return nil, errors.New("quota exceeded")
		},
	}
	_, err := NewLLMGenerator(mock).Generate(context.Background(), GenerateInput{Kind: types.KindSpec})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestBuildGenerationPrompt_IncludesFeedbackAndIssues(t *testing.T) {
	prompt, err := BuildGenerationPrompt(GenerateInput{
		Kind:          types.KindSpec,
		RawInput:      "checkout flow",
		Previous:      "Feature: checkout v1",
		Iteration:     1,
		Feedback:      "missing negative paths",
		Issues:        []types.Issue{{Type: "coverage", Description: "no declined card case"}},
		HumanFeedback: "add edge cases",
		Clarifications: []types.Question{
			{Text: "Which payment providers?", Answer: "Stripe"},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, "checkout flow")
	assert.Contains(t, prompt, "Feature: checkout v1")
	assert.Contains(t, prompt, "missing negative paths")
	assert.Contains(t, prompt, "[coverage] no declined card case")
	assert.Contains(t, prompt, "add edge cases")
	assert.Contains(t, prompt, "Stripe")
	assert.NotContains(t, prompt, "{{.")
}

func TestLLMEvaluator_Evaluate(t *testing.T) {
	mock := &MockLLMClient{
		GenerateJSONFunc: func(_ context.Context, _ string, tier llm.ModelTier) (*llm.Response, error) {
			assert.Equal(t, llm.TierStandard, tier)
			return &llm.Response{Text: `{"score": 8, "verdict": "PASS", "feedback": "good"}`, Model: "gemini-2.5-flash", OutputTokens: 1_000_000}, nil
		},
	}
	out, err := NewLLMEvaluator(mock).Evaluate(context.Background(), EvaluateInput{
		Kind: types.KindStrategy, Content: "strategy body", MaxIterations: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"score": 8, "verdict": "PASS", "feedback": "good"}`, out.Raw)
	assert.InDelta(t, 2.50, out.Cost, 1e-9)
	assert.Contains(t, mock.prompts[0], "strategy body")
	assert.Contains(t, mock.prompts[0], "iteration 1 of at most 3")
}

func TestBuildEvaluationPrompt_CodePlanAddsCategories(t *testing.T) {
	plan, err := BuildEvaluationPrompt(EvaluateInput{Kind: types.KindCodePlan, Content: "plan"})
	require.NoError(t, err)
	assert.Contains(t, plan, "duplicate_utility")

	spec, err := BuildEvaluationPrompt(EvaluateInput{Kind: types.KindSpec, Content: "spec"})
	require.NoError(t, err)
	assert.NotContains(t, spec, "duplicate_utility")
}

func TestStaticContext(t *testing.T) {
	provider := StaticContext{TechContext: "Playwright + TypeScript", CodebaseMap: "tests/helpers"}
	got, err := provider.Context(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.TeamContext{TechContext: "Playwright + TypeScript", CodebaseMap: "tests/helpers"}, got)
}

func TestFuncAdapters(t *testing.T) {
	gen := GeneratorFunc(func(_ context.Context, in GenerateInput) (*GenerateOutput, error) {
		return &GenerateOutput{Content: string(in.Kind)}, nil
	})
	out, err := gen.Generate(context.Background(), GenerateInput{Kind: types.KindScript})
	require.NoError(t, err)
	assert.Equal(t, "code", out.Content)

	eval := EvaluatorFunc(func(_ context.Context, in EvaluateInput) (*EvaluateOutput, error) {
		return &EvaluateOutput{Raw: in.Content}, nil
	})
	res, err := eval.Evaluate(context.Background(), EvaluateInput{Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", res.Raw)
}
