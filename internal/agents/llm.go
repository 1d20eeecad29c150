package agents

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jonathan/qa-orchestrator/internal/llm"
	"github.com/jonathan/qa-orchestrator/internal/prompts"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

// DefaultTiers picks the model tier per artifact kind.
var DefaultTiers = map[types.Kind]llm.ModelTier{
	types.KindSpec:      llm.TierStandard,
	types.KindStrategy:  llm.TierStandard,
	types.KindTestCases: llm.TierStandard,
	types.KindCodePlan:  llm.TierAdvanced,
	types.KindScript:    llm.TierAdvanced,
}

// LLMGenerator generates artifacts by prompting an llm.Client.
type LLMGenerator struct {
	Client  llm.Client
	Pricing llm.Pricing
	Tiers   map[types.Kind]llm.ModelTier
}

// NewLLMGenerator creates a generator using the default tiers and pricing.
func NewLLMGenerator(client llm.Client) *LLMGenerator {
	return &LLMGenerator{Client: client, Pricing: llm.DefaultPricing(), Tiers: DefaultTiers}
}

// Generate renders the kind's prompt and returns the model output.
func (g *LLMGenerator) Generate(ctx context.Context, in GenerateInput) (*GenerateOutput, error) {
	prompt, err := BuildGenerationPrompt(in)
	if err != nil {
		return nil, err
	}

	resp, err := g.Client.GenerateContent(ctx, prompt, tierFor(g.Tiers, in.Kind))
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s: %w", in.Kind, err)
	}

	content := strings.TrimSpace(resp.Text)
	if content == "" {
		return nil, fmt.Errorf("generator returned empty %s content", in.Kind)
	}
	return &GenerateOutput{Content: content, Cost: resp.Cost(g.Pricing)}, nil
}

// BuildGenerationPrompt renders the generation prompt for in.
func BuildGenerationPrompt(in GenerateInput) (string, error) {
	system, err := prompts.Get(prompts.GenerationFile, "system")
	if err != nil {
		return "", err
	}

	contextBlock, err := prompts.Render(prompts.GenerationFile, "context", map[string]string{
		"TechContext":    in.TeamContext.TechContext,
		"CodebaseMap":    in.TeamContext.CodebaseMap,
		"Clarifications": FormatQuestions(in.Clarifications),
		"Previous":       in.Previous,
		"Iteration":      strconv.Itoa(in.Iteration),
		"Feedback":       feedbackText(in),
		"HumanFeedback":  in.HumanFeedback,
	})
	if err != nil {
		return "", err
	}

	body, err := prompts.Render(prompts.GenerationFile, string(in.Kind), map[string]string{
		"RawInput": in.RawInput,
		"Approved": formatApproved(in.Approved),
		"Context":  contextBlock,
	})
	if err != nil {
		return "", err
	}
	return system + "\n\n" + body, nil
}

func feedbackText(in GenerateInput) string {
	var sb strings.Builder
	sb.WriteString(in.Feedback)
	for _, issue := range in.Issues {
		sb.WriteString(fmt.Sprintf("\n- [%s] %s", issue.Type, issue.Description))
	}
	return sb.String()
}

// LLMEvaluator reviews artifacts by prompting an llm.Client for a JSON verdict.
type LLMEvaluator struct {
	Client  llm.Client
	Pricing llm.Pricing
	Tier    llm.ModelTier
}

// NewLLMEvaluator creates an evaluator on the standard tier.
func NewLLMEvaluator(client llm.Client) *LLMEvaluator {
	return &LLMEvaluator{Client: client, Pricing: llm.DefaultPricing(), Tier: llm.TierStandard}
}

// Evaluate returns the model's raw JSON verdict.
func (e *LLMEvaluator) Evaluate(ctx context.Context, in EvaluateInput) (*EvaluateOutput, error) {
	prompt, err := BuildEvaluationPrompt(in)
	if err != nil {
		return nil, err
	}

	resp, err := e.Client.GenerateJSON(ctx, prompt, e.Tier)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate %s: %w", in.Kind, err)
	}
	return &EvaluateOutput{Raw: resp.Text, Cost: resp.Cost(e.Pricing)}, nil
}

// BuildEvaluationPrompt renders the judge prompt for in.
func BuildEvaluationPrompt(in EvaluateInput) (string, error) {
	extra := ""
	if in.Kind == types.KindCodePlan {
		var err error
		extra, err = prompts.Get(prompts.EvaluationFile, "code_plan_extra")
		if err != nil {
			return "", err
		}
	}

	return prompts.Render(prompts.EvaluationFile, "judge", map[string]string{
		"Kind":          string(in.Kind),
		"Iteration":     strconv.Itoa(in.Iteration + 1),
		"MaxIterations": strconv.Itoa(in.MaxIterations),
		"RawInput":      in.RawInput,
		"Approved":      formatApproved(in.Approved),
		"Content":       in.Content,
		"Extra":         extra,
	})
}

func tierFor(tiers map[types.Kind]llm.ModelTier, kind types.Kind) llm.ModelTier {
	if tier, ok := tiers[kind]; ok {
		return tier
	}
	return llm.TierStandard
}

func formatApproved(approved map[types.Kind]string) string {
	var sb strings.Builder
	for _, k := range types.Kinds {
		content, ok := approved[k]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("### %s\n%s\n\n", k, content))
	}
	return strings.TrimSpace(sb.String())
}
