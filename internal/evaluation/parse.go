package evaluation

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/jonathan/qa-orchestrator/internal/llm"
	"github.com/jonathan/qa-orchestrator/internal/schemas"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

type rawVerdict struct {
	Score           float64       `json:"score"`
	Verdict         string        `json:"verdict"`
	Feedback        string        `json:"feedback"`
	Issues          []types.Issue `json:"issues"`
	Recommendations []string      `json:"recommendations"`
}

// ParseVerdict validates raw evaluator output against the verdict schema and
// decodes it. Code fences and surrounding prose are stripped first.
func ParseVerdict(kind types.Kind, raw string, at time.Time) (*types.EvaluationResult, error) {
	cleaned := llm.CleanJSONBlock(raw)
	if cleaned == "" {
		return nil, &ParseError{Kind: kind, Message: "empty evaluator response"}
	}
	if !json.Valid([]byte(cleaned)) {
		return nil, &ParseError{Kind: kind, Message: "response is not valid JSON"}
	}

	if err := schemas.Validate(schemas.EvaluationVerdict, cleaned); err != nil {
		var validationErr *schemas.ValidationError
		if errors.As(err, &validationErr) {
			return nil, &ParseError{Kind: kind, Message: validationErr.Summary()}
		}
		return nil, &ParseError{Kind: kind, Message: "schema check failed", Cause: err}
	}

	var v rawVerdict
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, &ParseError{Kind: kind, Message: "failed to decode verdict", Cause: err}
	}

	verdict, err := types.ParseVerdict(v.Verdict)
	if err != nil {
		return nil, &ParseError{Kind: kind, Message: "invalid verdict tag", Cause: err}
	}

	if v.Issues == nil {
		v.Issues = []types.Issue{}
	}
	if v.Recommendations == nil {
		v.Recommendations = []string{}
	}

	return &types.EvaluationResult{
		Kind:            kind,
		Score:           v.Score,
		Verdict:         verdict,
		Feedback:        v.Feedback,
		Issues:          v.Issues,
		Recommendations: v.Recommendations,
		Timestamp:       at,
	}, nil
}
