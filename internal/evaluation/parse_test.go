package evaluation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/qa-orchestrator/internal/types"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestParseVerdict_Valid(t *testing.T) {
	raw := "Here is my review:\n```json\n" +
		`{"score": 72, "verdict": "fail", "feedback": "too thin",` +
		` "issues": [{"type": "coverage", "description": "no error paths"}],` +
		` "recommendations": ["add 4xx cases"]}` +
		"\n```"

	got, err := ParseVerdict(types.KindStrategy, raw, fixedTime)
	require.NoError(t, err)

	assert.Equal(t, types.KindStrategy, got.Kind)
	assert.Equal(t, types.VerdictFail, got.Verdict)
	assert.InDelta(t, 72, got.Score, 1e-9)
	assert.Equal(t, "too thin", got.Feedback)
	require.Len(t, got.Issues, 1)
	assert.Equal(t, "no error paths", got.Issues[0].Description)
	assert.Equal(t, []string{"add 4xx cases"}, got.Recommendations)
	assert.Equal(t, fixedTime, got.Timestamp)
}

func TestParseVerdict_DefaultsEmptyLists(t *testing.T) {
	got, err := ParseVerdict(types.KindSpec, `{"score": 90, "verdict": "PASS", "feedback": "ok"}`, fixedTime)
	require.NoError(t, err)
	assert.NotNil(t, got.Issues)
	assert.NotNil(t, got.Recommendations)
	assert.Empty(t, got.Issues)
}

func TestParseVerdict_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: "   "},
		{name: "not json", raw: "looks fine to me"},
		{name: "missing verdict", raw: `{"score": 5, "feedback": "x"}`},
		{name: "unknown verdict", raw: `{"score": 5, "verdict": "MAYBE", "feedback": "x"}`},
		{name: "score wrong type", raw: `{"score": "high", "verdict": "PASS", "feedback": "x"}`},
		{name: "truncated", raw: `{"score": 5, "verdict": "PASS"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseVerdict(types.KindCodePlan, tt.raw, fixedTime)
			require.Error(t, err)
			var parseErr *ParseError
			assert.True(t, errors.As(err, &parseErr))
			assert.Equal(t, types.KindCodePlan, parseErr.Kind)
			assert.Contains(t, err.Error(), "malformed code_plan evaluation")
		})
	}
}
