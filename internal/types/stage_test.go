package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageFor_MatchesConstants(t *testing.T) {
	assert.Equal(t, StageGenerateSpec, StageFor(KindSpec, PhaseGenerate))
	assert.Equal(t, StageEvaluateTestCases, StageFor(KindTestCases, PhaseEvaluate))
	assert.Equal(t, StageApproveCodePlan, StageFor(KindCodePlan, PhaseApprove))
	assert.Equal(t, StageGenerateScript, StageFor(KindScript, PhaseGenerate))
}

func TestStage_PhaseAndKind(t *testing.T) {
	tests := []struct {
		stage Stage
		phase Phase
		kind  Kind
	}{
		{StageGenerateSpec, PhaseGenerate, KindSpec},
		{StageEvaluateStrategy, PhaseEvaluate, KindStrategy},
		{StageApproveTestCases, PhaseApprove, KindTestCases},
		{StageEvaluateCodePlan, PhaseEvaluate, KindCodePlan},
		{StageApproveScript, PhaseApprove, KindScript},
		{StageCompleted, PhaseNone, ""},
		{StageFailed, PhaseNone, ""},
		{StageHealing, PhaseNone, ""},
		{Stage("generate_unknown"), PhaseNone, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			assert.Equal(t, tt.phase, tt.stage.Phase())
			assert.Equal(t, tt.kind, tt.stage.Kind())
		})
	}
}

func TestStage_Valid(t *testing.T) {
	for _, k := range Kinds {
		for _, p := range []Phase{PhaseGenerate, PhaseEvaluate, PhaseApprove} {
			assert.True(t, StageFor(k, p).Valid())
		}
	}
	assert.True(t, StageCompleted.Valid())
	assert.True(t, StageExecution.Valid())
	assert.True(t, StageExecution.IsReserved())
	assert.False(t, Stage("approve_everything").Valid())
	assert.False(t, Stage("").Valid())
}

func TestStage_IsTerminal(t *testing.T) {
	assert.True(t, StageCompleted.IsTerminal())
	assert.True(t, StageFailed.IsTerminal())
	assert.False(t, StageApproveSpec.IsTerminal())
	assert.False(t, StageReporting.IsTerminal())
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"spec":       KindSpec,
		"Strategy":   KindStrategy,
		"test-cases": KindTestCases,
		"TestCases":  KindTestCases,
		"code_plan":  KindCodePlan,
		"CodePlan":   KindCodePlan,
		"script":     KindScript,
		"code":       KindScript,
	}
	for input, want := range tests {
		got, err := ParseKind(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	_, err := ParseKind("readme")
	assert.Error(t, err)
}

func TestKinds_Order(t *testing.T) {
	assert.Equal(t, []Kind{KindSpec, KindStrategy, KindTestCases, KindCodePlan, KindScript}, Kinds)
}
