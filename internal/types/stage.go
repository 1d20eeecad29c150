// Package types provides the data model shared by the pipeline orchestrator packages.
package types

import (
	"fmt"
	"strings"
)

// Kind identifies one artifact slot produced by the pipeline.
type Kind string

// Artifact kinds in cycle order.
const (
	KindSpec      Kind = "spec"
	KindStrategy  Kind = "strategy"
	KindTestCases Kind = "test_cases"
	KindCodePlan  Kind = "code_plan"
	KindScript    Kind = "code"
)

// Kinds lists every artifact kind in the order the pipeline visits them.
var Kinds = []Kind{KindSpec, KindStrategy, KindTestCases, KindCodePlan, KindScript}

// Valid reports whether k is one of the known artifact kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind converts user input (e.g. "test-cases", "CodePlan") to a Kind.
func ParseKind(s string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	switch normalized {
	case "testcases":
		normalized = string(KindTestCases)
	case "codeplan":
		normalized = string(KindCodePlan)
	case "script":
		normalized = string(KindScript)
	}
	k := Kind(normalized)
	if !k.Valid() {
		return "", fmt.Errorf("unknown artifact kind: %q", s)
	}
	return k, nil
}

// Phase is the position of a stage within its kind's cycle.
type Phase string

// Cycle phases
const (
	PhaseGenerate Phase = "generate"
	PhaseEvaluate Phase = "evaluate"
	PhaseApprove  Phase = "approve"
	PhaseNone     Phase = ""
)

// Stage is the current position of a run. The set is closed: one stage per
// (kind, phase) pair, the reserved V2 stages, and the two terminals.
type Stage string

// Terminal and reserved stages. Per-kind stages are built with StageFor.
const (
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"

	// Reserved for artifact execution; no transition reaches them.
	StageExecution Stage = "execution"
	StageHealing   Stage = "healing"
	StageReporting Stage = "reporting"
)

// Per-kind stages.
const (
	StageGenerateSpec      Stage = "generate_spec"
	StageEvaluateSpec      Stage = "evaluate_spec"
	StageApproveSpec       Stage = "approve_spec"
	StageGenerateStrategy  Stage = "generate_strategy"
	StageEvaluateStrategy  Stage = "evaluate_strategy"
	StageApproveStrategy   Stage = "approve_strategy"
	StageGenerateTestCases Stage = "generate_test_cases"
	StageEvaluateTestCases Stage = "evaluate_test_cases"
	StageApproveTestCases  Stage = "approve_test_cases"
	StageGenerateCodePlan  Stage = "generate_code_plan"
	StageEvaluateCodePlan  Stage = "evaluate_code_plan"
	StageApproveCodePlan   Stage = "approve_code_plan"
	StageGenerateScript    Stage = "generate_code"
	StageEvaluateScript    Stage = "evaluate_code"
	StageApproveScript     Stage = "approve_code"
)

// StageFor returns the stage for a kind and phase.
func StageFor(kind Kind, phase Phase) Stage {
	return Stage(string(phase) + "_" + string(kind))
}

// Phase returns the cycle phase of s, or PhaseNone for terminal and reserved stages.
func (s Stage) Phase() Phase {
	for _, p := range []Phase{PhaseGenerate, PhaseEvaluate, PhaseApprove} {
		if strings.HasPrefix(string(s), string(p)+"_") {
			if Kind(strings.TrimPrefix(string(s), string(p)+"_")).Valid() {
				return p
			}
		}
	}
	return PhaseNone
}

// Kind returns the artifact kind s belongs to, or "" for terminal and reserved stages.
func (s Stage) Kind() Kind {
	p := s.Phase()
	if p == PhaseNone {
		return ""
	}
	return Kind(strings.TrimPrefix(string(s), string(p)+"_"))
}

// IsTerminal reports whether s is Completed or Failed.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// IsReserved reports whether s is one of the unreachable V2 stages.
func (s Stage) IsReserved() bool {
	return s == StageExecution || s == StageHealing || s == StageReporting
}

// Valid reports whether s belongs to the closed stage set.
func (s Stage) Valid() bool {
	return s.IsTerminal() || s.IsReserved() || s.Phase() != PhaseNone
}
