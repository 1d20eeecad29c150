package types

import (
	"fmt"
	"strings"
	"time"
)

// Verdict is the evaluator's classification of a generated artifact.
type Verdict string

// Verdicts
const (
	VerdictPass       Verdict = "PASS"
	VerdictFail       Verdict = "FAIL"
	VerdictNeedsHuman Verdict = "NEEDS_HUMAN"
)

// ParseVerdict accepts a verdict tag in any case. Anything outside the
// three known tags is an error.
func ParseVerdict(s string) (Verdict, error) {
	v := Verdict(strings.ToUpper(strings.TrimSpace(s)))
	switch v {
	case VerdictPass, VerdictFail, VerdictNeedsHuman:
		return v, nil
	}
	return "", fmt.Errorf("invalid verdict tag: %q", s)
}

// Issue is one structured finding reported by an evaluator.
// Category and Severity are optional; evaluators that emit them get exact
// matching in routing policies instead of free-text scanning.
type Issue struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
	Severity    string `json:"severity,omitempty"`
	Location    string `json:"location,omitempty"`
}

// EvaluationResult is the output of one evaluator invocation.
type EvaluationResult struct {
	Kind            Kind      `json:"kind"`
	Score           float64   `json:"score"`
	Verdict         Verdict   `json:"verdict"`
	Feedback        string    `json:"feedback"`
	Issues          []Issue   `json:"issues"`
	Recommendations []string  `json:"recommendations"`
	Iteration       int       `json:"iteration"`
	Cost            float64   `json:"cost"`
	Timestamp       time.Time `json:"timestamp"`
}
