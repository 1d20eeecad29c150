package evaluation

import (
	"strings"

	"github.com/jonathan/qa-orchestrator/internal/types"
)

// Stages are the three possible destinations of an evaluation.
type Stages struct {
	Generate types.Stage
	Review   types.Stage
	Pass     types.Stage
}

// Policy chooses the next stage for a (possibly overridden) verdict.
type Policy interface {
	Route(result *types.EvaluationResult, stages Stages) types.Stage
}

// BasePolicy routes PASS to the pass stage, FAIL back to the generator and
// NEEDS_HUMAN to review.
type BasePolicy struct{}

// Route implements Policy.
func (BasePolicy) Route(result *types.EvaluationResult, stages Stages) types.Stage {
	switch result.Verdict {
	case types.VerdictPass:
		return stages.Pass
	case types.VerdictFail:
		return stages.Generate
	default:
		return stages.Review
	}
}

// Structured issue categories that block a code plan from reaching review.
const (
	CategoryDuplicateUtility    = "duplicate_utility"
	CategoryConventionViolation = "convention_violation"
	SeverityCritical            = "critical"
)

// CodePlanPolicy sends a FAIL to human review unless one of its issues is
// critical, in which case the plan is regenerated.
type CodePlanPolicy struct{}

// Route implements Policy.
func (CodePlanPolicy) Route(result *types.EvaluationResult, stages Stages) types.Stage {
	if result.Verdict != types.VerdictFail {
		return BasePolicy{}.Route(result, stages)
	}
	if HasCriticalIssue(result.Issues) {
		return stages.Generate
	}
	return stages.Review
}

// HasCriticalIssue reports whether any issue marks a duplicate utility or a
// convention violation. Structured category or severity fields win when an
// issue carries them; otherwise its type and description text are scanned.
func HasCriticalIssue(issues []types.Issue) bool {
	for _, issue := range issues {
		if issue.Category != "" || issue.Severity != "" {
			category := strings.ToLower(issue.Category)
			if category == CategoryDuplicateUtility || category == CategoryConventionViolation ||
				strings.EqualFold(issue.Severity, SeverityCritical) {
				return true
			}
			continue
		}

		issueType := strings.ToLower(issue.Type)
		desc := strings.ToLower(issue.Description)
		if strings.Contains(issueType, "duplicate") || strings.Contains(desc, "duplicate") {
			return true
		}
		if strings.Contains(desc, "convention") && strings.Contains(desc, "violat") {
			return true
		}
	}
	return false
}
