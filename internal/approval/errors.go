package approval

import (
	"fmt"

	"github.com/jonathan/qa-orchestrator/internal/types"
)

// InvalidDecisionError is returned when a gate decision cannot be applied.
// The run is left untouched; the caller may retry with a corrected decision.
type InvalidDecisionError struct {
	Kind           types.Kind
	Reason         string
	Version        int
	CurrentVersion int
}

func (e *InvalidDecisionError) Error() string {
	if e.Version != 0 && e.Version != e.CurrentVersion {
		return fmt.Sprintf("invalid decision for %s gate: %s (decision version %d, live version %d)",
			e.Kind, e.Reason, e.Version, e.CurrentVersion)
	}
	return fmt.Sprintf("invalid decision for %s gate: %s", e.Kind, e.Reason)
}
