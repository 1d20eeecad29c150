package evaluation

import (
	"fmt"

	"github.com/jonathan/qa-orchestrator/internal/types"
)

// ParseError is returned when evaluator output cannot be turned into an
// EvaluationResult.
type ParseError struct {
	Kind    types.Kind
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed %s evaluation: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("malformed %s evaluation: %s", e.Kind, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
