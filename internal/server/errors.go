package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/qa-orchestrator/internal/approval"
	"github.com/jonathan/qa-orchestrator/internal/pipeline"
)

// ErrValidation indicates a malformed request body or parameter.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// StatusClientClosedRequest is reported when the caller went away mid-drive.
const StatusClientClosedRequest = 499

// HTTPStatus returns the HTTP status code for an error.
func HTTPStatus(err error) int {
	var (
		unknown      *pipeline.UnknownSessionError
		notSuspended *pipeline.NotSuspendedError
		invalid      *approval.InvalidDecisionError
		validation   *pipeline.ValidationError
		badRequest   *ErrValidation
	)
	switch {
	case errors.As(err, &unknown):
		return http.StatusNotFound
	case errors.As(err, &notSuspended):
		return http.StatusConflict
	case errors.As(err, &invalid), errors.As(err, &validation), errors.As(err, &badRequest):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
