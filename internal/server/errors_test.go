package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/qa-orchestrator/internal/approval"
	"github.com/jonathan/qa-orchestrator/internal/pipeline"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown session", &pipeline.UnknownSessionError{SessionKey: "x"}, http.StatusNotFound},
		{"wrapped unknown session", fmt.Errorf("drive: %w", &pipeline.UnknownSessionError{SessionKey: "x"}), http.StatusNotFound},
		{"not suspended", &pipeline.NotSuspendedError{SessionKey: "x", Status: types.StatusRunning}, http.StatusConflict},
		{"invalid decision", &approval.InvalidDecisionError{Kind: types.KindSpec, Reason: "stale"}, http.StatusBadRequest},
		{"controller validation", &pipeline.ValidationError{Message: "raw input is required"}, http.StatusBadRequest},
		{"request validation", &ErrValidation{Field: "body", Message: "bad json"}, http.StatusBadRequest},
		{"canceled", context.Canceled, StatusClientClosedRequest},
		{"deadline", fmt.Errorf("generate: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"storage failure", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrValidation_Error(t *testing.T) {
	err := &ErrValidation{Field: "status", Message: "unknown value"}
	assert.Equal(t, "validation error: status - unknown value", err.Error())
}
