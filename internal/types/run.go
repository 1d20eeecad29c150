package types

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Status is the run-level lifecycle state.
type Status string

// Run statuses
const (
	StatusRunning         Status = "RUNNING"
	StatusWaitingApproval Status = "WAITING_APPROVAL"
	StatusCompleted       Status = "COMPLETED"
	StatusFailed          Status = "FAILED"
)

// IsTerminal reports whether no further transition can leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusRunning, StatusWaitingApproval, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// WorkflowRun is one pipeline execution.
type WorkflowRun struct {
	RunID               string     `json:"run_id"`
	SessionKey          string     `json:"session_key"`
	TeamID              string     `json:"team_id"`
	Status              Status     `json:"status"`
	CurrentStage        Stage      `json:"current_stage"`
	ErrorMessage        string     `json:"error_message,omitempty"`
	AccumulatedCost     float64    `json:"accumulated_cost"`
	ConfidenceThreshold float64    `json:"confidence_threshold"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

// AddCost adds a non-negative cost to the run's accumulator.
func (r *WorkflowRun) AddCost(cost float64) {
	if cost > 0 {
		r.AccumulatedCost += cost
	}
}

// StartRequest holds the inputs for a new run.
type StartRequest struct {
	RawInput            string     `json:"raw_input" validate:"required"`
	TeamID              string     `json:"team_id,omitempty"`
	ConfidenceThreshold float64    `json:"confidence_threshold,omitempty" validate:"gte=0,lte=1"`
	Clarifications      []Question `json:"clarifications,omitempty" validate:"dive"`
}

// Validate validates the StartRequest using the validator.
func (r *StartRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
