package types

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// GateStatus is the state of one approval gate.
type GateStatus string

// Gate statuses
const (
	GatePending  GateStatus = "pending"
	GateApproved GateStatus = "approved"
	GateRejected GateStatus = "rejected"
)

// ApprovalGate records the human decision for one artifact kind.
type ApprovalGate struct {
	Kind            Kind       `json:"kind"`
	Status          GateStatus `json:"status"`
	Reviewer        string     `json:"reviewer,omitempty"`
	Feedback        string     `json:"feedback,omitempty"`
	DocumentVersion int        `json:"document_version"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
}

// NewPendingGates returns one pending gate per artifact kind.
func NewPendingGates() map[Kind]*ApprovalGate {
	gates := make(map[Kind]*ApprovalGate, len(Kinds))
	for _, k := range Kinds {
		gates[k] = &ApprovalGate{Kind: k, Status: GatePending}
	}
	return gates
}

// GateDecision is a human reviewer's choice at a gate.
type GateDecision string

// Gate decisions
const (
	DecisionApprove GateDecision = "APPROVE"
	DecisionReject  GateDecision = "REJECT"
	DecisionEdit    GateDecision = "EDIT"
)

// ParseGateDecision maps a decision tag to a GateDecision. Empty and
// unrecognized tags become REJECT.
func ParseGateDecision(s string) GateDecision {
	switch d := GateDecision(strings.ToUpper(strings.TrimSpace(s))); d {
	case DecisionApprove, DecisionEdit, DecisionReject:
		return d
	}
	return DecisionReject
}

// Decision is the payload a reviewer submits to resume a suspended gate.
// Version is the artifact version the reviewer was shown; zero means the
// reviewer did not state one and the decision applies to the live version.
type Decision struct {
	Decision string `json:"decision,omitempty"`
	Feedback string `json:"feedback,omitempty"`
	Content  string `json:"content,omitempty" validate:"required_if=Decision EDIT"`
	Version  int    `json:"version,omitempty" validate:"gte=0"`
}

// Validate validates the Decision using the validator.
func (d *Decision) Validate() error {
	validate := validator.New()
	return validate.Struct(d)
}
