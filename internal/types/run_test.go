package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusRunning.IsTerminal())
	assert.False(t, StatusWaitingApproval.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, Status("PAUSED").Valid())
}

func TestWorkflowRun_AddCost(t *testing.T) {
	run := WorkflowRun{}
	run.AddCost(0.25)
	run.AddCost(-1)
	run.AddCost(0.5)
	assert.InDelta(t, 0.75, run.AccumulatedCost, 1e-9)
}

func TestStartRequest_Validation(t *testing.T) {
	tests := []struct {
		name    string
		request StartRequest
		wantErr bool
	}{
		{"valid", StartRequest{RawInput: "login flow", ConfidenceThreshold: 0.85}, false},
		{"missing input", StartRequest{TeamID: "qa"}, true},
		{"threshold above one", StartRequest{RawInput: "x", ConfidenceThreshold: 1.5}, true},
		{"question without text", StartRequest{RawInput: "x", Clarifications: []Question{{ID: "q1"}}}, true},
		{"question with text", StartRequest{RawInput: "x", Clarifications: []Question{{Text: "Which browsers?"}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseVerdict(t *testing.T) {
	v, err := ParseVerdict("pass")
	require.NoError(t, err)
	assert.Equal(t, VerdictPass, v)

	v, err = ParseVerdict(" needs_human ")
	require.NoError(t, err)
	assert.Equal(t, VerdictNeedsHuman, v)

	_, err = ParseVerdict("MAYBE")
	assert.Error(t, err)
}

func TestParseGateDecision(t *testing.T) {
	assert.Equal(t, DecisionApprove, ParseGateDecision("approve"))
	assert.Equal(t, DecisionEdit, ParseGateDecision("EDIT"))
	assert.Equal(t, DecisionReject, ParseGateDecision("REJECT"))
	assert.Equal(t, DecisionReject, ParseGateDecision(""))
	assert.Equal(t, DecisionReject, ParseGateDecision("ship it"))
}

func TestDecision_Validation(t *testing.T) {
	edit := Decision{Decision: "EDIT"}
	assert.Error(t, edit.Validate())

	edit.Content = "Feature: login"
	assert.NoError(t, edit.Validate())

	negative := Decision{Decision: "APPROVE", Version: -1}
	assert.Error(t, negative.Validate())
}

func TestNewPendingGates(t *testing.T) {
	gates := NewPendingGates()
	require.Len(t, gates, len(Kinds))
	for _, k := range Kinds {
		require.Contains(t, gates, k)
		assert.Equal(t, GatePending, gates[k].Status)
		assert.Equal(t, k, gates[k].Kind)
		assert.Nil(t, gates[k].ReviewedAt)
	}
}

func TestApprovalGate_JSONTags(t *testing.T) {
	gate := ApprovalGate{Kind: KindSpec, Status: GateApproved, Reviewer: "human", DocumentVersion: 2}
	data, err := json.Marshal(gate)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "approved", raw["status"])
	assert.Equal(t, float64(2), raw["document_version"])
	assert.NotContains(t, raw, "reviewed_at")
}
