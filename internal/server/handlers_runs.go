package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/jonathan/qa-orchestrator/internal/agents"
	"github.com/jonathan/qa-orchestrator/internal/pipeline"
	"github.com/jonathan/qa-orchestrator/internal/server/middleware"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

// maxBodyBytes caps request bodies; EDIT decisions carry whole artifacts.
const maxBodyBytes = 4 << 20

// StartRunRequest is the body of POST /runs. Clarifications may be plain
// strings or objects with text/question, id, category and answer keys.
type StartRunRequest struct {
	RawInput            string  `json:"raw_input"`
	TeamID              string  `json:"team_id,omitempty"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
	Clarifications      []any   `json:"clarifications,omitempty"`
}

func (req StartRunRequest) toStartRequest() (types.StartRequest, error) {
	questions, err := agents.NormalizeQuestions(req.Clarifications)
	if err != nil {
		return types.StartRequest{}, &ErrValidation{Field: "clarifications", Message: err.Error()}
	}
	if len(questions) == 0 {
		questions = nil
	}
	return types.StartRequest{
		RawInput:            req.RawInput,
		TeamID:              req.TeamID,
		ConfidenceThreshold: req.ConfidenceThreshold,
		Clarifications:      questions,
	}, nil
}

// DecisionRequest is the body of POST /runs/{session_key}/resume.
// edited_content is accepted in place of content for EDIT decisions.
type DecisionRequest struct {
	Decision      string `json:"decision,omitempty"`
	Feedback      string `json:"feedback,omitempty"`
	Content       string `json:"content,omitempty"`
	EditedContent string `json:"edited_content,omitempty"`
	Version       int    `json:"version,omitempty"`
}

func (req DecisionRequest) toDecision() types.Decision {
	content := req.Content
	if content == "" {
		content = req.EditedContent
	}
	return types.Decision{
		Decision: req.Decision,
		Feedback: req.Feedback,
		Content:  content,
		Version:  req.Version,
	}
}

// StartRunResponse is returned by POST /runs.
type StartRunResponse struct {
	SessionKey string           `json:"session_key"`
	Result     *pipeline.Result `json:"result,omitempty"`
}

// FailRequest is the optional body of POST /runs/{session_key}/fail.
type FailRequest struct {
	Reason string `json:"reason"`
}

// RecoverResponse is returned by POST /runs/recover.
type RecoverResponse struct {
	Results []pipeline.RecoverResult `json:"results"`
	Error   string                   `json:"error,omitempty"`
}

// decodeBody decodes a JSON body into v. An empty body is allowed when
// optional is set.
func decodeBody(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return &ErrValidation{Field: "body", Message: err.Error()}
	}
	return nil
}

// queryBool reads a boolean query parameter.
func queryBool(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &ErrValidation{Field: name, Message: "must be a boolean"}
	}
	return b, nil
}

// operator names the caller for logs; "anonymous" when auth is off.
func operator(r *http.Request) string {
	if op, err := middleware.GetOperator(r); err == nil {
		return op
	}
	return "anonymous"
}

// handleStartRun creates a run. With ?drive=true it also drives the run to
// its first gate before responding.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var body StartRunRequest
	if err := decodeBody(r, &body, false); err != nil {
		s.writeError(w, err)
		return
	}
	req, err := body.toStartRequest()
	if err != nil {
		s.writeError(w, err)
		return
	}
	drive, err := queryBool(r, "drive", false)
	if err != nil {
		s.writeError(w, err)
		return
	}

	key, err := s.ctrl.StartRun(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("run created", "session_key", key, "operator", operator(r))

	resp := StartRunResponse{SessionKey: key}
	if drive {
		res, err := s.ctrl.Drive(r.Context(), key)
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.Result = res
	}
	s.jsonResponse(w, http.StatusCreated, resp)
}

// handleListRuns lists run summaries, optionally filtered by ?status=.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	status := types.Status(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))
	summaries, err := s.ctrl.List(r.Context(), status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, summaries)
}

func (s *Server) handleInspectRun(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ctrl.Inspect(r.Context(), r.PathValue("session_key"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, snap)
}

func (s *Server) handlePayload(w http.ResponseWriter, r *http.Request) {
	payload, err := s.ctrl.Payload(r.Context(), r.PathValue("session_key"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, payload)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	kind, err := types.ParseKind(r.PathValue("kind"))
	if err != nil {
		s.writeError(w, &ErrValidation{Field: "kind", Message: err.Error()})
		return
	}
	history, err := s.ctrl.History(r.Context(), r.PathValue("session_key"), kind)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, history)
}

func (s *Server) handleDrive(w http.ResponseWriter, r *http.Request) {
	res, err := s.ctrl.Drive(r.Context(), r.PathValue("session_key"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

// handleDriveStream drives the run and streams progress as server-sent events.
func (s *Server) handleDriveStream(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("session_key")
	// Resolve unknown sessions before committing to a stream.
	if _, err := s.ctrl.Inspect(r.Context(), key); err != nil {
		s.writeError(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx := pipeline.WithProgress(r.Context(), func(e pipeline.ProgressEvent) {
		if err := sse.WriteEvent(EventProgress, e); err != nil {
			s.logger.Debug("progress event dropped", "session_key", key, "error", err)
		}
	})
	res, err := s.ctrl.Drive(ctx, key)
	if err != nil {
		sse.WriteError(err)
		return
	}
	sse.WriteResult(res)
}

// handleResume applies a reviewer decision. With ?drive=false the decision is
// recorded without continuing the run.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("session_key")
	var body DecisionRequest
	if err := decodeBody(r, &body, false); err != nil {
		s.writeError(w, err)
		return
	}
	decision := body.toDecision()
	drive, err := queryBool(r, "drive", true)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("decision received",
		"session_key", key,
		"operator", operator(r),
		"decision", types.ParseGateDecision(decision.Decision),
	)

	if !drive {
		snap, err := s.ctrl.Decide(r.Context(), key, decision)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.jsonResponse(w, http.StatusOK, pipeline.Result{Snapshot: snap})
		return
	}

	res, err := s.ctrl.Resume(r.Context(), key, decision)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleFail(w http.ResponseWriter, r *http.Request) {
	var req FailRequest
	if err := decodeBody(r, &req, true); err != nil {
		s.writeError(w, err)
		return
	}
	snap, err := s.ctrl.ForceFail(r.Context(), r.PathValue("session_key"), req.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Warn("run failed by operator", "session_key", snap.SessionKey, "operator", operator(r))
	s.jsonResponse(w, http.StatusOK, snap)
}

// handleRecover drives every RUNNING run. Per-run errors are reported in the
// body with status 200; only a listing failure is an error response.
func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	results, err := s.ctrl.Recover(r.Context(), s.recoverConcurrency)
	if err != nil && results == nil {
		s.writeError(w, err)
		return
	}
	resp := RecoverResponse{Results: results}
	if err != nil {
		resp.Error = err.Error()
	}
	s.jsonResponse(w, http.StatusOK, resp)
}
