package httpserver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/observability"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/workflow"
)

const maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies

// startExecution handles POST /api/v1/executions.
// It runs the workflow until it first suspends, completes or fails.
func (s *Server) startExecution(w http.ResponseWriter, r *http.Request) {
	var input domain.ExecutionInput
	if !s.decodeBody(w, r, &input) {
		return
	}
	input.SourceURL = strings.TrimSpace(input.SourceURL)
	if err := s.validate.Struct(input); err != nil {
		badRequest(w, r, validationDetail(err))
		return
	}

	res, err := s.engine.Start(r.Context(), input)
	if err != nil {
		s.writeEngineError(w, r, err, res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// getExecution handles GET /api/v1/executions/{executionID}.
func (s *Server) getExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := parseExecutionID(w, r)
	if !ok {
		return
	}

	exec, err := s.engine.Get(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, executionToResponse(exec))
}

// getPending handles GET /api/v1/executions/{executionID}/pending.
// An execution that is not waiting at a gate answers 204.
func (s *Server) getPending(w http.ResponseWriter, r *http.Request) {
	id, ok := parseExecutionID(w, r)
	if !ok {
		return
	}

	record, err := s.engine.LoadPending(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err, nil)
		return
	}
	if record == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// submitDecision handles POST /api/v1/executions/{executionID}/decisions.
func (s *Server) submitDecision(w http.ResponseWriter, r *http.Request) {
	id, ok := parseExecutionID(w, r)
	if !ok {
		return
	}

	var decision domain.Decision
	if !s.decodeBody(w, r, &decision) {
		return
	}
	if err := s.validate.Struct(decision); err != nil {
		badRequest(w, r, validationDetail(err))
		return
	}

	ctx := observability.WithExecutionID(r.Context(), id)
	res, err := s.engine.Resume(ctx, id, decision)
	if err != nil {
		s.writeEngineError(w, r, err, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// decodeBody reads a size-limited JSON body into dst, rejecting unknown fields.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		badRequest(w, r, "failed to read request body")
		return false
	}
	if len(body) > maxRequestBodySize {
		writeProblem(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds 1 MB", nil)
		return false
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		badRequest(w, r, "invalid JSON request body")
		return false
	}
	return true
}

// writeEngineError maps engine errors onto problem documents.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error, res *workflow.ExecutionResult) {
	switch domain.KindOf(err) {
	case domain.KindClient:
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			badRequest(w, r, err.Error())
		case errors.Is(err, domain.ErrNotFound):
			writeProblem(w, r, http.StatusNotFound, "not_found", err.Error(), nil)
		case errors.Is(err, domain.ErrGateMismatch):
			writeProblem(w, r, http.StatusConflict, "gate_mismatch", err.Error(), nil)
		case errors.Is(err, domain.ErrNotSuspended):
			writeProblem(w, r, http.StatusConflict, "not_suspended", err.Error(), nil)
		default:
			writeProblem(w, r, http.StatusConflict, "conflict", err.Error(), nil)
		}
	case domain.KindPipeline:
		problemType := "workflow_failed"
		if errors.Is(err, domain.ErrStepFailed) {
			problemType = "step_failed"
		}
		writeProblem(w, r, http.StatusUnprocessableEntity, problemType, err.Error(), res)
	case domain.KindInfrastructure:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("execution store unavailable")
		writeProblem(w, r, http.StatusServiceUnavailable, "store_unavailable", "execution store unavailable", nil)
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("unexpected engine error")
		writeProblem(w, r, http.StatusInternalServerError, "internal_error", "internal server error", nil)
	}
}

// parseExecutionID reads and validates the executionID URL parameter.
func parseExecutionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "executionID")
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(w, r, "invalid executionID format")
		return "", false
	}
	return id.String(), true
}

// validationDetail flattens validator errors into one message.
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
