package httpserver

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/moogar0880/problems"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/workflow"
)

const problemContentType = "application/problem+json"

// executionResponse is the JSON view of a stored execution.
type executionResponse struct {
	ExecutionID string                   `json:"execution_id"`
	Status      domain.Status            `json:"status"`
	Input       domain.ExecutionInput    `json:"input"`
	Context     domain.StageResults      `json:"context"`
	Suspension  *domain.SuspensionRecord `json:"suspension,omitempty"`
	AuditLog    []domain.AuditLogEntry   `json:"audit_log"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
	Duration    string                   `json:"duration,omitempty"`
}

func executionToResponse(e *domain.Execution) executionResponse {
	resp := executionResponse{
		ExecutionID: e.ID,
		Status:      e.Status,
		Input:       e.Input,
		Context:     e.Context,
		Suspension:  e.Suspension,
		AuditLog:    e.Metrics.AuditLog,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
		CompletedAt: e.Metrics.CompletedAt,
	}
	if resp.AuditLog == nil {
		resp.AuditLog = []domain.AuditLogEntry{}
	}
	if d := e.Duration(); d > 0 {
		resp.Duration = d.String()
	}
	return resp
}

// resultProblem is a problem document that also carries the execution result,
// so a caller can see how far a failed run got.
type resultProblem struct {
	*problems.Problem
	Result *workflow.ExecutionResult `json:"result,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeProblem writes an RFC 7807 problem document.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, detail string, result *workflow.ExecutionResult) {
	problem := problems.NewStatusProblem(status).
		WithInstance(r.URL.Path).
		WithType(problemType).
		WithDetail(detail)

	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resultProblem{Problem: problem, Result: result})
}

// badRequest writes a 400 validation problem.
func badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, http.StatusBadRequest, "validation_error", detail, nil)
}
