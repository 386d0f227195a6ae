package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/observability"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/workflow"
)

const testExecutionID = "6f1c2a8e-5d4b-4c3a-9e2f-1a2b3c4d5e6f"

// mockEngine implements Engine for HTTP handler tests.
type mockEngine struct {
	startFn       func(ctx context.Context, input domain.ExecutionInput) (*workflow.ExecutionResult, error)
	resumeFn      func(ctx context.Context, id string, decision domain.Decision) (*workflow.ExecutionResult, error)
	getFn         func(ctx context.Context, id string) (*domain.Execution, error)
	loadPendingFn func(ctx context.Context, id string) (*domain.SuspensionRecord, error)
	pingFn        func(ctx context.Context) error
}

func (m *mockEngine) Start(ctx context.Context, input domain.ExecutionInput) (*workflow.ExecutionResult, error) {
	if m.startFn != nil {
		return m.startFn(ctx, input)
	}
	return &workflow.ExecutionResult{ExecutionID: testExecutionID, Status: domain.StatusSuspended}, nil
}

func (m *mockEngine) Resume(ctx context.Context, id string, decision domain.Decision) (*workflow.ExecutionResult, error) {
	if m.resumeFn != nil {
		return m.resumeFn(ctx, id, decision)
	}
	return &workflow.ExecutionResult{ExecutionID: id, Status: domain.StatusCompleted}, nil
}

func (m *mockEngine) Get(ctx context.Context, id string) (*domain.Execution, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.NewNotFoundError("execution", id)
}

func (m *mockEngine) LoadPending(ctx context.Context, id string) (*domain.SuspensionRecord, error) {
	if m.loadPendingFn != nil {
		return m.loadPendingFn(ctx, id)
	}
	return nil, nil
}

func (m *mockEngine) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func newTestServer(engine Engine) *Server {
	return NewServer(Config{Address: ":0"}, engine, nil, zerolog.Nop())
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

type problemBody struct {
	Type     string                    `json:"type"`
	Title    string                    `json:"title"`
	Status   int                       `json:"status"`
	Detail   string                    `json:"detail"`
	Instance string                    `json:"instance"`
	Result   *workflow.ExecutionResult `json:"result"`
}

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) problemBody {
	t.Helper()
	assert.Equal(t, problemContentType, rr.Header().Get("Content-Type"))
	var p problemBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	return p
}

func TestStartExecution_Created(t *testing.T) {
	var captured domain.ExecutionInput
	engine := &mockEngine{
		startFn: func(_ context.Context, input domain.ExecutionInput) (*workflow.ExecutionResult, error) {
			captured = input
			return &workflow.ExecutionResult{
				ExecutionID: testExecutionID,
				Status:      domain.StatusSuspended,
				GateID:      "concept-review",
				Payload:     map[string]any{"summary": "s"},
			}, nil
		},
	}
	s := newTestServer(engine)

	rr := doRequest(t, s, http.MethodPost, "/api/v1/executions/", `{"source_url": " https://example.com/post ", "model": "gpt-4o"}`)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "https://example.com/post", captured.SourceURL)
	assert.Equal(t, "gpt-4o", captured.Model)

	var res workflow.ExecutionResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, testExecutionID, res.ExecutionID)
	assert.Equal(t, domain.StatusSuspended, res.Status)
	assert.Equal(t, "concept-review", res.GateID)
}

func TestStartExecution_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "invalid json", body: `{"source_url":`, want: http.StatusBadRequest},
		{name: "missing url", body: `{}`, want: http.StatusBadRequest},
		{name: "not a url", body: `{"source_url": "nope"}`, want: http.StatusBadRequest},
		{name: "unknown field", body: `{"source_url": "https://example.com", "extra": 1}`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mockEngine{
				startFn: func(context.Context, domain.ExecutionInput) (*workflow.ExecutionResult, error) {
					t.Fatal("engine must not be called for invalid input")
					return nil, nil
				},
			}
			rr := doRequest(t, newTestServer(engine), http.MethodPost, "/api/v1/executions/", tt.body)

			require.Equal(t, tt.want, rr.Code)
			p := decodeProblem(t, rr)
			assert.Equal(t, "validation_error", p.Type)
			assert.Equal(t, "/api/v1/executions/", p.Instance)
		})
	}
}

func TestStartExecution_BodyTooLarge(t *testing.T) {
	body := `{"source_url": "https://example.com/` + strings.Repeat("a", maxRequestBodySize) + `"}`
	rr := doRequest(t, newTestServer(&mockEngine{}), http.MethodPost, "/api/v1/executions/", body)

	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, "payload_too_large", decodeProblem(t, rr).Type)
}

func TestStartExecution_StepFailureCarriesResult(t *testing.T) {
	engine := &mockEngine{
		startFn: func(context.Context, domain.ExecutionInput) (*workflow.ExecutionResult, error) {
			err := domain.NewStepError("extract-metadata", context.DeadlineExceeded)
			return &workflow.ExecutionResult{
				ExecutionID: testExecutionID,
				Status:      domain.StatusFailed,
				Error:       err.Error(),
			}, err
		},
	}

	rr := doRequest(t, newTestServer(engine), http.MethodPost, "/api/v1/executions/", `{"source_url": "https://example.com"}`)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	p := decodeProblem(t, rr)
	assert.Equal(t, "step_failed", p.Type)
	require.NotNil(t, p.Result)
	assert.Equal(t, domain.StatusFailed, p.Result.Status)
	assert.Equal(t, testExecutionID, p.Result.ExecutionID)
}

func TestStartExecution_WorkflowFailureIsUnprocessable(t *testing.T) {
	engine := &mockEngine{
		startFn: func(context.Context, domain.ExecutionInput) (*workflow.ExecutionResult, error) {
			err := domain.NewWorkflowError(errors.New("build concept-review payload: concepts missing"))
			return &workflow.ExecutionResult{
				ExecutionID: testExecutionID,
				Status:      domain.StatusFailed,
				Error:       err.Error(),
			}, err
		},
	}

	rr := doRequest(t, newTestServer(engine), http.MethodPost, "/api/v1/executions/", `{"source_url": "https://example.com"}`)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	p := decodeProblem(t, rr)
	assert.Equal(t, "workflow_failed", p.Type)
	assert.Equal(t, http.StatusUnprocessableEntity, p.Status)
	assert.Equal(t, "Unprocessable Entity", p.Title)
	require.NotNil(t, p.Result)
	assert.Equal(t, domain.StatusFailed, p.Result.Status)
}

func TestStartExecution_StoreUnavailable(t *testing.T) {
	engine := &mockEngine{
		startFn: func(context.Context, domain.ExecutionInput) (*workflow.ExecutionResult, error) {
			return &workflow.ExecutionResult{}, domain.NewStoreUnavailableError("create", context.Canceled)
		},
	}

	rr := doRequest(t, newTestServer(engine), http.MethodPost, "/api/v1/executions/", `{"source_url": "https://example.com"}`)

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	p := decodeProblem(t, rr)
	assert.Equal(t, "store_unavailable", p.Type)
	assert.NotContains(t, p.Detail, "context canceled", "backend errors are not exposed")
}

func TestGetExecution(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := created.Add(90 * time.Second)
	engine := &mockEngine{
		getFn: func(_ context.Context, id string) (*domain.Execution, error) {
			return &domain.Execution{
				ID:        id,
				Input:     domain.ExecutionInput{SourceURL: "https://example.com"},
				Status:    domain.StatusCompleted,
				Context:   domain.StageResults{},
				CreatedAt: created,
				UpdatedAt: completed,
				Metrics:   domain.Metrics{StartedAt: created, CompletedAt: &completed},
			}, nil
		},
	}

	rr := doRequest(t, newTestServer(engine), http.MethodGet, "/api/v1/executions/"+testExecutionID, "")

	require.Equal(t, http.StatusOK, rr.Code)
	var resp executionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, testExecutionID, resp.ExecutionID)
	assert.Equal(t, domain.StatusCompleted, resp.Status)
	assert.Equal(t, "1m30s", resp.Duration)
	assert.NotNil(t, resp.AuditLog)
}

func TestGetExecution_Errors(t *testing.T) {
	t.Run("invalid id", func(t *testing.T) {
		rr := doRequest(t, newTestServer(&mockEngine{}), http.MethodGet, "/api/v1/executions/not-a-uuid", "")
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("not found", func(t *testing.T) {
		rr := doRequest(t, newTestServer(&mockEngine{}), http.MethodGet, "/api/v1/executions/"+testExecutionID, "")
		require.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "not_found", decodeProblem(t, rr).Type)
	})
}

func TestGetPending(t *testing.T) {
	t.Run("suspended", func(t *testing.T) {
		engine := &mockEngine{
			loadPendingFn: func(context.Context, string) (*domain.SuspensionRecord, error) {
				return &domain.SuspensionRecord{GateID: "artifact-review", Reason: "awaiting approval"}, nil
			},
		}
		rr := doRequest(t, newTestServer(engine), http.MethodGet, "/api/v1/executions/"+testExecutionID+"/pending", "")

		require.Equal(t, http.StatusOK, rr.Code)
		var rec domain.SuspensionRecord
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
		assert.Equal(t, "artifact-review", rec.GateID)
	})

	t.Run("not suspended", func(t *testing.T) {
		rr := doRequest(t, newTestServer(&mockEngine{}), http.MethodGet, "/api/v1/executions/"+testExecutionID+"/pending", "")
		require.Equal(t, http.StatusNoContent, rr.Code)
		assert.Empty(t, rr.Body.String())
	})
}

func TestSubmitDecision(t *testing.T) {
	var gotID string
	var gotDecision domain.Decision
	var gotCtxExecution string
	engine := &mockEngine{
		resumeFn: func(ctx context.Context, id string, d domain.Decision) (*workflow.ExecutionResult, error) {
			gotID, gotDecision = id, d
			gotCtxExecution = observability.ExecutionIDFromContext(ctx)
			return &workflow.ExecutionResult{ExecutionID: id, Status: domain.StatusSuspended, GateID: "artifact-review"}, nil
		},
	}

	rr := doRequest(t, newTestServer(engine), http.MethodPost, "/api/v1/executions/"+testExecutionID+"/decisions",
		`{"gate_id": "concept-review", "approved": true, "comments": "ship it", "decided_by": "editor"}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, testExecutionID, gotID)
	assert.Equal(t, testExecutionID, gotCtxExecution)
	assert.Equal(t, domain.Decision{GateID: "concept-review", Approved: true, Comments: "ship it", DecidedBy: "editor"}, gotDecision)
}

func TestSubmitDecision_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantType string
	}{
		{name: "unknown execution", err: domain.NewNotFoundError("execution", testExecutionID), wantCode: http.StatusNotFound, wantType: "not_found"},
		{name: "not suspended", err: domain.NewNotSuspendedError(testExecutionID, domain.StatusCompleted), wantCode: http.StatusConflict, wantType: "not_suspended"},
		{name: "gate mismatch", err: domain.NewGateMismatchError(testExecutionID, "artifact-review", "concept-review"), wantCode: http.StatusConflict, wantType: "gate_mismatch"},
		{name: "invalid state", err: domain.NewInvalidStateError(testExecutionID, domain.StatusRejected, "resume"), wantCode: http.StatusConflict, wantType: "conflict"},
		{name: "invalid input", err: domain.NewValidationError("gate_id", "required"), wantCode: http.StatusBadRequest, wantType: "validation_error"},
		{name: "unclassified", err: context.Canceled, wantCode: http.StatusInternalServerError, wantType: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mockEngine{
				resumeFn: func(context.Context, string, domain.Decision) (*workflow.ExecutionResult, error) {
					return &workflow.ExecutionResult{ExecutionID: testExecutionID}, tt.err
				},
			}
			rr := doRequest(t, newTestServer(engine), http.MethodPost, "/api/v1/executions/"+testExecutionID+"/decisions",
				`{"gate_id": "concept-review", "approved": false}`)

			require.Equal(t, tt.wantCode, rr.Code)
			p := decodeProblem(t, rr)
			assert.Equal(t, tt.wantType, p.Type)
			assert.Equal(t, tt.wantCode, p.Status)
			assert.Nil(t, p.Result)
		})
	}
}

func TestSubmitDecision_RequiresGateID(t *testing.T) {
	rr := doRequest(t, newTestServer(&mockEngine{}), http.MethodPost, "/api/v1/executions/"+testExecutionID+"/decisions", `{"approved": true}`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeProblem(t, rr).Detail, "GateID")
}

func TestHealthAndReadiness(t *testing.T) {
	rr := doRequest(t, newTestServer(&mockEngine{}), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, newTestServer(&mockEngine{}), http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ready"`)

	down := &mockEngine{pingFn: func(context.Context) error {
		return domain.NewStoreUnavailableError("ping", context.DeadlineExceeded)
	}}
	rr = doRequest(t, newTestServer(down), http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "not_ready")
}
