package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestExecution() *Execution {
	return NewExecution("exec-1", ExecutionInput{SourceURL: "https://example.com"}, testNow)
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusRunning, false},
		{StatusSuspended, false},
		{StatusCompleted, true},
		{StatusRejected, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.True(t, tt.status.IsValid())
		})
	}

	assert.False(t, Status("paused").IsValid())
}

func TestNewExecution(t *testing.T) {
	exec := newTestExecution()

	assert.Equal(t, StatusRunning, exec.Status)
	assert.True(t, exec.Context.IsEmpty())
	assert.Nil(t, exec.Suspension)
	require.Len(t, exec.Metrics.AuditLog, 1)
	assert.Equal(t, AuditWorkflowCreated, exec.Metrics.AuditLog[0].Event)
	assert.Equal(t, testNow, exec.Metrics.StartedAt)
	assert.NoError(t, exec.Validate())
}

func TestExecution_Apply(t *testing.T) {
	t.Run("merges context keys without replacing existing ones", func(t *testing.T) {
		exec := newTestExecution()
		exec.Context.Metadata = &Metadata{URL: "https://example.com", Title: "original"}

		patch := ExecutionPatch{Context: StageResults{
			Metadata: &Metadata{Title: "replacement"},
			Concepts: &Concepts{Summary: "s"},
		}}
		require.NoError(t, exec.Apply(patch, testNow))

		assert.Equal(t, "original", exec.Context.Metadata.Title)
		require.NotNil(t, exec.Context.Concepts)
		assert.Equal(t, []string{KeyMetadata, KeyConcepts}, exec.Context.Keys())
	})

	t.Run("keeps an existing key's zero fields untouched", func(t *testing.T) {
		exec := newTestExecution()
		exec.Context.Concepts = &Concepts{Summary: "first"}

		patch := ExecutionPatch{Context: StageResults{Concepts: &Concepts{Summary: "second", KeyPoints: []string{"a"}}}}
		require.NoError(t, exec.Apply(patch, testNow))

		assert.Equal(t, "first", exec.Context.Concepts.Summary)
		assert.Empty(t, exec.Context.Concepts.KeyPoints)
	})

	t.Run("appends audit entries", func(t *testing.T) {
		exec := newTestExecution()
		entry := NewAuditLogEntry(testNow, AuditStepStarted, StepExtractMetadata, nil)

		require.NoError(t, exec.Apply(ExecutionPatch{}.WithAudit(entry), testNow))
		require.NoError(t, exec.Apply(ExecutionPatch{}.WithAudit(entry), testNow))

		assert.Len(t, exec.Metrics.AuditLog, 3)
	})

	t.Run("sets status and suspension together", func(t *testing.T) {
		exec := newTestExecution()
		rec := &SuspensionRecord{SuspendedAt: testNow, GateID: GateConceptReview, Reason: "review"}

		require.NoError(t, exec.Apply(ExecutionPatch{Suspension: rec}.WithStatus(StatusSuspended), testNow))
		assert.Equal(t, StatusSuspended, exec.Status)
		require.NotNil(t, exec.Suspension)
		assert.Equal(t, GateConceptReview, exec.Suspension.GateID)

		require.NoError(t, exec.Apply(ExecutionPatch{ClearSuspension: true}.WithStatus(StatusRunning), testNow))
		assert.Equal(t, StatusRunning, exec.Status)
		assert.Nil(t, exec.Suspension)
	})

	t.Run("rejects suspension without suspended status", func(t *testing.T) {
		exec := newTestExecution()
		rec := &SuspensionRecord{SuspendedAt: testNow, GateID: GateConceptReview}

		err := exec.Apply(ExecutionPatch{Suspension: rec}, testNow)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("rejects suspended status without a record", func(t *testing.T) {
		exec := newTestExecution()

		err := exec.Apply(ExecutionPatch{}.WithStatus(StatusSuspended), testNow)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("terminal executions are immutable", func(t *testing.T) {
		for _, status := range []Status{StatusCompleted, StatusRejected, StatusFailed} {
			exec := newTestExecution()
			exec.Status = status

			err := exec.Apply(ExecutionPatch{Context: StageResults{Draft: &Draft{Title: "x"}}}, testNow)

			var stateErr *InvalidStateError
			require.ErrorAs(t, err, &stateErr, "status %s", status)
			assert.Equal(t, status, stateErr.Status)
			assert.Nil(t, exec.Context.Draft)
		}
	})

	t.Run("precondition failure aborts before merging", func(t *testing.T) {
		exec := newTestExecution()
		sentinel := errors.New("lost race")

		err := exec.Apply(ExecutionPatch{
			Context:      StageResults{Outline: &Outline{Title: "x"}},
			Precondition: func(*Execution) error { return sentinel },
		}, testNow)

		assert.ErrorIs(t, err, sentinel)
		assert.Nil(t, exec.Context.Outline)
	})

	t.Run("stamps completion time and updated at", func(t *testing.T) {
		exec := newTestExecution()
		later := testNow.Add(time.Minute)

		require.NoError(t, exec.Apply(ExecutionPatch{CompletedAt: &later}.WithStatus(StatusCompleted), later))
		require.NotNil(t, exec.Metrics.CompletedAt)
		assert.Equal(t, time.Minute, exec.Duration())
		assert.Equal(t, later, exec.UpdatedAt)
	})
}

func TestStageResults_Summary(t *testing.T) {
	results := StageResults{
		Metadata: &Metadata{Title: "Hello", Keywords: []string{"a", "b"}},
		Draft:    &Draft{Sections: []DraftSection{{Heading: "h", Body: "b"}}, WordCount: 120},
	}

	summary := results.Summary()

	assert.Equal(t, 2, summary["keyword_count"])
	assert.Equal(t, 120, summary["word_count"])
	assert.Equal(t, []string{KeyMetadata, KeyDraft}, summary["keys"])
	assert.NotContains(t, summary, "content")
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"not found", NewNotFoundError("execution", "x"), KindClient},
		{"not suspended", NewNotSuspendedError("x", StatusRunning), KindClient},
		{"gate mismatch", NewGateMismatchError("x", GateConceptReview, GateArtifactReview), KindClient},
		{"invalid state", NewInvalidStateError("x", StatusFailed, "resume"), KindClient},
		{"validation", NewValidationError("source_url", "required"), KindClient},
		{"step failure", NewStepError(StepGenerateDraft, errors.New("boom")), KindPipeline},
		{"workflow failure", NewWorkflowError(errors.New("bad payload")), KindPipeline},
		{"store unavailable", NewStoreUnavailableError("get", errors.New("dial tcp")), KindInfrastructure},
		{"wrapped", fmt.Errorf("resume: %w", NewGateMismatchError("x", "a", "b")), KindClient},
		{"other", errors.New("unclassified"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestStepError_UnwrapsCause(t *testing.T) {
	cause := errors.New("upstream 500")
	err := fmt.Errorf("run: %w", NewStepError(StepSummarizeConcepts, cause))

	assert.ErrorIs(t, err, ErrStepFailed)
	assert.ErrorIs(t, err, cause)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepSummarizeConcepts, stepErr.StepID)
}
