package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Started by glog's init through the badger dependency of repository.
		goleak.IgnoreTopFunction("github.com/golang/glog.(*fileSink).flushDaemon"),
	)
}

const testSourceURL = "https://example.com"

// fakePipeline implements every collaborator with canned results.
// Setting one of the err fields makes that stage fail.
type fakePipeline struct {
	mu sync.Mutex

	extractErr   error
	summarizeErr error
	outlineErr   error
	draftErr     error
	renderErr    error

	// outlineGate, when non-nil, blocks GenerateOutline until closed.
	outlineGate chan struct{}

	models []string
	calls  map[string]int
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{calls: make(map[string]int)}
}

func (f *fakePipeline) record(step string, ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[step]++
	f.models = append(f.models, domain.ModelFromContext(ctx))
}

func (f *fakePipeline) callCount(step string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[step]
}

func (f *fakePipeline) Extract(ctx context.Context, url string) (*domain.Metadata, error) {
	f.record(domain.StepExtractMetadata, ctx)
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return &domain.Metadata{
		URL:      url,
		Title:    "Example Domain",
		Keywords: []string{"example", "domain"},
		Headings: []string{"Example Domain"},
		Excerpt:  "This domain is for use in illustrative examples in documents.",
	}, nil
}

func (f *fakePipeline) Summarize(ctx context.Context, md *domain.Metadata) (*domain.Concepts, error) {
	f.record(domain.StepSummarizeConcepts, ctx)
	if f.summarizeErr != nil {
		return nil, f.summarizeErr
	}
	return &domain.Concepts{
		Summary:   "A page reserved for documentation examples: " + md.Title,
		KeyPoints: []string{"reserved domain", "illustrative use"},
		Topics:    []string{"internet", "standards"},
		Model:     "test-model",
	}, nil
}

func (f *fakePipeline) GenerateOutline(ctx context.Context, c *domain.Concepts) (*domain.Outline, error) {
	f.record(domain.StepGenerateOutline, ctx)
	if f.outlineGate != nil {
		<-f.outlineGate
	}
	if f.outlineErr != nil {
		return nil, f.outlineErr
	}
	sections := make([]domain.OutlineSection, 0, len(c.KeyPoints))
	for _, kp := range c.KeyPoints {
		sections = append(sections, domain.OutlineSection{Heading: kp, Points: []string{"why it matters"}})
	}
	return &domain.Outline{Title: "Why example.com exists", Sections: sections, Model: "test-model"}, nil
}

func (f *fakePipeline) GenerateDraft(ctx context.Context, o *domain.Outline) (*domain.Draft, error) {
	f.record(domain.StepGenerateDraft, ctx)
	if f.draftErr != nil {
		return nil, f.draftErr
	}
	d := &domain.Draft{Title: o.Title, Model: "test-model"}
	for _, s := range o.Sections {
		body := fmt.Sprintf("%s: %s.", s.Heading, strings.Join(s.Points, ", "))
		d.Sections = append(d.Sections, domain.DraftSection{Heading: s.Heading, Body: body})
		d.WordCount += len(strings.Fields(body))
	}
	return d, nil
}

func (f *fakePipeline) Render(d *domain.Draft) (*domain.RenderedArtifact, error) {
	f.mu.Lock()
	f.calls[domain.StepRenderArtifact]++
	f.mu.Unlock()
	if f.renderErr != nil {
		return nil, f.renderErr
	}
	content := "<article><h1>" + d.Title + "</h1></article>"
	return &domain.RenderedArtifact{Format: "html", Content: content, Bytes: len(content)}, nil
}

func (f *fakePipeline) collaborators() Collaborators {
	return Collaborators{Extractor: f, Summarizer: f, Outliner: f, Drafter: f, Formatter: f}
}

// recordingNotifier captures lifecycle events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev domain.LifecycleEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.EventType)
	}
	return out
}

// faultyStore wraps a repository and fails selected operations.
type faultyStore struct {
	repository.ExecutionRepository

	createErr error
	// failUpdate returns a non-nil error to make Update fail for patch.
	failUpdate func(patch domain.ExecutionPatch) error
}

var errStoreDown = errors.New("connection refused")

func (s *faultyStore) Create(ctx context.Context, input domain.ExecutionInput) (*domain.Execution, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.ExecutionRepository.Create(ctx, input)
}

func (s *faultyStore) Update(ctx context.Context, id string, patch domain.ExecutionPatch) (*domain.Execution, error) {
	if s.failUpdate != nil {
		if err := s.failUpdate(patch); err != nil {
			return nil, err
		}
	}
	return s.ExecutionRepository.Update(ctx, id, patch)
}

// patchSetsStatus reports whether patch transitions to status.
func patchSetsStatus(patch domain.ExecutionPatch, status domain.Status) bool {
	return patch.Status != nil && *patch.Status == status
}

// patchAppends reports whether patch appends an audit entry of kind event.
func patchAppends(patch domain.ExecutionPatch, event domain.AuditEvent) bool {
	for _, e := range patch.AuditLog {
		if e.Event == event {
			return true
		}
	}
	return false
}

func newTestEngine(t *testing.T, store repository.ExecutionRepository, pipeline *fakePipeline, opts ...Option) *Engine {
	t.Helper()
	engine, err := NewEngine(store, pipeline.collaborators(), opts...)
	require.NoError(t, err)
	return engine
}

func auditEvents(exec *domain.Execution) []domain.AuditEvent {
	out := make([]domain.AuditEvent, 0, len(exec.Metrics.AuditLog))
	for _, e := range exec.Metrics.AuditLog {
		out = append(out, e.Event)
	}
	return out
}

func findAudit(exec *domain.Execution, event domain.AuditEvent) *domain.AuditLogEntry {
	for i := range exec.Metrics.AuditLog {
		if exec.Metrics.AuditLog[i].Event == event {
			return &exec.Metrics.AuditLog[i]
		}
	}
	return nil
}
