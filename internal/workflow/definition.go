package workflow

import (
	"context"
	"errors"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
)

// stage is one step of the pipeline. run receives the immutable input of the
// execution alongside the accumulated results.
type stage struct {
	id  string
	run func(ctx context.Context, input domain.ExecutionInput, current domain.StageResults) (domain.StageResults, error)
}

// bind closes the stage over input, producing the StepFunc the runner calls.
func (s stage) bind(input domain.ExecutionInput) StepFunc {
	return func(ctx context.Context, current domain.StageResults) (domain.StageResults, error) {
		return s.run(ctx, input, current)
	}
}

// gate is the suspension point that ends a block.
type gate struct {
	id      string
	reason  string
	payload func(current domain.StageResults) (map[string]any, error)
}

// block is a run of stages executed without interruption, ending at a gate
// or, when gate is nil, at completion.
type block struct {
	steps []stage
	gate  *gate
}

var (
	errMissingMetadata = errors.New("metadata has not been extracted")
	errMissingConcepts = errors.New("concepts have not been summarized")
	errMissingOutline  = errors.New("outline has not been generated")
	errMissingDraft    = errors.New("draft has not been generated")
	errMissingRendered = errors.New("artifact has not been rendered")
	errEmptyResult     = errors.New("collaborator returned no result")
)

// definition returns the fixed pipeline: two gates, concept-review then
// artifact-review, followed by completion.
func (e *Engine) definition() []block {
	return []block{
		{
			steps: []stage{
				{id: domain.StepExtractMetadata, run: e.extractMetadata},
				{id: domain.StepSummarizeConcepts, run: e.summarizeConcepts},
			},
			gate: &gate{
				id:      domain.GateConceptReview,
				reason:  "awaiting approval of extracted concepts",
				payload: conceptReviewPayload,
			},
		},
		{
			steps: []stage{
				{id: domain.StepGenerateOutline, run: e.generateOutline},
				{id: domain.StepGenerateDraft, run: e.generateDraft},
				{id: domain.StepRenderArtifact, run: e.renderArtifact},
			},
			gate: &gate{
				id:      domain.GateArtifactReview,
				reason:  "awaiting approval of rendered artifact",
				payload: artifactReviewPayload,
			},
		},
		{},
	}
}

// blockAfter returns the index of the block that follows gateID, or -1.
func (e *Engine) blockAfter(gateID string) int {
	for i, b := range e.blocks {
		if b.gate != nil && b.gate.id == gateID && i+1 < len(e.blocks) {
			return i + 1
		}
	}
	return -1
}

func (e *Engine) extractMetadata(ctx context.Context, input domain.ExecutionInput, _ domain.StageResults) (domain.StageResults, error) {
	md, err := e.collab.Extractor.Extract(ctx, input.SourceURL)
	if err != nil {
		return domain.StageResults{}, err
	}
	if md == nil {
		return domain.StageResults{}, errEmptyResult
	}
	return domain.StageResults{Metadata: md}, nil
}

func (e *Engine) summarizeConcepts(ctx context.Context, _ domain.ExecutionInput, cur domain.StageResults) (domain.StageResults, error) {
	if cur.Metadata == nil {
		return domain.StageResults{}, errMissingMetadata
	}
	c, err := e.collab.Summarizer.Summarize(ctx, cur.Metadata)
	if err != nil {
		return domain.StageResults{}, err
	}
	if c == nil {
		return domain.StageResults{}, errEmptyResult
	}
	return domain.StageResults{Concepts: c}, nil
}

func (e *Engine) generateOutline(ctx context.Context, _ domain.ExecutionInput, cur domain.StageResults) (domain.StageResults, error) {
	if cur.Concepts == nil {
		return domain.StageResults{}, errMissingConcepts
	}
	o, err := e.collab.Outliner.GenerateOutline(ctx, cur.Concepts)
	if err != nil {
		return domain.StageResults{}, err
	}
	if o == nil {
		return domain.StageResults{}, errEmptyResult
	}
	return domain.StageResults{Outline: o}, nil
}

func (e *Engine) generateDraft(ctx context.Context, _ domain.ExecutionInput, cur domain.StageResults) (domain.StageResults, error) {
	if cur.Outline == nil {
		return domain.StageResults{}, errMissingOutline
	}
	d, err := e.collab.Drafter.GenerateDraft(ctx, cur.Outline)
	if err != nil {
		return domain.StageResults{}, err
	}
	if d == nil {
		return domain.StageResults{}, errEmptyResult
	}
	return domain.StageResults{Draft: d}, nil
}

func (e *Engine) renderArtifact(_ context.Context, _ domain.ExecutionInput, cur domain.StageResults) (domain.StageResults, error) {
	if cur.Draft == nil {
		return domain.StageResults{}, errMissingDraft
	}
	r, err := e.collab.Formatter.Render(cur.Draft)
	if err != nil {
		return domain.StageResults{}, err
	}
	if r == nil {
		return domain.StageResults{}, errEmptyResult
	}
	return domain.StageResults{Rendered: r}, nil
}

// conceptReviewPayload shows the approver the summarized concepts.
func conceptReviewPayload(cur domain.StageResults) (map[string]any, error) {
	if cur.Concepts == nil {
		return nil, errMissingConcepts
	}
	p := domain.ConceptReviewPayload{
		Summary:   cur.Concepts.Summary,
		KeyPoints: cur.Concepts.KeyPoints,
		Topics:    cur.Concepts.Topics,
	}
	if md := cur.Metadata; md != nil {
		p.Title = md.Title
		p.SourceURL = md.URL
	}
	return domain.PayloadMap(p)
}

// artifactReviewPayload shows the approver the rendered artifact and draft statistics.
func artifactReviewPayload(cur domain.StageResults) (map[string]any, error) {
	if cur.Rendered == nil {
		return nil, errMissingRendered
	}
	p := domain.ArtifactReviewPayload{
		Format:  cur.Rendered.Format,
		Content: cur.Rendered.Content,
		Bytes:   cur.Rendered.Bytes,
	}
	if d := cur.Draft; d != nil {
		p.Title = d.Title
		p.WordCount = d.WordCount
		p.SectionCount = len(d.Sections)
	}
	return domain.PayloadMap(p)
}
