package domain

import (
	"fmt"
	"time"

	"dario.cat/mergo"
)

// Context keys, one per stage result.
const (
	KeyMetadata = "metadata"
	KeyConcepts = "concepts"
	KeyOutline  = "outline"
	KeyDraft    = "draft"
	KeyRendered = "rendered"
)

// Metadata is the structured description of the source page.
type Metadata struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Author      string     `json:"author,omitempty"`
	SiteName    string     `json:"site_name,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Keywords    []string   `json:"keywords,omitempty"`
	Headings    []string   `json:"headings,omitempty"`
	Excerpt     string     `json:"excerpt,omitempty"`
}

// Concepts is the summary an approver reviews at the concept gate.
type Concepts struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Topics    []string `json:"topics,omitempty"`
	Model     string   `json:"model,omitempty"`
}

// OutlineSection is one planned section of the post.
type OutlineSection struct {
	Heading string   `json:"heading"`
	Points  []string `json:"points,omitempty"`
}

// Outline is the planned structure of the post.
type Outline struct {
	Title    string           `json:"title"`
	Sections []OutlineSection `json:"sections"`
	Model    string           `json:"model,omitempty"`
}

// DraftSection is one written section of the post.
type DraftSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// Draft is the generated post body.
type Draft struct {
	Title     string         `json:"title"`
	Sections  []DraftSection `json:"sections"`
	WordCount int            `json:"word_count"`
	Model     string         `json:"model,omitempty"`
}

// RenderedArtifact is the final formatted output.
type RenderedArtifact struct {
	Format     string    `json:"format"`
	Content    string    `json:"content"`
	Bytes      int       `json:"bytes"`
	RenderedAt time.Time `json:"rendered_at"`
}

// StageResults accumulates the outputs of completed stages.
// A key, once set, is never replaced.
type StageResults struct {
	Metadata *Metadata         `json:"metadata,omitempty"`
	Concepts *Concepts         `json:"concepts,omitempty"`
	Outline  *Outline          `json:"outline,omitempty"`
	Draft    *Draft            `json:"draft,omitempty"`
	Rendered *RenderedArtifact `json:"rendered,omitempty"`
}

// Merge adds the keys set in other that are not yet set in r.
// Keys already present in r are left untouched.
func (r *StageResults) Merge(other StageResults) error {
	if err := mergo.Merge(r, other, mergo.WithoutDereference); err != nil {
		return fmt.Errorf("merge stage results: %w", err)
	}
	return nil
}

// Keys returns the context keys that are set, in stage order.
func (r StageResults) Keys() []string {
	keys := make([]string, 0, 5)
	if r.Metadata != nil {
		keys = append(keys, KeyMetadata)
	}
	if r.Concepts != nil {
		keys = append(keys, KeyConcepts)
	}
	if r.Outline != nil {
		keys = append(keys, KeyOutline)
	}
	if r.Draft != nil {
		keys = append(keys, KeyDraft)
	}
	if r.Rendered != nil {
		keys = append(keys, KeyRendered)
	}
	return keys
}

// IsEmpty reports whether no key is set.
func (r StageResults) IsEmpty() bool {
	return len(r.Keys()) == 0
}

// Summary returns counts and sizes describing the set keys.
// It never includes full payloads, keeping audit entries small.
func (r StageResults) Summary() map[string]any {
	s := make(map[string]any)
	if m := r.Metadata; m != nil {
		s["title_length"] = len(m.Title)
		s["keyword_count"] = len(m.Keywords)
		s["heading_count"] = len(m.Headings)
	}
	if c := r.Concepts; c != nil {
		s["key_point_count"] = len(c.KeyPoints)
		s["topic_count"] = len(c.Topics)
		s["summary_length"] = len(c.Summary)
	}
	if o := r.Outline; o != nil {
		s["section_count"] = len(o.Sections)
	}
	if d := r.Draft; d != nil {
		s["draft_section_count"] = len(d.Sections)
		s["word_count"] = d.WordCount
	}
	if a := r.Rendered; a != nil {
		s["format"] = a.Format
		s["bytes"] = a.Bytes
	}
	s["keys"] = r.Keys()
	return s
}
