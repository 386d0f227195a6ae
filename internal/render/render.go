// Package render turns a draft into the publishable HTML article.
package render

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/benbjohnson/clock"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
)

// FormatHTML is the only format produced.
const FormatHTML = "html"

//go:embed article.html.tmpl
var articleTemplate string

var errEmptyDraft = errors.New("draft has no sections")

// HTMLFormatter renders drafts as standalone HTML documents.
// All draft text is escaped by html/template.
type HTMLFormatter struct {
	tmpl  *template.Template
	clock clock.Clock
}

// NewHTMLFormatter parses the article template. A nil clock uses the wall clock.
func NewHTMLFormatter(clk clock.Clock) (*HTMLFormatter, error) {
	if clk == nil {
		clk = clock.New()
	}
	tmpl, err := template.New("article").Funcs(template.FuncMap{
		"paragraphs": paragraphs,
	}).Parse(articleTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse article template: %w", err)
	}
	return &HTMLFormatter{tmpl: tmpl, clock: clk}, nil
}

type articleView struct {
	Title     string
	Sections  []domain.DraftSection
	WordCount int
	Generator string
}

// Render produces the HTML artifact for d.
func (f *HTMLFormatter) Render(d *domain.Draft) (*domain.RenderedArtifact, error) {
	if d == nil || len(d.Sections) == 0 {
		return nil, errEmptyDraft
	}

	view := articleView{
		Title:     d.Title,
		Sections:  d.Sections,
		WordCount: d.WordCount,
		Generator: d.Model,
	}

	var buf bytes.Buffer
	if err := f.tmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render article: %w", err)
	}

	return &domain.RenderedArtifact{
		Format:     FormatHTML,
		Content:    buf.String(),
		Bytes:      buf.Len(),
		RenderedAt: f.clock.Now().UTC(),
	}, nil
}

// paragraphs splits body on blank lines.
func paragraphs(body string) []string {
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(normalized, "\n\n") {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			out = append(out, p)
		}
	}
	return out
}
