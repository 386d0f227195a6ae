package extractor

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
)

const (
	maxHeadings      = 30
	maxExcerptRunes  = 2000
	minParagraphRune = 40
)

// publishedLayouts are the date formats accepted for article:published_time.
var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseMetadata extracts page metadata from an HTML document.
// Open Graph values win over their plain meta equivalents.
func ParseMetadata(pageURL string, body []byte) (*domain.Metadata, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	p := &pageParser{meta: make(map[string]string)}
	p.walk(doc)

	md := &domain.Metadata{
		URL:         pageURL,
		Title:       firstNonEmpty(p.meta["og:title"], p.title),
		Description: firstNonEmpty(p.meta["og:description"], p.meta["description"]),
		Author:      firstNonEmpty(p.meta["author"], p.meta["article:author"]),
		SiteName:    p.meta["og:site_name"],
		Keywords:    splitKeywords(p.meta["keywords"]),
		Headings:    p.headings,
		Excerpt:     truncateRunes(strings.Join(p.paragraphs, "\n\n"), maxExcerptRunes),
	}
	if ts := p.meta["article:published_time"]; ts != "" {
		if t, ok := parsePublished(ts); ok {
			md.PublishedAt = &t
		}
	}
	if md.Title == "" && len(md.Headings) > 0 {
		md.Title = md.Headings[0]
	}
	return md, nil
}

type pageParser struct {
	title      string
	meta       map[string]string
	headings   []string
	paragraphs []string
	excerptLen int
}

func (p *pageParser) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Nav, atom.Footer:
			return
		case atom.Title:
			if p.title == "" {
				p.title = collapse(textOf(n))
			}
			return
		case atom.Meta:
			p.addMeta(n)
			return
		case atom.H1, atom.H2, atom.H3:
			if h := collapse(textOf(n)); h != "" && len(p.headings) < maxHeadings {
				p.headings = append(p.headings, h)
			}
			return
		case atom.P:
			p.addParagraph(collapse(textOf(n)))
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c)
	}
}

func (p *pageParser) addMeta(n *html.Node) {
	var key, content string
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "name", "property":
			if key == "" {
				key = strings.ToLower(strings.TrimSpace(a.Val))
			}
		case "content":
			content = strings.TrimSpace(a.Val)
		}
	}
	if key == "" || content == "" {
		return
	}
	if _, seen := p.meta[key]; !seen {
		p.meta[key] = content
	}
}

func (p *pageParser) addParagraph(text string) {
	if p.excerptLen >= maxExcerptRunes {
		return
	}
	n := len([]rune(text))
	if n < minParagraphRune {
		return
	}
	p.paragraphs = append(p.paragraphs, text)
	p.excerptLen += n
}

// textOf concatenates the text nodes under n.
func textOf(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func splitKeywords(s string) []string {
	if s == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, k := range strings.Split(s, ",") {
		k = strings.TrimSpace(k)
		lk := strings.ToLower(k)
		if k == "" {
			continue
		}
		if _, dup := seen[lk]; dup {
			continue
		}
		seen[lk] = struct{}{}
		out = append(out, k)
	}
	return out
}

func parsePublished(s string) (time.Time, bool) {
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = collapse(v); v != "" {
			return v
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
