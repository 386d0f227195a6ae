package llm

import (
	"fmt"
	"strings"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
)

// maxExcerptChars bounds how much page text is sent for summarization.
const maxExcerptChars = 4000

// conceptsResponse is the JSON answer expected for BuildConceptsPrompt.
type conceptsResponse struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Topics    []string `json:"topics"`
}

// outlineResponse is the JSON answer expected for BuildOutlinePrompt.
type outlineResponse struct {
	Title    string `json:"title"`
	Sections []struct {
		Heading string   `json:"heading"`
		Points  []string `json:"points"`
	} `json:"sections"`
}

// draftResponse is the JSON answer expected for BuildDraftPrompt.
type draftResponse struct {
	Title    string `json:"title"`
	Sections []struct {
		Heading string `json:"heading"`
		Body    string `json:"body"`
	} `json:"sections"`
}

// BuildConceptsPrompt builds the system and user prompts that condense page
// metadata into the concepts a post should cover.
func BuildConceptsPrompt(md *domain.Metadata) (systemPrompt, userPrompt string) {
	var sb strings.Builder

	sb.WriteString("You are an editorial assistant who reads web pages and distils the ideas ")
	sb.WriteString("worth writing a blog post about.\n\n")
	sb.WriteString("You MUST respond with valid JSON in exactly this format:\n")
	sb.WriteString(`{"summary": "two or three sentences", "key_points": ["point"], "topics": ["topic"]}`)
	sb.WriteString("\n\n")
	sb.WriteString("Guidelines:\n")
	sb.WriteString("1. Base every point on the page; do not invent facts.\n")
	sb.WriteString("2. Give between 3 and 7 key points, each a single sentence.\n")
	sb.WriteString("3. Topics are short noun phrases suitable as tags.\n")
	systemPrompt = sb.String()

	sb.Reset()
	sb.WriteString("Summarize the concepts of the following page.\n\n")
	writeField(&sb, "URL", md.URL)
	writeField(&sb, "Title", md.Title)
	writeField(&sb, "Site", md.SiteName)
	writeField(&sb, "Author", md.Author)
	writeField(&sb, "Description", md.Description)
	if len(md.Keywords) > 0 {
		writeField(&sb, "Keywords", strings.Join(md.Keywords, ", "))
	}
	if len(md.Headings) > 0 {
		sb.WriteString("Headings:\n")
		for _, h := range md.Headings {
			sb.WriteString("- ")
			sb.WriteString(h)
			sb.WriteString("\n")
		}
	}
	if md.Excerpt != "" {
		sb.WriteString("\nExcerpt:\n---\n")
		sb.WriteString(truncate(md.Excerpt, maxExcerptChars))
		sb.WriteString("\n---")
	}
	userPrompt = sb.String()

	return systemPrompt, userPrompt
}

// BuildOutlinePrompt builds the prompts that turn approved concepts into a post outline.
func BuildOutlinePrompt(c *domain.Concepts) (systemPrompt, userPrompt string) {
	var sb strings.Builder

	sb.WriteString("You are a blog editor who structures posts for clarity and flow.\n\n")
	sb.WriteString("You MUST respond with valid JSON in exactly this format:\n")
	sb.WriteString(`{"title": "post title", "sections": [{"heading": "section heading", "points": ["what the section covers"]}]}`)
	sb.WriteString("\n\n")
	sb.WriteString("Guidelines:\n")
	sb.WriteString("1. Open with an introduction and close with a conclusion.\n")
	sb.WriteString("2. Use between 3 and 6 sections.\n")
	sb.WriteString("3. Every key point must be covered by some section.\n")
	systemPrompt = sb.String()

	sb.Reset()
	sb.WriteString("Create an outline for a blog post from these approved concepts.\n\n")
	writeField(&sb, "Summary", c.Summary)
	writeList(&sb, "Key points", c.KeyPoints)
	if len(c.Topics) > 0 {
		writeField(&sb, "Topics", strings.Join(c.Topics, ", "))
	}
	userPrompt = sb.String()

	return systemPrompt, userPrompt
}

// BuildDraftPrompt builds the prompts that expand an outline into a full draft.
func BuildDraftPrompt(o *domain.Outline) (systemPrompt, userPrompt string) {
	var sb strings.Builder

	sb.WriteString("You are a technical blogger who writes clear, engaging prose.\n\n")
	sb.WriteString("You MUST respond with valid JSON in exactly this format:\n")
	sb.WriteString(`{"title": "post title", "sections": [{"heading": "section heading", "body": "paragraphs of plain text"}]}`)
	sb.WriteString("\n\n")
	sb.WriteString("Guidelines:\n")
	sb.WriteString("1. Keep the outline's headings and order.\n")
	sb.WriteString("2. Write plain text; separate paragraphs with a blank line and do not use markup.\n")
	sb.WriteString("3. Aim for 600 to 1200 words in total.\n")
	systemPrompt = sb.String()

	sb.Reset()
	sb.WriteString("Write the blog post for this outline.\n\n")
	writeField(&sb, "Title", o.Title)
	for i, s := range o.Sections {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, s.Heading))
		for _, p := range s.Points {
			sb.WriteString("   - ")
			sb.WriteString(p)
			sb.WriteString("\n")
		}
	}
	userPrompt = sb.String()

	return systemPrompt, userPrompt
}

func writeField(sb *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	sb.WriteString(name)
	sb.WriteString(": ")
	sb.WriteString(value)
	sb.WriteString("\n")
}

func writeList(sb *strings.Builder, name string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(name)
	sb.WriteString(":\n")
	for _, it := range items {
		sb.WriteString("- ")
		sb.WriteString(it)
		sb.WriteString("\n")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
