package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/domain"
	"github.com/the-erin-collective/ai-blog-composer-sub000/internal/observability"
)

// Operation labels used in metrics and logs.
const (
	OpSummarize = "summarize"
	OpOutline   = "outline"
	OpDraft     = "draft"
)

// ComposerConfig controls retries and throttling of completion calls.
type ComposerConfig struct {
	// MaxRetries is the number of retries after the first attempt for transient errors.
	MaxRetries int
	// RetryDelay is the initial backoff interval.
	RetryDelay time.Duration
	// RateLimitRPS caps completion requests per second. Zero disables limiting.
	RateLimitRPS float64
	// Burst is the limiter burst size.
	Burst int
	// MaxTokens caps each completion. Zero uses the provider default.
	MaxTokens int
}

// Composer implements the concept, outline and draft stages on top of a Completer.
type Composer struct {
	completer Completer
	cfg       ComposerConfig
	limiter   *rate.Limiter
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// NewComposer creates a Composer. metrics may be nil.
func NewComposer(completer Completer, cfg ComposerConfig, metrics *observability.Metrics, logger zerolog.Logger) *Composer {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimitRPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return &Composer{
		completer: completer,
		cfg:       cfg,
		limiter:   limiter,
		metrics:   metrics,
		logger:    logger.With().Str("component", "llm").Str("provider", completer.Provider()).Logger(),
	}
}

// Summarize condenses page metadata into the concepts reviewed at the first gate.
func (c *Composer) Summarize(ctx context.Context, md *domain.Metadata) (*domain.Concepts, error) {
	system, user := BuildConceptsPrompt(md)

	var resp conceptsResponse
	model, err := c.completeJSON(ctx, OpSummarize, system, user, &resp)
	if err != nil {
		return nil, err
	}

	concepts := &domain.Concepts{
		Summary:   strings.TrimSpace(resp.Summary),
		KeyPoints: nonEmpty(resp.KeyPoints),
		Topics:    nonEmpty(resp.Topics),
		Model:     model,
	}
	if concepts.Summary == "" || len(concepts.KeyPoints) == 0 {
		return nil, fmt.Errorf("%s: summary or key points missing: %w", OpSummarize, errMalformedResponse)
	}
	return concepts, nil
}

// GenerateOutline plans the sections of the post.
func (c *Composer) GenerateOutline(ctx context.Context, concepts *domain.Concepts) (*domain.Outline, error) {
	system, user := BuildOutlinePrompt(concepts)

	var resp outlineResponse
	model, err := c.completeJSON(ctx, OpOutline, system, user, &resp)
	if err != nil {
		return nil, err
	}

	outline := &domain.Outline{
		Title: strings.TrimSpace(resp.Title),
		Model: model,
	}
	for _, s := range resp.Sections {
		heading := strings.TrimSpace(s.Heading)
		if heading == "" {
			continue
		}
		outline.Sections = append(outline.Sections, domain.OutlineSection{
			Heading: heading,
			Points:  nonEmpty(s.Points),
		})
	}
	if outline.Title == "" || len(outline.Sections) == 0 {
		return nil, fmt.Errorf("%s: title or sections missing: %w", OpOutline, errMalformedResponse)
	}
	return outline, nil
}

// GenerateDraft writes the post body for outline.
func (c *Composer) GenerateDraft(ctx context.Context, outline *domain.Outline) (*domain.Draft, error) {
	system, user := BuildDraftPrompt(outline)

	var resp draftResponse
	model, err := c.completeJSON(ctx, OpDraft, system, user, &resp)
	if err != nil {
		return nil, err
	}

	draft := &domain.Draft{
		Title: strings.TrimSpace(resp.Title),
		Model: model,
	}
	if draft.Title == "" {
		draft.Title = outline.Title
	}
	for _, s := range resp.Sections {
		body := strings.TrimSpace(s.Body)
		if body == "" {
			continue
		}
		draft.Sections = append(draft.Sections, domain.DraftSection{
			Heading: strings.TrimSpace(s.Heading),
			Body:    body,
		})
		draft.WordCount += len(strings.Fields(body))
	}
	if len(draft.Sections) == 0 {
		return nil, fmt.Errorf("%s: no sections with content: %w", OpDraft, errMalformedResponse)
	}
	return draft, nil
}

// completeJSON sends one prompt with retries and decodes the answer into out.
// It returns the model that produced the answer.
func (c *Composer) completeJSON(ctx context.Context, op, system, user string, out any) (string, error) {
	req := CompletionRequest{
		System:    system,
		User:      user,
		Model:     domain.ModelFromContext(ctx),
		MaxTokens: c.cfg.MaxTokens,
		JSON:      true,
	}
	model := req.Model
	if model == "" {
		model = c.completer.Model()
	}

	logger := c.logger.With().Str("operation", op).Str("model", model).Logger()
	attempt := 0

	call := func() (*Completion, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("%s: rate limiter: %w", op, err))
		}

		start := time.Now()
		completion, err := c.completer.Complete(ctx, req)
		if err != nil {
			c.metrics.RecordLLMRequestFailed(op, model, errorType(err))
			if isTransientError(err) && ctx.Err() == nil {
				logger.Warn().Err(err).Int("attempt", attempt).Msg("transient completion error, retrying")
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		c.metrics.RecordLLMRequest(op, model, time.Since(start).Seconds(), completion.InputTokens, completion.OutputTokens)
		return completion, nil
	}

	completion, err := backoff.RetryWithData(call, c.backOff(ctx))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := decodeJSON(completion.Content, out); err != nil {
		c.metrics.RecordLLMRequestFailed(op, model, errorType(err))
		logger.Debug().Str("content", truncate(completion.Content, 200)).Msg("unparseable completion")
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if completion.Model != "" {
		model = completion.Model
	}
	logger.Debug().
		Int("attempts", attempt).
		Int("input_tokens", completion.InputTokens).
		Int("output_tokens", completion.OutputTokens).
		Msg("completion succeeded")
	return model, nil
}

func (c *Composer) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryDelay
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxRetries)), ctx)
}

// decodeJSON parses content, tolerating a surrounding markdown code fence.
func decodeJSON(content string, out any) error {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return fmt.Errorf("empty completion: %w", errMalformedResponse)
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		return fmt.Errorf("%w: %v", errMalformedResponse, err)
	}
	return nil
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
