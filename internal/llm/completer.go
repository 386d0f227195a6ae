// Package llm provides the language-model collaborators of the blog composer.
//
// Providers (OpenAI, Anthropic) implement Completer: a single chat completion
// returning raw text. Composer builds the prompts for each generation stage,
// sends them through a Completer with rate limiting and retries, and parses
// the JSON answers into domain types.
//
// Example usage:
//
//	completer, err := llm.NewCompleter(factoryCfg)
//	composer := llm.NewComposer(completer, llm.ComposerConfig{MaxRetries: 3}, metrics, logger)
//	concepts, err := composer.Summarize(ctx, metadata)
package llm

import (
	"context"
	"errors"
)

// errMalformedResponse marks completions that could not be parsed.
var errMalformedResponse = errors.New("malformed LLM response")

// CompletionRequest is one prompt sent to a provider.
type CompletionRequest struct {
	// System holds the role and format instructions.
	System string
	// User holds the task input.
	User string
	// Model overrides the provider's default model when set.
	Model string
	// MaxTokens caps the completion length. Zero uses the provider default.
	MaxTokens int
	// JSON asks the provider to constrain the answer to a JSON object where supported.
	JSON bool
}

// Completion is a provider's answer.
type Completion struct {
	// Content is the raw text of the first choice.
	Content string
	// Model is the model that produced the answer.
	Model string
	// InputTokens is the number of input tokens used.
	InputTokens int
	// OutputTokens is the number of output tokens used.
	OutputTokens int
}

// Completer defines the interface for a chat completion provider.
//
// Implementations send exactly one request per call; retrying is left to the caller.
type Completer interface {
	// Complete sends req and returns the first answer.
	// The context should be used for cancellation and deadline propagation.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// Provider returns the name of the LLM provider (e.g., "openai", "anthropic").
	Provider() string

	// Model returns the default model identifier.
	Model() string
}
