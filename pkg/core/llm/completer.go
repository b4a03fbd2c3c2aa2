// Package llm provides the chat completion engine used to generate interview
// replies. Providers are selected by configuration through NewCompleter.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Turn roles as stored in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single utterance in the interview history.
type Turn struct {
	Role string
	Text string
}

// Completer produces one assistant reply for the given conversation state.
// prior holds the trimmed history before the current user utterance; userText
// is the new utterance (or a synthetic instruction for the opening turn).
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, prior []Turn, userText string) (string, error)
}

// Options configures completion providers.
type Options struct {
	Provider string // "openrouter" or "gemini"
	Model    string

	OpenRouterAPIKey  string
	OpenRouterBaseURL string

	GeminiAPIKey string
}

// NewCompleter builds the configured completion provider.
func NewCompleter(ctx context.Context, opts Options) (Completer, error) {
	switch strings.ToLower(opts.Provider) {
	case "openrouter":
		if opts.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("llm: provider %q requires an API key", opts.Provider)
		}
		return NewOpenRouter(opts.OpenRouterAPIKey, opts.OpenRouterBaseURL, opts.Model), nil
	case "gemini":
		if opts.GeminiAPIKey == "" {
			return nil, fmt.Errorf("llm: provider %q requires an API key", opts.Provider)
		}
		return NewGemini(ctx, opts.GeminiAPIKey, opts.Model)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", opts.Provider)
	}
}
