// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for completion providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific error handling

package llm

import (
	"context"
)

// Provider defines the abstract interface for completion providers.
// Tool use in this system is directive-based (embedded in generated text),
// so the interface only covers plain and streaming chat completions.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Chat sends a chat completion request over the full transcript.
	Chat(ctx context.Context, messages []ChatMessage) (Response, error)

	// StreamChat streams a chat completion, sending text fragments to the
	// provided channel. Returns token usage (reported at least once per
	// request when the provider supports it).
	StreamChat(ctx context.Context, messages []ChatMessage, chunks chan<- string) (*TokenUsage, error)
}
