// Package llm wraps streaming completion providers behind a small
// interface. The ask coordinator consumes the raw SSE stream; providers
// only open it.
package llm

import (
	"context"
	"fmt"
	"io"

	"orbit/internal/config"
)

// ChatMessage is one turn of a multimodal chat request. ImageB64, when
// set, carries a base64-encoded JPEG attached to the turn.
type ChatMessage struct {
	Role     string
	Content  string
	ImageB64 string
}

// StreamingProvider opens a cancellable completion stream. The returned
// body yields newline-delimited chunks, optionally prefixed "data: ",
// carrying JSON with incremental text deltas and terminated by a [DONE]
// sentinel or stream closure.
type StreamingProvider interface {
	StreamChat(ctx context.Context, messages []ChatMessage) (io.ReadCloser, error)
}

// Completer runs one-shot (non-streamed) completions. The enhancement
// pipeline's secondary-model calls go through this.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Provider bundles the two capabilities a configured backend offers.
type Provider interface {
	StreamingProvider
	Completer
}

// NewProvider constructs the provider named by cfg.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIClient(cfg), nil
	case "gemini":
		return NewGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
