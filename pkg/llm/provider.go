package llm

import "context"

// Provider defines the interface for language model backends.
// Implementations handle protocol-specific details such as request
// formatting, authentication, and response parsing. A Provider must support
// tool binding: given a non-empty tools slice it may return tool calls
// instead of, or alongside, text.
type Provider interface {
	Complete(ctx context.Context, messages []Message, tools []Tool) (*Response, error)
}

// Config holds common configuration for LLM providers.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}
