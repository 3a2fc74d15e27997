package llm

import (
	"context"

	"github.com/ppiankov/truthindex/internal/model"
)

// Generator is the text-generation collaborator. Implementations may
// return malformed, truncated, or schema-noncompliant text; callers must
// attempt repair and partial recovery before declaring failure.
type Generator interface {
	// Name returns the provider name
	Name() string

	// Generate produces text for the given request. The caller bounds
	// the call with a context deadline.
	Generate(ctx context.Context, req Request) (string, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Request is one generation call.
type Request struct {
	// Prompt is the full natural-language prompt, including the schema
	// instructions rendered by the calling stage.
	Prompt string

	// System is the system-role framing for chat providers.
	System string

	// Schema is the JSON schema the response must satisfy. Providers that
	// support constrained decoding use it; others rely on the prompt.
	Schema string

	// MaxTokens limits the response length (0 = provider default).
	MaxTokens int
}

// Config holds generator provider configuration.
type Config struct {
	// Provider name: "openai", "ollama", "static", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// MaxTokens for response generation
	MaxTokens int
}

// ConfigFromModel converts model.GeneratorConfig to llm.Config.
func ConfigFromModel(cfg model.GeneratorConfig) Config {
	return Config{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		MaxTokens: cfg.MaxTokens,
	}
}
