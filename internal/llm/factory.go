package llm

import (
	"fmt"
	"strings"
)

// NewGenerator creates a Generator based on configuration.
func NewGenerator(config Config) (Generator, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "static":
		return NewStaticProvider(), nil

	case "":
		// No provider configured - return nil (generation disabled)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown generator provider: %s (supported: openai, ollama, static)", config.Provider)
	}
}
