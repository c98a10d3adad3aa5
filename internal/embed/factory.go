package embed

import (
	"fmt"
	"strings"

	"github.com/mvp-joe/greppy/internal/config"
)

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg config.EmbeddingConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "ollama", "":
		return NewOllamaProvider(cfg.Endpoint, cfg.Model, cfg.Dimensions), nil
	case "openai":
		return NewOpenAIProvider(cfg.Endpoint, cfg.APIKey, cfg.Model, cfg.Dimensions), nil
	case "hash":
		return NewHashProvider(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (supported: %s)", cfg.Provider, strings.Join(config.Providers, ", "))
	}
}
