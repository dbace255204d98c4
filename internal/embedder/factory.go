package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted by NewFromEnv.
const (
	EnvProvider     = "DOCDEX_EMBEDDING_PROVIDER"
	EnvOllamaURL    = "DOCDEX_OLLAMA_URL"
	EnvModel        = "DOCDEX_EMBEDDING_MODEL"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Config holds embedder configuration.
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	CacheSize int
}

// New creates an embedder with explicit configuration.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// NewFromEnv creates an embedder based on environment variables.
// Priority:
//  1. DOCDEX_EMBEDDING_PROVIDER (ollama, openai, local)
//  2. OPENAI_API_KEY present -> openai
//  3. Default to ollama (local server, no key required)
func NewFromEnv() (Embedder, error) {
	cache := NewCache(10000)
	model := os.Getenv(EnvModel)

	if provider := strings.ToLower(os.Getenv(EnvProvider)); provider != "" {
		switch provider {
		case ProviderOllama:
			return NewOllamaProvider(os.Getenv(EnvOllamaURL), model, cache)
		case ProviderOpenAI:
			return NewOpenAIProvider(os.Getenv(EnvOpenAIAPIKey), model, cache)
		case ProviderLocal:
			return NewLocalProvider(cache)
		default:
			return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, provider)
		}
	}

	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return NewOpenAIProvider(os.Getenv(EnvOpenAIAPIKey), model, cache)
	}

	return NewOllamaProvider(os.Getenv(EnvOllamaURL), model, cache)
}
