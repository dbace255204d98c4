// Package config loads docdex configuration from an optional YAML file with
// DOCDEX_* environment overrides layered on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/docdex/docdex/internal/embedder"
)

// EnvPrefix is stripped from environment variables before merging, so
// DOCDEX_DB_PATH overrides the db_path key.
const EnvPrefix = "DOCDEX_"

// Config holds every runtime setting of the server.
type Config struct {
	DBPath string `koanf:"db_path" yaml:"db_path"`

	Embedding EmbeddingConfig `koanf:"embedding" yaml:"embedding"`
	Indexing  IndexingConfig  `koanf:"indexing" yaml:"indexing"`
	Search    SearchConfig    `koanf:"search" yaml:"search"`

	LogLevel string `koanf:"log_level" yaml:"log_level"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider  string `koanf:"provider" yaml:"provider"`
	Model     string `koanf:"model" yaml:"model"`
	OllamaURL string `koanf:"ollama_url" yaml:"ollama_url"`
	CacheSize int    `koanf:"cache_size" yaml:"cache_size"`
}

// IndexingConfig tunes the generate pipeline.
type IndexingConfig struct {
	Workers             int `koanf:"workers" yaml:"workers"`
	BatchSize           int `koanf:"batch_size" yaml:"batch_size"`
	ChunkTimeoutSeconds int `koanf:"chunk_timeout_seconds" yaml:"chunk_timeout_seconds"`
}

// SearchConfig tunes query behavior.
type SearchConfig struct {
	TopK int `koanf:"top_k" yaml:"top_k"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() *Config {
	return &Config{
		DBPath: defaultDBPath(),
		Embedding: EmbeddingConfig{
			Provider:  embedder.ProviderOllama,
			Model:     embedder.DefaultOllamaModel,
			OllamaURL: embedder.DefaultOllamaURL,
			CacheSize: 10000,
		},
		Indexing: IndexingConfig{
			Workers:             4,
			BatchSize:           10,
			ChunkTimeoutSeconds: 30,
		},
		Search: SearchConfig{
			TopK: 3,
		},
		LogLevel: "info",
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "docdex.db"
	}
	return filepath.Join(home, ".docdex", "docdex.db")
}

// Load reads configuration in priority order: defaults, then the YAML file
// at path (missing file is fine when path is empty), then DOCDEX_*
// environment variables. Nested keys use underscores in the environment:
// DOCDEX_EMBEDDING_PROVIDER sets embedding.provider.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := Default()

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		// Two-level keys only: embedding_provider -> embedding.provider,
		// db_path stays db_path.
		for _, section := range []string{"embedding_", "indexing_", "search_"} {
			if strings.HasPrefix(key, section) {
				return strings.TrimSuffix(section, "_") + "." + strings.TrimPrefix(key, section)
			}
		}
		return key
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	switch c.Embedding.Provider {
	case embedder.ProviderOllama, embedder.ProviderOpenAI, embedder.ProviderLocal:
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Indexing.Workers <= 0 {
		return fmt.Errorf("indexing workers must be positive, got %d", c.Indexing.Workers)
	}
	if c.Indexing.BatchSize <= 0 {
		return fmt.Errorf("indexing batch_size must be positive, got %d", c.Indexing.BatchSize)
	}
	if c.Indexing.ChunkTimeoutSeconds <= 0 {
		return fmt.Errorf("indexing chunk_timeout_seconds must be positive, got %d", c.Indexing.ChunkTimeoutSeconds)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search top_k must be positive, got %d", c.Search.TopK)
	}
	return nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
