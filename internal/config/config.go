package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// IndexConfig configures the document index backend.
type IndexConfig struct {
	// Backend selects "milvus" or "memory".
	Backend     string `yaml:"backend"`
	Address     string `yaml:"address"`
	Collection  string `yaml:"collection"`
	Dimension   int    `yaml:"dimension"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig configures the embedding backend client.
type EmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// GeneratorConfig configures the chat-completions generation client.
type GeneratorConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	MaxTokens   int    `yaml:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// IngestConfig holds the ingestion policy constants. MinChars and MaxChars
// are the canonical bounds applied to every extractor.
type IngestConfig struct {
	MinChars int `yaml:"min_chars"`
	MaxChars int `yaml:"max_chars"`
	Workers  int `yaml:"workers"`
}

// QueryConfig tunes the retrieval-augmented query pipeline.
type QueryConfig struct {
	TopK         int     `yaml:"top_k"`
	ContextLimit int     `yaml:"context_limit"`
	MinScore     float32 `yaml:"min_score"`
	TimeoutSecs  int     `yaml:"timeout_secs"`
}

// CacheConfig bounds the embedding cache.
type CacheConfig struct {
	Capacity int `yaml:"capacity"`
}

// Config is the root application configuration.
type Config struct {
	Index     IndexConfig     `yaml:"index"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Generator GeneratorConfig `yaml:"generator"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Query     QueryConfig     `yaml:"query"`
	Cache     CacheConfig     `yaml:"cache"`
}

// Load reads configuration from path. A missing file yields the defaults.
// Environment variables override the connection settings last, so container
// deployments can point at their own backends without editing the file.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Timeout returns the configured index round-trip bound.
func (c *IndexConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Timeout returns the configured embedding call bound.
func (c *EmbedderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Timeout returns the configured generation call bound.
func (c *GeneratorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

func defaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Backend:     "milvus",
			Address:     "localhost:19530",
			Collection:  "kb_documents",
			Dimension:   1024,
			TimeoutSecs: 10,
		},
		Embedder: EmbedderConfig{
			BaseURL:     "http://localhost:11434",
			Model:       "bge-m3",
			TimeoutSecs: 30,
		},
		Generator: GeneratorConfig{
			BaseURL:     "http://localhost:11434/v1",
			APIKeyEnv:   "GENERATOR_API_KEY",
			Model:       "mistral",
			MaxTokens:   1024,
			TimeoutSecs: 120,
		},
		Ingest: IngestConfig{MinChars: 50, MaxChars: 3000, Workers: 4},
		Query:  QueryConfig{TopK: 4, ContextLimit: 2, MinScore: 0, TimeoutSecs: 30},
		Cache:  CacheConfig{Capacity: 1024},
	}
}

func applyDefaults(cfg *Config) {
	def := defaultConfig()
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = def.Index.Backend
	}
	if cfg.Index.Address == "" {
		cfg.Index.Address = def.Index.Address
	}
	if cfg.Index.Collection == "" {
		cfg.Index.Collection = def.Index.Collection
	}
	if cfg.Index.Dimension <= 0 {
		cfg.Index.Dimension = def.Index.Dimension
	}
	if cfg.Index.TimeoutSecs <= 0 {
		cfg.Index.TimeoutSecs = def.Index.TimeoutSecs
	}
	if cfg.Embedder.BaseURL == "" {
		cfg.Embedder.BaseURL = def.Embedder.BaseURL
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = def.Embedder.Model
	}
	if cfg.Embedder.TimeoutSecs <= 0 {
		cfg.Embedder.TimeoutSecs = def.Embedder.TimeoutSecs
	}
	if cfg.Generator.BaseURL == "" {
		cfg.Generator.BaseURL = def.Generator.BaseURL
	}
	if cfg.Generator.APIKeyEnv == "" {
		cfg.Generator.APIKeyEnv = def.Generator.APIKeyEnv
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = def.Generator.Model
	}
	if cfg.Generator.MaxTokens <= 0 {
		cfg.Generator.MaxTokens = def.Generator.MaxTokens
	}
	if cfg.Generator.TimeoutSecs <= 0 {
		cfg.Generator.TimeoutSecs = def.Generator.TimeoutSecs
	}
	if cfg.Ingest.MinChars <= 0 {
		cfg.Ingest.MinChars = def.Ingest.MinChars
	}
	if cfg.Ingest.MaxChars <= 0 {
		cfg.Ingest.MaxChars = def.Ingest.MaxChars
	}
	if cfg.Ingest.Workers <= 0 {
		cfg.Ingest.Workers = def.Ingest.Workers
	}
	if cfg.Query.TopK <= 0 {
		cfg.Query.TopK = def.Query.TopK
	}
	if cfg.Query.ContextLimit <= 0 {
		cfg.Query.ContextLimit = def.Query.ContextLimit
	}
	if cfg.Query.TimeoutSecs <= 0 {
		cfg.Query.TimeoutSecs = def.Query.TimeoutSecs
	}
	if cfg.Cache.Capacity <= 0 {
		cfg.Cache.Capacity = def.Cache.Capacity
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MILVUS_ADDR"); v != "" {
		cfg.Index.Address = v
	}
	if v := os.Getenv("KB_COLLECTION"); v != "" {
		cfg.Index.Collection = v
	}
	if v := os.Getenv("EMBEDDER_URL"); v != "" {
		cfg.Embedder.BaseURL = v
	}
	if v := os.Getenv("GENERATOR_URL"); v != "" {
		cfg.Generator.BaseURL = v
	}
	if v := os.Getenv("GENERATOR_MODEL"); v != "" {
		cfg.Generator.Model = v
	}
}
