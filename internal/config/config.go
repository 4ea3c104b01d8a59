package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type MergeConfig struct {
	Threshold     float64 `toml:"threshold"`
	UseEmbeddings bool    `toml:"use_embeddings"`
}

type PatternsConfig struct {
	Threshold int `toml:"threshold"`
}

type SaturationConfig struct {
	MaxIterations int  `toml:"max_iterations"`
	EarlyExit     bool `toml:"early_exit"`
}

type SearchConfig struct {
	// Breaker opens after this many consecutive adapter failures.
	FailureThreshold uint32 `toml:"failure_threshold"`
	CooldownSeconds  int    `toml:"cooldown_seconds"`
}

type Config struct {
	Store      StoreConfig      `toml:"store"`
	LLM        LLMConfig        `toml:"llm"`
	LocalLLM   LLMConfig        `toml:"local_llm"`
	Merge      MergeConfig      `toml:"merge"`
	Patterns   PatternsConfig   `toml:"patterns"`
	Saturation SaturationConfig `toml:"saturation"`
	Search     SearchConfig     `toml:"search"`
}

// Default returns the configuration used when a field is absent from the
// TOML file.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Path: "lattice.db"},
		LocalLLM: LLMConfig{
			Provider: "ollama",
			Model:    "llama3.1",
			BaseURL:  "http://localhost:11434",
		},
		Merge:      MergeConfig{Threshold: 0.85},
		Patterns:   PatternsConfig{Threshold: 2},
		Saturation: SaturationConfig{MaxIterations: 3, EarlyExit: true},
		Search:     SearchConfig{FailureThreshold: 5, CooldownSeconds: 60},
	}
}

// ApplyEnv overrides config fields from the environment. Used by the
// commands so deployments can skip a config file entirely.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LATTICE_DB"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_EMBEDDING_MODEL"); v != "" {
		c.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("LOCAL_LLM_MODEL"); v != "" {
		c.LocalLLM.Model = v
	}
	if v := os.Getenv("LOCAL_LLM_BASE_URL"); v != "" {
		c.LocalLLM.BaseURL = v
	}
}

// Load reads a TOML file over the defaults. Absent fields keep their
// default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return cfg, nil
}
