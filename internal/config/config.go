// Package config loads the service configuration from a YAML file with
// environment overrides. Secrets (API keys, bot tokens) come exclusively
// from the environment and are never written to the config file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/dvloznov/ledger-assistant/internal/ai"
)

// Config is the full service configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port"`
	} `yaml:"http"`

	Storage struct {
		// Backend selects the ledger store: "memory" or "sqlite".
		Backend         string `yaml:"backend"`
		SQLitePath      string `yaml:"sqlite_path"`
		VectorCachePath string `yaml:"vector_cache_path"`
	} `yaml:"storage"`

	AI struct {
		// ModelFallback is the ordered candidate list; the first reachable
		// model wins, order is configuration, not code.
		ModelFallback  []ai.ModelRef `yaml:"model_fallback"`
		EmbeddingModel string        `yaml:"embedding_model"`
	} `yaml:"ai"`

	Dedup struct {
		TTLSeconds int `yaml:"ttl_seconds"`
	} `yaml:"dedup"`

	Retrieval struct {
		LexicalK int `yaml:"lexical_k"`
		VectorK  int `yaml:"vector_k"`
	} `yaml:"retrieval"`

	Jobs struct {
		Buffer  int `yaml:"buffer"`
		Workers int `yaml:"workers"`
	} `yaml:"jobs"`

	AdminIDs []string `yaml:"admin_ids"`

	// Secrets, environment only.
	GeminiAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	TelegramToken   string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Port = "8080"
	cfg.Storage.Backend = "memory"
	cfg.Storage.SQLitePath = "ledger.db"
	cfg.Storage.VectorCachePath = "vectors.db"
	cfg.AI.ModelFallback = []ai.ModelRef{
		{Provider: "gemini", Model: "gemini-2.0-flash"},
		{Provider: "gemini", Model: "gemini-2.5-flash"},
		{Provider: "anthropic", Model: "claude-3-5-haiku-latest"},
	}
	cfg.AI.EmbeddingModel = "gemini-embedding-001"
	cfg.Dedup.TTLSeconds = 120
	cfg.Retrieval.LexicalK = 5
	cfg.Retrieval.VectorK = 5
	cfg.Jobs.Buffer = 100
	cfg.Jobs.Workers = 2
	return cfg
}

// Load reads the YAML file at path (optional, "" skips it), then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse %s: %w", path, err)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.HTTP.Port = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("DEDUP_TTL_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config.Load: DEDUP_TTL_SECONDS: %w", err)
		}
		cfg.Dedup.TTLSeconds = secs
	}

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.AI.ModelFallback) == 0 {
		return fmt.Errorf("config: ai.model_fallback must list at least one model")
	}
	for i, ref := range c.AI.ModelFallback {
		if ref.Provider == "" || ref.Model == "" {
			return fmt.Errorf("config: ai.model_fallback[%d] needs provider and model", i)
		}
	}
	switch c.Storage.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

// DedupTTL returns the duplicate-suppression window as a duration.
func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.Dedup.TTLSeconds) * time.Second
}
