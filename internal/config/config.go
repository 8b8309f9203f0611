// Package config provides configuration loading and structs for the shitsumon assistant.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/shitsumon/internal/models"
)

// Environment variables that override secrets from the config file.
const (
	EnvLLMAPIKey       = "SHITSUMON_LLM_API_KEY"
	EnvEmbeddingAPIKey = "SHITSUMON_EMBEDDING_API_KEY"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Lexicon   LexiconConfig   `yaml:"lexicon"`
	Examples  ExamplesConfig  `yaml:"examples"`
	Schema    SchemaConfig    `yaml:"schema"`
	Chart     ChartConfig     `yaml:"chart"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	RequestLimit time.Duration `yaml:"request_timeout"`
	MaxUploadMB  int64         `yaml:"max_upload_mb"`
}

// StorageConfig holds database and index paths. TargetDatabasePath, when set, is the
// database generated SQL runs against; otherwise the assistant's own database is used.
type StorageConfig struct {
	DatabasePath       string `yaml:"database_path"`
	TargetDatabasePath string `yaml:"target_database_path"`
	HistoryIndexPath   string `yaml:"history_index_path"`
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"` // mock, ollama, genai, onnx
	Model      string        `yaml:"model"`
	Endpoint   string        `yaml:"endpoint"`
	APIKey     string        `yaml:"api_key"`
	TaskType   string        `yaml:"task_type"`
	ModelPath  string        `yaml:"model_path"`
	Dimensions int           `yaml:"dimensions"`
	MaxTokens  int           `yaml:"max_tokens"`
	CacheSize  int           `yaml:"cache_size"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LLMConfig selects and configures the SQL-generating language model.
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // ollama, genai
	Model       string        `yaml:"model"`
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"api_key"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ChunkingConfig holds document chunking parameters.
type ChunkingConfig struct {
	Strategy string `yaml:"strategy"` // fixed, paragraph, sentence
	MaxSize  int    `yaml:"max_size"`
	Overlap  int    `yaml:"overlap"`
}

// RetrievalConfig controls document retrieval for prompt context.
type RetrievalConfig struct {
	Enabled   *bool    `yaml:"enabled"`
	TopK      int      `yaml:"top_k"`
	Threshold *float64 `yaml:"threshold"`
}

// LexiconConfig controls business-term normalization.
type LexiconConfig struct {
	Enabled      *bool  `yaml:"enabled"`
	ReplaceMode  string `yaml:"replace_mode"` // replace, append
	Occurrence   string `yaml:"occurrence"`   // first, all
	SeedDefaults bool   `yaml:"seed_defaults"`
}

// ExamplesConfig controls few-shot example selection.
type ExamplesConfig struct {
	Enabled   *bool   `yaml:"enabled"`
	TopK      int     `yaml:"top_k"`
	Threshold float64 `yaml:"threshold"`
}

// SchemaConfig controls how the schema is described in prompts.
type SchemaConfig struct {
	Enhanced   *bool `yaml:"enhanced"`
	SampleRows int   `yaml:"sample_rows"`
}

// ChartConfig controls automatic chart generation.
type ChartConfig struct {
	Enabled bool `yaml:"enabled"`
}

// WatchConfig holds directory watch settings for automatic document ingestion.
type WatchConfig struct {
	Directories []string      `yaml:"directories"`
	Extensions  []string      `yaml:"extensions"`
	Recursive   *bool         `yaml:"recursive"`
	Debounce    time.Duration `yaml:"debounce"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// On reports the value of an optional switch, treating nil as enabled.
func On(b *bool) bool {
	return b == nil || *b
}

// Load reads and parses the config file at path, expands paths, applies environment
// overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Storage.TargetDatabasePath != "" {
		cfg.Storage.TargetDatabasePath = expandPath(cfg.Storage.TargetDatabasePath, configDir)
	}
	cfg.Storage.HistoryIndexPath = expandPath(cfg.Storage.HistoryIndexPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides secrets from the environment.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvLLMAPIKey); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv(EnvEmbeddingAPIKey); v != "" {
		cfg.Embedding.APIKey = v
	}
}

// Validate rejects settings no component could work with.
func (c *Config) Validate() error {
	ch := c.Chunking
	switch {
	case ch.MaxSize <= 0:
		return models.NewConfigurationError("chunking.max_size", "must be positive, got %d", ch.MaxSize)
	case ch.Overlap < 0:
		return models.NewConfigurationError("chunking.overlap", "cannot be negative, got %d", ch.Overlap)
	case ch.Overlap >= ch.MaxSize:
		return models.NewConfigurationError("chunking.overlap", "%d must be smaller than max_size %d", ch.Overlap, ch.MaxSize)
	}
	switch ch.Strategy {
	case "fixed", "paragraph", "sentence":
	default:
		return models.NewConfigurationError("chunking.strategy", "unknown strategy %q", ch.Strategy)
	}
	switch c.Lexicon.ReplaceMode {
	case models.ReplaceModeReplace, models.ReplaceModeAppend:
	default:
		return models.NewConfigurationError("lexicon.replace_mode", "unknown mode %q", c.Lexicon.ReplaceMode)
	}
	switch c.Lexicon.Occurrence {
	case "first", "all":
	default:
		return models.NewConfigurationError("lexicon.occurrence", "unknown occurrence %q", c.Lexicon.Occurrence)
	}
	switch c.Embedding.Provider {
	case "mock", "ollama", "genai", "onnx":
	default:
		return models.NewConfigurationError("embedding.provider", "unknown provider %q", c.Embedding.Provider)
	}
	switch c.LLM.Provider {
	case "ollama", "genai":
	default:
		return models.NewConfigurationError("llm.provider", "unknown provider %q", c.LLM.Provider)
	}
	if t := c.Retrieval.Threshold; t != nil && (*t < -1 || *t > 1) {
		return models.NewConfigurationError("retrieval.threshold", "must be within [-1,1], got %v", *t)
	}
	return nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" and other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	path = strings.TrimPrefix(path, "~/")
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
