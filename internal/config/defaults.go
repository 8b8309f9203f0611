package config

import "time"

// DefaultMaxUploadMB bounds uploaded documents when the server config leaves it unset.
const DefaultMaxUploadMB = 32

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestLimit == 0 {
		cfg.Server.RequestLimit = 120 * time.Second
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = DefaultMaxUploadMB
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".shitsumon/shitsumon.db"
	}
	if cfg.Storage.HistoryIndexPath == "" {
		cfg.Storage.HistoryIndexPath = ".shitsumon/history.bleve"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 120 * time.Second
	}
	if cfg.Chunking.Strategy == "" {
		cfg.Chunking.Strategy = "paragraph"
	}
	if cfg.Chunking.MaxSize == 0 {
		cfg.Chunking.MaxSize = 1000
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 200
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Lexicon.ReplaceMode == "" {
		cfg.Lexicon.ReplaceMode = "replace"
	}
	if cfg.Lexicon.Occurrence == "" {
		cfg.Lexicon.Occurrence = "all"
	}
	if cfg.Examples.TopK == 0 {
		cfg.Examples.TopK = 3
	}
	if cfg.Examples.Threshold == 0 {
		cfg.Examples.Threshold = 0.7
	}
	if cfg.Schema.SampleRows == 0 {
		cfg.Schema.SampleRows = 3
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".docx", ".doc", ".xlsx", ".xls", ".txt", ".md"}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
