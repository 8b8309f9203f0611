package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/shitsumon/internal/config"
)

// New builds the configured embedding backend wrapped in an LRU cache.
func New(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		inner Embedder
		err   error
	)
	switch cfg.Provider {
	case "mock":
		inner = NewMockEmbedder(cfg.Dimensions)
	case "ollama":
		inner = NewOllamaEmbedder(cfg.Endpoint, cfg.Model, cfg.Dimensions, cfg.Timeout)
	case "genai":
		inner, err = NewGenAIEmbedder(ctx, cfg.APIKey, cfg.Model, cfg.TaskType, cfg.Dimensions)
	case "onnx":
		inner, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s embedder: %w", cfg.Provider, err)
	}
	logger.Debug("embedder ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("dimensions", inner.Dimensions()),
		zap.Int("cache_size", cfg.CacheSize))
	return NewCachedEmbedder(inner, cfg.CacheSize)
}
