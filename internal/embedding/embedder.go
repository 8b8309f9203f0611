// Package embedding maps text to fixed-length vectors. Backends: Ollama, Google GenAI,
// in-process ONNX (cgo) and a deterministic mock; any of them can be wrapped in an LRU cache.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/shitsumon/internal/models"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// unavailable wraps err so that errors.Is(err, models.ErrEmbeddingUnavailable) holds,
// unless it already does or the caller's context ended.
func unavailable(backend string, err error) error {
	if err == nil || errors.Is(err, models.ErrEmbeddingUnavailable) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", backend, models.ErrEmbeddingUnavailable, err)
	}
	return fmt.Errorf("%s: %w: %v", backend, models.ErrEmbeddingUnavailable, err)
}

// embedEach implements EmbedBatch for backends without a native batch call.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
