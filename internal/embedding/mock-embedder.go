package embedding

import (
	"context"

	"github.com/hyperjump/shitsumon/internal/vector"
)

// MockEmbedder is a deterministic embedder for tests and offline use. It hashes words and
// character bigrams into a fixed number of buckets, so texts sharing vocabulary land close
// together and the same text always gets the same vector.
type MockEmbedder struct {
	dimensions int
	// Fail, when set, is returned by every call; used to exercise fallback paths.
	Fail error
}

// NewMockEmbedder returns a mock embedder of the given dimension (default 384).
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a unit-length feature-hashed vector for text.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.Fail != nil {
		return nil, unavailable("mock", e.Fail)
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable("mock", err)
	}
	emb := make([]float32, e.dimensions)
	// small bias keeps the empty string away from the zero vector
	for i := range emb {
		emb[i] = 0.001
	}
	for _, w := range Words(text) {
		emb[HashString(w)%uint32(e.dimensions)] += 1
		runes := []rune(w)
		for i := 0; i+1 < len(runes); i++ {
			emb[HashString(string(runes[i:i+2]))%uint32(e.dimensions)] += 0.5
		}
	}
	vector.Normalize(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
