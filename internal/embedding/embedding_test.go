package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/shitsumon/internal/config"
	"github.com/hyperjump/shitsumon/internal/models"
	"github.com/hyperjump/shitsumon/internal/vector"
)

type countingEmbedder struct {
	*MockEmbedder
	calls atomic.Int32
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.MockEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, c, texts)
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()
	a, err := e.Embed(ctx, "monthly salary by department")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "monthly salary by department")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.InDelta(t, 1.0, vector.L2Norm(a), 1e-5)
}

func TestMockEmbedder_SharedWordsAreCloser(t *testing.T) {
	e := NewMockEmbedder(256)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "employee salary report")
	near, _ := e.Embed(ctx, "salary report for each employee")
	far, _ := e.Embed(ctx, "warehouse shipping schedule")

	simNear, err := vector.CosineSimilarity(q, near)
	require.NoError(t, err)
	simFar, err := vector.CosineSimilarity(q, far)
	require.NoError(t, err)
	assert.Greater(t, simNear, simFar)
}

func TestMockEmbedder_EmptyTextIsNotDegenerate(t *testing.T) {
	v, err := NewMockEmbedder(8).Embed(context.Background(), "")
	require.NoError(t, err)
	_, err = vector.CosineSimilarity(v, v)
	assert.NoError(t, err)
}

func TestMockEmbedder_Fail(t *testing.T) {
	e := NewMockEmbedder(8)
	e.Fail = errors.New("connection refused")
	_, err := e.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, models.ErrEmbeddingUnavailable)
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(16)}
	c, err := NewCachedEmbedder(inner, 2)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := c.Embed(ctx, "a")
	require.NoError(t, err)
	again, err := c.Embed(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, int32(1), inner.calls.Load())

	_, _ = c.Embed(ctx, "b")
	_, _ = c.Embed(ctx, "c") // evicts a
	assert.Equal(t, 2, c.Len())
	_, _ = c.Embed(ctx, "a")
	assert.Equal(t, int32(4), inner.calls.Load())
}

func TestCachedEmbedder_BatchOnlyEmbedsMisses(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(16)}
	c, err := NewCachedEmbedder(inner, 10)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Embed(ctx, "x")
	require.NoError(t, err)
	out, err := c.EmbedBatch(ctx, []string{"x", "y", "z"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, int32(3), inner.calls.Load())
	for _, v := range out {
		assert.Len(t, v, 16)
	}
}

func TestCachedEmbedder_DoesNotCacheFailures(t *testing.T) {
	inner := NewMockEmbedder(4)
	inner.Fail = errors.New("down")
	c, err := NewCachedEmbedder(inner, 10)
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "", 3, time.Second)
	v, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, v)

	batch, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, batch, 2)
}

func TestOllamaEmbedder_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(srv.URL, "m", 0, time.Second).Embed(context.Background(), "x")
	assert.ErrorIs(t, err, models.ErrEmbeddingUnavailable)

	srv.Close()
	_, err = NewOllamaEmbedder(srv.URL, "m", 0, time.Second).Embed(context.Background(), "x")
	assert.ErrorIs(t, err, models.ErrEmbeddingUnavailable)
}

func TestOllamaEmbedder_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{1, 2}})
	}))
	defer srv.Close()
	_, err := NewOllamaEmbedder(srv.URL, "m", 768, time.Second).Embed(context.Background(), "x")
	assert.ErrorIs(t, err, models.ErrEmbeddingUnavailable)
}

func TestNew(t *testing.T) {
	e, err := New(context.Background(), config.EmbeddingConfig{Provider: "mock", Dimensions: 32, CacheSize: 5}, nil)
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, 32, e.Dimensions())

	_, err = New(context.Background(), config.EmbeddingConfig{Provider: "nope"}, nil)
	assert.Error(t, err)

	_, err = New(context.Background(), config.EmbeddingConfig{Provider: "genai"}, nil)
	assert.Error(t, err, "genai requires an api key")
}

func TestHashTokenizer(t *testing.T) {
	tok := &HashTokenizer{}
	ids, mask, types := tok.Tokenize("Hello, world", 8)
	require.Len(t, ids, 8)
	assert.Equal(t, int64(tokenCLS), ids[0])
	assert.Equal(t, int64(tokenSEP), ids[3])
	assert.Equal(t, []int64{1, 1, 1, 1, 0, 0, 0, 0}, mask)
	assert.Len(t, types, 8)
	assert.GreaterOrEqual(t, ids[1], int64(1000))

	assert.Equal(t, []string{"hello", "world", "급여"}, Words("Hello, world! 급여"))
	assert.Equal(t, HashString("abc"), HashString("abc"))
}
