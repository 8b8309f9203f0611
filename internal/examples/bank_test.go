package examples

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/shitsumon/internal/embedding"
	"github.com/hyperjump/shitsumon/internal/models"
	"github.com/hyperjump/shitsumon/internal/storage"
)

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBank_addDefaultsAndEmbeds(t *testing.T) {
	ctx := context.Background()
	b := NewBank(openStore(t), embedding.NewMockEmbedder(128))

	ex := &models.QueryExample{NaturalLanguageQuery: " 모든 직원 ", SQLQuery: "SELECT * FROM employees;"}
	require.NoError(t, b.Add(ctx, ex))
	assert.Equal(t, models.DifficultyMedium, ex.Difficulty)

	got, err := b.Get(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, "모든 직원", got.NaturalLanguageQuery)
	assert.Len(t, got.Embedding, 128)

	assert.Error(t, b.Add(ctx, &models.QueryExample{NaturalLanguageQuery: "no sql"}))
}

func TestBank_findSimilar(t *testing.T) {
	ctx := context.Background()
	b := NewBank(openStore(t), embedding.NewMockEmbedder(256))
	n, err := b.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultExamples()), n)

	found, mode, err := b.FindSimilar(ctx, "급여가 6000000보다 큰 직원을 보여주세요", 3, 0)
	require.NoError(t, err)
	assert.Equal(t, models.ModeSemantic, mode)
	require.Len(t, found, 3)
	assert.Equal(t, "급여가 6000000보다 큰 직원을 보여주세요", found[0].Example.NaturalLanguageQuery)
	assert.InDelta(t, 1.0, found[0].Similarity, 1e-5)
	assert.GreaterOrEqual(t, found[0].Similarity, found[1].Similarity)

	found, _, err = b.FindSimilar(ctx, "급여가 6000000보다 큰 직원을 보여주세요", 3, 0.999)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, _, err = b.FindSimilar(ctx, "anything", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestBank_findSimilarKeywordFallback(t *testing.T) {
	ctx := context.Background()
	emb := embedding.NewMockEmbedder(64)
	b := NewBank(openStore(t), nil)
	_, err := b.SeedDefaults(ctx)
	require.NoError(t, err)

	found, mode, err := b.FindSimilar(ctx, "지역별 총 매출", 5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, models.ModeKeyword, mode)
	require.NotEmpty(t, found)
	assert.Contains(t, found[0].Example.SQLQuery, "total_amount")
	assert.Zero(t, found[0].Similarity)

	// examples were stored without embeddings, so even a working embedder falls back
	b = NewBank(b.store, emb)
	_, mode, err = b.FindSimilar(ctx, "지역별 총 매출", 5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, models.ModeKeyword, mode)

	n, err := b.Reembed(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultExamples()), n)
	_, mode, err = b.FindSimilar(ctx, "지역별 총 매출", 5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, models.ModeSemantic, mode)

	emb.Fail = errors.New("down")
	_, mode, err = b.FindSimilar(ctx, "지역별 총 매출", 5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, models.ModeKeyword, mode)
}

func TestBank_recordOutcome(t *testing.T) {
	ctx := context.Background()
	b := NewBank(openStore(t), nil)
	ex := &models.QueryExample{NaturalLanguageQuery: "q", SQLQuery: "SELECT 1"}
	require.NoError(t, b.Add(ctx, ex))

	for _, ok := range []bool{true, true, false, true} {
		_, err := b.RecordOutcome(ctx, ex.ID, ok)
		require.NoError(t, err)
	}
	got, err := b.Get(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.UsageCount)
	assert.InDelta(t, 0.75, got.SuccessRate, 1e-9)

	_, err = b.RecordOutcome(ctx, 999, true)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestBank_csvRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := NewBank(openStore(t), nil)
	_, err := src.SeedDefaults(ctx)
	require.NoError(t, err)
	_, err = src.RecordOutcome(ctx, 1, true)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.ExportCSV(ctx, &buf))

	dst := NewBank(openStore(t), nil)
	n, err := dst.ImportCSV(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultExamples()), n)

	want, err := src.List(ctx)
	require.NoError(t, err)
	got, err := dst.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].NaturalLanguageQuery, got[i].NaturalLanguageQuery)
		assert.Equal(t, want[i].SQLQuery, got[i].SQLQuery)
		assert.Equal(t, want[i].QueryCategory, got[i].QueryCategory)
		assert.Equal(t, want[i].Difficulty, got[i].Difficulty)
		assert.Equal(t, want[i].Tags, got[i].Tags)
		assert.Equal(t, want[i].SuccessRate, got[i].SuccessRate)
		assert.Equal(t, want[i].UsageCount, got[i].UsageCount)
	}
}

func TestFormatFewShot(t *testing.T) {
	assert.Empty(t, FormatFewShot(nil))
	got := FormatFewShot([]models.ScoredExample{
		{Example: &models.QueryExample{NaturalLanguageQuery: "모든 직원", SQLQuery: "SELECT * FROM employees;\n"}},
	})
	assert.Equal(t, "Examples:\n\nExample 1:\nQuestion: 모든 직원\nSQL: SELECT * FROM employees;\n", got)
}
