package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/shitsumon/internal/models"
)

func TestCosineSimilarity_Identity(t *testing.T) {
	vecs := [][]float32{
		{1, 0, 0},
		{0.3, -0.7, 2.5},
		{1e-3, 4, -9, 16},
		{-5},
	}
	for _, v := range vecs {
		sim, err := CosineSimilarity(v, v)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, sim, 1e-9)

		sim, err = CosineSimilarity(v, Negate(v))
		require.NoError(t, err)
		assert.InDelta(t, -1.0, sim, 1e-9)
	}
}

func TestCosineSimilarity_Orthogonal(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-12)
}

func TestCosineSimilarity_Degenerate(t *testing.T) {
	_, err := CosineSimilarity([]float32{0, 0}, []float32{1, 0})
	assert.ErrorIs(t, err, models.ErrDegenerateVector)

	_, err = CosineSimilarity(nil, nil)
	assert.ErrorIs(t, err, models.ErrDegenerateVector)
}

func TestCosineSimilarity_DimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0})
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)
}

func TestCosineDistance(t *testing.T) {
	d, err := CosineDistance([]float32{1, 1}, []float32{2, 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, d, 1e-9)

	d, err = CosineDistance([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, d, 1e-9)
}

func TestL2Norm(t *testing.T) {
	assert.InDelta(t, 5.0, L2Norm([]float32{3, 4}), 1e-9)
	assert.Equal(t, 0.0, InnerProduct([]float32{1}, []float32{1, 2}))
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.InDelta(t, 1.0, L2Norm(v), 1e-6)

	zero := []float32{0, 0}
	Normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}
