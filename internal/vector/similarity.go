// Package vector provides similarity helpers for embedding vectors.
package vector

import (
	"fmt"
	"math"

	"github.com/hyperjump/shitsumon/internal/models"
)

// InnerProduct returns the inner product of two vectors. Mismatched or empty inputs yield 0.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Normalize scales x in place to unit L2 norm. A zero vector is left unchanged.
func Normalize(x []float32) {
	n := L2Norm(x)
	if n == 0 {
		return
	}
	for i := range x {
		x[i] = float32(float64(x[i]) / n)
	}
}

// CosineSimilarity returns dot(a,b)/(|a||b|) clamped to [-1,1].
// It fails with models.ErrDegenerateVector when either vector has zero norm.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", models.ErrDimensionMismatch, len(a), len(b))
	}
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 {
		return 0, models.ErrDegenerateVector
	}
	sim := InnerProduct(a, b) / (na * nb)
	// rounding can push |sim| a hair past 1
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim, nil
}

// CosineDistance returns 1 - CosineSimilarity(a, b).
func CosineDistance(a, b []float32) (float64, error) {
	sim, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - sim, nil
}

// Negate returns -v.
func Negate(v []float32) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = -x
	}
	return out
}
