// Package diversity measures how distinct a batch of generated personas is,
// using pairwise cosine similarity over their embedding vectors.
package diversity

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"personaforge/domain/core"
)

// SimilarityMatrix is a symmetric n×n matrix of pairwise cosine
// similarities with a unit diagonal.
type SimilarityMatrix [][]float64

// NewSimilarityMatrix computes cosine similarities for every vector pair.
// All vectors must share one dimension; a zero-magnitude vector is treated
// as orthogonal to everything.
func NewSimilarityMatrix(vectors [][]float64) (SimilarityMatrix, error) {
	n := len(vectors)
	if n == 0 {
		return SimilarityMatrix{}, nil
	}
	dim := len(vectors[0])
	norms := make([]float64, n)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, core.NewDimensionMismatchError(dim, len(v))
		}
		norms[i] = floats.Norm(v, 2)
	}

	m := make(SimilarityMatrix, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim := cosine(vectors[i], vectors[j], norms[i], norms[j])
			m[i][j] = sim
			m[j][i] = sim
		}
	}
	return m, nil
}

func cosine(a, b []float64, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := floats.Dot(a, b) / (normA * normB)
	// Float error can push the ratio a hair outside [-1, 1].
	return math.Max(-1, math.Min(1, sim))
}

// OffDiagonal returns every pairwise similarity excluding self-similarity,
// one value per unordered pair.
func (m SimilarityMatrix) OffDiagonal() []float64 {
	n := len(m)
	if n < 2 {
		return nil
	}
	out := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, m[i][j])
		}
	}
	return out
}
