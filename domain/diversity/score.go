package diversity

import (
	"math"

	"github.com/montanaflynn/stats"
)

// Metrics summarizes the pairwise similarity distribution of one persona
// batch. RQE is the headline score: 1 minus the mean pairwise similarity,
// clamped to [0, 1], so identical personas score near 0 and unrelated ones
// near 1.
type Metrics struct {
	RQE            float64 `json:"rqe_score"`
	MeanSimilarity float64 `json:"mean_similarity"`
	MinSimilarity  float64 `json:"min_similarity"`
	MaxSimilarity  float64 `json:"max_similarity"`
	StdSimilarity  float64 `json:"std_similarity"`
	PairCount      int     `json:"pair_count"`
}

// PerfectMetrics is the score assigned when fewer than two personas exist:
// a single persona cannot be redundant with anything.
func PerfectMetrics() Metrics {
	return Metrics{RQE: 1}
}

// Score computes batch metrics from a similarity matrix.
func Score(m SimilarityMatrix) Metrics {
	pairs := m.OffDiagonal()
	if len(pairs) == 0 {
		return PerfectMetrics()
	}

	mean, _ := stats.Mean(pairs)
	min, _ := stats.Min(pairs)
	max, _ := stats.Max(pairs)
	std, _ := stats.StandardDeviation(pairs)

	return Metrics{
		RQE:            clamp01(1 - mean),
		MeanSimilarity: mean,
		MinSimilarity:  min,
		MaxSimilarity:  max,
		StdSimilarity:  std,
		PairCount:      len(pairs),
	}
}

// ScoreVectors is the embedding-to-metrics convenience path.
func ScoreVectors(vectors [][]float64) (Metrics, error) {
	if len(vectors) < 2 {
		return PerfectMetrics(), nil
	}
	m, err := NewSimilarityMatrix(vectors)
	if err != nil {
		return Metrics{}, err
	}
	return Score(m), nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
