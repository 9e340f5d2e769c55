package surprise

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePerplexity(t *testing.T) {
	require.InDelta(t, 0, NormalizePerplexity(0), 1e-9)
	require.InDelta(t, 1.0, NormalizePerplexity(math.Exp(5)-1), 1e-6)
	// Pathological perplexity clamps at 1, never exceeds it.
	require.Equal(t, 1.0, NormalizePerplexity(1e9))
}

func TestScore_DefaultWeights(t *testing.T) {
	w := Weights{Perplexity: 0.6, Novelty: 0.4}
	got := Score(0, 1.0, w)
	require.InDelta(t, 0.4, got, 1e-9)

	got = Score(0, 0, w)
	require.InDelta(t, 0, got, 1e-9)
}

func TestScore_AboveThresholdOnHighPerplexityAndNovelty(t *testing.T) {
	w := Weights{Perplexity: 0.6, Novelty: 0.4}
	got := Score(math.Exp(5), 1.0, w)
	require.Greater(t, got, 0.7)
}

func TestScore_MonotonicInEachInput(t *testing.T) {
	w := Weights{Perplexity: 0.6, Novelty: 0.4}
	require.GreaterOrEqual(t, Score(100, 0.5, w), Score(10, 0.5, w))
	require.GreaterOrEqual(t, Score(10, 0.9, w), Score(10, 0.2, w))
}
