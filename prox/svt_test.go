package prox

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomDense(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}

func TestSVTZeroThresholdIsIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, dims := range [][2]int{{6, 3}, {3, 6}, {5, 5}, {1, 4}} {
		a := randomDense(rng, dims[0], dims[1])
		b, err := SVT(a, 0)
		require.NoError(t, err)
		assert.True(t, mat.EqualApprox(a, b, 1e-10), "dims %v", dims)
	}
}

func TestSVTRankMonotone(t *testing.T) {
	const tol = 1e-9
	rng := rand.New(rand.NewSource(2))
	a := randomDense(rng, 8, 5)

	inputRank, err := Rank(a, tol)
	require.NoError(t, err)

	prev := inputRank
	for _, tau := range []float64{0, 0.1, 0.5, 1, 2, 4, 8, 100} {
		b, err := SVT(a, tau)
		require.NoError(t, err)
		rank, err := Rank(b, tol)
		require.NoError(t, err)
		assert.LessOrEqual(t, rank, inputRank, "tau=%g", tau)
		assert.LessOrEqual(t, rank, prev, "tau=%g", tau)
		prev = rank
	}
	assert.Equal(t, 0, prev, "a huge threshold must annihilate the matrix")
}

func TestSVTShrinksSingularValues(t *testing.T) {
	// diag(3, 1) has singular values 3 and 1.
	a := mat.NewDense(2, 2, []float64{3, 0, 0, 1})

	b, err := SVT(a, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, b.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5, b.At(1, 1), 1e-12)
	assert.InDelta(t, 0, b.At(0, 1), 1e-12)

	b, err = SVT(a, 2)
	require.NoError(t, err)
	assert.InDelta(t, 1, b.At(0, 0), 1e-12)
	assert.InDelta(t, 0, b.At(1, 1), 1e-12)
}

func TestSVTRejectsNegativeThreshold(t *testing.T) {
	_, err := SVT(mat.NewDense(2, 2, nil), -1)
	require.ErrorIs(t, err, ErrNegativeThreshold)
}
