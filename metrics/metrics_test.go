package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestIdenticalDistributions(t *testing.T) {
	y := mat.NewDense(2, 3, []float64{
		0.2, 0.3, 0.5,
		0.6, 0.4, 0,
	})
	scores, err := Evaluate(y, y)
	require.NoError(t, err)
	require.Len(t, scores, len(Names()))

	for _, name := range []string{"chebyshev", "clark", "canberra", "kl"} {
		assert.InDelta(t, 0, scores[name], 1e-9, name)
	}
	assert.InDelta(t, 1, scores["cosine"], 1e-9)
	assert.InDelta(t, 1, scores["intersection"], 1e-9)
}

func TestKnownValues(t *testing.T) {
	y := mat.NewDense(1, 2, []float64{0.5, 0.5})
	p := mat.NewDense(1, 2, []float64{0.25, 0.75})

	tests := []struct {
		name string
		fn   func(y, p mat.Matrix) (float64, error)
		want float64
	}{
		{"chebyshev", Chebyshev, 0.25},
		{"clark", Clark, math.Sqrt(0.25*0.25/(0.75*0.75) + 0.25*0.25/(1.25*1.25))},
		{"canberra", Canberra, 0.25/0.75 + 0.25/1.25},
		{"kl", KL, 0.5*math.Log(2) + 0.5*math.Log(0.5/0.75)},
		{"cosine", Cosine, 0.5 / (math.Sqrt(0.5) * math.Sqrt(0.625))},
		{"intersection", Intersection, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(y, p)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestMeanOverRows(t *testing.T) {
	y := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	p := mat.NewDense(2, 2, []float64{1, 0, 1, 0})
	got, err := Intersection(y, p)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-12)

	// KL stays finite when the prediction misses mass.
	kl, err := KL(y, p)
	require.NoError(t, err)
	assert.False(t, math.IsInf(kl, 0))
}

func TestErrors(t *testing.T) {
	_, err := Chebyshev(mat.NewDense(2, 2, nil), mat.NewDense(2, 3, nil))
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Evaluate(mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 1, []float64{1}), "euclid")
	require.ErrorIs(t, err, ErrUnknownMeasure)

	m, err := Lookup("cosine")
	require.NoError(t, err)
	assert.True(t, m.HigherIsBetter)
}
