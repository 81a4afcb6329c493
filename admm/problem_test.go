package admm

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewProblemMasksPlaceholders(t *testing.T) {
	x := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	y := mat.NewDense(2, 3, []float64{
		0.5, -99, 0.5,
		0.2, 0.8, math.NaN(),
	})
	m := mat.NewDense(2, 3, []float64{
		1, 0, 1,
		1, 1, 0,
	})

	p, err := NewProblem(x, y, m, 1.5)
	require.NoError(t, err)

	n, d, c := p.Dims()
	assert.Equal(t, [3]int{2, 2, 3}, [3]int{n, d, c})
	assert.Equal(t, 4, p.Observed())
	assert.Equal(t, []float64{0.5, 0, 0.5}, p.Y.RawRowView(0))
	assert.Equal(t, []float64{0.2, 0.8, 0}, p.Y.RawRowView(1))

	// The problem owns copies.
	x.Set(0, 0, 42)
	assert.Equal(t, 1.0, p.X.At(0, 0))
}

func TestNewProblemNilMaskMeansObserved(t *testing.T) {
	x := mat.NewDense(1, 1, []float64{1})
	y := mat.NewDense(1, 2, []float64{0.3, 0.7})
	p, err := NewProblem(x, y, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Observed())
}

func TestNewProblemValidation(t *testing.T) {
	x := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	y := mat.NewDense(2, 2, []float64{0.5, 0.5, 0.1, 0.9})

	tests := []struct {
		name  string
		x, y  mat.Matrix
		mask  mat.Matrix
		rho   float64
		field string
	}{
		{name: "nil features", y: y, rho: 1, field: "features"},
		{name: "nil labels", x: x, rho: 1, field: "labels"},
		{name: "zero rho", x: x, y: y, rho: 0, field: "rho"},
		{name: "negative rho", x: x, y: y, rho: -1, field: "rho"},
		{name: "infinite rho", x: x, y: y, rho: math.Inf(1), field: "rho"},
		{name: "row mismatch", x: x, y: mat.NewDense(3, 2, nil), rho: 1, field: "labels"},
		{name: "mask shape", x: x, y: y, mask: mat.NewDense(2, 3, nil), rho: 1, field: "mask"},
		{name: "non-binary mask", x: x, y: y, mask: mat.NewDense(2, 2, []float64{1, 0.5, 1, 1}), rho: 1, field: "mask"},
		{name: "NaN feature", x: mat.NewDense(2, 2, []float64{1, math.NaN(), 0, 1}), y: y, rho: 1, field: "features"},
		{name: "negative observed label", x: x, y: mat.NewDense(2, 2, []float64{-0.5, 1.5, 0.1, 0.9}), rho: 1, field: "labels"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProblem(tt.x, tt.y, tt.mask, tt.rho)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, ErrInvalidInput)

			var ie *InputError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tt.field, ie.Field)
		})
	}
}
