package ldl

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLinearNotFitted(t *testing.T) {
	var l Linear

	assert.False(t, l.Fitted())
	_, err := l.Scores(mat.NewDense(1, 2, nil))
	require.ErrorIs(t, err, ErrNotFitted)
	_, err = l.Weights()
	require.ErrorIs(t, err, ErrNotFitted)
	require.ErrorIs(t, l.Save(&bytes.Buffer{}, "x", nil), ErrNotFitted)
}

func TestLinearScores(t *testing.T) {
	var l Linear
	l.Set(mat.NewDense(2, 3, []float64{1, 0, 2, 0, 1, -1}))

	d, c := l.Dims()
	require.Equal(t, 2, d)
	require.Equal(t, 3, c)

	got, err := l.Scores(mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	require.NoError(t, err)
	want := mat.NewDense(2, 3, []float64{1, 2, 0, 3, 4, 2})
	assert.True(t, mat.Equal(got, want))

	_, err = l.Scores(mat.NewDense(2, 3, nil))
	require.ErrorIs(t, err, ErrFeatureMismatch)

	_, err = l.Scores(mat.NewDense(1, 2, []float64{math.NaN(), 0}))
	require.ErrorIs(t, err, ErrFeatureMismatch)
}

func TestLinearSaveLoad(t *testing.T) {
	var l Linear
	w := mat.NewDense(3, 2, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6})
	l.Set(w)

	var buf bytes.Buffer
	params := map[string]float64{"rho": 2, "max_iterations": 50}
	require.NoError(t, l.Save(&buf, "winldl", params))

	data := buf.Bytes()
	loaded, gotParams, err := LoadLinear(bytes.NewReader(data), "winldl")
	require.NoError(t, err)
	assert.True(t, mat.Equal(w, loaded))
	assert.Equal(t, params, gotParams)

	_, _, err = LoadLinear(bytes.NewReader(data), "incomldl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "winldl")
}

func TestBinarizeThreshold(t *testing.T) {
	y := mat.NewDense(2, 4, []float64{
		0.1, 0.5, 0.3, 0.1,
		0.7, 0.1, 0.1, 0.1,
	})

	b, err := BinarizeThreshold(y, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0, 0}, b.RawRowView(0))
	assert.Equal(t, []float64{1, 0, 0, 0}, b.RawRowView(1))

	b, err = BinarizeThreshold(y, 0.75)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1, 0}, b.RawRowView(0))
	assert.Equal(t, []float64{1, 1, 0, 0}, b.RawRowView(1))

	_, err = BinarizeThreshold(y, 1)
	require.ErrorIs(t, err, ErrBinarizeParam)
}

func TestBinarizeTopK(t *testing.T) {
	y := mat.NewDense(1, 4, []float64{0.2, 0.4, 0.1, 0.3})

	b, err := BinarizeTopK(y, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0, 1}, b.RawRowView(0))

	_, err = BinarizeTopK(y, 4)
	require.ErrorIs(t, err, ErrBinarizeParam)
	_, err = BinarizeTopK(y, 0)
	require.ErrorIs(t, err, ErrBinarizeParam)
}
