package incomldl

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-incomplete-ldl/admm"
	"github.com/n0madic/go-incomplete-ldl/ldl"
	"github.com/n0madic/go-incomplete-ldl/prox"
)

// Two-feature toy problem with a known simplex-valued mapping.
var (
	toyX = mat.NewDense(4, 2, []float64{
		1, 0,
		0, 1,
		0.5, 0.5,
		0.25, 0.75,
	})
	toyW = mat.NewDense(2, 3, []float64{
		0.7, 0.2, 0.1,
		0.1, 0.3, 0.6,
	})
)

func toyLabels() *mat.Dense {
	y := mat.NewDense(4, 3, nil)
	y.Mul(toyX, toyW)
	return y
}

func meanSquaredError(a, b mat.Matrix) float64 {
	var diff mat.Dense
	diff.Sub(a, b)
	r, c := diff.Dims()
	f := mat.Norm(&diff, 2)
	return f * f / float64(r*c)
}

func TestNewDefaults(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	stats := m.GetStats()
	assert.Equal(t, Algorithm, stats["algorithm"])
	assert.Equal(t, 1.0, stats["rho"])
	assert.Equal(t, 1e-3, stats["alpha"])
	assert.Equal(t, admm.DefaultMaxIterations, stats["max_iterations"])
	assert.Equal(t, false, stats["fitted"])
}

func TestNewRejectsBadHyperparameters(t *testing.T) {
	tests := []struct {
		name   string
		option Option
		field  string
	}{
		{"zero rho", WithRho(0), "rho"},
		{"NaN rho", WithRho(math.NaN()), "rho"},
		{"zero alpha", WithAlpha(0), "alpha"},
		{"negative alpha", WithAlpha(-1e-3), "alpha"},
		{"infinite alpha", WithAlpha(math.Inf(1)), "alpha"},
		{"no iterations", WithMaxIterations(0), "max iterations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.option)
			require.ErrorIs(t, err, admm.ErrInvalidInput)
			assert.Nil(t, m)

			var ie *admm.InputError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tt.field, ie.Field)
		})
	}
}

func TestFitRecoversFullyObservedDistributions(t *testing.T) {
	y := toyLabels()
	m, err := New(WithRho(2), WithMaxIterations(50))
	require.NoError(t, err)
	require.NoError(t, m.Fit(toyX, y, nil))

	pred, err := m.Predict(toyX)
	require.NoError(t, err)
	proj, err := prox.SimplexRows(pred)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(proj, y, 1e-2), "projected predictions\n%v\nwant\n%v",
		mat.Formatted(proj), mat.Formatted(y))

	stats := m.GetStats()
	assert.Equal(t, true, stats["fitted"])
	assert.Equal(t, 50, stats["iterations"])
	assert.Equal(t, 2, stats["features"])
	assert.Equal(t, 3, stats["labels"])
}

func TestFitUsesMask(t *testing.T) {
	y := toyLabels()
	mask := mat.NewDense(4, 3, []float64{
		1, 0, 1,
		0, 1, 1,
		1, 1, 0,
		1, 0, 0,
	})
	hidden := mat.NewDense(4, 3, nil)
	hidden.MulElem(y, mask)
	allObserved := mat.NewDense(4, 3, []float64{
		1, 1, 1,
		1, 1, 1,
		1, 1, 1,
		1, 1, 1,
	})

	xTest := mat.NewDense(2, 2, []float64{0.8, 0.2, 0.3, 0.7})
	yTest := mat.NewDense(2, 3, nil)
	yTest.Mul(xTest, toyW)

	aware, err := New(WithRho(2), WithMaxIterations(50))
	require.NoError(t, err)
	require.NoError(t, aware.Fit(toyX, y, mask))

	// Treating the zeroed entries as observed zeros.
	naive, err := New(WithRho(2), WithMaxIterations(50))
	require.NoError(t, err)
	require.NoError(t, naive.Fit(toyX, hidden, allObserved))

	pa, err := aware.Predict(xTest)
	require.NoError(t, err)
	pn, err := naive.Predict(xTest)
	require.NoError(t, err)

	awareMSE := meanSquaredError(pa, yTest)
	naiveMSE := meanSquaredError(pn, yTest)
	assert.Less(t, awareMSE, 1e-4)
	assert.Greater(t, naiveMSE, 1e-3)
	assert.Less(t, awareMSE, naiveMSE)
}

func TestFitWithNegligibleRegularizerMatchesLeastSquares(t *testing.T) {
	x := mat.NewDense(6, 2, []float64{
		1, 0.1,
		1, 0.4,
		1, 0.5,
		1, 0.9,
		1, 0.2,
		1, 0.7,
	})
	y := mat.NewDense(6, 3, []float64{
		0.6, 0.3, 0.1,
		0.45, 0.35, 0.2,
		0.5, 0.25, 0.25,
		0.2, 0.4, 0.4,
		0.55, 0.25, 0.2,
		0.3, 0.35, 0.35,
	})

	m, err := New(WithRho(1), WithAlpha(1e-6))
	require.NoError(t, err)
	require.NoError(t, m.Fit(x, y, nil))

	var ols mat.Dense
	require.NoError(t, ols.Solve(x, y))

	w, err := m.Weights()
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(w, &ols, 1e-4), "W\n%v\nleast squares\n%v",
		mat.Formatted(w), mat.Formatted(&ols))
}

func TestStepKeepsFixedPoint(t *testing.T) {
	y := toyLabels()
	p, err := admm.NewProblem(toyX, y, nil, 2)
	require.NoError(t, err)
	engine, err := admm.NewEngine(admm.WithMaxIterations(1))
	require.NoError(t, err)

	strategy := NewStrategy(1e-9, 2)
	st := admm.NewState(p, 1)
	require.NoError(t, strategy.Init(p, st))
	st.W.Copy(toyW)

	_, err = engine.Step(p, strategy, st)
	require.NoError(t, err)

	assert.True(t, mat.EqualApprox(st.W, toyW, 1e-6))
	assert.True(t, mat.EqualApprox(st.Z, y, 1e-6))
	assert.Less(t, mat.Norm(st.V, 2), 1e-6)
}

func TestFitFailureKeepsPreviousModel(t *testing.T) {
	y := toyLabels()
	m, err := New(WithMaxIterations(20))
	require.NoError(t, err)
	require.NoError(t, m.Fit(toyX, y, nil))
	before, err := m.Weights()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = m.FitContext(ctx, toyX, y, nil)
	require.ErrorIs(t, err, context.Canceled)

	badMask := mat.NewDense(4, 3, nil)
	badMask.Set(0, 0, 2)
	err = m.Fit(toyX, y, badMask)
	require.ErrorIs(t, err, admm.ErrInvalidInput)

	after, err := m.Weights()
	require.NoError(t, err)
	assert.True(t, mat.Equal(before, after))
}

func TestPredictErrors(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	_, err = m.Predict(toyX)
	require.ErrorIs(t, err, ldl.ErrNotFitted)

	require.NoError(t, m.Fit(toyX, toyLabels(), nil))
	_, err = m.Predict(mat.NewDense(1, 3, nil))
	require.ErrorIs(t, err, ldl.ErrFeatureMismatch)
}

func TestSaveLoad(t *testing.T) {
	m, err := New(WithRho(1.5), WithAlpha(0.01), WithMaxIterations(30))
	require.NoError(t, err)
	require.NoError(t, m.Fit(toyX, toyLabels(), nil))

	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf))

	loaded, err := Load(&buf, WithWorkers(1))
	require.NoError(t, err)

	stats := loaded.GetStats()
	assert.Equal(t, 1.5, stats["rho"])
	assert.Equal(t, 0.01, stats["alpha"])
	assert.Equal(t, 30, stats["max_iterations"])

	want, err := m.Predict(toyX)
	require.NoError(t, err)
	got, err := loaded.Predict(toyX)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}

func TestSaveUnfitted(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.ErrorIs(t, m.Save(&buf), ldl.ErrNotFitted)
}
