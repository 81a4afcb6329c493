// Package winldl implements weighted incomplete label distribution learning,
// which needs no explicit regularizer: missing label entries are recovered
// by an ADMM scheme whose consensus step re-weights every entry with an
// adaptive confidence and projects the result onto the probability simplex.
package winldl

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-incomplete-ldl/admm"
	"github.com/n0madic/go-incomplete-ldl/ldl"
	"github.com/n0madic/go-incomplete-ldl/prox"
)

// Algorithm is the name used in logs, metrics and saved state.
const Algorithm = "winldl"

// WInLDL is the adaptive-weight incomplete-LDL learner.
type WInLDL struct {
	rho           float64
	maxIterations int
	logEvery      int
	logger        zerolog.Logger
	observer      admm.Observer

	model ldl.Linear

	iterations     int
	primalResidual float64
	dualResidual   float64
	fitDuration    time.Duration
	averages       []float64
}

var _ ldl.Estimator = (*WInLDL)(nil)

// Option configures a WInLDL.
type Option func(*WInLDL)

// WithRho sets the penalty ρ.
func WithRho(rho float64) Option {
	return func(m *WInLDL) {
		m.rho = rho
	}
}

// WithMaxIterations sets the ADMM iteration budget. It also sets the length
// of the confidence schedule.
func WithMaxIterations(n int) Option {
	return func(m *WInLDL) {
		m.maxIterations = n
	}
}

// WithLogger sets the logger used during fitting.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *WInLDL) {
		m.logger = logger
	}
}

// WithLogEvery logs residuals every n iterations at debug level.
func WithLogEvery(n int) Option {
	return func(m *WInLDL) {
		m.logEvery = n
	}
}

// WithObserver registers an observer for fit events.
func WithObserver(o admm.Observer) Option {
	return func(m *WInLDL) {
		m.observer = o
	}
}

// New creates an unfitted WInLDL learner.
func New(options ...Option) (*WInLDL, error) {
	m := &WInLDL{
		rho:           2.0,
		maxIterations: admm.DefaultMaxIterations,
		logEvery:      10,
		logger:        zerolog.Nop(),
		observer:      admm.NopObserver{},
	}
	for _, opt := range options {
		opt(m)
	}

	if !(m.rho > 0) || math.IsInf(m.rho, 0) {
		return nil, &admm.InputError{Field: "rho", Reason: fmt.Sprintf("must be a positive finite number, got %g", m.rho)}
	}
	if m.maxIterations <= 0 {
		return nil, &admm.InputError{Field: "max iterations", Reason: fmt.Sprintf("must be positive, got %d", m.maxIterations)}
	}
	return m, nil
}

// Fit implements ldl.Estimator.
func (m *WInLDL) Fit(x, y, mask mat.Matrix) error {
	return m.FitContext(context.Background(), x, y, mask)
}

// FitContext fits the mapping, stopping early only if ctx is cancelled. On
// error the previously fitted mapping, if any, is kept.
func (m *WInLDL) FitContext(ctx context.Context, x, y, mask mat.Matrix) error {
	p, err := admm.NewProblem(x, y, mask, m.rho)
	if err != nil {
		return err
	}
	engine, err := admm.NewEngine(
		admm.WithMaxIterations(m.maxIterations),
		admm.WithLogger(m.logger),
		admm.WithLogEvery(m.logEvery),
		admm.WithObserver(m.observer),
	)
	if err != nil {
		return err
	}

	strategy := NewStrategy()
	res, err := engine.Run(ctx, p, strategy)
	if err != nil {
		return err
	}

	m.model.Set(res.W)
	m.iterations = res.Iterations
	m.primalResidual = res.PrimalResidual
	m.dualResidual = res.DualResidual
	m.fitDuration = res.Duration
	m.averages = strategy.Averages()
	return nil
}

// Predict returns the simplex projection of X·W, so every row is a valid
// label distribution.
func (m *WInLDL) Predict(x mat.Matrix) (*mat.Dense, error) {
	scores, err := m.model.Scores(x)
	if err != nil {
		return nil, err
	}
	return prox.SimplexRows(scores)
}

// Weights returns a copy of the fitted d×c mapping.
func (m *WInLDL) Weights() (*mat.Dense, error) {
	return m.model.Weights()
}

// GetStats returns hyperparameters and diagnostics of the last fit.
func (m *WInLDL) GetStats() map[string]any {
	d, c := m.model.Dims()
	return map[string]any{
		"algorithm":       Algorithm,
		"fitted":          m.model.Fitted(),
		"rho":             m.rho,
		"ridge":           Ridge,
		"max_iterations":  m.maxIterations,
		"iterations":      m.iterations,
		"primal_residual": m.primalResidual,
		"dual_residual":   m.dualResidual,
		"fit_duration":    m.fitDuration,
		"label_averages":  append([]float64(nil), m.averages...),
		"features":        d,
		"labels":          c,
	}
}

// Save serializes the fitted mapping and hyperparameters to gob format.
func (m *WInLDL) Save(w io.Writer) error {
	return m.model.Save(w, Algorithm, map[string]float64{
		"rho":            m.rho,
		"max_iterations": float64(m.maxIterations),
	})
}

// Load deserializes a learner saved by Save. Options override the saved
// hyperparameters.
func Load(r io.Reader, options ...Option) (*WInLDL, error) {
	w, params, err := ldl.LoadLinear(r, Algorithm)
	if err != nil {
		return nil, err
	}

	saved := []Option{
		WithRho(params["rho"]),
		WithMaxIterations(int(params["max_iterations"])),
	}
	m, err := New(append(saved, options...)...)
	if err != nil {
		return nil, err
	}
	m.model.Set(w)
	return m, nil
}
