// Package incomldl implements incomplete label distribution learning with a
// low-rank regularizer: the label matrix is recovered as a low-rank
// consensus of a linear prediction X·W, fitted by ADMM with per-sample
// simplex-constrained QPs and singular-value thresholding.
package incomldl

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
)

// Algorithm is the name used in logs, metrics and saved state.
const Algorithm = "incomldl"

// IncomLDL is the low-rank incomplete-LDL learner.
type IncomLDL struct {
	rho           float64 // augmented-Lagrangian penalty
	alpha         float64 // nuclear-norm weight
	maxIterations int
	workers       int // row-QP workers, <= 0 means GOMAXPROCS
	logEvery      int
	logger        zerolog.Logger
	observer      admm.Observer

	model ldl.Linear

	// Diagnostics of the last successful fit.
	iterations     int
	primalResidual float64
	dualResidual   float64
	fitDuration    time.Duration
}

var _ ldl.Estimator = (*IncomLDL)(nil)

// Option configures an IncomLDL.
type Option func(*IncomLDL)

// WithRho sets the penalty ρ.
func WithRho(rho float64) Option {
	return func(m *IncomLDL) {
		m.rho = rho
	}
}

// WithAlpha sets the nuclear-norm regularization strength.
func WithAlpha(alpha float64) Option {
	return func(m *IncomLDL) {
		m.alpha = alpha
	}
}

// WithMaxIterations sets the ADMM iteration budget.
func WithMaxIterations(n int) Option {
	return func(m *IncomLDL) {
		m.maxIterations = n
	}
}

// WithWorkers sets how many goroutines solve the per-sample QPs.
func WithWorkers(n int) Option {
	return func(m *IncomLDL) {
		m.workers = n
	}
}

// WithLogger sets the logger used during fitting.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *IncomLDL) {
		m.logger = logger
	}
}

// WithLogEvery logs residuals every n iterations at debug level.
func WithLogEvery(n int) Option {
	return func(m *IncomLDL) {
		m.logEvery = n
	}
}

// WithObserver registers an observer for fit events.
func WithObserver(o admm.Observer) Option {
	return func(m *IncomLDL) {
		m.observer = o
	}
}

// New creates an unfitted IncomLDL learner.
func New(options ...Option) (*IncomLDL, error) {
	m := &IncomLDL{
		rho:           1.0,
		alpha:         1e-3,
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
	if !(m.alpha > 0) || math.IsInf(m.alpha, 0) {
		return nil, &admm.InputError{Field: "alpha", Reason: fmt.Sprintf("must be a positive finite number, got %g", m.alpha)}
	}
	if m.maxIterations <= 0 {
		return nil, &admm.InputError{Field: "max iterations", Reason: fmt.Sprintf("must be positive, got %d", m.maxIterations)}
	}
	return m, nil
}

// Fit implements ldl.Estimator.
func (m *IncomLDL) Fit(x, y, mask mat.Matrix) error {
	return m.FitContext(context.Background(), x, y, mask)
}

// FitContext fits the mapping, stopping early only if ctx is cancelled. On
// error the previously fitted mapping, if any, is kept.
func (m *IncomLDL) FitContext(ctx context.Context, x, y, mask mat.Matrix) error {
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

	res, err := engine.Run(ctx, p, NewStrategy(m.alpha, m.workers))
	if err != nil {
		return err
	}

	m.model.Set(res.W)
	m.iterations = res.Iterations
	m.primalResidual = res.PrimalResidual
	m.dualResidual = res.DualResidual
	m.fitDuration = res.Duration
	return nil
}

// Predict returns X·W unnormalised. Rows are not guaranteed to be valid
// distributions; callers needing one should project or normalise.
func (m *IncomLDL) Predict(x mat.Matrix) (*mat.Dense, error) {
	return m.model.Scores(x)
}

// Weights returns a copy of the fitted d×c mapping.
func (m *IncomLDL) Weights() (*mat.Dense, error) {
	return m.model.Weights()
}

// GetStats returns hyperparameters and diagnostics of the last fit.
func (m *IncomLDL) GetStats() map[string]any {
	d, c := m.model.Dims()
	return map[string]any{
		"algorithm":       Algorithm,
		"fitted":          m.model.Fitted(),
		"rho":             m.rho,
		"alpha":           m.alpha,
		"max_iterations":  m.maxIterations,
		"iterations":      m.iterations,
		"primal_residual": m.primalResidual,
		"dual_residual":   m.dualResidual,
		"fit_duration":    m.fitDuration,
		"features":        d,
		"labels":          c,
	}
}

// Save serializes the fitted mapping and hyperparameters to gob format.
func (m *IncomLDL) Save(w io.Writer) error {
	return m.model.Save(w, Algorithm, map[string]float64{
		"rho":            m.rho,
		"alpha":          m.alpha,
		"max_iterations": float64(m.maxIterations),
	})
}

// Load deserializes a learner saved by Save. Options override the saved
// hyperparameters, which only matter for a subsequent Fit.
func Load(r io.Reader, options ...Option) (*IncomLDL, error) {
	w, params, err := ldl.LoadLinear(r, Algorithm)
	if err != nil {
		return nil, err
	}

	saved := []Option{
		WithRho(params["rho"]),
		WithAlpha(params["alpha"]),
		WithMaxIterations(int(params["max_iterations"])),
	}
	m, err := New(append(saved, options...)...)
	if err != nil {
		return nil, err
	}
	m.model.Set(w)
	return m, nil
}
