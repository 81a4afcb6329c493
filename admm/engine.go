// Package admm implements the alternating direction method of multipliers
// used to fit a linear label-distribution model X·W ≈ Y under partial
// supervision. The engine owns the iteration state and drives the fixed
// W → Z → V cycle; a Strategy supplies the W and Z updates.
//
// Each cycle performs, in order:
//
//	W ← strategy.UpdateMapping(Z, V)
//	Z ← strategy.UpdateConsensus(W, V)
//	V ← V + ρ(XW − Z)
//
// The engine runs a fixed iteration budget; there is no residual-based stop.
package admm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// DefaultMaxIterations is the iteration budget used when none is configured.
const DefaultMaxIterations = 100

// Phase is the lifecycle state of an engine run.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseIterating
	PhaseMaxIterationsReached
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseIterating:
		return "iterating"
	case PhaseMaxIterationsReached:
		return "max_iterations_reached"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Result is the outcome of a successful run. Only W survives a fit.
type Result struct {
	W              *mat.Dense
	Iterations     int
	PrimalResidual float64
	DualResidual   float64
	Duration       time.Duration
}

// Engine drives ADMM iterations. An Engine runs one fit at a time; use one
// engine per model to fit models in parallel.
type Engine struct {
	maxIterations int
	logEvery      int
	logger        zerolog.Logger
	observer      Observer
	phase         Phase
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxIterations sets the number of W→Z→V cycles per fit.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		e.maxIterations = n
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLogEvery logs residuals at debug level every n iterations (0 disables).
func WithLogEvery(n int) Option {
	return func(e *Engine) {
		e.logEvery = n
	}
}

// WithObserver registers an observer for fit events.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o == nil {
			o = NopObserver{}
		}
		e.observer = o
	}
}

// NewEngine creates an engine.
func NewEngine(options ...Option) (*Engine, error) {
	e := &Engine{
		maxIterations: DefaultMaxIterations,
		logEvery:      10,
		logger:        zerolog.Nop(),
		observer:      NopObserver{},
	}
	for _, opt := range options {
		opt(e)
	}
	if e.maxIterations <= 0 {
		return nil, inputErrorf("max iterations", "must be positive, got %d", e.maxIterations)
	}
	if e.logEvery < 0 {
		return nil, inputErrorf("log interval", "must not be negative, got %d", e.logEvery)
	}
	return e, nil
}

// MaxIterations returns the configured iteration budget.
func (e *Engine) MaxIterations() int {
	return e.maxIterations
}

// Phase returns the phase of the current or most recent run.
func (e *Engine) Phase() Phase {
	return e.phase
}

// Run fits p with strategy and returns the final mapping. A run is atomic:
// on any error no mapping is returned.
func (e *Engine) Run(ctx context.Context, p *Problem, strategy Strategy) (res *Result, err error) {
	if p == nil {
		return nil, inputErrorf("problem", "nil")
	}
	if strategy == nil {
		return nil, inputErrorf("strategy", "nil")
	}

	name := strategy.Name()
	n, d, c := p.Dims()
	start := time.Now()
	e.phase = PhaseUninitialized

	e.observer.FitStarted(name, n, d, c)
	defer func() {
		if err != nil {
			e.phase = PhaseFailed
			e.logger.Error().Err(err).Str("algorithm", name).Msg("fit failed")
		}
		e.observer.FitFinished(name, res, err)
	}()

	e.logger.Info().
		Str("algorithm", name).
		Int("samples", n).
		Int("features", d).
		Int("labels", c).
		Int("observed", p.Observed()).
		Float64("rho", p.Rho).
		Int("max_iterations", e.maxIterations).
		Msg("fit started")

	s := NewState(p, e.maxIterations)
	if err := strategy.Init(p, s); err != nil {
		return nil, fmt.Errorf("%s init: %w", name, err)
	}
	e.phase = PhaseIterating

	var stats IterationStats
	for s.Iteration = 0; s.Iteration < e.maxIterations; s.Iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("admm: fit cancelled at iteration %d: %w", s.Iteration, err)
		}
		stats, err = e.step(p, strategy, s)
		if err != nil {
			return nil, fmt.Errorf("%s iteration %d: %w", name, s.Iteration, err)
		}
		e.observer.IterationDone(name, stats)
		if e.logEvery > 0 && (s.Iteration+1)%e.logEvery == 0 {
			e.logger.Debug().
				Str("algorithm", name).
				Int("iteration", s.Iteration+1).
				Float64("primal_residual", stats.PrimalResidual).
				Float64("dual_residual", stats.DualResidual).
				Msg("admm progress")
		}
	}
	e.phase = PhaseMaxIterationsReached

	res = &Result{
		W:              mat.DenseCopyOf(s.W),
		Iterations:     s.Iteration,
		PrimalResidual: stats.PrimalResidual,
		DualResidual:   stats.DualResidual,
		Duration:       time.Since(start),
	}
	e.logger.Info().
		Str("algorithm", name).
		Int("iterations", res.Iterations).
		Float64("primal_residual", res.PrimalResidual).
		Float64("dual_residual", res.DualResidual).
		Dur("duration", res.Duration).
		Msg("fit finished")
	return res, nil
}

// Step runs exactly one W→Z→V cycle on s without advancing s.Iteration.
func (e *Engine) Step(p *Problem, strategy Strategy, s *State) (IterationStats, error) {
	return e.step(p, strategy, s)
}

func (e *Engine) step(p *Problem, strategy Strategy, s *State) (IterationStats, error) {
	stats := IterationStats{Iteration: s.Iteration}

	if err := strategy.UpdateMapping(p, s); err != nil {
		return stats, fmt.Errorf("mapping update: %w", err)
	}
	if !finite(s.W) {
		return stats, Numerical("mapping update", errors.New("non-finite W"))
	}

	zPrev := mat.DenseCopyOf(s.Z)
	if err := strategy.UpdateConsensus(p, s); err != nil {
		return stats, fmt.Errorf("consensus update: %w", err)
	}
	if !finite(s.Z) {
		return stats, Numerical("consensus update", errors.New("non-finite Z"))
	}

	// Dual ascent: V ← V + ρ(XW − Z).
	r := s.Predict(p.X)
	r.Sub(r, s.Z)
	stats.PrimalResidual = mat.Norm(r, 2)
	r.Scale(p.Rho, r)
	s.V.Add(s.V, r)

	zPrev.Sub(s.Z, zPrev)
	stats.DualResidual = p.Rho * mat.Norm(zPrev, 2)
	return stats, nil
}

func finite(m *mat.Dense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for _, v := range m.RawRowView(i)[:c] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
