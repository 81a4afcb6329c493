package admm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Problem holds the read-only inputs of one fit. It owns private copies of
// the caller's matrices so nothing the caller does can change them mid-fit.
type Problem struct {
	// X is the n×d feature matrix.
	X *mat.Dense
	// Y is the n×c label-distribution matrix with unobserved entries zeroed.
	Y *mat.Dense
	// Mask is the n×c observation mask, 1 where Y is observed.
	Mask *mat.Dense
	// Rho is the augmented-Lagrangian penalty.
	Rho float64
}

// NewProblem validates the inputs and builds a Problem. A nil mask means
// every entry of y is observed. Placeholder values at unobserved positions are
// ignored.
func NewProblem(x, y, mask mat.Matrix, rho float64) (*Problem, error) {
	if x == nil {
		return nil, inputErrorf("features", "nil matrix")
	}
	if y == nil {
		return nil, inputErrorf("labels", "nil matrix")
	}
	if !(rho > 0) || math.IsInf(rho, 0) {
		return nil, inputErrorf("rho", "must be a positive finite number, got %g", rho)
	}

	n, d := x.Dims()
	yr, c := y.Dims()
	if n == 0 || d == 0 {
		return nil, inputErrorf("features", "empty %dx%d matrix", n, d)
	}
	if c == 0 {
		return nil, inputErrorf("labels", "no label columns")
	}
	if yr != n {
		return nil, inputErrorf("labels", "have %d rows, features have %d", yr, n)
	}
	if mask != nil {
		mr, mc := mask.Dims()
		if mr != n || mc != c {
			return nil, inputErrorf("mask", "shape %dx%d does not match labels %dx%d", mr, mc, n, c)
		}
	}

	p := &Problem{
		X:    mat.DenseCopyOf(x),
		Y:    mat.NewDense(n, c, nil),
		Mask: mat.NewDense(n, c, nil),
		Rho:  rho,
	}

	for _, v := range p.X.RawMatrix().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, inputErrorf("features", "NaN or Inf value")
		}
	}

	for i := 0; i < n; i++ {
		for j := 0; j < c; j++ {
			m := 1.0
			if mask != nil {
				m = mask.At(i, j)
			}
			switch m {
			case 0:
				continue
			case 1:
			default:
				return nil, inputErrorf("mask", "entry (%d,%d) is %g, want 0 or 1", i, j, m)
			}
			v := y.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return nil, inputErrorf("labels", "observed entry (%d,%d) is %g, want a finite non-negative value", i, j, v)
			}
			p.Mask.Set(i, j, 1)
			p.Y.Set(i, j, v)
		}
	}
	return p, nil
}

// Dims returns the number of samples, features and labels.
func (p *Problem) Dims() (n, d, c int) {
	n, d = p.X.Dims()
	_, c = p.Y.Dims()
	return n, d, c
}

// Observed returns the number of observed label entries.
func (p *Problem) Observed() int {
	count := 0
	for _, v := range p.Mask.RawMatrix().Data {
		if v == 1 {
			count++
		}
	}
	return count
}

// State is the iteration state of one fit: the mapping W (d×c), the
// consensus Z (n×c), the dual V (n×c) and the iteration counter. The engine
// owns it; strategies receive it only for the duration of an update.
type State struct {
	W *mat.Dense
	Z *mat.Dense
	V *mat.Dense

	// Iteration is the zero-based index of the cycle being run.
	Iteration int
	// MaxIterations is the configured iteration budget.
	MaxIterations int
}

// NewState allocates a zero state for p.
func NewState(p *Problem, maxIterations int) *State {
	n, d, c := p.Dims()
	return &State{
		W:             mat.NewDense(d, c, nil),
		Z:             mat.NewDense(n, c, nil),
		V:             mat.NewDense(n, c, nil),
		MaxIterations: maxIterations,
	}
}

// Predict returns X·W for the current state.
func (s *State) Predict(x mat.Matrix) *mat.Dense {
	n, _ := x.Dims()
	_, c := s.W.Dims()
	out := mat.NewDense(n, c, nil)
	out.Mul(x, s.W)
	return out
}

// Strategy supplies the variant-specific parts of the ADMM cycle. The engine
// calls Init once, then UpdateMapping and UpdateConsensus in that order on
// every cycle before performing the dual ascent itself.
type Strategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string
	// Init sets the starting W, Z and V and precomputes anything that only
	// depends on the problem.
	Init(p *Problem, s *State) error
	// UpdateMapping replaces s.W.
	UpdateMapping(p *Problem, s *State) error
	// UpdateConsensus replaces s.Z using the freshly updated s.W.
	UpdateConsensus(p *Problem, s *State) error
}
