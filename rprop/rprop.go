// Package rprop implements resilient backpropagation, a first-order optimizer
// that adapts one step size per parameter entry from the sign of successive
// gradients and ignores their magnitude.
package rprop

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInvalidParam is returned by New for out-of-range settings.
	ErrInvalidParam = errors.New("rprop: invalid parameter")
	// ErrShapeMismatch is returned by Apply when gradients do not match
	// parameters or the shapes change between calls.
	ErrShapeMismatch = errors.New("rprop: shape mismatch")
)

// RProp holds per-entry step sizes and the previous gradient and update of
// every parameter. It is not safe for concurrent use.
type RProp struct {
	initStep  float64
	scaleUp   float64
	scaleDown float64
	minStep   float64
	maxStep   float64

	steps      []*mat.Dense
	prevGrads  []*mat.Dense
	prevDeltas []*mat.Dense
}

// Option configures an RProp.
type Option func(*RProp)

// WithInitialStep sets the starting step size of every entry.
func WithInitialStep(step float64) Option {
	return func(r *RProp) {
		r.initStep = step
	}
}

// WithScale sets the growth and shrink factors.
func WithScale(up, down float64) Option {
	return func(r *RProp) {
		r.scaleUp = up
		r.scaleDown = down
	}
}

// WithStepBounds clamps every step size to [lo, hi].
func WithStepBounds(lo, hi float64) Option {
	return func(r *RProp) {
		r.minStep = lo
		r.maxStep = hi
	}
}

// New creates an optimizer. Defaults: initial step 1e-3, scale up 1.2,
// scale down 0.5, steps within [1e-6, 50].
func New(options ...Option) (*RProp, error) {
	r := &RProp{
		initStep:  1e-3,
		scaleUp:   1.2,
		scaleDown: 0.5,
		minStep:   1e-6,
		maxStep:   50,
	}
	for _, opt := range options {
		opt(r)
	}

	switch {
	case !(r.minStep > 0) || !(r.maxStep >= r.minStep) || math.IsInf(r.maxStep, 0):
		return nil, fmt.Errorf("%w: step bounds [%g, %g]", ErrInvalidParam, r.minStep, r.maxStep)
	case r.initStep < r.minStep || r.initStep > r.maxStep:
		return nil, fmt.Errorf("%w: initial step %g outside [%g, %g]", ErrInvalidParam, r.initStep, r.minStep, r.maxStep)
	case !(r.scaleUp > 1):
		return nil, fmt.Errorf("%w: scale up must exceed 1, got %g", ErrInvalidParam, r.scaleUp)
	case !(r.scaleDown > 0 && r.scaleDown < 1):
		return nil, fmt.Errorf("%w: scale down must be in (0, 1), got %g", ErrInvalidParam, r.scaleDown)
	}
	return r, nil
}

// Apply updates params in place from grads. For each entry with gradient g
// and previous gradient g':
//
//	g·g' > 0: step grows, param moves by −sign(g)·step
//	g·g' < 0: step shrinks, the previous update is undone and g is forgotten
//	otherwise: step is kept, param moves by −sign(g)·step
//
// The first call fixes the parameter shapes; later calls must match them.
func (r *RProp) Apply(params, grads []*mat.Dense) error {
	if len(params) != len(grads) {
		return fmt.Errorf("%w: %d params, %d gradients", ErrShapeMismatch, len(params), len(grads))
	}
	if r.steps == nil {
		r.init(params)
	}
	if len(params) != len(r.steps) {
		return fmt.Errorf("%w: %d params, optimizer tracks %d", ErrShapeMismatch, len(params), len(r.steps))
	}
	for k := range params {
		pr, pc := params[k].Dims()
		gr, gc := grads[k].Dims()
		sr, sc := r.steps[k].Dims()
		if pr != gr || pc != gc || pr != sr || pc != sc {
			return fmt.Errorf("%w: param %d is %dx%d, gradient %dx%d, state %dx%d",
				ErrShapeMismatch, k, pr, pc, gr, gc, sr, sc)
		}
	}

	for k, p := range params {
		rows, cols := p.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				r.update(p, k, i, j, grads[k].At(i, j))
			}
		}
	}
	return nil
}

func (r *RProp) update(param *mat.Dense, k, i, j int, g float64) {
	prev := r.prevGrads[k].At(i, j)
	step := r.steps[k].At(i, j)
	sign := g * prev

	switch {
	case sign > 0:
		step = math.Min(step*r.scaleUp, r.maxStep)
	case sign < 0:
		step = math.Max(step*r.scaleDown, r.minStep)
	}
	r.steps[k].Set(i, j, step)

	var delta float64
	if sign < 0 {
		delta = -r.prevDeltas[k].At(i, j)
		g = 0
	} else {
		switch {
		case g > 0:
			delta = -step
		case g < 0:
			delta = step
		}
	}

	param.Set(i, j, param.At(i, j)+delta)
	r.prevDeltas[k].Set(i, j, delta)
	r.prevGrads[k].Set(i, j, g)
}

func (r *RProp) init(params []*mat.Dense) {
	r.steps = make([]*mat.Dense, len(params))
	r.prevGrads = make([]*mat.Dense, len(params))
	r.prevDeltas = make([]*mat.Dense, len(params))
	for k, p := range params {
		rows, cols := p.Dims()
		r.steps[k] = mat.NewDense(rows, cols, nil)
		r.prevGrads[k] = mat.NewDense(rows, cols, nil)
		r.prevDeltas[k] = mat.NewDense(rows, cols, nil)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				r.steps[k].Set(i, j, r.initStep)
			}
		}
	}
}

// Steps returns a copy of the current step sizes of parameter k.
func (r *RProp) Steps(k int) *mat.Dense {
	if k < 0 || k >= len(r.steps) {
		return nil
	}
	return mat.DenseCopyOf(r.steps[k])
}

// Reset forgets all per-entry state.
func (r *RProp) Reset() {
	r.steps = nil
	r.prevGrads = nil
	r.prevDeltas = nil
}
