package ldl

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Linear holds the fitted d×c mapping of a linear learner. It is safe for
// concurrent use: predictions and saves take a read lock, Set swaps the
// mapping under the write lock.
type Linear struct {
	mu sync.RWMutex
	w  *mat.Dense
}

// Set replaces the mapping with w. The caller must not modify w afterwards.
func (l *Linear) Set(w *mat.Dense) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w = w
}

// Fitted reports whether a mapping is present.
func (l *Linear) Fitted() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.w != nil
}

// Dims returns the feature and label dimensions, or zeros before fitting.
func (l *Linear) Dims() (features, labels int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.w == nil {
		return 0, 0
	}
	return l.w.Dims()
}

// Weights returns a copy of the mapping.
func (l *Linear) Weights() (*mat.Dense, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.w == nil {
		return nil, ErrNotFitted
	}
	return mat.DenseCopyOf(l.w), nil
}

// Scores returns X·W.
func (l *Linear) Scores(x mat.Matrix) (*mat.Dense, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.w == nil {
		return nil, ErrNotFitted
	}
	d, c := l.w.Dims()
	if err := CheckFeatures(x, d); err != nil {
		return nil, err
	}
	n, _ := x.Dims()
	out := mat.NewDense(n, c, nil)
	out.Mul(x, l.w)
	return out, nil
}

// LinearState is the serialisable state of a linear learner.
type LinearState struct {
	Version   int                `gob:"version"`
	Algorithm string             `gob:"algorithm"`
	Params    map[string]float64 `gob:"params"`
	Rows      int                `gob:"rows"`
	Cols      int                `gob:"cols"`
	WData     []float64          `gob:"w_data"`
}

// Save writes the mapping and the learner's hyperparameters in gob format.
func (l *Linear) Save(w io.Writer, algorithm string, params map[string]float64) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.w == nil {
		return ErrNotFitted
	}

	r, c := l.w.Dims()
	state := LinearState{
		Version:   1,
		Algorithm: algorithm,
		Params:    params,
		Rows:      r,
		Cols:      c,
		WData:     make([]float64, 0, r*c),
	}
	for i := 0; i < r; i++ {
		state.WData = append(state.WData, l.w.RawRowView(i)[:c]...)
	}

	encoder := gob.NewEncoder(w)
	return encoder.Encode(state)
}

// LoadLinear reads a state written by Save and checks it belongs to algorithm.
func LoadLinear(r io.Reader, algorithm string) (*mat.Dense, map[string]float64, error) {
	decoder := gob.NewDecoder(r)

	var state LinearState
	if err := decoder.Decode(&state); err != nil {
		return nil, nil, err
	}
	if state.Version != 1 {
		return nil, nil, errors.New("unsupported gob version")
	}
	if state.Algorithm != algorithm {
		return nil, nil, fmt.Errorf("state was saved by %q, not %q", state.Algorithm, algorithm)
	}
	if state.Rows <= 0 || state.Cols <= 0 || len(state.WData) != state.Rows*state.Cols {
		return nil, nil, errors.New("invalid W data length")
	}

	data := make([]float64, len(state.WData))
	copy(data, state.WData)
	return mat.NewDense(state.Rows, state.Cols, data), state.Params, nil
}
