// Package aaknn implements the algorithm-adaptation k-nearest-neighbour
// baseline: the predicted distribution of a sample is the average label
// distribution of its k nearest training samples.
package aaknn

import (
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-incomplete-ldl/admm"
	"github.com/n0madic/go-incomplete-ldl/ldl"
)

// Algorithm is the name used in logs and reports.
const Algorithm = "aaknn"

// AAKNN stores the training set and answers queries by Euclidean
// nearest-neighbour search. Safe for concurrent Predict calls.
type AAKNN struct {
	k int

	mu     sync.RWMutex
	x      *mat.Dense
	y      *mat.Dense
	mask   *mat.Dense
	masked bool
	avg    []float64
}

var _ ldl.Estimator = (*AAKNN)(nil)

// Option configures an AAKNN.
type Option func(*AAKNN)

// WithK sets the number of neighbours.
func WithK(k int) Option {
	return func(m *AAKNN) {
		m.k = k
	}
}

// New creates an unfitted AAKNN with k = 5 unless overridden.
func New(options ...Option) (*AAKNN, error) {
	m := &AAKNN{k: 5}
	for _, opt := range options {
		opt(m)
	}
	if m.k <= 0 {
		return nil, &admm.InputError{Field: "k", Reason: fmt.Sprintf("must be positive, got %d", m.k)}
	}
	return m, nil
}

// Fit stores the training data. With a mask, unobserved label entries are
// ignored when averaging neighbours.
func (m *AAKNN) Fit(x, y, mask mat.Matrix) error {
	p, err := admm.NewProblem(x, y, mask, 1)
	if err != nil {
		return err
	}
	n, _, _ := p.Dims()
	if m.k > n {
		return &admm.InputError{Field: "k", Reason: fmt.Sprintf("%d neighbours requested from %d samples", m.k, n)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.x, m.y, m.mask = p.X, p.Y, p.Mask
	m.masked = mask != nil
	m.avg = columnMeans(p.Y, p.Mask)
	return nil
}

// Predict averages the label distributions of the k nearest training samples.
// When the model was fitted with a mask, each label is averaged over the
// neighbours that observe it, falling back to the training mean of the label,
// and rows are renormalised to sum to one.
func (m *AAKNN) Predict(x mat.Matrix) (*mat.Dense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.x == nil {
		return nil, ldl.ErrNotFitted
	}
	n, d := m.x.Dims()
	_, c := m.y.Dims()
	if err := ldl.CheckFeatures(x, d); err != nil {
		return nil, err
	}

	q := mat.DenseCopyOf(x)
	rows, _ := q.Dims()
	out := mat.NewDense(rows, c, nil)
	dist := make([]float64, n)
	idx := make([]int, n)
	sum := make([]float64, c)
	count := make([]float64, c)

	for i := 0; i < rows; i++ {
		query := q.RawRowView(i)
		for t := 0; t < n; t++ {
			dist[t] = floats.Distance(query, m.x.RawRowView(t), 2)
			idx[t] = t
		}
		sort.SliceStable(idx, func(a, b int) bool { return dist[idx[a]] < dist[idx[b]] })

		for j := range sum {
			sum[j], count[j] = 0, 0
		}
		for _, t := range idx[:m.k] {
			floats.Add(sum, m.y.RawRowView(t))
			floats.Add(count, m.mask.RawRowView(t))
		}

		row := out.RawRowView(i)
		for j := range row {
			if count[j] == 0 {
				row[j] = m.avg[j]
				continue
			}
			row[j] = sum[j] / count[j]
		}
		if s := floats.Sum(row); m.masked && s > 0 {
			floats.Scale(1/s, row)
		}
	}
	return out, nil
}

// GetStats returns the model parameters.
func (m *AAKNN) GetStats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	samples := 0
	if m.x != nil {
		samples, _ = m.x.Dims()
	}
	return map[string]any{
		"algorithm": Algorithm,
		"k":         m.k,
		"fitted":    m.x != nil,
		"samples":   samples,
	}
}

func columnMeans(y, mask *mat.Dense) []float64 {
	_, c := y.Dims()
	avg := make([]float64, c)
	for j := 0; j < c; j++ {
		col := mat.Col(nil, j, y)
		obs := floats.Sum(mat.Col(nil, j, mask))
		if obs > 0 {
			avg[j] = floats.Sum(col) / obs
		}
	}
	return avg
}
