// Package prox implements the proximal primitives used by the ADMM solvers:
// Euclidean projection onto the probability simplex and singular-value
// thresholding (the proximal operator of the nuclear norm).
package prox

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrEmptyVector is returned when a zero-length vector is projected.
	ErrEmptyVector = errors.New("prox: empty vector")

	// ErrNonFinite is returned when an input holds NaN or ±Inf.
	ErrNonFinite = errors.New("prox: NaN or Inf in input")
)

// Simplex writes the Euclidean projection of v onto the probability simplex
// {x : x >= 0, sum(x) = 1} into dst and returns it. If dst is nil or too short
// a new slice is allocated. dst may alias v.
//
// The projection sorts v in descending order u, finds the largest ρ such that
// u_ρ > (Σ_{k<=ρ} u_k - 1)/ρ and shifts every entry by that threshold.
func Simplex(dst, v []float64) ([]float64, error) {
	n := len(v)
	if n == 0 {
		return nil, ErrEmptyVector
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, ErrNonFinite
		}
	}

	u := make([]float64, n)
	copy(u, v)
	sort.Sort(sort.Reverse(sort.Float64Slice(u)))

	theta := simplexThreshold(u)

	if len(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	for i, x := range v {
		dst[i] = math.Max(x-theta, 0)
	}
	return dst, nil
}

// simplexThreshold returns θ for a vector already sorted in descending order.
func simplexThreshold(u []float64) float64 {
	cumsum := 0.0
	theta := u[0] - 1 // ρ = 1 always satisfies the condition
	for i, x := range u {
		cumsum += x
		t := (cumsum - 1) / float64(i+1)
		if x > t {
			theta = t
		}
	}
	return theta
}

// SimplexRows projects every row of a onto the probability simplex and returns
// the result as a new matrix of the same shape.
func SimplexRows(a mat.Matrix) (*mat.Dense, error) {
	r, c := a.Dims()
	if c == 0 {
		return nil, ErrEmptyVector
	}
	out := mat.NewDense(r, c, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, a)
		if _, err := Simplex(out.RawRowView(i), row); err != nil {
			return nil, err
		}
	}
	return out, nil
}
