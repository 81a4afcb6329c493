// Package linalg holds the dense solves shared by the ADMM strategies.
package linalg

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrFactorization is returned when a decomposition fails, even after
	// diagonal jitter.
	ErrFactorization = errors.New("linalg: factorization failed")

	// ErrNotSquare is returned when a square matrix is required.
	ErrNotSquare = errors.New("linalg: matrix is not square")
)

// Gram returns XᵀX + ridge·I as a symmetric matrix.
func Gram(x mat.Matrix, ridge float64) *mat.SymDense {
	_, d := x.Dims()
	g := mat.NewSymDense(d, nil)
	g.SymOuterK(1, x.T())
	if ridge != 0 {
		for i := 0; i < d; i++ {
			g.SetSym(i, i, g.At(i, i)+ridge)
		}
	}
	return g
}

// PseudoInverse returns the Moore–Penrose pseudo-inverse of a, discarding
// singular values below max(r, c)·ε·σ_max.
func PseudoInverse(a mat.Matrix) (*mat.Dense, error) {
	r, c := a.Dims()
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: SVD did not converge", ErrFactorization)
	}
	values := svd.Values(nil)

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	cutoff := 0.0
	if len(values) > 0 {
		cutoff = float64(max(r, c)) * eps * values[0]
	}

	// A⁺ = V·diag(1/σ)·Uᵀ over the retained singular values.
	_, k := v.Dims()
	for j := 0; j < k; j++ {
		inv := 0.0
		if values[j] > cutoff {
			inv = 1 / values[j]
		}
		for i := 0; i < c; i++ {
			v.Set(i, j, v.At(i, j)*inv)
		}
	}

	out := mat.NewDense(c, r, nil)
	out.Mul(&v, u.T())
	return out, nil
}

const eps = 2.220446049250313e-16

// SolveSPD solves a·X = b for a symmetric positive definite a using a
// Cholesky factorization. If the factorization fails, jitter proportional to
// the mean diagonal is added once before giving up.
func SolveSPD(a *mat.SymDense, b mat.Matrix) (*mat.Dense, error) {
	n := a.SymmetricDim()
	br, bc := b.Dims()
	if br != n {
		return nil, fmt.Errorf("%w: system is %dx%d, right-hand side has %d rows", ErrNotSquare, n, n, br)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		jittered := mat.NewSymDense(n, nil)
		jittered.CopySym(a)
		trace := 0.0
		for i := 0; i < n; i++ {
			trace += jittered.At(i, i)
		}
		jitter := 1e-8 * math.Max(trace/float64(n), 1)
		for i := 0; i < n; i++ {
			jittered.SetSym(i, i, jittered.At(i, i)+jitter)
		}
		if ok := chol.Factorize(jittered); !ok {
			return nil, fmt.Errorf("%w: cholesky failed even with jitter", ErrFactorization)
		}
	}

	out := mat.NewDense(n, bc, nil)
	if err := chol.SolveTo(out, b); err != nil {
		// A Condition error is a warning; the solution is still usable.
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("%w: %v", ErrFactorization, err)
		}
	}
	return out, nil
}
