// Package qp solves the per-sample quadratic programs of the low-rank
// incomplete-LDL solver:
//
//	minimize   ½ zᵀ diag(p) z + qᵀ z
//	subject to z >= 0, Σ z = 1
//
// With a positive diagonal Hessian the KKT conditions give
// z_j = max((μ − q_j)/p_j, 0) for the multiplier μ of the equality
// constraint, so the problem is solved exactly by a breakpoint search over μ
// instead of a general-purpose active-set method.
package qp

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInfeasible is returned when a subproblem cannot be solved: a
	// non-positive curvature, a non-finite coefficient or a non-finite result.
	ErrInfeasible = errors.New("qp: subproblem infeasible")

	// ErrDimensionMismatch is returned when p, q and dst lengths disagree.
	ErrDimensionMismatch = errors.New("qp: dimension mismatch")
)

// SolveDiagSimplex solves one row subproblem with Hessian diag(p) and linear
// term q, writing the minimizer into dst. dst must have len(p) entries.
func SolveDiagSimplex(p, q, dst []float64) error {
	n := len(p)
	if n == 0 || len(q) != n || len(dst) != n {
		return fmt.Errorf("%w: len(p)=%d len(q)=%d len(dst)=%d", ErrDimensionMismatch, len(p), len(q), len(dst))
	}
	for j := 0; j < n; j++ {
		if !(p[j] > 0) || math.IsInf(p[j], 0) {
			return fmt.Errorf("%w: p[%d]=%g", ErrInfeasible, j, p[j])
		}
		if math.IsNaN(q[j]) || math.IsInf(q[j], 0) {
			return fmt.Errorf("%w: q[%d]=%g", ErrInfeasible, j, q[j])
		}
	}

	// Entries enter the support in ascending order of q.
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return q[idx[a]] < q[idx[b]] })

	var sumInv, sumQ, mu float64
	for k := 0; k < n; k++ {
		j := idx[k]
		sumInv += 1 / p[j]
		sumQ += q[j] / p[j]
		mu = (1 + sumQ) / sumInv
		if k == n-1 || mu <= q[idx[k+1]] {
			break
		}
	}

	for j := 0; j < n; j++ {
		z := (mu - q[j]) / p[j]
		if z < 0 {
			z = 0
		}
		if math.IsNaN(z) || math.IsInf(z, 0) {
			return fmt.Errorf("%w: z[%d]=%g", ErrInfeasible, j, z)
		}
		dst[j] = z
	}
	return nil
}

// Objective evaluates ½ zᵀ diag(p) z + qᵀ z.
func Objective(p, q, z []float64) float64 {
	var f float64
	for j := range z {
		f += 0.5*p[j]*z[j]*z[j] + q[j]*z[j]
	}
	return f
}

// SolveRows solves one subproblem per row, row i using P[i,:] as the
// diagonal Hessian and Q[i,:] as the linear term, and returns the stacked
// minimizers. Rows are independent; up to workers goroutines solve them
// (workers <= 0 means GOMAXPROCS). The result does not depend on workers.
func SolveRows(P, Q mat.Matrix, workers int) (*mat.Dense, error) {
	n, c := P.Dims()
	qr, qc := Q.Dims()
	if qr != n || qc != c {
		return nil, fmt.Errorf("%w: P is %dx%d, Q is %dx%d", ErrDimensionMismatch, n, c, qr, qc)
	}
	out := mat.NewDense(n, c, nil)
	if n == 0 {
		return out, nil
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}

	solve := func(i int, p, q []float64) error {
		mat.Row(p, i, P)
		mat.Row(q, i, Q)
		if err := SolveDiagSimplex(p, q, out.RawRowView(i)); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		return nil
	}

	if workers == 1 {
		p := make([]float64, c)
		q := make([]float64, c)
		for i := 0; i < n; i++ {
			if err := solve(i, p, q); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
		errRow   = n
	)
	rows := make(chan int, n)
	for i := 0; i < n; i++ {
		rows <- i
	}
	close(rows)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := make([]float64, c)
			q := make([]float64, c)
			for i := range rows {
				if err := solve(i, p, q); err != nil {
					// Keep the lowest failing row so the reported error is stable.
					errMu.Lock()
					if i < errRow {
						errRow, firstErr = i, err
					}
					errMu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
