package incomldl

import (
	"errors"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-incomplete-ldl/admm"
	"github.com/n0madic/go-incomplete-ldl/linalg"
	"github.com/n0madic/go-incomplete-ldl/prox"
	"github.com/n0madic/go-incomplete-ldl/qp"
)

// Strategy is the low-rank ADMM strategy. The mapping update solves one
// simplex-constrained QP per sample and fits W to the stacked solutions by
// least squares; the consensus update applies singular-value thresholding.
type Strategy struct {
	alpha   float64
	workers int

	// Problem-dependent, computed by Init.
	hessian *mat.Dense // n×c diagonal Hessians, 1+ρ observed / ρ unobserved
	solver  *mat.Dense // (XᵀX)⁺Xᵀ, d×n
}

// NewStrategy returns a strategy with nuclear-norm weight alpha, solving the
// row QPs with the given number of workers (<= 0 means GOMAXPROCS).
func NewStrategy(alpha float64, workers int) *Strategy {
	return &Strategy{alpha: alpha, workers: workers}
}

// Name implements admm.Strategy.
func (s *Strategy) Name() string { return Algorithm }

// Init starts from W = 0, Z = Y⊙M, V = 0.
func (s *Strategy) Init(p *admm.Problem, st *admm.State) error {
	n, _, c := p.Dims()

	s.hessian = mat.NewDense(n, c, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < c; j++ {
			s.hessian.Set(i, j, p.Rho+p.Mask.At(i, j))
		}
	}

	pinv, err := linalg.PseudoInverse(linalg.Gram(p.X, 0))
	if err != nil {
		return admm.Numerical("pseudo-inverse", err)
	}
	_, d, _ := p.Dims()
	s.solver = mat.NewDense(d, n, nil)
	s.solver.Mul(pinv, p.X.T())

	st.W.Zero()
	st.Z.Copy(p.Y)
	st.V.Zero()
	return nil
}

// UpdateMapping solves, for every sample i,
//
//	min_z ½ zᵀ P_i z + q_iᵀ z  s.t. z >= 0, Σz = 1
//
// with q_i = V_i − ρZ_i − Y_i⊙M_i, then sets W = (XᵀX)⁺Xᵀ·Z*.
func (s *Strategy) UpdateMapping(p *admm.Problem, st *admm.State) error {
	n, c := st.Z.Dims()
	q := mat.NewDense(n, c, nil)
	q.Scale(-p.Rho, st.Z)
	q.Add(q, st.V)
	q.Sub(q, p.Y)

	m, err := qp.SolveRows(s.hessian, q, s.workers)
	if err != nil {
		if errors.Is(err, qp.ErrInfeasible) {
			return admm.Infeasible("row QP", err)
		}
		return admm.Numerical("row QP", err)
	}

	st.W.Mul(s.solver, m)
	return nil
}

// UpdateConsensus sets Z = SVT(XW + V/ρ, α/ρ).
func (s *Strategy) UpdateConsensus(p *admm.Problem, st *admm.State) error {
	a := st.Predict(p.X)
	var scaled mat.Dense
	scaled.Scale(1/p.Rho, st.V)
	a.Add(a, &scaled)

	z, err := prox.SVT(a, s.alpha/p.Rho)
	if err != nil {
		return admm.Numerical("singular value thresholding", err)
	}
	st.Z = z
	return nil
}
