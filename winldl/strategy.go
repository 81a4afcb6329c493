package winldl

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-incomplete-ldl/admm"
	"github.com/n0madic/go-incomplete-ldl/linalg"
	"github.com/n0madic/go-incomplete-ldl/prox"
)

// Ridge is the fixed diagonal loading of XᵀX in the mapping update.
const Ridge = 1e-5

// Strategy is the adaptive-weight ADMM strategy. There is no explicit
// regularizer: each label entry gets a confidence weight, fixed for observed
// entries and growing with the iteration fraction for unobserved ones, and
// the consensus is the weighted combination of prediction and target
// projected back onto the simplex.
type Strategy struct {
	gram *mat.SymDense // XᵀX + εI

	// avg[j] is the mean observed value of label j. Labels without any
	// observed entry fall back to the mean over all observed entries.
	avg []float64
	// fixed is Q1 = 2^(1−Y)⊙M.
	fixed *mat.Dense
	// q is the confidence matrix of the last consensus update.
	q *mat.Dense
}

// NewStrategy returns an adaptive-weight strategy.
func NewStrategy() *Strategy {
	return &Strategy{}
}

// Name implements admm.Strategy.
func (s *Strategy) Name() string { return Algorithm }

// Init starts from W = 0, Z = Y⊙M, V = 0 and derives the fixed weights.
func (s *Strategy) Init(p *admm.Problem, st *admm.State) error {
	n, _, c := p.Dims()

	s.gram = linalg.Gram(p.X, Ridge)
	s.avg = LabelAverages(p.Y, p.Mask)

	s.fixed = mat.NewDense(n, c, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < c; j++ {
			if p.Mask.At(i, j) == 1 {
				s.fixed.Set(i, j, math.Exp2(1-p.Y.At(i, j)))
			}
		}
	}
	s.q = mat.NewDense(n, c, nil)

	st.W.Zero()
	st.Z.Copy(p.Y)
	st.V.Zero()
	return nil
}

// LabelAverages returns the per-label mean of the observed entries of y.
// A label with no observed entry gets the mean of every observed entry, or
// zero if nothing is observed at all.
func LabelAverages(y, mask mat.Matrix) []float64 {
	n, c := y.Dims()
	avg := make([]float64, c)
	counts := make([]int, c)
	var total float64
	var observed int
	for i := 0; i < n; i++ {
		for j := 0; j < c; j++ {
			if mask.At(i, j) == 1 {
				v := y.At(i, j)
				avg[j] += v
				counts[j]++
				total += v
				observed++
			}
		}
	}
	fallback := 0.0
	if observed > 0 {
		fallback = total / float64(observed)
	}
	for j := range avg {
		if counts[j] == 0 {
			avg[j] = fallback
			continue
		}
		avg[j] /= float64(counts[j])
	}
	return avg
}

// UpdateMapping sets W = (XᵀX + εI)⁻¹ Xᵀ(Z − V/ρ).
func (s *Strategy) UpdateMapping(p *admm.Problem, st *admm.State) error {
	var target mat.Dense
	target.Scale(-1/p.Rho, st.V)
	target.Add(&target, st.Z)

	_, d := p.X.Dims()
	_, c := st.Z.Dims()
	rhs := mat.NewDense(d, c, nil)
	rhs.Mul(p.X.T(), &target)

	w, err := linalg.SolveSPD(s.gram, rhs)
	if err != nil {
		return admm.Numerical("ridge solve", err)
	}
	st.W = w
	return nil
}

// UpdateConsensus refreshes the confidence weights for the current iteration
// and sets
//
//	Z = Π_simplex((ρXW + V + Q²⊙Ỹ) / (Q² + ρ)),  Ỹ = XW⊙(1−M) + Y⊙M.
func (s *Strategy) UpdateConsensus(p *admm.Problem, st *admm.State) error {
	s.updateConfidence(p, st)

	xw := st.Predict(p.X)
	n, c := xw.Dims()
	z := mat.NewDense(n, c, nil)
	for i := 0; i < n; i++ {
		row := z.RawRowView(i)
		for j := 0; j < c; j++ {
			pred := xw.At(i, j)
			target := p.Y.At(i, j)
			if p.Mask.At(i, j) == 0 {
				target = pred
			}
			q2 := s.q.At(i, j) * s.q.At(i, j)
			row[j] = (p.Rho*pred + st.V.At(i, j) + q2*target) / (q2 + p.Rho)
		}
		if _, err := prox.Simplex(row, row); err != nil {
			return admm.Numerical("simplex projection", err)
		}
	}
	st.Z = z
	return nil
}

// updateConfidence sets Q = Q1 + Q2 where Q2 = a^avg_j on unobserved entries
// and a = 1 + t/T grows from 1 towards 2 over the iteration budget.
func (s *Strategy) updateConfidence(p *admm.Problem, st *admm.State) {
	a := ScheduleBase(st.Iteration, st.MaxIterations)
	n, c := s.q.Dims()
	growth := make([]float64, c)
	for j := range growth {
		growth[j] = math.Pow(a, s.avg[j])
	}
	for i := 0; i < n; i++ {
		for j := 0; j < c; j++ {
			v := s.fixed.At(i, j)
			if p.Mask.At(i, j) == 0 {
				v += growth[j]
			}
			s.q.Set(i, j, v)
		}
	}
}

// ScheduleBase returns 1 + iteration/maxIterations.
func ScheduleBase(iteration, maxIterations int) float64 {
	if maxIterations <= 0 {
		return 1
	}
	return 1 + float64(iteration)/float64(maxIterations)
}

// Confidence returns a copy of the confidence weights used by the most
// recent consensus update, or nil before Init.
func (s *Strategy) Confidence() *mat.Dense {
	if s.q == nil {
		return nil
	}
	return mat.DenseCopyOf(s.q)
}

// Averages returns a copy of the per-label averages computed by Init.
func (s *Strategy) Averages() []float64 {
	return append([]float64(nil), s.avg...)
}
