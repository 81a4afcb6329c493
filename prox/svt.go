package prox

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNegativeThreshold is returned when SVT is asked for τ < 0.
	ErrNegativeThreshold = errors.New("prox: negative threshold")

	// ErrSVDFailed is returned when the singular value decomposition does not converge.
	ErrSVDFailed = errors.New("prox: SVD factorization failed")
)

// SVT returns argmin_B ½‖B − A‖²_F + τ‖B‖_*, computed by soft-thresholding
// the singular values of a: A = UΣVᵀ, σ ← max(σ − τ, 0), B = U·diag(σ)·Vᵀ.
func SVT(a mat.Matrix, tau float64) (*mat.Dense, error) {
	if tau < 0 || math.IsNaN(tau) {
		return nil, fmt.Errorf("%w: tau=%g", ErrNegativeThreshold, tau)
	}
	r, c := a.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, ErrSVDFailed
	}
	values := svd.Values(nil)

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// Scale the columns of U by the shrunk singular values, then B = U'Vᵀ.
	k := len(values)
	for j := 0; j < k; j++ {
		s := math.Max(values[j]-tau, 0)
		for i := 0; i < r; i++ {
			u.Set(i, j, u.At(i, j)*s)
		}
	}

	out := mat.NewDense(r, c, nil)
	out.Mul(&u, v.T())
	for _, x := range out.RawMatrix().Data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, ErrSVDFailed
		}
	}
	return out, nil
}

// Rank returns the number of singular values of a strictly greater than tol.
func Rank(a mat.Matrix, tol float64) (int, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDNone); !ok {
		return 0, ErrSVDFailed
	}
	rank := 0
	for _, s := range svd.Values(nil) {
		if s > tol {
			rank++
		}
	}
	return rank, nil
}
