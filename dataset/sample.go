package dataset

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// RandomMask returns an n×c observation mask in which each entry is hidden
// with probability missingRate. Every row keeps at least one observed entry.
func RandomMask(rng *rand.Rand, n, c int, missingRate float64) (*mat.Dense, error) {
	if n <= 0 || c <= 0 {
		return nil, fmt.Errorf("dataset: mask shape %dx%d", n, c)
	}
	if missingRate < 0 || missingRate >= 1 {
		return nil, fmt.Errorf("dataset: missing rate %g outside [0, 1)", missingRate)
	}

	mask := mat.NewDense(n, c, nil)
	for i := 0; i < n; i++ {
		row := mask.RawRowView(i)
		observed := 0
		for j := range row {
			if rng.Float64() >= missingRate {
				row[j] = 1
				observed++
			}
		}
		if observed == 0 {
			row[rng.Intn(c)] = 1
		}
	}
	return mask, nil
}

// Split shuffles 0..n-1 and returns the first ⌈(1−testFraction)·n⌉ indices
// as the training set and the rest as the test set.
func Split(rng *rand.Rand, n int, testFraction float64) (train, test []int, err error) {
	if n < 2 {
		return nil, nil, fmt.Errorf("dataset: cannot split %d samples", n)
	}
	if !(testFraction > 0 && testFraction < 1) {
		return nil, nil, fmt.Errorf("dataset: test fraction %g outside (0, 1)", testFraction)
	}

	perm := rng.Perm(n)
	nTest := int(testFraction * float64(n))
	if nTest == 0 {
		nTest = 1
	}
	if nTest == n {
		nTest = n - 1
	}
	return perm[:n-nTest], perm[n-nTest:], nil
}

// Rows returns a new matrix holding the given rows of m in order. idx must
// not be empty.
func Rows(m mat.Matrix, idx []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for k, i := range idx {
		for j := 0; j < c; j++ {
			out.Set(k, j, m.At(i, j))
		}
	}
	return out
}
