package ldl

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ErrBinarizeParam is returned for an out-of-range binarization parameter.
var ErrBinarizeParam = errors.New("ldl: invalid binarization parameter")

// BinarizeThreshold marks, per row, the smallest set of highest-described
// labels whose cumulative description degree reaches threshold, which must
// lie in [0, 1).
func BinarizeThreshold(y mat.Matrix, threshold float64) (*mat.Dense, error) {
	if threshold < 0 || threshold >= 1 {
		return nil, fmt.Errorf("%w: threshold %g not in [0, 1)", ErrBinarizeParam, threshold)
	}
	return binarize(y, func(sorted []float64) int {
		cum := 0.0
		for k, v := range sorted {
			cum += v
			if cum >= threshold {
				return k + 1
			}
		}
		return len(sorted)
	})
}

// BinarizeTopK marks the k highest-described labels of each row, with
// 1 <= k < number of labels.
func BinarizeTopK(y mat.Matrix, k int) (*mat.Dense, error) {
	_, c := y.Dims()
	if k < 1 || k >= c {
		return nil, fmt.Errorf("%w: k=%d not in [1, %d)", ErrBinarizeParam, k, c)
	}
	return binarize(y, func([]float64) int { return k })
}

// binarize sets to 1 the top count(row) entries of each row.
func binarize(y mat.Matrix, count func(sorted []float64) int) (*mat.Dense, error) {
	n, c := y.Dims()
	out := mat.NewDense(n, c, nil)
	row := make([]float64, c)
	idx := make([]int, c)
	sorted := make([]float64, c)
	for i := 0; i < n; i++ {
		mat.Row(row, i, y)
		for j := range idx {
			idx[j] = j
		}
		sort.SliceStable(idx, func(a, b int) bool { return row[idx[a]] > row[idx[b]] })
		for j, k := range idx {
			sorted[j] = row[k]
		}
		for _, j := range idx[:count(sorted)] {
			out.Set(i, j, 1)
		}
	}
	return out, nil
}
