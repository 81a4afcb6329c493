// Package ldl defines the contract shared by every label distribution
// learner in this module and the fitted-state plumbing of the linear ones.
package ldl

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNotFitted is returned by Predict and Save before a successful Fit.
	ErrNotFitted = errors.New("ldl: model is not fitted")

	// ErrFeatureMismatch is returned when prediction features do not match
	// the training dimension.
	ErrFeatureMismatch = errors.New("ldl: feature dimension mismatch")
)

// Estimator is the fit/predict contract implemented by every learner.
// Fit accepts an n×d feature matrix, an n×c label-distribution matrix and an
// optional n×c observation mask (nil means fully observed). Predict returns
// an m×c matrix of label scores or distributions.
type Estimator interface {
	Fit(x, y, mask mat.Matrix) error
	Predict(x mat.Matrix) (*mat.Dense, error)
}

// CheckFeatures validates a prediction input against the training dimension.
func CheckFeatures(x mat.Matrix, nFeatures int) error {
	if x == nil {
		return fmt.Errorf("%w: nil matrix", ErrFeatureMismatch)
	}
	r, d := x.Dims()
	if r == 0 || d != nFeatures {
		return fmt.Errorf("%w: got %dx%d, want %d columns", ErrFeatureMismatch, r, d, nFeatures)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < d; j++ {
			if v := x.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: NaN or Inf at (%d,%d)", ErrFeatureMismatch, i, j)
			}
		}
	}
	return nil
}
