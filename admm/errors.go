package admm

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned before any iteration when the problem is
	// malformed: shape mismatches, a non-binary mask, non-finite data or an
	// unsupported hyperparameter.
	ErrInvalidInput = errors.New("admm: invalid input")

	// ErrNumericalFailure is returned when a decomposition or linear solve
	// fails or produces a non-finite result. The fit is aborted.
	ErrNumericalFailure = errors.New("admm: numerical failure")

	// ErrSubproblemInfeasible is returned when a per-row subproblem cannot be
	// solved. It is a numerical failure: errors.Is(err, ErrNumericalFailure)
	// holds for it.
	ErrSubproblemInfeasible = fmt.Errorf("%w: subproblem infeasible", ErrNumericalFailure)
)

// InputError describes which input was rejected and why.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("admm: invalid %s: %s", e.Field, e.Reason)
}

// Is reports InputError as ErrInvalidInput.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func inputErrorf(field, format string, args ...any) error {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Numerical wraps err as a numerical failure raised while running stage.
func Numerical(stage string, err error) error {
	if errors.Is(err, ErrNumericalFailure) {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return fmt.Errorf("%s: %w: %w", stage, ErrNumericalFailure, err)
}

// Infeasible wraps err as an infeasible subproblem raised while running stage.
func Infeasible(stage string, err error) error {
	return fmt.Errorf("%s: %w: %w", stage, ErrSubproblemInfeasible, err)
}
