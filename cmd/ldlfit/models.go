package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-incomplete-ldl/aaknn"
	"github.com/n0madic/go-incomplete-ldl/admm"
	"github.com/n0madic/go-incomplete-ldl/incomldl"
	"github.com/n0madic/go-incomplete-ldl/ldl"
	"github.com/n0madic/go-incomplete-ldl/winldl"
)

// learner is what the commands need from a model.
type learner interface {
	ldl.Estimator
	GetStats() map[string]any
}

type contextFitter interface {
	FitContext(ctx context.Context, x, y, mask mat.Matrix) error
}

type saver interface {
	Save(w io.Writer) error
}

// newLearner builds the configured algorithm.
func newLearner(cfg Config, algorithm string, logger zerolog.Logger, observer admm.Observer) (learner, error) {
	switch algorithm {
	case incomldl.Algorithm:
		return incomldl.New(
			incomldl.WithRho(cfg.IncomLDL.Rho),
			incomldl.WithAlpha(cfg.IncomLDL.Alpha),
			incomldl.WithWorkers(cfg.IncomLDL.Workers),
			incomldl.WithMaxIterations(cfg.MaxIterations),
			incomldl.WithLogEvery(cfg.LogEvery),
			incomldl.WithLogger(logger),
			incomldl.WithObserver(observer),
		)
	case winldl.Algorithm:
		return winldl.New(
			winldl.WithRho(cfg.WInLDL.Rho),
			winldl.WithMaxIterations(cfg.MaxIterations),
			winldl.WithLogEvery(cfg.LogEvery),
			winldl.WithLogger(logger),
			winldl.WithObserver(observer),
		)
	case aaknn.Algorithm:
		return aaknn.New(aaknn.WithK(cfg.AAKNN.K))
	default:
		return nil, fmt.Errorf("unknown algorithm %q", algorithm)
	}
}

// loadLearner reads a model saved by the fit command.
func loadLearner(r io.Reader, algorithm string, logger zerolog.Logger) (learner, error) {
	switch algorithm {
	case incomldl.Algorithm:
		return incomldl.Load(r, incomldl.WithLogger(logger))
	case winldl.Algorithm:
		return winldl.Load(r, winldl.WithLogger(logger))
	default:
		return nil, fmt.Errorf("algorithm %q has no saved form", algorithm)
	}
}

func fit(ctx context.Context, l learner, x, y, mask mat.Matrix) error {
	if cf, ok := l.(contextFitter); ok {
		return cf.FitContext(ctx, x, y, mask)
	}
	return l.Fit(x, y, mask)
}
