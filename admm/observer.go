package admm

// IterationStats summarises one completed W→Z→V cycle.
type IterationStats struct {
	Iteration int
	// PrimalResidual is ‖XW − Z‖_F after the cycle.
	PrimalResidual float64
	// DualResidual is ρ‖Z − Z_prev‖_F.
	DualResidual float64
}

// Observer receives fit lifecycle events. Implementations must be cheap; they
// are called synchronously from the iteration loop.
type Observer interface {
	FitStarted(algorithm string, samples, features, labels int)
	IterationDone(algorithm string, stats IterationStats)
	FitFinished(algorithm string, result *Result, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) FitStarted(string, int, int, int)     {}
func (NopObserver) IterationDone(string, IterationStats) {}
func (NopObserver) FitFinished(string, *Result, error)   {}
