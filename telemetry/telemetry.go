// Package telemetry exports fit progress as Prometheus metrics.
package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/n0madic/go-incomplete-ldl/admm"
)

// Collector records ADMM fit events. It implements admm.Observer and owns a
// private registry so several collectors can coexist in one process.
type Collector struct {
	registry *prometheus.Registry

	FitDuration    *prometheus.HistogramVec
	Fits           *prometheus.CounterVec
	FitsInProgress *prometheus.GaugeVec
	Iterations     *prometheus.CounterVec
	PrimalResidual *prometheus.GaugeVec
	DualResidual   *prometheus.GaugeVec

	mu     sync.Mutex
	starts map[string][]time.Time
}

var _ admm.Observer = (*Collector)(nil)

// NewCollector creates a collector whose metric names start with namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		starts:   make(map[string][]time.Time),

		FitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fit_duration_seconds",
				Help:      "Wall time of a fit in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"algorithm", "result"},
		),

		Fits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fits_total",
				Help:      "Total number of finished fits by result",
			},
			[]string{"algorithm", "result"},
		),

		FitsInProgress: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "fits_in_progress",
				Help:      "Number of fits currently iterating",
			},
			[]string{"algorithm"},
		),

		Iterations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admm_iterations_total",
				Help:      "Total number of completed ADMM cycles",
			},
			[]string{"algorithm"},
		),

		PrimalResidual: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "admm_primal_residual",
				Help:      "Frobenius norm of XW - Z after the latest cycle",
			},
			[]string{"algorithm"},
		),

		DualResidual: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "admm_dual_residual",
				Help:      "rho times the Frobenius norm of the change in Z in the latest cycle",
			},
			[]string{"algorithm"},
		),
	}

	c.registry.MustRegister(
		c.FitDuration,
		c.Fits,
		c.FitsInProgress,
		c.Iterations,
		c.PrimalResidual,
		c.DualResidual,
	)
	return c
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteTextfile writes the current metrics in the text exposition format, for
// the node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// FitStarted implements admm.Observer.
func (c *Collector) FitStarted(algorithm string, _, _, _ int) {
	c.mu.Lock()
	c.starts[algorithm] = append(c.starts[algorithm], time.Now())
	c.mu.Unlock()
	c.FitsInProgress.WithLabelValues(algorithm).Inc()
}

// IterationDone implements admm.Observer.
func (c *Collector) IterationDone(algorithm string, stats admm.IterationStats) {
	c.Iterations.WithLabelValues(algorithm).Inc()
	c.PrimalResidual.WithLabelValues(algorithm).Set(stats.PrimalResidual)
	c.DualResidual.WithLabelValues(algorithm).Set(stats.DualResidual)
}

// FitFinished implements admm.Observer.
func (c *Collector) FitFinished(algorithm string, result *admm.Result, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}

	var elapsed time.Duration
	c.mu.Lock()
	if starts := c.starts[algorithm]; len(starts) > 0 {
		elapsed = time.Since(starts[0])
		c.starts[algorithm] = starts[1:]
	}
	c.mu.Unlock()
	if result != nil {
		elapsed = result.Duration
	}

	c.FitsInProgress.WithLabelValues(algorithm).Dec()
	c.Fits.WithLabelValues(algorithm, status).Inc()
	c.FitDuration.WithLabelValues(algorithm, status).Observe(elapsed.Seconds())
}
