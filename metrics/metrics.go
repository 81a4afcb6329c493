// Package metrics implements the measures commonly reported for label
// distribution learning. Every measure compares the rows of a ground-truth
// and a predicted distribution matrix and returns the mean over rows.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Epsilon guards divisions and logarithms against zero entries.
const Epsilon = 1e-12

var (
	// ErrShapeMismatch is returned when the two matrices differ in shape.
	ErrShapeMismatch = errors.New("metrics: shape mismatch")
	// ErrUnknownMeasure is returned by Evaluate for an unregistered name.
	ErrUnknownMeasure = errors.New("metrics: unknown measure")
)

// RowFunc scores one ground-truth row against one predicted row.
type RowFunc func(y, p []float64) float64

// Measure is a named row measure. Lower is better for distances, higher for
// similarities.
type Measure struct {
	Name           string
	HigherIsBetter bool
	Row            RowFunc
}

var registry = map[string]Measure{
	"chebyshev":    {Name: "chebyshev", Row: chebyshev},
	"clark":        {Name: "clark", Row: clark},
	"canberra":     {Name: "canberra", Row: canberra},
	"kl":           {Name: "kl", Row: kullbackLeibler},
	"cosine":       {Name: "cosine", HigherIsBetter: true, Row: cosine},
	"intersection": {Name: "intersection", HigherIsBetter: true, Row: intersection},
}

// Names returns the registered measure names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the measure registered under name.
func Lookup(name string) (Measure, error) {
	m, ok := registry[name]
	if !ok {
		return Measure{}, fmt.Errorf("%w: %q", ErrUnknownMeasure, name)
	}
	return m, nil
}

// Mean applies row to every row pair and returns the average.
func Mean(y, p mat.Matrix, row RowFunc) (float64, error) {
	yr, yc := y.Dims()
	pr, pc := p.Dims()
	if yr != pr || yc != pc {
		return 0, fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch, yr, yc, pr, pc)
	}
	if yr == 0 {
		return 0, fmt.Errorf("%w: no rows", ErrShapeMismatch)
	}

	yd := mat.DenseCopyOf(y)
	pd := mat.DenseCopyOf(p)
	var total float64
	for i := 0; i < yr; i++ {
		total += row(yd.RawRowView(i), pd.RawRowView(i))
	}
	return total / float64(yr), nil
}

// Evaluate computes the named measures, or every registered measure when
// names is empty.
func Evaluate(y, p mat.Matrix, names ...string) (map[string]float64, error) {
	if len(names) == 0 {
		names = Names()
	}
	out := make(map[string]float64, len(names))
	for _, name := range names {
		m, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		v, err := Mean(y, p, m.Row)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// Chebyshev is the mean maximum absolute difference.
func Chebyshev(y, p mat.Matrix) (float64, error) { return Mean(y, p, chebyshev) }

// Clark is the mean Clark distance.
func Clark(y, p mat.Matrix) (float64, error) { return Mean(y, p, clark) }

// Canberra is the mean Canberra distance.
func Canberra(y, p mat.Matrix) (float64, error) { return Mean(y, p, canberra) }

// KL is the mean Kullback-Leibler divergence KL(y‖p).
func KL(y, p mat.Matrix) (float64, error) { return Mean(y, p, kullbackLeibler) }

// Cosine is the mean cosine similarity.
func Cosine(y, p mat.Matrix) (float64, error) { return Mean(y, p, cosine) }

// Intersection is the mean histogram intersection.
func Intersection(y, p mat.Matrix) (float64, error) { return Mean(y, p, intersection) }

func chebyshev(y, p []float64) float64 {
	return floats.Distance(y, p, math.Inf(1))
}

func clark(y, p []float64) float64 {
	var s float64
	for j := range y {
		d := y[j] - p[j]
		s += d * d / math.Max((y[j]+p[j])*(y[j]+p[j]), Epsilon)
	}
	return math.Sqrt(s)
}

func canberra(y, p []float64) float64 {
	var s float64
	for j := range y {
		s += math.Abs(y[j]-p[j]) / math.Max(y[j]+p[j], Epsilon)
	}
	return s
}

func kullbackLeibler(y, p []float64) float64 {
	var s float64
	for j := range y {
		if y[j] <= 0 {
			continue
		}
		s += y[j] * math.Log(y[j]/math.Max(p[j], Epsilon))
	}
	return s
}

func cosine(y, p []float64) float64 {
	den := floats.Norm(y, 2) * floats.Norm(p, 2)
	return floats.Dot(y, p) / math.Max(den, Epsilon)
}

func intersection(y, p []float64) float64 {
	var s float64
	for j := range y {
		s += math.Min(y[j], p[j])
	}
	return s
}
