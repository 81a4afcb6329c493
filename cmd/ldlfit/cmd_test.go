package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-incomplete-ldl/dataset"
)

// writeToyData writes 12 samples whose distributions are a fixed linear map
// of three features. Two label cells are left blank.
func writeToyData(t *testing.T, dir string) (features, labels string) {
	t.Helper()
	x := mat.NewDense(12, 3, []float64{
		0.8, 0.1, 0.1,
		0.1, 0.8, 0.1,
		0.1, 0.1, 0.8,
		0.5, 0.5, 0.0,
		0.0, 0.5, 0.5,
		0.5, 0.0, 0.5,
		0.6, 0.3, 0.1,
		0.2, 0.3, 0.5,
		0.3, 0.6, 0.1,
		0.1, 0.2, 0.7,
		0.4, 0.4, 0.2,
		0.3, 0.1, 0.6,
	})
	w := mat.NewDense(3, 4, []float64{
		0.6, 0.2, 0.1, 0.1,
		0.1, 0.5, 0.3, 0.1,
		0.05, 0.15, 0.2, 0.6,
	})
	y := mat.NewDense(12, 4, nil)
	y.Mul(x, w)

	mask := mat.NewDense(12, 4, nil)
	for i := 0; i < 12; i++ {
		for j := 0; j < 4; j++ {
			mask.Set(i, j, 1)
		}
	}
	mask.Set(0, 1, 0)
	mask.Set(5, 3, 0)

	features = filepath.Join(dir, "x.csv")
	labels = filepath.Join(dir, "y.csv")
	require.NoError(t, dataset.WriteCSVFile(features, x, nil))
	require.NoError(t, dataset.WriteCSVFile(labels, dataset.ApplyMask(y, mask), nil))
	return features, labels
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFitPredictRoundTrip(t *testing.T) {
	dir := t.TempDir()
	features, labels := writeToyData(t, dir)
	model := filepath.Join(dir, "model.gob")
	metricsFile := filepath.Join(dir, "ldl.prom")

	out, err := run(t, "fit", "-a", "winldl", "--max-iterations", "30",
		"-x", features, "-y", labels, "-o", model, "--metrics-file", metricsFile)
	require.NoError(t, err)

	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, "winldl", stats["algorithm"])
	assert.Equal(t, true, stats["fitted"])
	assert.EqualValues(t, 30, stats["iterations"])

	body, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ldl_admm_iterations_total{algorithm="winldl"} 30`)

	out, err = run(t, "predict", "-a", "winldl", "-x", features, "-i", model)
	require.NoError(t, err)
	pred, _, err := dataset.ReadCSV(strings.NewReader(out), false)
	require.NoError(t, err)
	r, c := pred.Dims()
	assert.Equal(t, 12, r)
	assert.Equal(t, 4, c)
	for i := 0; i < r; i++ {
		assert.InDelta(t, 1, mat.Sum(pred.RowView(i)), 1e-9)
	}

	out, err = run(t, "predict", "-a", "winldl", "-x", features, "-i", model, "--top-k", "1")
	require.NoError(t, err)
	top, _, err := dataset.ReadCSV(strings.NewReader(out), false)
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		assert.Equal(t, 1.0, mat.Sum(top.RowView(i)))
	}
}

func TestFitRejectsUnsavableModel(t *testing.T) {
	dir := t.TempDir()
	features, labels := writeToyData(t, dir)
	_, err := run(t, "fit", "-a", "aaknn", "-x", features, "-y", labels, "-o", filepath.Join(dir, "m.gob"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be saved")
}

func TestEvalReportsEveryLearner(t *testing.T) {
	dir := t.TempDir()
	features, labels := writeToyData(t, dir)

	out, err := run(t, "eval", "--max-iterations", "30", "-x", features, "-y", labels,
		"--measures", "chebyshev,cosine")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "chebyshev")
	assert.Contains(t, lines[0], "cosine")
	assert.True(t, strings.HasPrefix(lines[1], "incomldl"))
	assert.True(t, strings.HasPrefix(lines[2], "winldl"))
	assert.True(t, strings.HasPrefix(lines[3], "aaknn"))
}

func TestBadFlagOverride(t *testing.T) {
	_, err := run(t, "fit", "-a", "svm", "-x", "x.csv", "-y", "y.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown algorithm")
}
