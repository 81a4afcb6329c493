// Package dataset loads and prepares label distribution data: numeric CSV
// matrices, observation masks and train/test splits.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrEmpty is returned for a CSV without data rows.
	ErrEmpty = errors.New("dataset: no data")
	// ErrParse is returned for a malformed CSV cell.
	ErrParse = errors.New("dataset: parse error")
)

// ReadCSV reads a numeric matrix. Lines starting with '#' are skipped. When
// header is true the first record holds column names, which are returned.
// Empty cells and the literal "?" are read as NaN so that labels with missing
// entries can be stored in one file; see MaskFromLabels.
func ReadCSV(r io.Reader, header bool) (*mat.Dense, []string, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	var names []string
	if header && len(records) > 0 {
		names = records[0]
		records = records[1:]
	}
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, names, ErrEmpty
	}

	rows, cols := len(records), len(records[0])
	data := make([]float64, 0, rows*cols)
	for i, rec := range records {
		for j, cell := range rec {
			cell = strings.TrimSpace(cell)
			if cell == "" || cell == "?" {
				data = append(data, math.NaN())
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, names, fmt.Errorf("%w: row %d column %d: %w", ErrParse, i+1, j+1, err)
			}
			data = append(data, v)
		}
	}
	return mat.NewDense(rows, cols, data), names, nil
}

// ReadCSVFile is ReadCSV on a file.
func ReadCSVFile(path string, header bool) (*mat.Dense, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	m, names, err := ReadCSV(f, header)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, names, nil
}

// WriteCSV writes m with an optional header. NaN cells are written empty.
func WriteCSV(w io.Writer, m mat.Matrix, header []string) error {
	rows, cols := m.Dims()
	if header != nil && len(header) != cols {
		return fmt.Errorf("dataset: header has %d names for %d columns", len(header), cols)
	}

	cw := csv.NewWriter(w)
	if header != nil {
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	record := make([]string, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) {
				record[j] = ""
				continue
			}
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile is WriteCSV to a newly created file.
func WriteCSVFile(path string, m mat.Matrix, header []string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteCSV(f, m, header)
}

// MaskFromLabels returns 1 where y is a number and 0 where it is NaN, and a
// copy of y with NaN replaced by zero.
func MaskFromLabels(y mat.Matrix) (labels, mask *mat.Dense) {
	n, c := y.Dims()
	labels = mat.NewDense(n, c, nil)
	mask = mat.NewDense(n, c, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < c; j++ {
			v := y.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			labels.Set(i, j, v)
			mask.Set(i, j, 1)
		}
	}
	return labels, mask
}

// ApplyMask returns a copy of y with unobserved entries set to NaN, the form
// ReadCSV and WriteCSV use for missing labels.
func ApplyMask(y, mask mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(y)
	n, c := out.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < c; j++ {
			if mask.At(i, j) == 0 {
				out.Set(i, j, math.NaN())
			}
		}
	}
	return out
}
