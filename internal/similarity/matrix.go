// Package similarity holds the precomputed, read-only similarity matrix aligned with the
// record table: row i and column i both refer to record i.
package similarity

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNotSquare is returned when the matrix data does not describe an n×n matrix.
	ErrNotSquare = errors.New("similarity matrix is not square")
	// ErrNonFinite is returned when the matrix contains NaN or ±Inf.
	ErrNonFinite = errors.New("similarity matrix contains non-finite value")
)

// Entry is one cell of a similarity row.
type Entry struct {
	Index      int
	Similarity float64
}

// Matrix is a dense n×n similarity matrix stored row-major. It is immutable after construction.
type Matrix struct {
	n    int
	data []float64
}

// New builds a matrix from rows. Every row must have len(rows) entries and all values must be finite.
func New(rows [][]float64) (*Matrix, error) {
	n := len(rows)
	data := make([]float64, n*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has %d entries, want %d", ErrNotSquare, i, len(row), n)
		}
		for j, v := range row {
			data[i*n+j] = v
		}
	}
	return fromData(n, data)
}

func fromData(n int, data []float64) (*Matrix, error) {
	if len(data) != n*n {
		return nil, fmt.Errorf("%w: %d values for size %d", ErrNotSquare, len(data), n)
	}
	for k, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w at (%d, %d)", ErrNonFinite, k/n, k%n)
		}
	}
	return &Matrix{n: n, data: data}, nil
}

// Size returns the row (and column) count.
func (m *Matrix) Size() int {
	return m.n
}

// At returns the similarity between records i and j.
func (m *Matrix) At(i, j int) float64 {
	return m.data[i*m.n+j]
}

// Row returns the similarity of record i to every record, in storage order.
// The result has Size() entries and includes i itself; callers exclude it.
func (m *Matrix) Row(i int) []Entry {
	if i < 0 || i >= m.n {
		return nil
	}
	row := m.data[i*m.n : (i+1)*m.n]
	out := make([]Entry, m.n)
	for j, v := range row {
		out[j] = Entry{Index: j, Similarity: v}
	}
	return out
}
