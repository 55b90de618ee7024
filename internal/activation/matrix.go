// Package activation holds sparse feature activation matrices
// (rows = examples, columns = features) in a column-oriented layout.
package activation

import (
	"fmt"
	"sort"
)

// Matrix is a sparse activation matrix stored by column (CSC).
// Duplicate entries of the source are summed and entries are sorted by row.
type Matrix struct {
	rows   int
	cols   int
	colPtr []int
	rowIdx []int
	values []float64
}

// Entry is one stored activation of a column.
type Entry struct {
	Row   int
	Value float64
}

type triplet struct {
	row, col int
	val      float64
}

// FromCSR builds a matrix from compressed sparse row arrays, as written by
// scipy.sparse.save_npz and friends.
func FromCSR(rows, cols int, indptr, indices []int, data []float64) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("invalid shape [%d,%d]", rows, cols)
	}
	if len(indptr) != rows+1 {
		return nil, fmt.Errorf("indptr has %d entries, expected %d", len(indptr), rows+1)
	}
	if len(indices) != len(data) {
		return nil, fmt.Errorf("indices (%d) and data (%d) differ in length", len(indices), len(data))
	}
	if indptr[0] != 0 || indptr[rows] != len(data) {
		return nil, fmt.Errorf("indptr must span [0,%d], got [%d,%d]", len(data), indptr[0], indptr[rows])
	}

	ts := make([]triplet, 0, len(data))
	for r := 0; r < rows; r++ {
		start, end := indptr[r], indptr[r+1]
		if start > end || end > len(data) {
			return nil, fmt.Errorf("indptr is not monotonic at row %d", r)
		}
		for k := start; k < end; k++ {
			c := indices[k]
			if c < 0 || c >= cols {
				return nil, fmt.Errorf("column index %d out of range at row %d", c, r)
			}
			ts = append(ts, triplet{row: r, col: c, val: data[k]})
		}
	}
	return fromTriplets(rows, cols, ts), nil
}

// FromDense builds a matrix from row-major dense values, keeping nonzero entries.
func FromDense(rows, cols int, data []float64) (*Matrix, error) {
	if len(data) != rows*cols {
		return nil, fmt.Errorf("dense data has %d values, expected %d", len(data), rows*cols)
	}
	ts := make([]triplet, 0)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if v := data[r*cols+c]; v != 0 {
				ts = append(ts, triplet{row: r, col: c, val: v})
			}
		}
	}
	return fromTriplets(rows, cols, ts), nil
}

func fromTriplets(rows, cols int, ts []triplet) *Matrix {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].col != ts[j].col {
			return ts[i].col < ts[j].col
		}
		return ts[i].row < ts[j].row
	})

	m := &Matrix{
		rows:   rows,
		cols:   cols,
		colPtr: make([]int, cols+1),
		rowIdx: make([]int, 0, len(ts)),
		values: make([]float64, 0, len(ts)),
	}
	for i, t := range ts {
		if i > 0 && ts[i-1].col == t.col && ts[i-1].row == t.row {
			m.values[len(m.values)-1] += t.val
			continue
		}
		m.rowIdx = append(m.rowIdx, t.row)
		m.values = append(m.values, t.val)
		m.colPtr[t.col+1]++
	}
	for c := 0; c < cols; c++ {
		m.colPtr[c+1] += m.colPtr[c]
	}
	return m
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (int, int) {
	return m.rows, m.cols
}

// Column returns the stored entries of column col, ordered by row.
func (m *Matrix) Column(col int) []Entry {
	start, end := m.colPtr[col], m.colPtr[col+1]
	out := make([]Entry, 0, end-start)
	for k := start; k < end; k++ {
		out = append(out, Entry{Row: m.rowIdx[k], Value: m.values[k]})
	}
	return out
}

// At returns the activation of example row for feature col.
func (m *Matrix) At(row, col int) float64 {
	start, end := m.colPtr[col], m.colPtr[col+1]
	k := sort.Search(end-start, func(i int) bool { return m.rowIdx[start+i] >= row })
	if k < end-start && m.rowIdx[start+k] == row {
		return m.values[start+k]
	}
	return 0
}

// NonzeroCount returns the number of examples with a strictly positive activation for col.
func (m *Matrix) NonzeroCount(col int) int {
	n := 0
	for k := m.colPtr[col]; k < m.colPtr[col+1]; k++ {
		if m.values[k] > 0 {
			n++
		}
	}
	return n
}

// NonzeroCounts returns NonzeroCount for columns [0, limit), clipped to the matrix width.
func (m *Matrix) NonzeroCounts(limit int) []int {
	if limit > m.cols {
		limit = m.cols
	}
	if limit < 0 {
		limit = 0
	}
	counts := make([]int, limit)
	for c := range counts {
		counts[c] = m.NonzeroCount(c)
	}
	return counts
}

// TopRows returns up to k entries of column col with value > threshold,
// ordered by descending value (ties by ascending row).
func (m *Matrix) TopRows(col, k int, threshold float64) []Entry {
	entries := make([]Entry, 0)
	for _, e := range m.Column(col) {
		if e.Value > threshold {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Value > entries[j].Value
	})
	if len(entries) > k {
		entries = entries[:k]
	}
	return entries
}
