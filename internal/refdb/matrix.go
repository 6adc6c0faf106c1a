package refdb

import "fmt"

// Matrix is a dense rows x cols container of float64 stored row-major.
// Rows are appended during loading and never modified afterwards.
type Matrix struct {
	cols int
	data []float64
}

// NewMatrix returns an empty matrix with the given row width and capacity hint.
func NewMatrix(cols, rowsHint int) *Matrix {
	return &Matrix{cols: cols, data: make([]float64, 0, cols*rowsHint)}
}

// AppendRow copies row into the matrix. The row must have exactly Cols values.
func (m *Matrix) AppendRow(row []float64) error {
	if len(row) != m.cols {
		return fmt.Errorf("row width %d, expected %d", len(row), m.cols)
	}
	m.data = append(m.data, row...)
	return nil
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int {
	if m.cols == 0 {
		return 0
	}
	return len(m.data) / m.cols
}

// Cols returns the row width.
func (m *Matrix) Cols() int {
	return m.cols
}

// Row returns row i as a view into the matrix. Callers must not modify it.
// Panics if i is out of range.
func (m *Matrix) Row(i int) []float64 {
	if i < 0 || i >= m.Rows() {
		panic(fmt.Sprintf("refdb: row %d out of range [0,%d)", i, m.Rows()))
	}
	return m.data[i*m.cols : (i+1)*m.cols : (i+1)*m.cols]
}

// At returns the element at (row, col). Panics if either index is out of range.
func (m *Matrix) At(row, col int) float64 {
	if col < 0 || col >= m.cols {
		panic(fmt.Sprintf("refdb: column %d out of range [0,%d)", col, m.cols))
	}
	return m.Row(row)[col]
}
