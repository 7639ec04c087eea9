// Package mat provides row-major float32 matrix views over
// gonum blas32.General values.
//
// Views never copy: Cols and Rows return a General sharing the parent's
// backing array, so they are free to create on the audio thread.
package mat

import "gonum.org/v1/gonum/blas/blas32"

// New returns a zeroed rows x cols matrix.
func New(rows, cols int) blas32.General {
	return blas32.General{
		Rows:   rows,
		Cols:   cols,
		Stride: cols,
		Data:   make([]float32, rows*cols),
	}
}

// Cols returns the n columns of m starting at column start.
func Cols(m blas32.General, start, n int) blas32.General {
	if m.Rows == 0 || n == 0 {
		return blas32.General{Rows: m.Rows, Cols: n, Stride: m.Stride}
	}

	end := start + (m.Rows-1)*m.Stride + n

	return blas32.General{
		Rows:   m.Rows,
		Cols:   n,
		Stride: m.Stride,
		Data:   m.Data[start:end:end],
	}
}

// Rows returns the n rows of m starting at row start.
func Rows(m blas32.General, start, n int) blas32.General {
	if n == 0 || m.Cols == 0 {
		return blas32.General{Rows: n, Cols: m.Cols, Stride: m.Stride}
	}

	off := start * m.Stride
	end := off + (n-1)*m.Stride + m.Cols

	return blas32.General{
		Rows:   n,
		Cols:   m.Cols,
		Stride: m.Stride,
		Data:   m.Data[off:end:end],
	}
}

// Row returns row r of m as a slice of length m.Cols.
func Row(m blas32.General, r int) []float32 {
	off := r * m.Stride
	return m.Data[off : off+m.Cols]
}

// Zero sets every element of m to 0.
func Zero(m blas32.General) {
	for r := 0; r < m.Rows; r++ {
		clear(Row(m, r))
	}
}

// Copy copies src into dst. Both must have the same shape.
func Copy(dst, src blas32.General) {
	for r := 0; r < dst.Rows; r++ {
		copy(Row(dst, r), Row(src, r))
	}
}

// Add accumulates src into dst element-wise.
func Add(dst, src blas32.General) {
	for r := 0; r < dst.Rows; r++ {
		d := Row(dst, r)
		s := Row(src, r)
		for c := range d {
			d[c] += s[c]
		}
	}
}

// Mul multiplies dst by src element-wise.
func Mul(dst, src blas32.General) {
	for r := 0; r < dst.Rows; r++ {
		d := Row(dst, r)
		s := Row(src, r)
		for c := range d {
			d[c] *= s[c]
		}
	}
}

// AddColumn adds v[r] to every element of row r.
func AddColumn(m blas32.General, v []float32) {
	for r := 0; r < m.Rows; r++ {
		b := v[r]
		row := Row(m, r)
		for c := range row {
			row[c] += b
		}
	}
}

// Apply calls fn on every row of m.
func Apply(m blas32.General, fn func([]float32)) {
	for r := 0; r < m.Rows; r++ {
		fn(Row(m, r))
	}
}
