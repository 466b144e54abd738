package bv

/*
BitMatrix is a row-major matrix of bits, each row padded to a whole number
of slots.
*/
type BitMatrix struct {
	nRow   int
	nCol   int
	stride int
	bits   *BitVector
}

// NewMatrix returns an nRow by nCol matrix with every bit unset.
func NewMatrix(nRow, nCol int) *BitMatrix {
	stride := slotCount(nCol) * slotBits
	return &BitMatrix{
		nRow:   nRow,
		nCol:   nCol,
		stride: stride,
		bits:   New(nRow * stride),
	}
}

// NRow returns the number of rows.
func (m *BitMatrix) NRow() int {
	return m.nRow
}

// NCol returns the number of columns.
func (m *BitMatrix) NCol() int {
	return m.nCol
}

// Test reports whether bit (row, col) is set.
func (m *BitMatrix) Test(row, col int) bool {
	return m.bits.Test(row*m.stride + col)
}

// Set sets bit (row, col).
func (m *BitMatrix) Set(row, col int) {
	m.bits.Set(row*m.stride + col)
}

// RowCount returns the number of set bits in row.
func (m *BitMatrix) RowCount(row int) int {
	n := 0
	for col := 0; col < m.nCol; col++ {
		if m.Test(row, col) {
			n++
		}
	}
	return n
}

// ColCount returns the number of set bits in col.
func (m *BitMatrix) ColCount(col int) int {
	n := 0
	for row := 0; row < m.nRow; row++ {
		if m.Test(row, col) {
			n++
		}
	}
	return n
}
