package bv

import "github.com/pkg/errors"

/*
Jagged is a collection of bit rows of differing lengths stored back to back
in one BitVector. height[i] is the bit offset one past the end of row i.
*/
type Jagged struct {
	bits   *BitVector
	height []int
}

// NewJagged returns an empty collection.
func NewJagged() *Jagged {
	return &Jagged{bits: New(0)}
}

/*
JaggedFrom rebuilds a collection from its packed slots and cumulative row
heights, as produced by Slots and Heights.
*/
func JaggedFrom(slots []uint64, height []int) (*Jagged, error) {
	nBit := 0
	for i, h := range height {
		if h < nBit {
			return nil, errors.Errorf("row %d height %d below previous height %d", i, h, nBit)
		}
		nBit = h
	}
	if slotCount(nBit) > len(slots) {
		return nil, errors.Errorf("height %d exceeds %d packed slots", nBit, len(slots))
	}
	return &Jagged{bits: FromSlots(slots, nBit), height: height}, nil
}

// AppendRow copies the first nBit bits of row as a new row.
func (j *Jagged) AppendRow(row *BitVector, nBit int) {
	off := j.bits.Append(nBit)
	for pos := 0; pos < nBit; pos++ {
		if row.Test(pos) {
			j.bits.Set(off + pos)
		}
	}
	j.height = append(j.height, off+nBit)
}

// NRow returns the number of rows.
func (j *Jagged) NRow() int {
	return len(j.height)
}

// RowStart returns the bit offset at which row begins.
func (j *Jagged) RowStart(row int) int {
	if row == 0 {
		return 0
	}
	return j.height[row-1]
}

// RowLen returns the number of bits in row.
func (j *Jagged) RowLen(row int) int {
	return j.height[row] - j.RowStart(row)
}

// Test reports whether bit pos of row is set.
func (j *Jagged) Test(row, pos int) bool {
	return j.bits.Test(j.RowStart(row) + pos)
}

// Slots exposes the packed bits.
func (j *Jagged) Slots() []uint64 {
	return j.bits.Slots()
}

// Heights exposes the cumulative row ends.
func (j *Jagged) Heights() []int {
	return j.height
}
