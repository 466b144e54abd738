/*
Package bv provides packed bit storage: growable bit vectors, row-major bit
matrices and jagged collections of variable-length bit rows.
*/
package bv

import (
	"math/bits"
	"sync/atomic"
)

const slotBits = 64

/*
BitVector is a sequence of bits packed into 64-bit slots. The zero value is
an empty vector ready to grow.
*/
type BitVector struct {
	nBit  int
	slots []uint64
}

// New returns a BitVector able to hold nBit bits, all unset.
func New(nBit int) *BitVector {
	return &BitVector{nBit: nBit, slots: make([]uint64, slotCount(nBit))}
}

/*
FromSlots wraps an existing slot slice holding nBit bits. The slice is not
copied.
*/
func FromSlots(slots []uint64, nBit int) *BitVector {
	if need := slotCount(nBit); len(slots) < need {
		grown := make([]uint64, need)
		copy(grown, slots)
		slots = grown
	}
	return &BitVector{nBit: nBit, slots: slots}
}

func slotCount(nBit int) int {
	return (nBit + slotBits - 1) / slotBits
}

// Len returns the number of addressable bits.
func (b *BitVector) Len() int {
	return b.nBit
}

// Slots exposes the packed representation, trimmed to the bits in use.
func (b *BitVector) Slots() []uint64 {
	return b.slots[:slotCount(b.nBit)]
}

// Test reports whether the bit at pos is set.
func (b *BitVector) Test(pos int) bool {
	return b.slots[pos/slotBits]&(uint64(1)<<(uint(pos)%slotBits)) != 0
}

// Set sets the bit at pos.
func (b *BitVector) Set(pos int) {
	b.slots[pos/slotBits] |= uint64(1) << (uint(pos) % slotBits)
}

// Unset clears the bit at pos.
func (b *BitVector) Unset(pos int) {
	b.slots[pos/slotBits] &^= uint64(1) << (uint(pos) % slotBits)
}

// SetTo sets or clears the bit at pos according to on.
func (b *BitVector) SetTo(pos int, on bool) {
	if on {
		b.Set(pos)
	} else {
		b.Unset(pos)
	}
}

/*
SetAtomic sets the bit at pos and is safe to call concurrently with other
SetAtomic calls on the same vector, including calls touching the same slot.
*/
func (b *BitVector) SetAtomic(pos int) {
	addr := &b.slots[pos/slotBits]
	mask := uint64(1) << (uint(pos) % slotBits)
	for {
		old := atomic.LoadUint64(addr)
		if old&mask != 0 || atomic.CompareAndSwapUint64(addr, old, old|mask) {
			return
		}
	}
}

// Clear unsets every bit, keeping the length.
func (b *BitVector) Clear() {
	for i := range b.slots {
		b.slots[i] = 0
	}
}

// Count returns the number of set bits.
func (b *BitVector) Count() int {
	n := 0
	for _, s := range b.Slots() {
		n += bits.OnesCount64(s)
	}
	return n
}

/*
Grow extends the vector to at least nBit bits. Capacity is doubled when
exhausted, so repeated appends are amortized.
*/
func (b *BitVector) Grow(nBit int) {
	if nBit <= b.nBit {
		return
	}
	need := slotCount(nBit)
	if need > cap(b.slots) {
		c := 2 * cap(b.slots)
		if c < need {
			c = need
		}
		grown := make([]uint64, need, c)
		copy(grown, b.slots)
		b.slots = grown
	} else {
		b.slots = b.slots[:need]
	}
	b.nBit = nBit
}

/*
Append grows the vector by nBit bits and returns the offset of the first new
bit.
*/
func (b *BitVector) Append(nBit int) int {
	off := b.nBit
	b.Grow(b.nBit + nBit)
	return off
}

// SetBits returns the positions of all set bits in increasing order.
func (b *BitVector) SetBits() []int {
	var out []int
	for i, s := range b.Slots() {
		for s != 0 {
			tz := bits.TrailingZeros64(s)
			out = append(out, i*slotBits+tz)
			s &= s - 1
		}
	}
	return out
}
