package forest

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/pbanos/arboretum/pkg/bv"
	"github.com/pkg/errors"
)

/*
Bag records, for every tree, the rows sampled to grow it. Each tree's rows
are kept in a compressed bitmap.
*/
type Bag struct {
	nRow  int
	trees []*roaring.Bitmap
}

// NewBag returns an empty bag over nRow training rows.
func NewBag(nRow int) *Bag {
	return &Bag{nRow: nRow}
}

// AddTree records the bagged rows of the next tree.
func (b *Bag) AddTree(rows []uint32) {
	bm := roaring.New()
	bm.AddMany(rows)
	b.trees = append(b.trees, bm)
}

// NRow returns the number of training rows.
func (b *Bag) NRow() int {
	return b.nRow
}

// NTree returns the number of trees recorded.
func (b *Bag) NTree() int {
	return len(b.trees)
}

// IsEmpty reports whether no tree was recorded.
func (b *Bag) IsEmpty() bool {
	return len(b.trees) == 0
}

// IsBagged reports whether row was sampled for tree t.
func (b *Bag) IsBagged(t, row int) bool {
	return b.trees[t].Contains(uint32(row))
}

// BagCount returns the number of distinct rows sampled for tree t.
func (b *Bag) BagCount(t int) int {
	return int(b.trees[t].GetCardinality())
}

/*
Matrix expands the bag into a row by tree bit matrix for constant-time
lookups during prediction.
*/
func (b *Bag) Matrix() *bv.BitMatrix {
	m := bv.NewMatrix(b.nRow, len(b.trees))
	for t, bm := range b.trees {
		it := bm.Iterator()
		for it.HasNext() {
			m.Set(int(it.Next()), t)
		}
	}
	return m
}

// MarshalTrees serializes every tree's bitmap.
func (b *Bag) MarshalTrees() ([][]byte, error) {
	out := make([][]byte, len(b.trees))
	for t, bm := range b.trees {
		data, err := bm.ToBytes()
		if err != nil {
			return nil, errors.Wrapf(err, "serializing bag of tree %d", t)
		}
		out[t] = data
	}
	return out, nil
}

// BagFrom rebuilds a bag from bitmaps serialized by MarshalTrees.
func BagFrom(nRow int, trees [][]byte) (*Bag, error) {
	b := &Bag{nRow: nRow, trees: make([]*roaring.Bitmap, len(trees))}
	for t, data := range trees {
		bm := roaring.New()
		if err := bm.UnmarshalBinary(data); err != nil {
			return nil, errors.Wrapf(err, "deserializing bag of tree %d", t)
		}
		if !bm.IsEmpty() && int(bm.Maximum()) >= nRow {
			return nil, errors.Errorf("bag of tree %d holds row %d beyond %d rows", t, bm.Maximum(), nRow)
		}
		b.trees[t] = bm
	}
	return b, nil
}
