package forest

import (
	"testing"

	"github.com/pbanos/arboretum/pkg/bv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRow struct {
	num  []float64
	code []uint32
	nNum int
}

func (r testRow) Num(pred int) float64 { return r.num[pred] }
func (r testRow) Code(pred int) uint32 { return r.code[pred-r.nNum] }

// twoTrees builds a numeric stump and a factor stump over levels {0,1,2}
// sending levels 0 and 2 left.
func twoTrees(t *testing.T) *Forest {
	b := NewBuilder(1)
	b.AddTree([]Node{
		{Pred: 0, LhDel: 1, Num: 2.5},
		{Offset: 0},
		{Offset: 1},
	}, bv.New(0), 0)
	bits := bv.New(3)
	bits.Set(0)
	bits.Set(2)
	b.AddTree([]Node{
		{Pred: 1, LhDel: 1, Num: 3, Offset: 0},
		{Offset: 0},
		{Offset: 1},
	}, bits, 3)
	f := b.Forest()
	require.Equal(t, 2, f.NTree())
	return f
}

func TestForestLeaf(t *testing.T) {
	f := twoTrees(t)
	assert.Equal(t, uint32(0), f.Leaf(0, testRow{num: []float64{2.5}, code: []uint32{0}, nNum: 1}))
	assert.Equal(t, uint32(1), f.Leaf(0, testRow{num: []float64{2.6}, code: []uint32{0}, nNum: 1}))
	assert.Equal(t, uint32(0), f.Leaf(1, testRow{num: []float64{0}, code: []uint32{2}, nNum: 1}))
	assert.Equal(t, uint32(1), f.Leaf(1, testRow{num: []float64{0}, code: []uint32{1}, nNum: 1}))
	// Proxy code for an unseen level goes right.
	assert.Equal(t, uint32(1), f.Leaf(1, testRow{num: []float64{0}, code: []uint32{3}, nNum: 1}))
	assert.Equal(t, []int{3, 6}, f.Heights())
	assert.Len(t, f.TreeNodes(1), 3)
}

func TestNewValidates(t *testing.T) {
	f := twoTrees(t)
	back, err := New(f.NPredNum(), f.Nodes(), f.Heights(), f.FactorBits())
	require.NoError(t, err)
	assert.Equal(t, f.Nodes(), back.Nodes())

	bad := []Node{{Pred: 0, LhDel: 2}, {}, {}}
	_, err = New(1, bad, []int{3}, f.FactorBits())
	assert.Error(t, err)
	j := bv.NewJagged()
	j.AppendRow(bv.New(0), 0)
	_, err = New(1, bad, []int{3}, j)
	assert.Error(t, err)
}

func TestLeafFrameGroupsSamples(t *testing.T) {
	lf := NewLeafFrame(2, false)
	lf.AddTree(
		[]Leaf{{Score: 0, Extent: 2, SCount: 3}, {Score: 1, Extent: 1, SCount: 1}},
		[]float64{1, 0, 0.25, 0.75},
		[]BagSample{{Leaf: 1, Row: 0, SCount: 1}, {Leaf: 0, Row: 2, SCount: 2}, {Leaf: 0, Row: 5, SCount: 1}},
	)
	lf.AddTree(
		[]Leaf{{Score: 1, Extent: 3, SCount: 3}},
		[]float64{0, 1},
		[]BagSample{{Leaf: 0, Row: 1, SCount: 1}, {Leaf: 0, Row: 3, SCount: 1}, {Leaf: 0, Row: 4, SCount: 1}},
	)
	assert.Equal(t, 2, lf.NTree())
	assert.Equal(t, []BagSample{{Leaf: 0, Row: 2, SCount: 2}, {Leaf: 0, Row: 5, SCount: 1}}, lf.Samples(0, 0))
	assert.Equal(t, []BagSample{{Leaf: 1, Row: 0, SCount: 1}}, lf.Samples(0, 1))
	assert.Len(t, lf.Samples(1, 0), 3)
	assert.Equal(t, []float64{0.25, 0.75}, lf.Weight(0, 1))
	assert.Equal(t, 1.0, lf.Score(1, 0))

	back, err := LeafFrameFrom(2, 0, lf.Leaves(), lf.LeafHeights(), lf.Weights(), lf.BagSamples(), lf.SampleEnds(), false)
	require.NoError(t, err)
	assert.Equal(t, lf.Samples(1, 0), back.Samples(1, 0))

	_, err = LeafFrameFrom(2, 0, lf.Leaves(), lf.LeafHeights(), lf.Weights()[1:], nil, nil, true)
	assert.Error(t, err)
}

func TestThinLeafFrameDropsSamples(t *testing.T) {
	lf := NewLeafFrame(0, true)
	lf.AddTree([]Leaf{{Score: 2}}, nil, []BagSample{{Leaf: 0, Row: 0, SCount: 1}})
	assert.True(t, lf.Thin())
	assert.Empty(t, lf.BagSamples())
	assert.Empty(t, lf.SampleEnds())
}

func TestBag(t *testing.T) {
	b := NewBag(6)
	assert.True(t, b.IsEmpty())
	b.AddTree([]uint32{0, 2, 5})
	b.AddTree([]uint32{1})
	assert.True(t, b.IsBagged(0, 2))
	assert.False(t, b.IsBagged(1, 2))
	assert.Equal(t, 3, b.BagCount(0))

	m := b.Matrix()
	assert.True(t, m.Test(5, 0))
	assert.True(t, m.Test(1, 1))
	assert.False(t, m.Test(1, 0))

	data, err := b.MarshalTrees()
	require.NoError(t, err)
	back, err := BagFrom(6, data)
	require.NoError(t, err)
	assert.Equal(t, 2, back.NTree())
	assert.True(t, back.IsBagged(0, 5))

	_, err = BagFrom(3, data)
	assert.Error(t, err)
}
