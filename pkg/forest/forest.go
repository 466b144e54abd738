/*
Package forest holds the immutable products of training: the packed forest
of decision nodes, the leaf frame scoring its terminals, and the bag
recording which rows each tree was grown from.
*/
package forest

import (
	"github.com/pbanos/arboretum/pkg/bv"
	"github.com/pkg/errors"
)

/*
Node is a decision node in packed form. A nonterminal sends an observation
to LhDel nodes past itself when the observation goes left, and one further
when it goes right. Numeric nonterminals go left when the value is at most
Num; factor nonterminals go left when bit Offset+code of the tree's factor
bits is set. For terminals LhDel is 0 and Offset is the tree-relative leaf
index.
*/
type Node struct {
	Pred   uint32
	LhDel  uint32
	Num    float64
	Offset uint32
}

// IsTerminal reports whether the node is a leaf.
func (n Node) IsTerminal() bool {
	return n.LhDel == 0
}

// Row gives a traversal access to one observation.
type Row interface {
	Num(pred int) float64
	Code(pred int) uint32
}

/*
Forest is the concatenation of every tree's nodes, with height[t] the index
one past the last node of tree t, plus one jagged row of factor-split bits
per tree. A Forest is never modified once built.
*/
type Forest struct {
	nPredNum int
	nodes    []Node
	height   []int
	facBits  *bv.Jagged
}

/*
New assembles a forest from its packed parts, as produced by Nodes, Heights
and FactorBits, checking that they agree.
*/
func New(nPredNum int, nodes []Node, height []int, facBits *bv.Jagged) (*Forest, error) {
	if facBits.NRow() != len(height) {
		return nil, errors.Errorf("%d factor bit rows for %d trees", facBits.NRow(), len(height))
	}
	start := 0
	for t, end := range height {
		if end < start || end > len(nodes) {
			return nil, errors.Errorf("tree %d height %d out of order", t, end)
		}
		for i := start; i < end; i++ {
			n := nodes[i]
			if !n.IsTerminal() && i+int(n.LhDel)+1 >= end {
				return nil, errors.Errorf("tree %d node %d branches past its tree", t, i-start)
			}
		}
		start = end
	}
	return &Forest{nPredNum: nPredNum, nodes: nodes, height: height, facBits: facBits}, nil
}

// NTree returns the number of trees.
func (f *Forest) NTree() int {
	return len(f.height)
}

// NPredNum returns the number of numeric predictors the forest was trained on.
func (f *Forest) NPredNum() int {
	return f.nPredNum
}

// Nodes exposes the concatenated node array.
func (f *Forest) Nodes() []Node {
	return f.nodes
}

// Heights exposes the per-tree node offsets.
func (f *Forest) Heights() []int {
	return f.height
}

// FactorBits exposes the per-tree factor-split bits.
func (f *Forest) FactorBits() *bv.Jagged {
	return f.facBits
}

// TreeNodes returns the nodes of tree t.
func (f *Forest) TreeNodes(t int) []Node {
	start := 0
	if t > 0 {
		start = f.height[t-1]
	}
	return f.nodes[start:f.height[t]]
}

/*
Leaf walks tree t from its root for row and returns the index of the
terminal reached. Factor codes beyond the bits recorded for a split, such
as proxies for levels unseen in training, go right.
*/
func (f *Forest) Leaf(t int, row Row) uint32 {
	nodes := f.TreeNodes(t)
	idx := 0
	for {
		n := nodes[idx]
		if n.IsTerminal() {
			return n.Offset
		}
		left := false
		if int(n.Pred) < f.nPredNum {
			left = row.Num(int(n.Pred)) <= n.Num
		} else {
			left = f.testFactor(t, n, row.Code(int(n.Pred)))
		}
		idx += int(n.LhDel)
		if !left {
			idx++
		}
	}
}

func (f *Forest) testFactor(t int, n Node, code uint32) bool {
	pos := int(n.Offset) + int(code)
	if pos >= f.facBits.RowLen(t) || uint64(code) >= uint64(n.Num) {
		return false
	}
	return f.facBits.Test(t, pos)
}

/*
Builder accumulates trees into a Forest. Trees are appended in training
order.
*/
type Builder struct {
	nPredNum int
	nodes    []Node
	height   []int
	facBits  *bv.Jagged
}

// NewBuilder returns an empty Builder.
func NewBuilder(nPredNum int) *Builder {
	return &Builder{nPredNum: nPredNum, facBits: bv.NewJagged()}
}

/*
AddTree appends a tree given its nodes and the first nBit bits of its factor
split vector. Factor nonterminals carry their predictor's cardinality in Num.
*/
func (b *Builder) AddTree(nodes []Node, facBits *bv.BitVector, nBit int) {
	b.nodes = append(b.nodes, nodes...)
	b.height = append(b.height, len(b.nodes))
	b.facBits.AppendRow(facBits, nBit)
}

// Forest returns the built forest.
func (b *Builder) Forest() *Forest {
	return &Forest{nPredNum: b.nPredNum, nodes: b.nodes, height: b.height, facBits: b.facBits}
}
