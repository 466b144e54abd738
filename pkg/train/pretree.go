package train

import (
	"container/heap"
	"math/rand"

	"github.com/pbanos/arboretum/pkg/bv"
	"github.com/pbanos/arboretum/pkg/forest"
)

// ptNode is a pretree node; lhDel is 0 for terminals.
type ptNode struct {
	parent int
	pred   int
	lhDel  int
	num    float64
	card   uint32
	bitOff int
	info   float64
}

/*
preTree is the growing form of one tree. Children of a node are always
allocated as an adjacent pair, left first, after every existing node.
*/
type preTree struct {
	nodes     []ptNode
	height    int
	leafCount int
	facBits   *bv.BitVector
}

func newPreTree(bagCount int) *preTree {
	c := 16
	for c < bagCount && c < 1<<12 {
		c <<= 1
	}
	pt := &preTree{
		nodes:     make([]ptNode, c),
		height:    1,
		leafCount: 1,
		facBits:   bv.New(0),
	}
	pt.nodes[0].parent = -1
	return pt
}

func (pt *preTree) reserve(n int) {
	if pt.height+n <= len(pt.nodes) {
		return
	}
	c := 2 * len(pt.nodes)
	for c < pt.height+n {
		c *= 2
	}
	grown := make([]ptNode, c)
	copy(grown, pt.nodes[:pt.height])
	pt.nodes = grown
}

// branch turns terminal id into a nonterminal and returns its left child.
func (pt *preTree) branch(id, pred int, info float64) int {
	pt.reserve(2)
	left := pt.height
	pt.height += 2
	pt.nodes[left] = ptNode{parent: id}
	pt.nodes[left+1] = ptNode{parent: id}
	n := &pt.nodes[id]
	n.pred = pred
	n.info = info
	n.lhDel = left - id
	pt.leafCount++
	return left
}

func (pt *preTree) branchNum(id, pred int, info, value float64) int {
	left := pt.branch(id, pred, info)
	pt.nodes[id].num = value
	return left
}

/*
branchFac records a factor split, reserving card bits of the tree's factor
vector and setting those of the left codes.
*/
func (pt *preTree) branchFac(id, pred int, info float64, card uint32, leftCodes []bool) int {
	left := pt.branch(id, pred, info)
	off := pt.facBits.Append(int(card))
	for code, isLeft := range leftCodes {
		if isLeft {
			pt.facBits.Set(off + code)
		}
	}
	n := &pt.nodes[id]
	n.card = card
	n.bitOff = off
	return left
}

func (pt *preTree) isTerminal(id int) bool {
	return pt.nodes[id].lhDel == 0
}

// mergeable reports whether both children of nonterminal id are terminal.
func (pt *preTree) mergeable(id int) bool {
	left := id + pt.nodes[id].lhDel
	return !pt.isTerminal(id) && pt.isTerminal(left) && pt.isTerminal(left+1)
}

type mergeItem struct {
	id   int
	info float64
	tie  float64
}

type mergeQueue []mergeItem

func (q mergeQueue) Len() int { return len(q) }
func (q mergeQueue) Less(i, j int) bool {
	if q[i].info != q[j].info {
		return q[i].info < q[j].info
	}
	return q[i].tie < q[j].tie
}
func (q mergeQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *mergeQueue) Push(x interface{}) { *q = append(*q, x.(mergeItem)) }
func (q *mergeQueue) Pop() interface{} {
	old := *q
	x := old[len(old)-1]
	*q = old[:len(old)-1]
	return x
}

/*
mergeLeaves collapses the least informative splits whose children are both
terminal until at most leafMax leaves remain. Ties on information fall to
a uniform draw made per nonterminal.
*/
func (pt *preTree) mergeLeaves(leafMax int, rng *rand.Rand) {
	if leafMax <= 0 || pt.leafCount <= leafMax {
		return
	}
	tie := make([]float64, pt.height)
	for id := 0; id < pt.height; id++ {
		if !pt.isTerminal(id) {
			tie[id] = rng.Float64()
		}
	}
	q := mergeQueue{}
	for id := 0; id < pt.height; id++ {
		if pt.mergeable(id) {
			q = append(q, mergeItem{id, pt.nodes[id].info, tie[id]})
		}
	}
	heap.Init(&q)
	for pt.leafCount > leafMax && q.Len() > 0 {
		it := heap.Pop(&q).(mergeItem)
		pt.nodes[it.id].lhDel = 0
		pt.leafCount--
		if p := pt.nodes[it.id].parent; p >= 0 && pt.mergeable(p) {
			heap.Push(&q, mergeItem{p, pt.nodes[p].info, tie[p]})
		}
	}
}

/*
finalize packs the reachable nodes breadth first, so siblings stay
adjacent, and numbers leaves in that order. It returns the packed nodes, the
leaf count, and for every pretree node the leaf it falls into, -1 for nodes
neither terminal nor below a terminal.
*/
func (pt *preTree) finalize(nPredNum int) ([]forest.Node, int, []int) {
	order := make([]int, 0, 2*pt.leafCount-1)
	newIdx := make([]int, pt.height)
	order = append(order, 0)
	for i := 0; i < len(order); i++ {
		id := order[i]
		if pt.isTerminal(id) {
			continue
		}
		left := id + pt.nodes[id].lhDel
		newIdx[left] = len(order)
		order = append(order, left)
		newIdx[left+1] = len(order)
		order = append(order, left+1)
	}
	nodes := make([]forest.Node, len(order))
	leafIdx := make([]int, pt.height)
	for i := range leafIdx {
		leafIdx[i] = -1
	}
	nLeaf := 0
	for i, id := range order {
		n := &pt.nodes[id]
		if pt.isTerminal(id) {
			nodes[i] = forest.Node{Offset: uint32(nLeaf)}
			leafIdx[id] = nLeaf
			nLeaf++
			continue
		}
		left := id + n.lhDel
		fn := forest.Node{Pred: uint32(n.pred), LhDel: uint32(newIdx[left] - i)}
		if n.pred < nPredNum {
			fn.Num = n.num
		} else {
			fn.Num = float64(n.card)
			fn.Offset = uint32(n.bitOff)
		}
		nodes[i] = fn
	}
	leafOf := make([]int, pt.height)
	for id := 0; id < pt.height; id++ {
		leafOf[id] = leafIdx[id]
		if p := pt.nodes[id].parent; p >= 0 && leafOf[p] >= 0 {
			leafOf[id] = leafOf[p]
		}
	}
	return nodes, nLeaf, leafOf
}
