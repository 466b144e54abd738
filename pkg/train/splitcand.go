package train

import (
	"github.com/pbanos/arboretum/pkg/frame"
)

/*
splitCand is one (node, predictor) pair scheduled for evaluation at the
current level, together with the best split found for it.
*/
type splitCand struct {
	node int
	pred int
	def  mrra
	mono int
	seed int64

	found        bool
	info         float64
	left         accum
	rankLow      uint32
	rankHigh     uint32
	leftCodes    []bool
	implicitLeft bool
}

/*
evaluate scans the candidate's cells for the split maximizing information
net of the node's pre-bias, retaining it when it exceeds the node's minimum.
*/
func (sc *splitCand) evaluate(op *obsPart, rf *frame.RankedFrame, set *indexSet, nCtg int) {
	cells := op.cells(sc.pred, &sc.def)
	implicit := implicitBlock(cells, set, nCtg)
	implicit.extent = sc.def.implicit
	if rf.IsFactor(sc.pred) {
		rs := newRunSet(cells, &implicit, rf.DenseRank(sc.pred), nCtg)
		rs.split(sc, set)
		return
	}
	sc.splitNum(cells, &implicit, rf.DenseRank(sc.pred), set)
}

/*
implicitBlock recovers the response of the samples at the dense rank as the
node totals minus the explicit cells.
*/
func implicitBlock(cells []obsCell, set *indexSet, nCtg int) accum {
	expl := newAccum(nCtg)
	for i := range cells {
		expl.addCell(&cells[i])
	}
	return set.sum.sub(&expl)
}

func (sc *splitCand) consider(set *indexSet, left *accum) bool {
	info, ok := splitInfo(&set.sum, left, sc.mono)
	if !ok {
		return false
	}
	net := info - set.preBias
	if net <= set.minInfo || (sc.found && net <= sc.info) {
		return false
	}
	sc.found = true
	sc.info = net
	sc.left = left.clone()
	return true
}

/*
splitNum walks the cells in rank order with the implicit block inserted at
the dense rank, evaluating a cut wherever the rank changes.
*/
func (sc *splitCand) splitNum(cells []obsCell, implicit *accum, denseRank uint32, set *indexSet) {
	left := newAccum(len(set.sum.ctg))
	hasImplicit := implicit.extent > 0
	implicitDone := !hasImplicit
	var last uint32
	started := false
	step := func(rank uint32) {
		if started && rank != last && sc.consider(set, &left) {
			sc.rankLow, sc.rankHigh = last, rank
			sc.implicitLeft = hasImplicit && implicitDone
		}
		started = true
		last = rank
	}
	for i := range cells {
		if !implicitDone && denseRank < cells[i].rank {
			step(denseRank)
			left.addAccum(implicit)
			implicitDone = true
		}
		step(cells[i].rank)
		left.addCell(&cells[i])
	}
	if !implicitDone {
		step(denseRank)
		left.addAccum(implicit)
	}
}

/*
goesLeft applies the chosen split to an explicit cell.
*/
func (sc *splitCand) goesLeft(c *obsCell, isFactor bool) bool {
	if isFactor {
		return sc.leftCodes[c.rank]
	}
	return c.rank <= sc.rankLow
}
