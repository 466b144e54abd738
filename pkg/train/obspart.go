package train

import (
	"github.com/pbanos/arboretum/pkg/frame"
)

/*
obsCell is one staged observation: its rank for the predictor and the
sample it belongs to, with the sample's response carried along so split
scans never leave the buffer.
*/
type obsCell struct {
	rank   uint32
	sIdx   uint32
	sCount uint32
	ctg    uint32
	ySum   float64
}

/*
obsPart is the per-tree working copy of rank order. Each predictor owns the
region [offset, offset+stride) in both buffers. A definition names the
buffer holding a node's cells; restaging reads one buffer and writes the
other.
*/
type obsPart struct {
	offset []int
	buf    [2][]obsCell
}

func newObsPart(rf *frame.RankedFrame) *obsPart {
	op := &obsPart{offset: make([]int, rf.NPred())}
	for p := range op.offset {
		op.offset[p] = rf.SafeOffset(p)
	}
	op.buf[0] = make([]obsCell, rf.SafeSize())
	op.buf[1] = make([]obsCell, rf.SafeSize())
	return op
}

/*
stage writes the bagged observations of pred, in rank order, into buffer 0
and returns how many were written. Rows at the dense rank are never
materialized, so only explicit observations are staged.
*/
func (op *obsPart) stage(rf *frame.RankedFrame, ts *treeSample, pred int) int {
	cells := op.buf[0][op.offset[pred]:]
	n := 0
	for _, rr := range rf.Explicit(pred) {
		sIdx := ts.row2Sample[rr.Row]
		if sIdx < 0 {
			continue
		}
		nux := &ts.nux[sIdx]
		cells[n] = obsCell{
			rank:   rr.Rank,
			sIdx:   uint32(sIdx),
			sCount: nux.sCount,
			ctg:    nux.ctg,
			ySum:   nux.ySum,
		}
		n++
	}
	return n
}

// cells returns the cells a definition refers to.
func (op *obsPart) cells(pred int, def *mrra) []obsCell {
	base := op.offset[pred] + def.start
	return op.buf[def.bufIdx][base : base+def.extent]
}

/*
restage stably partitions the cells of an ancestor definition among its live
descendants, writing them to the other buffer. reach maps the low del bits
of a sample's path to the descendant's index in the front level, or -1 when
the sample's node is no longer live. Descendant regions are laid out in
path order inside the ancestor's region. targ receives one definition per
reach slot; extents gives the front nodes' sample counts.
*/
func (op *obsPart) restage(pred int, src *mrra, del int, reach []int32, paths []uint8, extents []int, targ []mrra) {
	mask := pathMask(del)
	cells := op.cells(pred, src)
	count := make([]int, len(reach))
	for i := range cells {
		path := paths[cells[i].sIdx]
		if isExtinct(path) {
			continue
		}
		slot := path & mask
		if reach[slot] >= 0 {
			count[slot]++
		}
	}
	dst := 1 - src.bufIdx
	start := src.start
	next := make([]int, len(reach))
	for slot := range reach {
		next[slot] = start
		if reach[slot] >= 0 {
			targ[slot] = mrra{
				defined:  true,
				bufIdx:   dst,
				start:    start,
				extent:   count[slot],
				implicit: extents[reach[slot]] - count[slot],
			}
		}
		start += count[slot]
	}
	out := op.buf[dst][op.offset[pred]:]
	for i := range cells {
		path := paths[cells[i].sIdx]
		if isExtinct(path) {
			continue
		}
		slot := path & mask
		if reach[slot] < 0 {
			continue
		}
		out[next[slot]] = cells[i]
		next[slot]++
	}
	for slot := range reach {
		if reach[slot] >= 0 {
			targ[slot].singleton = op.isSingleton(pred, &targ[slot])
		}
	}
}

/*
isSingleton reports whether every sample of a definition shares one rank,
counting the implicit rank when present.
*/
func (op *obsPart) isSingleton(pred int, def *mrra) bool {
	if def.extent == 0 {
		return true
	}
	if def.implicit > 0 {
		return false
	}
	cells := op.cells(pred, def)
	return cells[0].rank == cells[len(cells)-1].rank
}
