package train

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"
)

// maxWidth bounds the runs searched exhaustively for multi-category splits.
const maxWidth = 10

// factorRun is the response of the samples sharing one factor code.
type factorRun struct {
	code     uint32
	acc      accum
	key      float64
	implicit bool
}

/*
runSet groups a candidate's cells by factor code. The implicit block, when
nonempty, forms the run at the dense code.
*/
type runSet struct {
	runs []factorRun
	nCtg int
}

func newRunSet(cells []obsCell, implicit *accum, denseCode uint32, nCtg int) *runSet {
	rs := &runSet{nCtg: nCtg}
	implicitDone := implicit.extent == 0
	for i := 0; i < len(cells); {
		code := cells[i].rank
		if !implicitDone && denseCode < code {
			rs.runs = append(rs.runs, factorRun{code: denseCode, acc: implicit.clone(), implicit: true})
			implicitDone = true
		}
		r := factorRun{code: code, acc: newAccum(nCtg)}
		for ; i < len(cells) && cells[i].rank == code; i++ {
			r.acc.addCell(&cells[i])
		}
		rs.runs = append(rs.runs, r)
	}
	if !implicitDone {
		rs.runs = append(rs.runs, factorRun{code: denseCode, acc: implicit.clone(), implicit: true})
	}
	return rs
}

func (rs *runSet) split(sc *splitCand, set *indexSet) {
	if len(rs.runs) < 2 {
		return
	}
	switch {
	case rs.nCtg == 0:
		for i := range rs.runs {
			rs.runs[i].key = rs.runs[i].acc.sum / float64(rs.runs[i].acc.sCount)
		}
		rs.splitOrdered(sc, set)
	case rs.nCtg == 2:
		for i := range rs.runs {
			r := &rs.runs[i]
			if r.acc.sum > 0 {
				r.key = r.acc.ctg[1].sum / r.acc.sum
			}
		}
		rs.splitOrdered(sc, set)
	default:
		rs.splitSubsets(sc, set)
	}
}

type runHeap []*factorRun

func (h runHeap) Len() int { return len(h) }
func (h runHeap) Less(i, j int) bool {
	if h[i].key != h[j].key {
		return h[i].key < h[j].key
	}
	return h[i].code < h[j].code
}
func (h runHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *runHeap) Push(x interface{}) { *h = append(*h, x.(*factorRun)) }
func (h *runHeap) Pop() interface{} {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

/*
splitOrdered sorts runs by key and evaluates every prefix as the left side.
*/
func (rs *runSet) splitOrdered(sc *splitCand, set *indexSet) {
	h := make(runHeap, len(rs.runs))
	for i := range rs.runs {
		h[i] = &rs.runs[i]
	}
	heap.Init(&h)
	order := make([]*factorRun, 0, len(rs.runs))
	for h.Len() > 0 {
		order = append(order, heap.Pop(&h).(*factorRun))
	}
	left := newAccum(rs.nCtg)
	for cut := 0; cut < len(order)-1; cut++ {
		left.addAccum(&order[cut].acc)
		if sc.consider(set, &left) {
			rs.record(sc, order[:cut+1])
		}
	}
}

/*
splitSubsets evaluates every subset of up to maxWidth runs, the last of them
always on the right. Wider sets are first down-sampled with probability
proportional to sample count; runs not retained go right.
*/
func (rs *runSet) splitSubsets(sc *splitCand, set *indexSet) {
	runs := rs.deWide(sc.seed)
	w := len(runs)
	var members []*factorRun
	for mask := 1; mask < 1<<uint(w-1); mask++ {
		left := newAccum(rs.nCtg)
		members = members[:0]
		for i := 0; i < w-1; i++ {
			if mask&(1<<uint(i)) != 0 {
				left.addAccum(&runs[i].acc)
				members = append(members, runs[i])
			}
		}
		if sc.consider(set, &left) {
			rs.record(sc, members)
		}
	}
}

func (rs *runSet) deWide(seed int64) []*factorRun {
	runs := make([]*factorRun, len(rs.runs))
	for i := range rs.runs {
		runs[i] = &rs.runs[i]
	}
	if len(runs) <= maxWidth {
		return runs
	}
	rng := rand.New(rand.NewSource(seed))
	type keyed struct {
		idx int
		key float64
	}
	keys := make([]keyed, len(runs))
	for i, r := range runs {
		keys[i] = keyed{i, math.Log(rng.Float64()) / float64(r.acc.sCount)}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return keys[i].key > keys[j].key
	})
	keep := make([]int, maxWidth)
	for i := range keep {
		keep[i] = keys[i].idx
	}
	sort.Ints(keep)
	out := make([]*factorRun, maxWidth)
	for i, idx := range keep {
		out[i] = runs[idx]
	}
	return out
}

func (rs *runSet) record(sc *splitCand, left []*factorRun) {
	codes := make([]bool, rs.maxCode()+1)
	sc.implicitLeft = false
	for _, r := range left {
		codes[r.code] = true
		sc.implicitLeft = sc.implicitLeft || r.implicit
	}
	sc.leftCodes = codes
}

func (rs *runSet) maxCode() uint32 {
	var m uint32
	for _, r := range rs.runs {
		if r.code > m {
			m = r.code
		}
	}
	return m
}
