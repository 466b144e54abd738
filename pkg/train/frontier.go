package train

import (
	"context"
	"math/rand"
	"sort"

	"github.com/pbanos/arboretum/internal/parallel"
	"github.com/pbanos/arboretum/pkg/bv"
)

const reindexBlock = 1 << 12

/*
indexSet is a node of the frontier: the samples it holds, summarized, and
where it sits in the pretree. anc lists the node's index at each level of
the deque, starting with its own.
*/
type indexSet struct {
	ptID        int
	sum         accum
	preBias     float64
	minInfo     float64
	depth       int
	anc         []int
	unsplitable bool

	cand   *splitCand
	succ   [2]int32
	ptSucc [2]int
}

/*
frontier grows one tree level by level. sampleNode gives each sample's
frontier node, -1 once extinct; samplePT gives the pretree node it last
reached.
*/
type frontier struct {
	*trainer
	ts         *treeSample
	rng        *rand.Rand
	bt         *bottom
	pt         *preTree
	sets       []indexSet
	sampleNode []int32
	samplePT   []int32
	replay     *bv.BitVector
	predPerm   []int
}

func newFrontier(ctx context.Context, t *trainer, ts *treeSample, rng *rand.Rand) (*frontier, error) {
	bt, err := newBottom(ctx, t.rf, ts, t.cfg.NThread)
	if err != nil {
		return nil, err
	}
	fr := &frontier{
		trainer:    t,
		ts:         ts,
		rng:        rng,
		bt:         bt,
		pt:         newPreTree(ts.bagCount()),
		sampleNode: make([]int32, ts.bagCount()),
		samplePT:   make([]int32, ts.bagCount()),
		replay:     bv.New(ts.bagCount()),
		predPerm:   make([]int, t.rf.NPred()),
	}
	root := accum{sCount: ts.nSamp, sum: ts.bagSum, extent: ts.bagCount()}
	if ts.ctgRoot != nil {
		root.ctg = append([]sumCount(nil), ts.ctgRoot...)
	}
	fr.sets = []indexSet{{
		sum:         root,
		preBias:     preBias(&root),
		anc:         []int{0},
		unsplitable: !fr.splitable(&root, 0),
	}}
	return fr, nil
}

func (fr *frontier) splitable(a *accum, depth int) bool {
	if a.extent < fr.cfg.MinNode || a.extent < 2 {
		return false
	}
	if fr.cfg.MaxDepth > 0 && depth >= fr.cfg.MaxDepth {
		return false
	}
	if a.ctg != nil {
		present := 0
		for _, sc := range a.ctg {
			if sc.sCount > 0 {
				present++
			}
		}
		return present > 1
	}
	return true
}

// grow splits the frontier until no node remains splitable.
func (fr *frontier) grow(ctx context.Context) error {
	for len(fr.sets) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if fr.observe != nil {
			fr.observe(fr)
		}
		cands, err := fr.schedule(ctx)
		if err != nil {
			return err
		}
		err = parallel.For(ctx, fr.cfg.NThread, len(cands), func(i int) error {
			sc := cands[i]
			sc.evaluate(fr.bt.op, fr.rf, &fr.sets[sc.node], fr.nCtg)
			return nil
		})
		if err != nil {
			return err
		}
		fr.choose(cands)
		if err := fr.replayLevel(ctx); err != nil {
			return err
		}
		next, extents := fr.successors()
		if err := fr.reindex(ctx); err != nil {
			return err
		}
		sets := fr.sets
		fr.bt.push(len(next), extents, func(f int32, isLeft bool) int32 {
			if isLeft {
				return sets[f].succ[0]
			}
			return sets[f].succ[1]
		})
		fr.sets = next
	}
	return nil
}

func (fr *frontier) choosePreds() []int {
	nPred := len(fr.predPerm)
	if fr.cfg.PredFixed > 0 {
		for i := range fr.predPerm {
			fr.predPerm[i] = i
		}
		k := fr.cfg.PredFixed
		for i := 0; i < k; i++ {
			j := i + fr.rng.Intn(nPred-i)
			fr.predPerm[i], fr.predPerm[j] = fr.predPerm[j], fr.predPerm[i]
		}
		preds := append([]int(nil), fr.predPerm[:k]...)
		sort.Ints(preds)
		return preds
	}
	var preds []int
	for pred, prob := range fr.cfg.PredProb {
		if fr.rng.Float64() < prob {
			preds = append(preds, pred)
		}
	}
	return preds
}

/*
schedule picks the predictors tried at every splitable node, restages the
definitions they need into the front and returns the candidates. Every
random draw happens here, sequentially, so results do not depend on the
thread count.
*/
func (fr *frontier) schedule(ctx context.Context) ([]*splitCand, error) {
	if err := fr.bt.flush(ctx); err != nil {
		return nil, err
	}
	type pair struct{ node, pred int }
	var pairs []pair
	var ops []restageOp
	seen := map[restageOp]bool{}
	for i := range fr.sets {
		set := &fr.sets[i]
		if set.unsplitable {
			continue
		}
		for _, pred := range fr.choosePreds() {
			del, def := fr.bt.locate(set.anc, pred)
			if def == nil || def.singleton {
				continue
			}
			pairs = append(pairs, pair{i, pred})
			if del == 0 {
				continue
			}
			op := restageOp{del, set.anc[del], pred}
			if !seen[op] {
				seen[op] = true
				ops = append(ops, op)
			}
		}
	}
	if err := fr.bt.restage(ctx, ops); err != nil {
		return nil, err
	}
	front := fr.bt.front()
	cands := make([]*splitCand, 0, len(pairs))
	for _, p := range pairs {
		def := front.at(p.node, p.pred)
		if !def.defined || def.singleton {
			continue
		}
		sc := &splitCand{node: p.node, pred: p.pred, def: *def}
		if fr.rf.IsFactor(p.pred) {
			if fr.nCtg > 2 {
				sc.seed = fr.rng.Int63()
			}
		} else if fr.cfg.Monotone != nil {
			if m := fr.cfg.Monotone[p.pred]; m != 0 {
				u := fr.rng.Float64()
				switch {
				case m > 0 && u < m:
					sc.mono = 1
				case m < 0 && u < -m:
					sc.mono = -1
				}
			}
		}
		cands = append(cands, sc)
	}
	return cands, nil
}

// choose keeps, per node, the first candidate of highest information.
func (fr *frontier) choose(cands []*splitCand) {
	for i := range fr.sets {
		fr.sets[i].cand = nil
	}
	for _, sc := range cands {
		if !sc.found {
			continue
		}
		set := &fr.sets[sc.node]
		if set.cand == nil || sc.info > set.cand.info {
			set.cand = sc
		}
	}
}

/*
replayLevel marks, for every splitting node, the explicit samples whose
side differs from the side of the node's implicit samples.
*/
func (fr *frontier) replayLevel(ctx context.Context) error {
	fr.replay.Clear()
	return parallel.For(ctx, fr.cfg.NThread, len(fr.sets), func(i int) error {
		sc := fr.sets[i].cand
		if sc == nil {
			return nil
		}
		isFactor := fr.rf.IsFactor(sc.pred)
		cells := fr.bt.op.cells(sc.pred, &sc.def)
		for j := range cells {
			if sc.goesLeft(&cells[j], isFactor) != sc.implicitLeft {
				fr.replay.SetAtomic(int(cells[j].sIdx))
			}
		}
		return nil
	})
}

/*
successors records every winning split in the pretree and lays out the
next frontier from the splitable children, in node order, left first.
*/
func (fr *frontier) successors() ([]indexSet, []int) {
	var next []indexSet
	var extents []int
	for i := range fr.sets {
		set := &fr.sets[i]
		set.succ = [2]int32{-1, -1}
		sc := set.cand
		if sc == nil {
			continue
		}
		var left int
		if fr.rf.IsFactor(sc.pred) {
			left = fr.pt.branchFac(set.ptID, sc.pred, sc.info, fr.rf.Cardinality(sc.pred), sc.leftCodes)
		} else {
			value := fr.nr.Interpolate(sc.pred, sc.rankLow, sc.rankHigh, *fr.cfg.SplitQuantile)
			left = fr.pt.branchNum(set.ptID, sc.pred, sc.info, value)
		}
		set.ptSucc = [2]int{left, left + 1}
		sides := [2]accum{sc.left, set.sum.sub(&sc.left)}
		for side := range sides {
			a := sides[side]
			if !fr.splitable(&a, set.depth+1) {
				continue
			}
			idx := len(next)
			anc := append([]int{idx}, set.anc...)
			if len(anc) > pathBits+1 {
				anc = anc[:pathBits+1]
			}
			set.succ[side] = int32(idx)
			next = append(next, indexSet{
				ptID:    left + side,
				sum:     a,
				preBias: preBias(&a),
				minInfo: fr.cfg.MinRatio * sc.info,
				depth:   set.depth + 1,
				anc:     anc,
			})
			extents = append(extents, a.extent)
		}
	}
	return next, extents
}

/*
reindex moves every live sample to its successor, updating its path, or
retires it when its node did not split or its successor is not splitable.
*/
func (fr *frontier) reindex(ctx context.Context) error {
	paths := fr.bt.paths
	return parallel.Blocks(ctx, fr.cfg.NThread, len(fr.sampleNode), reindexBlock, func(lo, hi int) error {
		for s := lo; s < hi; s++ {
			n := fr.sampleNode[s]
			if n < 0 {
				continue
			}
			set := &fr.sets[n]
			if set.cand == nil {
				fr.sampleNode[s] = -1
				paths[s] |= pathExtinct
				continue
			}
			isLeft := fr.replay.Test(s) != set.cand.implicitLeft
			side := 1
			if isLeft {
				side = 0
			}
			fr.samplePT[s] = int32(set.ptSucc[side])
			if set.succ[side] < 0 {
				fr.sampleNode[s] = -1
				paths[s] |= pathExtinct
				continue
			}
			fr.sampleNode[s] = set.succ[side]
			paths[s] = pathNext(paths[s], isLeft)
		}
		return nil
	})
}
