package train

import (
	"context"

	"github.com/pbanos/arboretum/internal/parallel"
	"github.com/pbanos/arboretum/pkg/frame"
)

// flushEfficiency is the pending fraction below which the rear level is flushed.
const flushEfficiency = 0.15

/*
bottom tracks where every node's staged cells live. levels[0] is the
current front; levels[del] holds definitions made del levels earlier.
*/
type bottom struct {
	nPred   int
	nThread int
	op      *obsPart
	levels  []*level
	paths   []uint8
	extents []int
}

// restageOp moves the definition of pred at levels[del] node into the front.
type restageOp struct {
	del, node, pred int
}

/*
newBottom stages every predictor of a tree's bag and defines them all at
the root.
*/
func newBottom(ctx context.Context, rf *frame.RankedFrame, ts *treeSample, nThread int) (*bottom, error) {
	bt := &bottom{
		nPred:   rf.NPred(),
		nThread: nThread,
		op:      newObsPart(rf),
		paths:   make([]uint8, ts.bagCount()),
		extents: []int{ts.bagCount()},
	}
	root := newLevel(1, bt.nPred)
	bt.levels = []*level{root}
	defs := make([]mrra, bt.nPred)
	err := parallel.For(ctx, nThread, bt.nPred, func(pred int) error {
		n := bt.op.stage(rf, ts, pred)
		def := mrra{defined: true, extent: n, implicit: ts.bagCount() - n}
		def.singleton = bt.op.isSingleton(pred, &def)
		defs[pred] = def
		return nil
	})
	if err != nil {
		return nil, err
	}
	for pred, def := range defs {
		root.define(0, pred, def)
	}
	return bt, nil
}

func (bt *bottom) front() *level {
	return bt.levels[0]
}

/*
locate finds the most recent definition of pred covering a front node
whose ancestors, most recent first, are anc. It returns the level distance
and the definition, or nil when no ancestor has one pending.
*/
func (bt *bottom) locate(anc []int, pred int) (int, *mrra) {
	for del := 0; del < len(bt.levels) && del < len(anc); del++ {
		if def := bt.levels[del].at(anc[del], pred); def.defined {
			return del, def
		}
	}
	return 0, nil
}

/*
flush restages the rear level into the front while the deque is deeper
than path codes can address or the rear's pending fraction is low.
*/
func (bt *bottom) flush(ctx context.Context) error {
	for len(bt.levels) > 1 {
		del := len(bt.levels) - 1
		rear := bt.levels[del]
		if del < pathBits && rear.efficiency() >= flushEfficiency {
			return nil
		}
		var ops []restageOp
		for node := 0; node < rear.nNode; node++ {
			if !rear.live(node) {
				continue
			}
			for pred := 0; pred < bt.nPred; pred++ {
				if rear.at(node, pred).defined {
					ops = append(ops, restageOp{del, node, pred})
				}
			}
		}
		if err := bt.restage(ctx, ops); err != nil {
			return err
		}
		bt.levels = bt.levels[:del]
	}
	return nil
}

/*
restage executes the operations in parallel. Pending definitions of one
predictor cover disjoint regions, so operations never overlap.
*/
func (bt *bottom) restage(ctx context.Context, ops []restageOp) error {
	if len(ops) == 0 {
		return nil
	}
	front := bt.front()
	targs := make([][]mrra, len(ops))
	srcs := make([]mrra, len(ops))
	for i, o := range ops {
		lv := bt.levels[o.del]
		srcs[i] = *lv.at(o.node, o.pred)
		lv.undefine(o.node, o.pred)
	}
	err := parallel.For(ctx, bt.nThread, len(ops), func(i int) error {
		o := ops[i]
		reach := bt.levels[o.del].reach[o.node]
		targs[i] = make([]mrra, len(reach))
		bt.op.restage(o.pred, &srcs[i], o.del, reach, bt.paths, bt.extents, targs[i])
		return nil
	})
	if err != nil {
		return err
	}
	for i, o := range ops {
		for slot, f := range bt.levels[o.del].reach[o.node] {
			if f >= 0 {
				front.define(int(f), o.pred, targs[i][slot])
			}
		}
	}
	return nil
}

/*
push installs a new front of nNode nodes with the given sample counts.
succ maps the nodes of the outgoing front to their successors.
*/
func (bt *bottom) push(nNode int, extents []int, succ func(front int32, isLeft bool) int32) {
	for _, lv := range bt.levels {
		lv.advance(succ)
	}
	bt.levels = append([]*level{newLevel(nNode, bt.nPred)}, bt.levels...)
	bt.extents = extents
}
