/*
Package train grows random forests from a frame and a response.
*/
package train

import (
	"context"
	"math/rand"
	"strconv"

	"github.com/pbanos/arboretum/pkg/bv"
	"github.com/pbanos/arboretum/pkg/forest"
	"github.com/pbanos/arboretum/pkg/frame"
)

type trainer struct {
	cfg  Config
	rf   *frame.RankedFrame
	nr   *frame.NumRanked
	resp Response
	nCtg int
	log  Logger
	// observe, when set, sees the frontier at the start of every level.
	observe func(*frontier)
}

/*
Train grows cfg.NTree trees over fr for the given response and returns the
resulting bundle. Training is deterministic given cfg.Seed, whatever the
thread count. ctx is checked between trees and between levels.
*/
func Train(ctx context.Context, fr *frame.Frame, resp Response, cfg Config, log Logger) (*forest.Bundle, error) {
	t, err := newTrainer(fr, resp, cfg, log)
	if err != nil {
		return nil, err
	}
	b, err := t.train(ctx)
	if err != nil {
		return nil, err
	}
	b.Meta = forest.Meta{
		Names:       fr.Names,
		NPredNum:    fr.NPredNum(),
		Cardinality: fr.Cardinality,
	}
	switch r := resp.(type) {
	case Regression:
		b.Meta.YTrain = r.Y
	case Classification:
		b.Meta.ResponseLevels = append([]string(nil), r.Levels...)
		if r.Levels == nil {
			b.Meta.ResponseLevels = make([]string, r.NCtg)
			for i := range b.Meta.ResponseLevels {
				b.Meta.ResponseLevels[i] = strconv.Itoa(i)
			}
		}
	}
	return b, nil
}

func newTrainer(fr *frame.Frame, resp Response, cfg Config, log Logger) (*trainer, error) {
	if log == nil {
		log = NopLogger
	}
	if err := fr.Validate(); err != nil {
		return nil, err
	}
	if err := validateResponse(resp, fr.NRow); err != nil {
		return nil, err
	}
	cfg, err := cfg.Validate(fr.NRow, fr.NPred(), resp.ctgCount())
	if err != nil {
		return nil, err
	}
	rf, nr, err := frame.NewRankedFrameFrom(fr, cfg.AutoCompress)
	if err != nil {
		return nil, err
	}
	return &trainer{cfg: cfg, rf: rf, nr: nr, resp: resp, nCtg: resp.ctgCount(), log: log}, nil
}

func (t *trainer) train(ctx context.Context) (*forest.Bundle, error) {
	rng := rand.New(rand.NewSource(t.cfg.Seed))
	fb := forest.NewBuilder(t.rf.NPredNum())
	lf := forest.NewLeafFrame(t.nCtg, t.cfg.Thin)
	lf.Default = t.defaultScore()
	bag := forest.NewBag(t.rf.NRow())
	for tree := 0; tree < t.cfg.NTree; tree++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, err := t.growTree(ctx, rng.Int63())
		if err != nil {
			return nil, err
		}
		fb.AddTree(g.nodes, g.facBits, g.facBits.Len())
		lf.AddTree(g.leaves, g.weight, g.samples)
		bag.AddTree(g.rows)
		if (tree+1)%t.cfg.TrainBlock == 0 || tree+1 == t.cfg.NTree {
			t.log.Logf("Trained %d of %d trees", tree+1, t.cfg.NTree)
		}
	}
	return &forest.Bundle{Forest: fb.Forest(), Leaf: lf, Bag: bag}, nil
}

// grownTree is a finished tree in the form the forest builders take.
type grownTree struct {
	nodes   []forest.Node
	facBits *bv.BitVector
	leaves  []forest.Leaf
	weight  []float64
	samples []forest.BagSample
	rows    []uint32
}

func (t *trainer) growTree(ctx context.Context, seed int64) (*grownTree, error) {
	rng := rand.New(rand.NewSource(seed))
	counts := sampleRows(rng, t.rf.NRow(), t.cfg.NSamp, t.cfg.WithReplacement, t.cfg.SampleWeight)
	ts := newTreeSample(counts, t.resp, t.cfg.ClassWeight)
	fr, err := newFrontier(ctx, t, ts, rng)
	if err != nil {
		return nil, err
	}
	if err := fr.grow(ctx); err != nil {
		return nil, err
	}
	fr.pt.mergeLeaves(t.cfg.LeafMax, rng)
	nodes, nLeaf, leafOf := fr.pt.finalize(t.rf.NPredNum())
	g := &grownTree{nodes: nodes, facBits: fr.pt.facBits, rows: ts.rows()}
	t.scoreLeaves(g, ts, fr.samplePT, leafOf, nLeaf, rng)
	return g, nil
}

/*
scoreLeaves gathers each leaf's samples and scores it: the mean response
for regression, the most represented category for classification with ties
broken by a uniform draw, along with the category weights.
*/
func (t *trainer) scoreLeaves(g *grownTree, ts *treeSample, samplePT []int32, leafOf []int, nLeaf int, rng *rand.Rand) {
	acc := make([]accum, nLeaf)
	for i := range acc {
		acc[i] = newAccum(t.nCtg)
	}
	g.samples = make([]forest.BagSample, len(ts.nux))
	for s, nux := range ts.nux {
		leaf := leafOf[samplePT[s]]
		a := &acc[leaf]
		a.sCount += int(nux.sCount)
		a.sum += nux.ySum
		a.extent++
		if a.ctg != nil {
			a.ctg[nux.ctg].add(nux.ySum, int(nux.sCount))
		}
		g.samples[s] = forest.BagSample{Leaf: uint32(leaf), Row: nux.row, SCount: nux.sCount}
	}
	g.leaves = make([]forest.Leaf, nLeaf)
	if t.nCtg > 0 {
		g.weight = make([]float64, nLeaf*t.nCtg)
	}
	for leaf := range acc {
		a := &acc[leaf]
		l := forest.Leaf{Extent: uint32(a.extent), SCount: uint32(a.sCount)}
		if t.nCtg == 0 {
			if a.sCount > 0 {
				l.Score = a.sum / float64(a.sCount)
			}
			g.leaves[leaf] = l
			continue
		}
		best, bestKey := 0, -1.0
		for c, sc := range a.ctg {
			key := float64(sc.sCount) + 0.5*rng.Float64()
			if key > bestKey {
				best, bestKey = c, key
			}
			if a.sum > 0 {
				g.weight[leaf*t.nCtg+c] = sc.sum / a.sum
			}
		}
		l.Score = float64(best)
		g.leaves[leaf] = l
	}
}

/*
defaultScore is the prediction for a row scored by no tree: the mean
response, or the most frequent category.
*/
func (t *trainer) defaultScore() float64 {
	switch r := t.resp.(type) {
	case Regression:
		if len(r.Y) == 0 {
			return 0
		}
		sum := 0.0
		for _, y := range r.Y {
			sum += y
		}
		return sum / float64(len(r.Y))
	case Classification:
		count := make([]int, r.NCtg)
		for _, y := range r.Y {
			count[y]++
		}
		best := 0
		for c, n := range count {
			if n > count[best] {
				best = c
			}
		}
		return float64(best)
	}
	return 0
}
