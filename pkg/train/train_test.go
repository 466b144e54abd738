package train

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/pbanos/arboretum/pkg/forest"
	"github.com/pbanos/arboretum/pkg/frame"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mixedFrame builds 100 rows with a continuous, an integer and a factor
// predictor, and an integer-valued response depending on all three.
func mixedFrame() (*frame.Frame, Regression) {
	rng := rand.New(rand.NewSource(1))
	n := 100
	x0 := make([]float64, n)
	x1 := make([]float64, n)
	f0 := make([]uint32, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x0[i] = rng.Float64()
		x1[i] = float64(rng.Intn(10))
		f0[i] = uint32(rng.Intn(4))
		y[i] = float64(int(x0[i]*10)) + x1[i] + 3*float64(f0[i]%2)
	}
	fr := &frame.Frame{
		NRow:        n,
		Numeric:     [][]float64{x0, x1},
		Factor:      [][]uint32{f0},
		Cardinality: []uint32{4},
	}
	return fr, Regression{Y: y}
}

func splitQuantile(q float64) *float64 {
	return &q
}

func countTerminals(nodes []forest.Node) int {
	n := 0
	for _, nd := range nodes {
		if nd.IsTerminal() {
			n++
		}
	}
	return n
}

func TestSampleRows(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	counts := sampleRows(rng, 20, 50, true, nil)
	total := 0
	for _, c := range counts {
		total += int(c)
	}
	assert.Equal(t, 50, total)

	counts = sampleRows(rng, 20, 12, false, nil)
	distinct := 0
	for _, c := range counts {
		assert.True(t, c <= 1)
		distinct += int(c)
	}
	assert.Equal(t, 12, distinct)

	weight := make([]float64, 20)
	for i := 10; i < 20; i++ {
		weight[i] = float64(i)
	}
	for _, replace := range []bool{true, false} {
		counts = sampleRows(rng, 20, 10, replace, weight)
		total = 0
		for row, c := range counts {
			if row < 10 {
				assert.Zero(t, c, "row %d has zero weight", row)
			}
			total += int(c)
		}
		assert.Equal(t, 10, total)
	}
}

func TestRestageSplitsByPath(t *testing.T) {
	vals := []float64{5, 3, 7, 1, 8, 2, 6, 4}
	fr := &frame.Frame{NRow: len(vals), Numeric: [][]float64{vals}}
	rf, _, err := frame.NewRankedFrameFrom(fr, 1)
	require.NoError(t, err)
	counts := make([]uint32, len(vals))
	y := make([]float64, len(vals))
	for i := range counts {
		counts[i] = 1
		y[i] = vals[i]
	}
	ts := newTreeSample(counts, Regression{Y: y}, nil)
	op := newObsPart(rf)
	require.Equal(t, 8, op.stage(rf, ts, 0))

	paths := make([]uint8, len(vals))
	for s, v := range vals {
		paths[s] = pathNext(0, v <= 4)
	}
	src := mrra{defined: true, extent: 8}
	targ := make([]mrra, 2)
	op.restage(0, &src, 1, []int32{0, 1}, paths, []int{4, 4}, targ)

	assert.Equal(t, mrra{defined: true, bufIdx: 1, start: 0, extent: 4}, targ[0])
	assert.Equal(t, mrra{defined: true, bufIdx: 1, start: 4, extent: 4}, targ[1])
	ranks := func(def mrra) []uint32 {
		var out []uint32
		for _, c := range op.cells(0, &def) {
			out = append(out, c.rank)
		}
		return out
	}
	assert.Equal(t, []uint32{0, 1, 2, 3}, ranks(targ[0]))
	assert.Equal(t, []uint32{4, 5, 6, 7}, ranks(targ[1]))

	// An extinct sample and an extinct side are both dropped.
	paths[4] |= pathExtinct
	targ = make([]mrra, 2)
	back := mrra{defined: true, bufIdx: 1, extent: 8}
	op.restage(0, &back, 1, []int32{-1, 0}, paths, []int{3}, targ)
	assert.False(t, targ[0].defined)
	assert.Equal(t, mrra{defined: true, bufIdx: 0, start: 0, extent: 3}, targ[1])
	assert.Equal(t, []uint32{4, 5, 6}, ranks(targ[1]))
}

func TestRestageUnsplitNodeKeepsOrder(t *testing.T) {
	vals := []float64{5, 3, 7, 1, 8, 2, 6, 4}
	fr := &frame.Frame{NRow: len(vals), Numeric: [][]float64{vals}}
	rf, _, err := frame.NewRankedFrameFrom(fr, 1)
	require.NoError(t, err)
	counts := []uint32{1, 2, 1, 1, 3, 1, 1, 1}
	ts := newTreeSample(counts, Regression{Y: vals}, nil)
	op := newObsPart(rf)
	require.Equal(t, 8, op.stage(rf, ts, 0))
	src := mrra{defined: true, extent: 8}
	before := append([]obsCell(nil), op.cells(0, &src)...)

	// All samples branch the same way, so the only live successor gets them all.
	paths := make([]uint8, len(vals))
	for s := range paths {
		paths[s] = pathNext(0, true)
	}
	targ := make([]mrra, 2)
	op.restage(0, &src, 1, []int32{0, -1}, paths, []int{8}, targ)
	require.Equal(t, mrra{defined: true, bufIdx: 1, start: 0, extent: 8}, targ[0])
	assert.False(t, targ[1].defined)
	assert.Equal(t, before, op.cells(0, &targ[0]))

	for s := range paths {
		paths[s] = pathNext(paths[s], false)
	}
	back := targ[0]
	targ = make([]mrra, 4)
	op.restage(0, &back, 2, []int32{-1, 0, -1, -1}, paths, []int{8}, targ)
	require.True(t, targ[1].defined)
	assert.Equal(t, uint8(0), targ[1].bufIdx)
	assert.Equal(t, before, op.cells(0, &targ[1]))
}

func TestSingletonDefinition(t *testing.T) {
	fr := &frame.Frame{NRow: 4, Numeric: [][]float64{{2, 2, 2, 2}, {0, 0, 0, 1}}}
	rf, _, err := frame.NewRankedFrameFrom(fr, 0.5)
	require.NoError(t, err)
	ts := newTreeSample([]uint32{1, 1, 1, 1}, Regression{Y: []float64{1, 2, 3, 4}}, nil)
	bt, err := newBottom(context.Background(), rf, ts, 1)
	require.NoError(t, err)
	assert.True(t, bt.front().at(0, 0).singleton)
	def := bt.front().at(0, 1)
	assert.False(t, def.singleton)
	assert.Equal(t, 1, def.extent)
	assert.Equal(t, 3, def.implicit)
}

func TestSplitInfo(t *testing.T) {
	node := accum{sCount: 4, sum: 10, extent: 4}
	left := accum{sCount: 2, sum: 2, extent: 2}
	info, ok := splitInfo(&node, &left, 0)
	require.True(t, ok)
	assert.InDelta(t, 2.0+32.0, info, 1e-12)
	assert.Greater(t, info, preBias(&node))

	_, ok = splitInfo(&node, &left, -1)
	assert.False(t, ok)
	_, ok = splitInfo(&node, &left, 1)
	assert.True(t, ok)
	_, ok = splitInfo(&node, &accum{}, 0)
	assert.False(t, ok)

	ctgNode := accum{sCount: 4, sum: 4, extent: 4, ctg: []sumCount{{2, 2}, {2, 2}}}
	pure := accum{sCount: 2, sum: 2, extent: 2, ctg: []sumCount{{2, 2}, {0, 0}}}
	info, ok = splitInfo(&ctgNode, &pure, 0)
	require.True(t, ok)
	assert.InDelta(t, 4.0, info, 1e-12)
	assert.InDelta(t, 2.0, preBias(&ctgNode), 1e-12)
}

func TestTrainPartitionsSamplesAtEveryLevel(t *testing.T) {
	fr, resp := mixedFrame()
	tr, err := newTrainer(fr, resp, Config{NTree: 3, WithReplacement: true, PredFixed: 2, AutoCompress: 1, Seed: 11}, nil)
	require.NoError(t, err)
	levels := 0
	tr.observe = func(f *frontier) {
		levels++
		extent := make([]int, len(f.sets))
		sCount := make([]int, len(f.sets))
		for s, n := range f.sampleNode {
			if n >= 0 {
				extent[n]++
				sCount[n] += int(f.ts.nux[s].sCount)
			}
		}
		for i := range f.sets {
			set := &f.sets[i]
			assert.Equal(t, set.sum.extent, extent[i])
			assert.Equal(t, set.sum.sCount, sCount[i])
			for pred := 0; pred < fr.NPred(); pred++ {
				del, def := f.bt.locate(set.anc, pred)
				require.NotNil(t, def, "node %d predictor %d has no definition", i, pred)
				reach := f.bt.levels[del].reach[set.anc[del]]
				mask := pathMask(del)
				covered := 0
				for _, c := range f.bt.op.cells(pred, def) {
					path := f.bt.paths[c.sIdx]
					if !isExtinct(path) && reach[path&mask] == int32(i) {
						assert.Equal(t, int32(i), f.sampleNode[c.sIdx])
						covered++
					}
				}
				assert.Equal(t, set.sum.extent, covered)
			}
		}
	}
	b, err := tr.train(context.Background())
	require.NoError(t, err)
	assert.Greater(t, levels, 3)
	assert.Equal(t, 3, b.Forest.NTree())
}

func TestTrainDeterministicAcrossThreads(t *testing.T) {
	fr, resp := mixedFrame()
	cfg := Config{NTree: 4, WithReplacement: true, Seed: 42, NThread: 1}
	one, err := Train(context.Background(), fr, resp, cfg, nil)
	require.NoError(t, err)
	cfg.NThread = 4
	four, err := Train(context.Background(), fr, resp, cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, one.Forest.Nodes(), four.Forest.Nodes())
	assert.Equal(t, one.Forest.Heights(), four.Forest.Heights())
	assert.Equal(t, one.Forest.FactorBits().Slots(), four.Forest.FactorBits().Slots())
	assert.Equal(t, one.Leaf.Leaves(), four.Leaf.Leaves())
	assert.Equal(t, one.Leaf.BagSamples(), four.Leaf.BagSamples())
	b1, err := one.Bag.MarshalTrees()
	require.NoError(t, err)
	b4, err := four.Bag.MarshalTrees()
	require.NoError(t, err)
	assert.Equal(t, b1, b4)
}

func TestTrainDenseMatchesExplicit(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	n := 80
	x := make([]float64, n)
	z := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		if rng.Intn(10) < 6 {
			x[i] = 0
		} else {
			x[i] = float64(rng.Intn(5) + 1)
		}
		z[i] = float64(rng.Intn(20))
		y[i] = 2*x[i] + float64(int(z[i])%3)
	}
	fr := &frame.Frame{NRow: n, Numeric: [][]float64{x, z}}
	cfg := Config{NTree: 3, WithReplacement: true, PredFixed: 2, Seed: 9, AutoCompress: 0.25}
	dense, err := Train(context.Background(), fr, Regression{Y: y}, cfg, nil)
	require.NoError(t, err)
	cfg.AutoCompress = 1
	explicit, err := Train(context.Background(), fr, Regression{Y: y}, cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, explicit.Forest.Nodes(), dense.Forest.Nodes())
	assert.Equal(t, explicit.Leaf.Leaves(), dense.Leaf.Leaves())
}

func TestTrainFactorSplitsThreeCategories(t *testing.T) {
	n := 30
	codes := make([]uint32, n)
	for i := range codes {
		codes[i] = uint32(i % 3)
	}
	fr := &frame.Frame{NRow: n, Factor: [][]uint32{codes}, Cardinality: []uint32{3}}
	b, err := Train(context.Background(), fr, Classification{Y: codes, NCtg: 3}, Config{NTree: 1, Seed: 1}, nil)
	require.NoError(t, err)

	nodes := b.Forest.TreeNodes(0)
	assert.Len(t, nodes, 5)
	assert.Equal(t, 3, countTerminals(nodes))
	assert.Equal(t, 6, b.Forest.FactorBits().RowLen(0))
	for row := 0; row < n; row++ {
		leaf := b.Forest.Leaf(0, fr.Row(row))
		assert.Equal(t, float64(codes[row]), b.Leaf.Score(0, leaf), "row %d", row)
		w := b.Leaf.Weight(0, leaf)
		assert.InDelta(t, 1.0, w[codes[row]], 1e-12)
	}
	assert.Equal(t, []string{"0", "1", "2"}, b.Meta.ResponseLevels)

	named := Classification{Y: codes, NCtg: 3, Levels: []string{"setosa", "versicolor", "virginica"}}
	b, err = Train(context.Background(), fr, named, Config{NTree: 1, Seed: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, named.Levels, b.Meta.ResponseLevels)
}

func TestTrainLeafMaxCoversBag(t *testing.T) {
	fr, resp := mixedFrame()
	b, err := Train(context.Background(), fr, resp, Config{NTree: 4, WithReplacement: true, LeafMax: 3, Seed: 5}, nil)
	require.NoError(t, err)
	for tree := 0; tree < b.Forest.NTree(); tree++ {
		assert.LessOrEqual(t, countTerminals(b.Forest.TreeNodes(tree)), 3)
		extent, sCount := 0, 0
		for _, l := range b.Leaf.TreeLeaves(tree) {
			extent += int(l.Extent)
			sCount += int(l.SCount)
		}
		assert.Equal(t, b.Bag.BagCount(tree), extent)
		assert.Equal(t, fr.NRow, sCount)
	}
}

func TestTrainMaxDepth(t *testing.T) {
	fr, resp := mixedFrame()
	b, err := Train(context.Background(), fr, resp, Config{NTree: 3, MaxDepth: 1, Seed: 2}, nil)
	require.NoError(t, err)
	for tree := 0; tree < b.Forest.NTree(); tree++ {
		assert.LessOrEqual(t, len(b.Forest.TreeNodes(tree)), 3)
	}
}

func TestTrainMonotoneConstraint(t *testing.T) {
	n := 20
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
		y[i] = float64(n - i)
	}
	fr := &frame.Frame{NRow: n, Numeric: [][]float64{x}}
	cfg := Config{NTree: 1, Seed: 3, Monotone: []float64{1}}
	b, err := Train(context.Background(), fr, Regression{Y: y}, cfg, nil)
	require.NoError(t, err)
	assert.Len(t, b.Forest.TreeNodes(0), 1)

	cfg.Monotone = []float64{-1}
	b, err = Train(context.Background(), fr, Regression{Y: y}, cfg, nil)
	require.NoError(t, err)
	assert.Greater(t, len(b.Forest.TreeNodes(0)), 1)
}

func TestTrainCanceled(t *testing.T) {
	fr, resp := mixedFrame()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Train(ctx, fr, resp, Config{NTree: 2}, nil)
	assert.Equal(t, context.Canceled, err)
}

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Logf(format string, a ...interface{}) {
	l.lines = append(l.lines, format)
}

func TestTrainLogsPerBlock(t *testing.T) {
	fr, resp := mixedFrame()
	log := &recordingLogger{}
	_, err := Train(context.Background(), fr, resp, Config{NTree: 5, TrainBlock: 2, Seed: 1}, log)
	require.NoError(t, err)
	assert.Len(t, log.lines, 3)
}

func TestConfigValidate(t *testing.T) {
	cfg, err := Config{}.Validate(100, 9, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultNTree, cfg.NTree)
	assert.Equal(t, 3, cfg.PredFixed)
	assert.Equal(t, 100, cfg.NSamp)
	assert.Equal(t, DefaultSplitQuantile, *cfg.SplitQuantile)

	cfg, err = Config{SplitQuantile: splitQuantile(0)}.Validate(100, 9, 0)
	require.NoError(t, err)
	assert.Zero(t, *cfg.SplitQuantile)

	cfg, err = Config{Monotone: make([]float64, 9)}.Validate(100, 9, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.PredFixed)
	assert.Nil(t, cfg.Monotone)
	assert.Equal(t, []float64{1, 1, 1}, cfg.ClassWeight)

	for _, bad := range []Config{
		{NSamp: 200},
		{PredProb: []float64{0.5}},
		{Monotone: []float64{2, 0, 0, 0, 0, 0, 0, 0, 0}},
		{SplitQuantile: splitQuantile(1.5)},
		{SplitQuantile: splitQuantile(1)},
		{SplitQuantile: splitQuantile(-0.1)},
		{SampleWeight: make([]float64, 100)},
	} {
		_, err := bad.Validate(100, 9, 0)
		assert.Equal(t, ErrConfig, errors.Cause(err), "%+v", bad)
	}
}

func TestTrainRejectsBadResponse(t *testing.T) {
	fr, _ := mixedFrame()
	_, err := Train(context.Background(), fr, Regression{Y: []float64{1}}, Config{}, nil)
	assert.Equal(t, ErrConfig, errors.Cause(err))
	_, err = Train(context.Background(), fr, Classification{Y: make([]uint32, fr.NRow), NCtg: 1}, Config{}, nil)
	assert.Equal(t, ErrConfig, errors.Cause(err))
	_, err = Train(context.Background(), fr, Classification{Y: make([]uint32, fr.NRow), NCtg: 2, Levels: []string{"a"}}, Config{}, nil)
	assert.Equal(t, ErrConfig, errors.Cause(err))
}

func TestTrainBaggedRowsReachTheirLeaves(t *testing.T) {
	fr, resp := mixedFrame()
	x := append([]float64(nil), fr.Numeric[0]...)
	for i := 0; i < len(x); i += 9 {
		x[i] = math.NaN()
	}
	fr.Numeric[0] = x
	for _, q := range []*float64{nil, splitQuantile(0), splitQuantile(0.999)} {
		cfg := Config{NTree: 5, WithReplacement: true, PredFixed: 2, Seed: 13, SplitQuantile: q}
		b, err := Train(context.Background(), fr, resp, cfg, nil)
		require.NoError(t, err)
		for tree := 0; tree < b.Forest.NTree(); tree++ {
			for leaf := range b.Leaf.TreeLeaves(tree) {
				for _, s := range b.Leaf.Samples(tree, uint32(leaf)) {
					got := b.Forest.Leaf(tree, fr.Row(int(s.Row)))
					assert.Equal(t, s.Leaf, got, "quantile %v tree %d row %d", q, tree, s.Row)
				}
			}
		}
	}
}

func TestTrainSequentialScenarioIsReproducible(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	n := 100
	x0 := make([]float64, n)
	x1 := make([]float64, n)
	y := make([]float64, n)
	for i := range y {
		x0[i] = rng.Float64()
		x1[i] = rng.NormFloat64()
		y[i] = x0[i]*x0[i] + 2*x1[i] + 0.1*rng.Float64()
	}
	fr := &frame.Frame{NRow: n, Numeric: [][]float64{x0, x1}}
	cfg := Config{NTree: 1, MinNode: 1, PredFixed: 2, Seed: 17, NThread: 1}
	ref, err := Train(context.Background(), fr, Regression{Y: y}, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, n, ref.Bag.BagCount(0))
	assert.Equal(t, n, countTerminals(ref.Forest.TreeNodes(0)))

	for _, threads := range []int{1, 2, 8} {
		cfg.NThread = threads
		got, err := Train(context.Background(), fr, Regression{Y: y}, cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, ref.Forest.Nodes(), got.Forest.Nodes(), "%d threads", threads)
		assert.Equal(t, ref.Leaf.Leaves(), got.Leaf.Leaves(), "%d threads", threads)
		assert.Equal(t, ref.Leaf.BagSamples(), got.Leaf.BagSamples(), "%d threads", threads)
	}
}

func TestTrainBinaryFactorSplitBits(t *testing.T) {
	n := 30
	codes := make([]uint32, n)
	y := make([]uint32, n)
	for i := range codes {
		codes[i] = uint32(i % 3)
		if codes[i] == 2 {
			y[i] = 1
		}
	}
	fr := &frame.Frame{NRow: n, Factor: [][]uint32{codes}, Cardinality: []uint32{3}}
	b, err := Train(context.Background(), fr, Classification{Y: y, NCtg: 2}, Config{NTree: 1, Seed: 2}, nil)
	require.NoError(t, err)
	require.Equal(t, n, b.Bag.BagCount(0))

	nodes := b.Forest.TreeNodes(0)
	require.Len(t, nodes, 3)
	root := nodes[0]
	require.False(t, root.IsTerminal())
	bits := b.Forest.FactorBits()
	require.Equal(t, 3, bits.RowLen(0))
	var left []int
	for code := 0; code < 3; code++ {
		if bits.Test(0, int(root.Offset)+code) {
			left = append(left, code)
		}
	}
	assert.Equal(t, []int{0, 1}, left)
	for row := 0; row < n; row++ {
		leaf := b.Forest.Leaf(0, fr.Row(row))
		assert.Equal(t, float64(y[row]), b.Leaf.Score(0, leaf), "row %d", row)
	}
}

// bestCut scans every cut of one numeric predictor over all rows and
// returns the highest information net of the node's pre-bias.
func bestCut(x, y []float64, node *accum) float64 {
	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return x[order[i]] < x[order[j]] })
	best := math.Inf(-1)
	left := accum{}
	for k := 0; k < len(order)-1; k++ {
		left.sCount++
		left.extent++
		left.sum += y[order[k]]
		if x[order[k]] == x[order[k+1]] {
			continue
		}
		if info, ok := splitInfo(node, &left, 0); ok && info-preBias(node) > best {
			best = info - preBias(node)
		}
	}
	return best
}

func TestChosenSplitIsArgmax(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	n := 60
	x0 := make([]float64, n)
	x1 := make([]float64, n)
	y := make([]float64, n)
	for i := range y {
		x0[i] = rng.Float64()
		x1[i] = rng.Float64()
		y[i] = x1[i] + 0.5*rng.Float64()
		if x0[i] > 0.4 {
			y[i] += 3
		}
	}
	fr := &frame.Frame{NRow: n, Numeric: [][]float64{x0, x1}}
	ctx := context.Background()
	tr, err := newTrainer(fr, Regression{Y: y}, Config{NTree: 1, PredFixed: 2, AutoCompress: 1, Seed: 1}, nil)
	require.NoError(t, err)
	counts := make([]uint32, n)
	for i := range counts {
		counts[i] = 1
	}
	f, err := newFrontier(ctx, tr, newTreeSample(counts, tr.resp, nil), rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	cands, err := f.schedule(ctx)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	for _, sc := range cands {
		sc.evaluate(f.bt.op, f.rf, &f.sets[sc.node], f.nCtg)
	}
	f.choose(cands)
	chosen := f.sets[0].cand
	require.NotNil(t, chosen)
	assert.Equal(t, 0, chosen.pred)
	assert.Greater(t, chosen.info, 0.0)
	for _, sc := range cands {
		if sc.found {
			assert.GreaterOrEqual(t, chosen.info, sc.info)
		}
	}

	root := f.sets[0].sum
	want := math.Max(bestCut(x0, y, &root), bestCut(x1, y, &root))
	assert.InDelta(t, want, chosen.info, 1e-9)
}
