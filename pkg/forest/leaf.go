package forest

import "github.com/pkg/errors"

/*
Leaf scores a terminal: the mean response for regression, or the winning
category code for classification. Extent counts distinct bagged rows and
SCount counts them with multiplicity.
*/
type Leaf struct {
	Score  float64
	Extent uint32
	SCount uint32
}

// BagSample is one bagged row of a tree, with the leaf it reached.
type BagSample struct {
	Leaf   uint32
	Row    uint32
	SCount uint32
}

/*
LeafFrame holds every tree's leaves. For classification it keeps per-leaf
category weights, NCtg per leaf. Unless thinned, it also keeps every tree's
bagged rows grouped by leaf, which quantile estimation requires.
*/
type LeafFrame struct {
	NCtg int
	// Default is the prediction for a row no tree scored.
	Default float64

	leaves     []Leaf
	leafHeight []int
	weight     []float64
	samples    []BagSample
	sampleEnd  []int
	thin       bool
}

// NewLeafFrame returns an empty frame for nCtg categories (0 for regression).
func NewLeafFrame(nCtg int, thin bool) *LeafFrame {
	return &LeafFrame{NCtg: nCtg, thin: thin}
}

/*
LeafFrameFrom reassembles a frame from its exported parts, as used by
decoders.
*/
func LeafFrameFrom(nCtg int, def float64, leaves []Leaf, leafHeight []int, weight []float64, samples []BagSample, sampleEnd []int, thin bool) (*LeafFrame, error) {
	if len(weight) != len(leaves)*nCtg {
		return nil, errors.Errorf("%d weights for %d leaves and %d categories", len(weight), len(leaves), nCtg)
	}
	if !thin && len(sampleEnd) != len(leaves) {
		return nil, errors.Errorf("%d sample bounds for %d leaves", len(sampleEnd), len(leaves))
	}
	if n := len(leafHeight); n > 0 && leafHeight[n-1] != len(leaves) {
		return nil, errors.Errorf("leaf heights end at %d, want %d", leafHeight[n-1], len(leaves))
	}
	return &LeafFrame{
		NCtg:       nCtg,
		Default:    def,
		leaves:     leaves,
		leafHeight: leafHeight,
		weight:     weight,
		samples:    samples,
		sampleEnd:  sampleEnd,
		thin:       thin,
	}, nil
}

/*
AddTree appends a tree's leaves, their category weights (len(leaves)*NCtg)
and its bag samples. Samples need not be sorted; they are grouped by leaf.
Samples are dropped when the frame is thin.
*/
func (lf *LeafFrame) AddTree(leaves []Leaf, weight []float64, samples []BagSample) {
	lf.leaves = append(lf.leaves, leaves...)
	lf.leafHeight = append(lf.leafHeight, len(lf.leaves))
	lf.weight = append(lf.weight, weight...)
	if lf.thin {
		return
	}
	count := make([]int, len(leaves)+1)
	for _, s := range samples {
		count[s.Leaf+1]++
	}
	for i := 1; i < len(count); i++ {
		count[i] += count[i-1]
	}
	base := len(lf.samples)
	grouped := make([]BagSample, len(samples))
	for _, s := range samples {
		grouped[count[s.Leaf]] = s
		count[s.Leaf]++
	}
	lf.samples = append(lf.samples, grouped...)
	for leaf := range leaves {
		lf.sampleEnd = append(lf.sampleEnd, base+count[leaf])
	}
}

// Thin reports whether per-sample bag detail was omitted.
func (lf *LeafFrame) Thin() bool {
	return lf.thin
}

// NTree returns the number of trees.
func (lf *LeafFrame) NTree() int {
	return len(lf.leafHeight)
}

func (lf *LeafFrame) leafBase(t int) int {
	if t == 0 {
		return 0
	}
	return lf.leafHeight[t-1]
}

// TreeLeaves returns the leaves of tree t.
func (lf *LeafFrame) TreeLeaves(t int) []Leaf {
	return lf.leaves[lf.leafBase(t):lf.leafHeight[t]]
}

// Score returns the score of leaf of tree t.
func (lf *LeafFrame) Score(t int, leaf uint32) float64 {
	return lf.leaves[lf.leafBase(t)+int(leaf)].Score
}

// Weight returns the category weights of leaf of tree t.
func (lf *LeafFrame) Weight(t int, leaf uint32) []float64 {
	g := lf.leafBase(t) + int(leaf)
	return lf.weight[g*lf.NCtg : (g+1)*lf.NCtg]
}

// Samples returns the bagged rows of tree t that reached leaf.
func (lf *LeafFrame) Samples(t int, leaf uint32) []BagSample {
	g := lf.leafBase(t) + int(leaf)
	start := 0
	if g > 0 {
		start = lf.sampleEnd[g-1]
	}
	return lf.samples[start:lf.sampleEnd[g]]
}

// Leaves exposes the concatenated leaves.
func (lf *LeafFrame) Leaves() []Leaf {
	return lf.leaves
}

// LeafHeights exposes the per-tree leaf offsets.
func (lf *LeafFrame) LeafHeights() []int {
	return lf.leafHeight
}

// Weights exposes the concatenated category weights.
func (lf *LeafFrame) Weights() []float64 {
	return lf.weight
}

// BagSamples exposes the concatenated bag samples.
func (lf *LeafFrame) BagSamples() []BagSample {
	return lf.samples
}

// SampleEnds exposes the per-leaf sample offsets.
func (lf *LeafFrame) SampleEnds() []int {
	return lf.sampleEnd
}
