package predict

import (
	"math"
	"sort"

	"github.com/pbanos/arboretum/pkg/forest"
	"github.com/pkg/errors"
)

// binSize bounds the rank histogram; wider responses share bins.
const binSize = 0x1000

/*
quant estimates response quantiles from the bagged samples of the leaves a
row reaches. Training responses are ranked by distinct value; ranks are
shifted down by rankScale to fit binSize bins, each valued by the mean
response it holds.
*/
type quant struct {
	leaf      *forest.LeafFrame
	quantiles []float64
	rowRank   []uint32
	rankScale uint
	binMean   []float64
}

func newQuant(b *forest.Bundle, quantiles []float64) (*quant, error) {
	if b.Meta.IsClassification() || b.Leaf.NCtg > 0 {
		return nil, errors.Wrap(ErrQuantiles, "classification forest")
	}
	if b.Leaf.Thin() {
		return nil, errors.Wrap(ErrQuantiles, "leaf frame was thinned")
	}
	if len(b.Meta.YTrain) == 0 {
		return nil, errors.Wrap(ErrQuantiles, "training response not recorded")
	}
	for _, q := range quantiles {
		if q < 0 || q > 1 || math.IsNaN(q) {
			return nil, errors.Wrapf(ErrQuantiles, "quantile %v outside [0, 1]", q)
		}
	}
	y := b.Meta.YTrain
	order := make([]int, len(y))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return y[order[i]] < y[order[j]]
	})
	qt := &quant{leaf: b.Leaf, quantiles: quantiles, rowRank: make([]uint32, len(y))}
	rankCount := 0
	for i, row := range order {
		if i > 0 && y[row] != y[order[i-1]] {
			rankCount++
		}
		qt.rowRank[row] = uint32(rankCount)
	}
	rankCount++
	for binSize<<qt.rankScale < rankCount {
		qt.rankScale++
	}
	nBin := rankCount
	if nBin > binSize {
		nBin = binSize
	}
	qt.binMean = make([]float64, nBin)
	count := make([]int, nBin)
	for row, v := range y {
		bin := qt.rowRank[row] >> qt.rankScale
		qt.binMean[bin] += v
		count[bin]++
	}
	for bin, c := range count {
		if c > 0 {
			qt.binMean[bin] /= float64(c)
		}
	}
	return qt, nil
}

func (qt *quant) newBins() []uint32 {
	return make([]uint32, len(qt.binMean))
}

/*
predictRow accumulates the rank histogram of the samples in the leaves
reached, skipping trees marked -1, and reads each quantile off at the first
bin where the cumulative count reaches its threshold. qEst is the fraction
of samples in bins valued below yPred. bins is scratch space.
*/
func (qt *quant) predictRow(leaves []int32, yPred float64, bins []uint32) ([]float64, float64) {
	for i := range bins {
		bins[i] = 0
	}
	total := 0
	for t, leaf := range leaves {
		if leaf < 0 {
			continue
		}
		for _, s := range qt.leaf.Samples(t, uint32(leaf)) {
			bins[qt.rowRank[s.Row]>>qt.rankScale] += s.SCount
			total += int(s.SCount)
		}
	}
	qRow := make([]float64, len(qt.quantiles))
	if total == 0 {
		for i := range qRow {
			qRow[i] = math.NaN()
		}
		return qRow, math.NaN()
	}
	threshold := make([]float64, len(qt.quantiles))
	for i, q := range qt.quantiles {
		threshold[i] = float64(total) * q
	}
	slot, seen, below := 0, 0, 0
	for bin, c := range bins {
		seen += int(c)
		for slot < len(threshold) && float64(seen) >= threshold[slot] {
			qRow[slot] = qt.binMean[bin]
			slot++
		}
		if yPred > qt.binMean[bin] {
			below = seen
		} else if slot >= len(threshold) {
			break
		}
	}
	return qRow, float64(below) / float64(total)
}
