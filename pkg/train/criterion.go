package train

/*
accum gathers the response of a group of samples: a node, the left side of
a candidate split, a factor run or a dense block.
*/
type accum struct {
	sCount int
	sum    float64
	extent int
	ctg    []sumCount
}

func newAccum(nCtg int) accum {
	a := accum{}
	if nCtg > 0 {
		a.ctg = make([]sumCount, nCtg)
	}
	return a
}

func (a *accum) addCell(c *obsCell) {
	a.sCount += int(c.sCount)
	a.sum += c.ySum
	a.extent++
	if a.ctg != nil {
		a.ctg[c.ctg].add(c.ySum, int(c.sCount))
	}
}

func (a *accum) addAccum(b *accum) {
	a.sCount += b.sCount
	a.sum += b.sum
	a.extent += b.extent
	for i := range a.ctg {
		a.ctg[i].add(b.ctg[i].sum, b.ctg[i].sCount)
	}
}

// sub returns a minus b.
func (a *accum) sub(b *accum) accum {
	out := accum{sCount: a.sCount - b.sCount, sum: a.sum - b.sum, extent: a.extent - b.extent}
	if a.ctg != nil {
		out.ctg = minus(a.ctg, b.ctg)
	}
	return out
}

func (a *accum) clone() accum {
	out := *a
	if a.ctg != nil {
		out.ctg = append([]sumCount(nil), a.ctg...)
	}
	return out
}

func (a *accum) sumSquares() float64 {
	ss := 0.0
	for _, sc := range a.ctg {
		ss += sc.sum * sc.sum
	}
	return ss
}

/*
preBias is the information of an unsplit node, which a split must exceed:
sum^2/sCount for regression and the squared category sums over the sum for
classification.
*/
func preBias(node *accum) float64 {
	if node.ctg != nil {
		if node.sum <= 0 {
			return 0
		}
		return node.sumSquares() / node.sum
	}
	if node.sCount == 0 {
		return 0
	}
	return node.sum * node.sum / float64(node.sCount)
}

/*
splitInfo returns the information of splitting node into left and the
remainder, and false when either side is empty or the split violates the
monotone mode (positive: left mean at most right mean; negative: at least).
*/
func splitInfo(node, left *accum, mono int) (float64, bool) {
	sCountR := node.sCount - left.sCount
	if left.sCount == 0 || sCountR == 0 {
		return 0, false
	}
	sumR := node.sum - left.sum
	if node.ctg != nil {
		if left.sum <= 0 || sumR <= 0 {
			return 0, false
		}
		ssL, ssR := 0.0, 0.0
		for c, sc := range left.ctg {
			r := node.ctg[c].sum - sc.sum
			ssL += sc.sum * sc.sum
			ssR += r * r
		}
		return ssL/left.sum + ssR/sumR, true
	}
	switch {
	case mono > 0 && left.sum*float64(sCountR) > sumR*float64(left.sCount):
		return 0, false
	case mono < 0 && left.sum*float64(sCountR) < sumR*float64(left.sCount):
		return 0, false
	}
	return left.sum*left.sum/float64(left.sCount) + sumR*sumR/float64(sCountR), true
}
