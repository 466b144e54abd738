package frame

import (
	"math"

	"github.com/pkg/errors"
)

// NoRank marks a predictor without an implicit (dense) rank.
const NoRank = math.MaxUint32

// RowRank is one explicit observation: a row and its rank.
type RowRank struct {
	Row  uint32
	Rank uint32
}

/*
RankedFrame is the rank-ordered form of every predictor. Rows holding a
predictor's dense rank are not materialized; all other rows are listed
explicitly in rank order.
*/
type RankedFrame struct {
	nRow        int
	nPredNum    int
	cardinality []uint32
	denseRank   []uint32
	denseCount  []int
	rankCount   []int
	rrStart     []int
	rr          []RowRank
	safeOffset  []int
	safeSize    int
}

/*
NewRankedFrame builds the ranked form from per-predictor runs sorted by rank.
A rank whose total occurrence count exceeds nRow*autoCompress is stored
implicitly. The first nPredNum predictors are numeric; the remainder are
factors with the given cardinalities.
*/
func NewRankedFrame(nRow, nPredNum int, cardinality []uint32, runs [][]RLE, autoCompress float64) (*RankedFrame, error) {
	nPred := len(runs)
	if nPredNum+len(cardinality) != nPred {
		return nil, errors.Errorf("%d numeric and %d factor predictors for %d run lists", nPredNum, len(cardinality), nPred)
	}
	rf := &RankedFrame{
		nRow:        nRow,
		nPredNum:    nPredNum,
		cardinality: cardinality,
		denseRank:   make([]uint32, nPred),
		denseCount:  make([]int, nPred),
		rankCount:   make([]int, nPred),
		rrStart:     make([]int, nPred+1),
		safeOffset:  make([]int, nPred),
	}
	threshold := float64(nRow) * autoCompress
	for p, pr := range runs {
		denseRank, denseCount, rankCount, err := denseScan(pr, nRow)
		if err != nil {
			return nil, errors.Wrapf(err, "predictor %d", p)
		}
		rf.rankCount[p] = rankCount
		rf.denseRank[p] = NoRank
		if float64(denseCount) > threshold {
			rf.denseRank[p] = denseRank
			rf.denseCount[p] = denseCount
		}
		rf.rrStart[p] = len(rf.rr)
		for _, r := range pr {
			if r.Rank == rf.denseRank[p] {
				continue
			}
			for row := r.Row; row < r.Row+r.RunLength; row++ {
				rf.rr = append(rf.rr, RowRank{Row: row, Rank: r.Rank})
			}
		}
		rf.safeOffset[p] = rf.safeSize
		rf.safeSize += nRow - rf.denseCount[p]
	}
	rf.rrStart[nPred] = len(rf.rr)
	return rf, nil
}

// denseScan finds the most frequent rank and validates the row total.
func denseScan(runs []RLE, nRow int) (uint32, int, int, error) {
	counts := map[uint32]int{}
	total := 0
	for _, r := range runs {
		counts[r.Rank] += int(r.RunLength)
		total += int(r.RunLength)
	}
	if total != nRow {
		return 0, 0, 0, errors.Wrapf(ErrRowCount, "runs cover %d rows, want %d", total, nRow)
	}
	best, bestCount := uint32(NoRank), 0
	for rank, c := range counts {
		if c > bestCount || (c == bestCount && rank < best) {
			best, bestCount = rank, c
		}
	}
	return best, bestCount, len(counts), nil
}

// NewRankedFrameFrom ranks a Frame, returning the numeric value table too.
func NewRankedFrameFrom(f *Frame, autoCompress float64) (*RankedFrame, *NumRanked, error) {
	runs, nr, err := f.Runs()
	if err != nil {
		return nil, nil, err
	}
	rf, err := NewRankedFrame(f.NRow, f.NPredNum(), f.Cardinality, runs, autoCompress)
	if err != nil {
		return nil, nil, err
	}
	return rf, nr, nil
}

// NRow returns the observation count.
func (rf *RankedFrame) NRow() int {
	return rf.nRow
}

// NPred returns the predictor count.
func (rf *RankedFrame) NPred() int {
	return len(rf.denseRank)
}

// NPredNum returns the numeric predictor count.
func (rf *RankedFrame) NPredNum() int {
	return rf.nPredNum
}

// IsFactor reports whether pred is a factor.
func (rf *RankedFrame) IsFactor(pred int) bool {
	return pred >= rf.nPredNum
}

// Cardinality returns the level count of factor pred.
func (rf *RankedFrame) Cardinality(pred int) uint32 {
	return rf.cardinality[pred-rf.nPredNum]
}

// DenseRank returns the implicit rank of pred, or NoRank.
func (rf *RankedFrame) DenseRank(pred int) uint32 {
	return rf.denseRank[pred]
}

// DenseCount returns the count of rows stored implicitly for pred.
func (rf *RankedFrame) DenseCount(pred int) int {
	return rf.denseCount[pred]
}

// RankCount returns the number of distinct ranks of pred.
func (rf *RankedFrame) RankCount(pred int) int {
	return rf.rankCount[pred]
}

// Explicit returns the explicit observations of pred in rank order.
func (rf *RankedFrame) Explicit(pred int) []RowRank {
	return rf.rr[rf.rrStart[pred]:rf.rrStart[pred+1]]
}

/*
SafeOffset returns the start of pred's region in a per-predictor staging
buffer of SafeSize cells. Dense predictors receive a region shortened by
their implicit row count.
*/
func (rf *RankedFrame) SafeOffset(pred int) int {
	return rf.safeOffset[pred]
}

// SafeSize returns the staging buffer length covering every predictor.
func (rf *RankedFrame) SafeSize() int {
	return rf.safeSize
}
