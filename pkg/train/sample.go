package train

import (
	"math"
	"math/rand"
	"sort"
)

/*
sampleRows draws nSamp rows out of nRow and returns each row's multiplicity.
Draws follow weight when given, uniformly otherwise.
*/
func sampleRows(rng *rand.Rand, nRow, nSamp int, replace bool, weight []float64) []uint32 {
	counts := make([]uint32, nRow)
	switch {
	case replace && weight == nil:
		for i := 0; i < nSamp; i++ {
			counts[rng.Intn(nRow)]++
		}
	case replace:
		cdf := make([]float64, nRow)
		tot := 0.0
		for row, w := range weight {
			tot += w
			cdf[row] = tot
		}
		for i := 0; i < nSamp; i++ {
			u := rng.Float64() * tot
			row := sort.SearchFloat64s(cdf, u)
			for row < nRow-1 && (cdf[row] <= u || weight[row] == 0) {
				row++
			}
			counts[row]++
		}
	case weight == nil:
		perm := make([]int, nRow)
		for i := range perm {
			perm[i] = i
		}
		for i := 0; i < nSamp; i++ {
			j := i + rng.Intn(nRow-i)
			perm[i], perm[j] = perm[j], perm[i]
			counts[perm[i]] = 1
		}
	default:
		// Weighted sampling without replacement keeps the rows with the
		// largest keys u^(1/w).
		type keyed struct {
			row int
			key float64
		}
		keys := make([]keyed, 0, nRow)
		for row, w := range weight {
			u := rng.Float64()
			if w > 0 {
				keys = append(keys, keyed{row, math.Log(u) / w})
			}
		}
		sort.SliceStable(keys, func(i, j int) bool {
			return keys[i].key > keys[j].key
		})
		for _, k := range keys[:nSamp] {
			counts[k.row] = 1
		}
	}
	return counts
}

// sampleNux is the response of one bagged row, scaled by its multiplicity.
type sampleNux struct {
	row    uint32
	sCount uint32
	ctg    uint32
	ySum   float64
}

/*
treeSample is the bag of one tree. Sample indices enumerate the distinct
bagged rows in increasing row order.
*/
type treeSample struct {
	nux        []sampleNux
	row2Sample []int32
	nSamp      int
	bagSum     float64
	ctgRoot    []sumCount
}

func newTreeSample(counts []uint32, resp Response, classWeight []float64) *treeSample {
	ts := &treeSample{row2Sample: make([]int32, len(counts))}
	nCtg := resp.ctgCount()
	if nCtg > 0 {
		ts.ctgRoot = make([]sumCount, nCtg)
	}
	for row, c := range counts {
		if c == 0 {
			ts.row2Sample[row] = -1
			continue
		}
		ts.row2Sample[row] = int32(len(ts.nux))
		nux := sampleNux{row: uint32(row), sCount: c}
		switch r := resp.(type) {
		case Regression:
			nux.ySum = r.Y[row] * float64(c)
		case Classification:
			nux.ctg = r.Y[row]
			nux.ySum = classWeight[nux.ctg] * float64(c)
			ts.ctgRoot[nux.ctg].add(nux.ySum, int(c))
		}
		ts.nux = append(ts.nux, nux)
		ts.nSamp += int(c)
		ts.bagSum += nux.ySum
	}
	return ts
}

func (ts *treeSample) bagCount() int {
	return len(ts.nux)
}

// rows returns the bagged rows in increasing order.
func (ts *treeSample) rows() []uint32 {
	rows := make([]uint32, len(ts.nux))
	for i, n := range ts.nux {
		rows[i] = n.row
	}
	return rows
}
