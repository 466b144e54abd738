package frame

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// RLE is a run of RunLength consecutive rows, starting at Row, sharing Rank.
type RLE struct {
	Row       uint32
	Rank      uint32
	RunLength uint32
}

/*
NumRanked keeps the distinct values of every numeric predictor in rank
order, so a rank cut found during training can be turned back into a value.
*/
type NumRanked struct {
	Values [][]float64
}

/*
Interpolate returns the split value between ranks low and high of numeric
predictor pred, quant of the way from the lower value to the upper one.
The result always stays below the upper value, so rows holding it branch
right as they did in training.
*/
func (nr *NumRanked) Interpolate(pred int, low, high uint32, quant float64) float64 {
	vals := nr.Values[pred]
	lo, hi := vals[low], vals[high]
	if math.IsNaN(hi) || math.IsInf(hi, 1) || math.IsInf(lo, -1) {
		return lo
	}
	v := lo + quant*(hi-lo)
	if !(v < hi) {
		return lo
	}
	return v
}

/*
Runs encodes every predictor of the frame as runs sorted by rank. Numeric
ranks are dense ranks over distinct values, NaN ranking last; factor ranks
are the level codes themselves.
*/
func (f *Frame) Runs() ([][]RLE, *NumRanked, error) {
	if err := f.Validate(); err != nil {
		return nil, nil, err
	}
	runs := make([][]RLE, 0, f.NPred())
	nr := &NumRanked{}
	for _, col := range f.Numeric {
		r, vals := denseRuns(col)
		runs = append(runs, r)
		nr.Values = append(nr.Values, vals)
	}
	for _, sc := range f.Sparse {
		r, vals := sparseRuns(sc, f.NRow)
		runs = append(runs, r)
		nr.Values = append(nr.Values, vals)
	}
	for p, col := range f.Factor {
		r, err := factorRuns(col, f.Cardinality[p])
		if err != nil {
			return nil, nil, errors.Wrapf(err, "factor %d", p)
		}
		runs = append(runs, r)
	}
	return runs, nr, nil
}

func denseRuns(col []float64) ([]RLE, []float64) {
	idx := make([]int, len(col))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return less(col[idx[i]], col[idx[j]])
	})
	var runs []RLE
	var vals []float64
	for _, row := range idx {
		v := col[row]
		if len(vals) == 0 || !same(vals[len(vals)-1], v) {
			vals = append(vals, v)
		}
		rank := uint32(len(vals) - 1)
		if n := len(runs); n > 0 && runs[n-1].Rank == rank && int(runs[n-1].Row+runs[n-1].RunLength) == row {
			runs[n-1].RunLength++
			continue
		}
		runs = append(runs, RLE{Row: uint32(row), Rank: rank, RunLength: 1})
	}
	return runs, vals
}

type valueRun struct {
	val    float64
	start  int
	length int
}

func sparseRuns(sc SparseColumn, nRow int) ([]RLE, []float64) {
	var vr []valueRun
	next := 0
	for i, start := range sc.RowStart {
		if start > next {
			vr = append(vr, valueRun{0, next, start - next})
		}
		vr = append(vr, valueRun{sc.Value[i], start, sc.RunLength[i]})
		next = start + sc.RunLength[i]
	}
	if next < nRow {
		vr = append(vr, valueRun{0, next, nRow - next})
	}
	sort.SliceStable(vr, func(i, j int) bool {
		return less(vr[i].val, vr[j].val)
	})
	var runs []RLE
	var vals []float64
	for _, r := range vr {
		if len(vals) == 0 || !same(vals[len(vals)-1], r.val) {
			vals = append(vals, r.val)
		}
		rank := uint32(len(vals) - 1)
		if n := len(runs); n > 0 && runs[n-1].Rank == rank && int(runs[n-1].Row+runs[n-1].RunLength) == r.start {
			runs[n-1].RunLength += uint32(r.length)
			continue
		}
		runs = append(runs, RLE{Row: uint32(r.start), Rank: rank, RunLength: uint32(r.length)})
	}
	return runs, vals
}

func factorRuns(col []uint32, card uint32) ([]RLE, error) {
	byCode := make([][]uint32, card)
	for row, code := range col {
		if code >= card {
			return nil, errors.Errorf("row %d has code %d beyond cardinality %d", row, code, card)
		}
		byCode[code] = append(byCode[code], uint32(row))
	}
	var runs []RLE
	for code, rows := range byCode {
		for _, row := range rows {
			if n := len(runs); n > 0 && runs[n-1].Rank == uint32(code) && runs[n-1].Row+runs[n-1].RunLength == row {
				runs[n-1].RunLength++
				continue
			}
			runs = append(runs, RLE{Row: row, Rank: uint32(code), RunLength: 1})
		}
	}
	return runs, nil
}
