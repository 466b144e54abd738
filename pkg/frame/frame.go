/*
Package frame holds observation blocks and their rank-ordered form.

A Frame is the raw column-major predictor block. Numeric predictors come
first, dense columns before sparse ones, followed by factor predictors. A
RankedFrame is the per-predictor rank order derived from a Frame once per
training run and shared read-only by every tree.
*/
package frame

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

var (
	// ErrRowCount is returned when a column does not cover exactly the frame's rows.
	ErrRowCount = errors.New("row count mismatch")
	// ErrSparseEncoding is returned for overlapping or out-of-range sparse runs.
	ErrSparseEncoding = errors.New("unsupported sparse encoding")
)

/*
SparseColumn is a run-length-encoded numeric column. Value[i] holds for the
RunLength[i] rows starting at RowStart[i]. Rows no run covers are zero.
*/
type SparseColumn struct {
	Value     []float64
	RowStart  []int
	RunLength []int
}

// Frame is a column-major block of predictor values.
type Frame struct {
	NRow int
	// Numeric holds the dense numeric columns, indexed [predictor][row].
	Numeric [][]float64
	// Sparse holds run-length-encoded numeric columns, following Numeric.
	Sparse []SparseColumn
	// Factor holds zero-based level codes, indexed [factor][row].
	Factor [][]uint32
	// Cardinality holds the level count of each factor.
	Cardinality []uint32
	// Names optionally labels the predictors in frame order.
	Names []string
}

// NPred returns the total predictor count.
func (f *Frame) NPred() int {
	return f.NPredNum() + len(f.Factor)
}

// NPredNum returns the count of numeric predictors, dense and sparse.
func (f *Frame) NPredNum() int {
	return len(f.Numeric) + len(f.Sparse)
}

// NPredFac returns the count of factor predictors.
func (f *Frame) NPredFac() int {
	return len(f.Factor)
}

// IsFactor reports whether predictor pred is a factor.
func (f *Frame) IsFactor(pred int) bool {
	return pred >= f.NPredNum()
}

// FacIdx maps a predictor index to its position among factors.
func (f *Frame) FacIdx(pred int) int {
	return pred - f.NPredNum()
}

// Num returns the value of numeric predictor pred at row.
func (f *Frame) Num(pred, row int) float64 {
	if pred < len(f.Numeric) {
		return f.Numeric[pred][row]
	}
	sc := &f.Sparse[pred-len(f.Numeric)]
	i := sort.Search(len(sc.RowStart), func(i int) bool {
		return sc.RowStart[i] > row
	}) - 1
	if i >= 0 && row < sc.RowStart[i]+sc.RunLength[i] {
		return sc.Value[i]
	}
	return 0
}

// Code returns the level code of factor predictor pred at row.
func (f *Frame) Code(pred, row int) uint32 {
	return f.Factor[f.FacIdx(pred)][row]
}

// RowView reads one row of a Frame through predictor indices.
type RowView struct {
	f   *Frame
	row int
}

// Row returns a view of row.
func (f *Frame) Row(row int) RowView {
	return RowView{f, row}
}

func (r RowView) Num(pred int) float64 { return r.f.Num(pred, r.row) }
func (r RowView) Code(pred int) uint32 { return r.f.Code(pred, r.row) }

/*
Validate checks that every column spans NRow rows and that sparse runs are
sorted, disjoint and inside the frame.
*/
func (f *Frame) Validate() error {
	for p, col := range f.Numeric {
		if len(col) != f.NRow {
			return errors.Wrapf(ErrRowCount, "numeric predictor %d has %d rows, want %d", p, len(col), f.NRow)
		}
	}
	for p, col := range f.Factor {
		if len(col) != f.NRow {
			return errors.Wrapf(ErrRowCount, "factor %d has %d rows, want %d", p, len(col), f.NRow)
		}
	}
	if len(f.Cardinality) != len(f.Factor) {
		return errors.Errorf("%d factor cardinalities for %d factors", len(f.Cardinality), len(f.Factor))
	}
	for p, sc := range f.Sparse {
		if len(sc.Value) != len(sc.RowStart) || len(sc.Value) != len(sc.RunLength) {
			return errors.Wrapf(ErrSparseEncoding, "sparse predictor %d has ragged run vectors", p)
		}
		end := 0
		for i := range sc.Value {
			if sc.RowStart[i] < end || sc.RunLength[i] < 1 || sc.RowStart[i]+sc.RunLength[i] > f.NRow {
				return errors.Wrapf(ErrSparseEncoding, "sparse predictor %d run %d", p, i)
			}
			end = sc.RowStart[i] + sc.RunLength[i]
		}
	}
	if len(f.Names) != 0 && len(f.Names) != f.NPred() {
		return errors.Errorf("%d predictor names for %d predictors", len(f.Names), f.NPred())
	}
	return nil
}

/*
Densify returns a copy of the frame in which sparse columns are expanded to
dense numeric columns.
*/
func (f *Frame) Densify() *Frame {
	out := &Frame{
		NRow:        f.NRow,
		Factor:      f.Factor,
		Cardinality: f.Cardinality,
		Names:       f.Names,
	}
	out.Numeric = append(out.Numeric, f.Numeric...)
	for p := range f.Sparse {
		col := make([]float64, f.NRow)
		for row := range col {
			col[row] = f.Num(len(f.Numeric)+p, row)
		}
		out.Numeric = append(out.Numeric, col)
	}
	return out
}

// less orders values ascending with NaN last.
func less(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	return math.IsNaN(b) || a < b
}

func same(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}
