package train

import "github.com/pkg/errors"

/*
Response is the training response: either a Regression or a
Classification.
*/
type Response interface {
	nRow() int
	ctgCount() int
}

// Regression is a continuous response.
type Regression struct {
	Y []float64
}

func (r Regression) nRow() int     { return len(r.Y) }
func (r Regression) ctgCount() int { return 0 }

/*
Classification is a categorical response of zero-based codes below NCtg.
Levels, when given, names every code and is recorded in the bundle;
otherwise categories are named by their decimal code.
*/
type Classification struct {
	Y      []uint32
	NCtg   int
	Levels []string
}

func (c Classification) nRow() int     { return len(c.Y) }
func (c Classification) ctgCount() int { return c.NCtg }

func validateResponse(resp Response, nRow int) error {
	if resp.nRow() != nRow {
		return configErrorf("%d responses for %d rows", resp.nRow(), nRow)
	}
	switch r := resp.(type) {
	case Classification:
		if r.NCtg < 2 {
			return configErrorf("classification needs at least two categories, got %d", r.NCtg)
		}
		if r.Levels != nil && len(r.Levels) != r.NCtg {
			return configErrorf("%d level names for %d categories", len(r.Levels), r.NCtg)
		}
		for row, y := range r.Y {
			if int(y) >= r.NCtg {
				return configErrorf("row %d has category %d of %d", row, y, r.NCtg)
			}
		}
	case Regression:
	default:
		return errors.Errorf("unsupported response %T", resp)
	}
	return nil
}

// sumCount accumulates a weighted response sum with its sample count.
type sumCount struct {
	sum    float64
	sCount int
}

func (sc *sumCount) add(sum float64, sCount int) {
	sc.sum += sum
	sc.sCount += sCount
}

func minus(a, b []sumCount) []sumCount {
	out := make([]sumCount, len(a))
	for i := range a {
		out[i] = sumCount{a[i].sum - b[i].sum, a[i].sCount - b[i].sCount}
	}
	return out
}
