package predict

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/pbanos/arboretum/pkg/bv"
	"github.com/pbanos/arboretum/pkg/forest"
	"github.com/pbanos/arboretum/pkg/frame"
	"github.com/pbanos/arboretum/pkg/train"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stumpBundle builds two single-leaf trees, both bagging rows 0 to 3 of a
// five-row training set.
func stumpBundle(thin bool) *forest.Bundle {
	fb := forest.NewBuilder(1)
	lf := forest.NewLeafFrame(0, thin)
	lf.Default = 30
	bag := forest.NewBag(5)
	for tree := 0; tree < 2; tree++ {
		fb.AddTree([]forest.Node{{Offset: 0}}, bv.New(0), 0)
		var samples []forest.BagSample
		for row := uint32(0); row < 4; row++ {
			samples = append(samples, forest.BagSample{Leaf: 0, Row: row, SCount: 1})
		}
		lf.AddTree([]forest.Leaf{{Score: 25, Extent: 4, SCount: 4}}, nil, samples)
		bag.AddTree([]uint32{0, 1, 2, 3})
	}
	return &forest.Bundle{
		Forest: fb.Forest(),
		Leaf:   lf,
		Bag:    bag,
		Meta:   forest.Meta{NPredNum: 1, YTrain: []float64{10, 20, 30, 40, 50}},
	}
}

func stumpFrame(nRow int) *frame.Frame {
	col := make([]float64, nRow)
	for i := range col {
		col[i] = float64(i)
	}
	return &frame.Frame{NRow: nRow, Numeric: [][]float64{col}}
}

func TestMedianQuantileOutOfBag(t *testing.T) {
	res, err := Predict(context.Background(), stumpBundle(false), stumpFrame(5), Config{OOB: true, Quantiles: []float64{0.5}}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Scored[4])
	assert.Equal(t, 25.0, res.YPred[4])
	assert.Equal(t, []float64{20}, res.Quantiles[4])
	assert.Equal(t, 0.5, res.QEst[4])

	for row := 0; row < 4; row++ {
		assert.Zero(t, res.Scored[row])
		assert.Equal(t, 30.0, res.YPred[row])
		assert.True(t, math.IsNaN(res.Quantiles[row][0]))
	}
}

func TestQuantilesInBag(t *testing.T) {
	res, err := Predict(context.Background(), stumpBundle(false), stumpFrame(5), Config{Quantiles: []float64{0, 0.25, 1}}, nil)
	require.NoError(t, err)
	for row := 0; row < 5; row++ {
		assert.Equal(t, 2, res.Scored[row])
		assert.Equal(t, []float64{10, 10, 40}, res.Quantiles[row])
	}
}

func TestPredictErrors(t *testing.T) {
	ctx := context.Background()
	_, err := Predict(ctx, stumpBundle(false), stumpFrame(6), Config{OOB: true}, nil)
	assert.Equal(t, ErrRowMismatch, errors.Cause(err))

	b := stumpBundle(false)
	b.Bag = forest.NewBag(5)
	_, err = Predict(ctx, b, stumpFrame(5), Config{OOB: true}, nil)
	assert.Equal(t, ErrEmptyBag, errors.Cause(err))

	_, err = Predict(ctx, stumpBundle(true), stumpFrame(5), Config{Quantiles: []float64{0.5}}, nil)
	assert.Equal(t, ErrQuantiles, errors.Cause(err))

	_, err = Predict(ctx, stumpBundle(false), stumpFrame(5), Config{Quantiles: []float64{1.5}}, nil)
	assert.Equal(t, ErrQuantiles, errors.Cause(err))

	wide := stumpFrame(5)
	wide.Numeric = append(wide.Numeric, wide.Numeric[0])
	_, err = Predict(ctx, stumpBundle(false), wide, Config{}, nil)
	assert.Equal(t, ErrRowMismatch, errors.Cause(err))
}

func TestClassificationVotesAndValidation(t *testing.T) {
	n := 30
	codes := make([]uint32, n)
	for i := range codes {
		codes[i] = uint32(i % 3)
	}
	fr := &frame.Frame{NRow: n, Factor: [][]uint32{codes}, Cardinality: []uint32{3}}
	b, err := train.Train(context.Background(), fr, train.Classification{Y: codes, NCtg: 3}, train.Config{NTree: 3, Seed: 4}, nil)
	require.NoError(t, err)

	res, err := Predict(context.Background(), b, fr, Config{NThread: 2, RowBlock: 7}, nil)
	require.NoError(t, err)
	for row := 0; row < n; row++ {
		assert.Equal(t, float64(codes[row]), res.YPred[row])
		assert.Equal(t, uint32(3), res.Votes[row][codes[row]])
		sum := 0.0
		for _, p := range res.Prob[row] {
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
	v, err := ValidateClassification(res, codes, 3)
	require.NoError(t, err)
	assert.Equal(t, n, v.N)
	assert.Zero(t, v.Misprediction)
	assert.Equal(t, []int{10, 0, 0}, v.Confusion[0])

	_, err = Predict(context.Background(), b, fr, Config{Quantiles: []float64{0.5}}, nil)
	assert.Equal(t, ErrQuantiles, errors.Cause(err))
}

func TestUnseenLevelsAreCounted(t *testing.T) {
	codes := []uint32{0, 1, 2, 0, 1, 2, 0, 1, 2}
	fr := &frame.Frame{NRow: len(codes), Factor: [][]uint32{codes}, Cardinality: []uint32{3}}
	b, err := train.Train(context.Background(), fr, train.Classification{Y: codes, NCtg: 3}, train.Config{NTree: 1, Seed: 1}, nil)
	require.NoError(t, err)

	test := &frame.Frame{NRow: 2, Factor: [][]uint32{{3, 1}}, Cardinality: []uint32{4}}
	res, err := Predict(context.Background(), b, test, Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Warnings)
	assert.Equal(t, 1, res.Scored[0])
	assert.Equal(t, 1.0, res.YPred[1])
}

func TestRegressionOutOfBagValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	n := 150
	x := make([]float64, n)
	z := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = rng.Float64() * 10
		z[i] = rng.Float64()
		y[i] = 3*x[i] + z[i]
	}
	fr := &frame.Frame{NRow: n, Numeric: [][]float64{x, z}}
	cfg := train.Config{NTree: 30, WithReplacement: true, PredFixed: 2, Seed: 6}
	b, err := train.Train(context.Background(), fr, train.Regression{Y: y}, cfg, nil)
	require.NoError(t, err)

	res, err := Predict(context.Background(), b, fr, Config{OOB: true, Quantiles: []float64{0.1, 0.5, 0.9}, NThread: 3}, nil)
	require.NoError(t, err)
	for row := 0; row < n; row++ {
		if res.Scored[row] == 0 {
			continue
		}
		q := res.Quantiles[row]
		assert.LessOrEqual(t, q[0], q[1])
		assert.LessOrEqual(t, q[1], q[2])
		assert.True(t, res.QEst[row] >= 0 && res.QEst[row] <= 1)
	}
	v, err := ValidateRegression(res, y)
	require.NoError(t, err)
	assert.Greater(t, v.N, n/2)
	assert.Greater(t, v.RSquared, 0.5)
	assert.GreaterOrEqual(t, v.MSE, 0.0)
}
