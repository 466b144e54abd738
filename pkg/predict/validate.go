package predict

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

/*
Validation summarizes predictions against known responses. Regression
fills MSE, MAE and RSquared; classification fills Misprediction and
Confusion, indexed [actual][predicted]. Rows no tree scored are left out.
*/
type Validation struct {
	N             int     `json:"n"`
	MSE           float64 `json:"mse,omitempty"`
	MAE           float64 `json:"mae,omitempty"`
	RSquared      float64 `json:"rSquared,omitempty"`
	Misprediction float64 `json:"misprediction,omitempty"`
	Confusion     [][]int `json:"confusion,omitempty"`
}

/*
ValidateRegression compares a regression result with the actual
responses.
*/
func ValidateRegression(res *Result, y []float64) (*Validation, error) {
	if len(y) != len(res.YPred) {
		return nil, errors.Wrapf(ErrRowMismatch, "%d responses for %d predictions", len(y), len(res.YPred))
	}
	var sq, abs, actual []float64
	for row, yPred := range res.YPred {
		if res.Scored[row] == 0 {
			continue
		}
		d := yPred - y[row]
		sq = append(sq, d*d)
		abs = append(abs, math.Abs(d))
		actual = append(actual, y[row])
	}
	v := &Validation{N: len(sq)}
	if v.N == 0 {
		return v, nil
	}
	var err error
	if v.MSE, err = stats.Mean(sq); err != nil {
		return nil, errors.Wrap(err, "computing mean squared error")
	}
	if v.MAE, err = stats.Mean(abs); err != nil {
		return nil, errors.Wrap(err, "computing mean absolute error")
	}
	variance, err := stats.PopulationVariance(actual)
	if err != nil {
		return nil, errors.Wrap(err, "computing response variance")
	}
	if variance > 0 {
		v.RSquared = 1 - v.MSE/variance
	}
	return v, nil
}

/*
ValidateClassification compares a classification result with the actual
category codes, nCtg being the category count.
*/
func ValidateClassification(res *Result, y []uint32, nCtg int) (*Validation, error) {
	if len(y) != len(res.YPred) {
		return nil, errors.Wrapf(ErrRowMismatch, "%d responses for %d predictions", len(y), len(res.YPred))
	}
	v := &Validation{Confusion: make([][]int, nCtg)}
	for c := range v.Confusion {
		v.Confusion[c] = make([]int, nCtg)
	}
	wrong := 0
	for row, yPred := range res.YPred {
		if res.Scored[row] == 0 {
			continue
		}
		if int(y[row]) >= nCtg {
			return nil, errors.Errorf("row %d has category %d of %d", row, y[row], nCtg)
		}
		pred := int(yPred)
		v.Confusion[y[row]][pred]++
		if pred != int(y[row]) {
			wrong++
		}
		v.N++
	}
	if v.N > 0 {
		v.Misprediction = float64(wrong) / float64(v.N)
	}
	return v, nil
}
