package main

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pbanos/arboretum/pkg/forest"
	"github.com/pbanos/arboretum/pkg/predict"
	"github.com/pkg/errors"
)

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

func formatPrediction(b *forest.Bundle, yPred float64) string {
	if b.Meta.IsClassification() {
		if c := int(yPred); c >= 0 && c < len(b.Meta.ResponseLevels) {
			return b.Meta.ResponseLevels[c]
		}
	}
	return formatFloat(yPred)
}

/*
writePredictions writes one CSV row per observation: the prediction, then
the probability of every category for classification, or the requested
quantiles and the quantile of the prediction itself for regression.
*/
func writePredictions(w io.Writer, b *forest.Bundle, res *predict.Result, quantiles []float64) error {
	cw := csv.NewWriter(w)
	header := []string{"prediction"}
	if b.Meta.IsClassification() {
		for _, l := range b.Meta.ResponseLevels {
			header = append(header, "p_"+l)
		}
	} else if len(quantiles) > 0 {
		for _, q := range quantiles {
			header = append(header, "q_"+formatFloat(q))
		}
		header = append(header, "qest")
	}
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "writing predictions")
	}
	for row, yPred := range res.YPred {
		record := []string{formatPrediction(b, yPred)}
		if b.Meta.IsClassification() {
			for _, p := range res.Prob[row] {
				record = append(record, formatFloat(p))
			}
		} else if len(quantiles) > 0 {
			for _, q := range res.Quantiles[row] {
				record = append(record, formatFloat(q))
			}
			record = append(record, formatFloat(res.QEst[row]))
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "writing prediction %d", row)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "writing predictions")
}

func writePredictionsToFile(path string, b *forest.Bundle, res *predict.Result, quantiles []float64) error {
	if path == "" {
		return writePredictions(os.Stdout, b, res, quantiles)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = writePredictions(f, b, res, quantiles); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
