package main

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pbanos/arboretum/pkg/bio"
	"github.com/pbanos/arboretum/pkg/forest"
	"github.com/pbanos/arboretum/pkg/predict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantiles(t *testing.T) {
	qs, err := parseQuantiles("0.25, 0.5,0.75")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.5, 0.75}, qs)
	_, err = parseQuantiles("0.25,half")
	assert.Error(t, err)
}

func TestWritePredictionsRegression(t *testing.T) {
	b := &forest.Bundle{}
	res := &predict.Result{
		YPred:     []float64{1.5, 2},
		Quantiles: [][]float64{{1, 2}, {1.5, 3}},
		QEst:      []float64{0.5, 0.25},
	}
	var buf bytes.Buffer
	require.NoError(t, writePredictions(&buf, b, res, []float64{0.1, 0.9}))
	assert.Equal(t, "prediction,q_0.1,q_0.9,qest\n1.5,1,2,0.5\n2,1.5,3,0.25\n", buf.String())
}

func TestWritePredictionsClassification(t *testing.T) {
	b := &forest.Bundle{Meta: forest.Meta{ResponseLevels: []string{"no", "yes"}}}
	res := &predict.Result{
		YPred: []float64{1},
		Prob:  [][]float64{{0.25, 0.75}},
	}
	var buf bytes.Buffer
	require.NoError(t, writePredictions(&buf, b, res, nil))
	assert.Equal(t, "prediction,p_no,p_yes\nyes,0.25,0.75\n", buf.String())
}

func TestTrainAndPredictCommands(t *testing.T) {
	dir, err := ioutil.TempDir("", "arboretum-cli")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	metadata := filepath.Join(dir, "features.yml")
	require.NoError(t, ioutil.WriteFile(metadata, []byte("features:\n  x: continuous\n  y: continuous\n"), 0644))
	var csv bytes.Buffer
	csv.WriteString("x,y\n")
	for i := 0; i < 40; i++ {
		csv.WriteString(formatFloat(float64(i)) + "," + formatFloat(float64(2*i)) + "\n")
	}
	input := filepath.Join(dir, "train.csv")
	require.NoError(t, ioutil.WriteFile(input, csv.Bytes(), 0644))
	forestPath := filepath.Join(dir, "forest.arb")

	root := cliParser(context.Background())
	root.SetArgs([]string{"train", "-i", input, "-m", metadata, "-r", "y", "-n", "4", "-o", forestPath, "--compression", "lz4"})
	require.NoError(t, root.Execute())

	b, err := bio.ReadBundleFromFile(forestPath)
	require.NoError(t, err)
	assert.Equal(t, "y", b.Meta.Response)
	assert.Equal(t, []string{"x"}, b.Meta.Names)
	assert.Equal(t, 4, b.Forest.NTree())

	out := filepath.Join(dir, "predictions.csv")
	root = cliParser(context.Background())
	root.SetArgs([]string{"predict", "-f", forestPath, "-i", input, "-m", metadata, "-o", out, "-q", "0.5"})
	require.NoError(t, root.Execute())
	data, err := ioutil.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 41, bytes.Count(data, []byte("\n")))
	assert.True(t, bytes.HasPrefix(data, []byte("prediction,q_0.5,qest\n")))
}
