package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pbanos/arboretum/pkg/bio"
	"github.com/pbanos/arboretum/pkg/forest"
	"github.com/pbanos/arboretum/pkg/frame"
	"github.com/pbanos/arboretum/pkg/predict"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type predictCmdConfig struct {
	*rootCmdConfig
	forestInput    string
	storeURI       string
	forestID       string
	dataInput      string
	metadataInput  string
	output         string
	quantiles      string
	interactive    bool
	undefinedValue string
	predict        predict.Config
}

type stdoutFeatureValueRequester string

func predictCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &predictCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict values for a set of data",
		Long:  `Use a trained forest to predict the response for every observation of a set, optionally with response quantiles, or for a single observation answering questions about its features`,
		Run: func(cmd *cobra.Command, args []string) {
			err := config.Validate()
			if err != nil {
				fail(1, err)
			}
			c, err := config.predictConfig(cmd)
			if err != nil {
				fail(2, err)
			}
			b, err := config.loadBundle(config.forestInput, config.storeURI, config.forestID)
			if err != nil {
				fail(3, err)
			}
			s, err := config.predictorSchema(b)
			if err != nil {
				fail(4, err)
			}
			var fb *frame.Builder
			if config.interactive {
				fb, err = config.inputFrame(s)
			} else {
				fb, err = config.readFrame(config.dataInput, s, true)
			}
			if err != nil {
				fail(5, errors.Wrap(err, "reading set"))
			}
			if fb.Unseen > 0 {
				config.Logf("%d values of discrete features were not seen in training", fb.Unseen)
			}
			fr, _ := fb.Frame()
			config.Logf("Predicting %d observations with %d trees...", fr.NRow, b.Forest.NTree())
			res, err := predict.Predict(config.Context(), b, fr, c, config)
			if err != nil {
				fail(6, errors.Wrap(err, "predicting"))
			}
			config.Logf("Done")
			if config.interactive {
				printPrediction(b, res, c.Quantiles)
				return
			}
			if err = writePredictionsToFile(config.output, b, res, c.Quantiles); err != nil {
				fail(7, err)
			}
		},
	}
	f := cmd.PersistentFlags()
	f.StringVarP(&(config.forestInput), "forest", "f", "", "path to a file from which the trained forest will be read")
	f.StringVar(&(config.storeURI), "store", "", storeFlagUsage+" to read the forest from")
	f.StringVar(&(config.forestID), "id", "", "id of the forest in the store")
	f.StringVarP(&(config.dataInput), "input", "i", "", inputFlagUsage)
	f.StringVarP(&(config.metadataInput), "metadata", "m", "", "path to a YML file with metadata describing the different features available on the input (required)")
	f.StringVarP(&(config.output), "output", "o", "", "path to a CSV file to which predictions will be written (defaults to STDOUT)")
	f.StringVarP(&(config.quantiles), "quantiles", "q", "", "comma-separated response quantiles to estimate, for regression forests")
	f.BoolVar(&(config.predict.OOB), "oob", false, "score every observation only with the trees it was not sampled for; the input must be the training set")
	f.IntVarP(&(config.predict.NThread), "threads", "t", 0, "number of threads to predict with (defaults to the number of CPUs)")
	f.Int64Var(&(config.predict.Seed), "seed", 0, "seed to break ties between category votes")
	f.BoolVarP(&(config.interactive), "interactive", "I", false, "predict a single observation answering questions about its features on STDIN")
	f.StringVarP(&(config.undefinedValue), "undefined-value", "u", "?", "value to input to define an observation's value for a feature as undefined")
	return cmd
}

func (pcc *predictCmdConfig) Validate() error {
	if pcc.metadataInput == "" {
		return fmt.Errorf("required metadata flag was not set")
	}
	if pcc.forestInput == "" && (pcc.storeURI == "" || pcc.forestID == "") {
		return fmt.Errorf("required forest flag was not set, nor store and id flags")
	}
	if pcc.interactive && pcc.dataInput != "" {
		return fmt.Errorf("cannot set both interactive and input flags at the same time")
	}
	return nil
}

func (pcc *predictCmdConfig) predictConfig(cmd *cobra.Command) (predict.Config, error) {
	c := pcc.predict
	if pcc.configInput != "" {
		fc, err := pcc.config()
		if err != nil {
			return c, err
		}
		flags := cmd.Flags()
		fileConfig := fc.Predict
		if flags.Changed("oob") {
			fileConfig.OOB = c.OOB
		}
		if flags.Changed("threads") {
			fileConfig.NThread = c.NThread
		}
		if flags.Changed("seed") {
			fileConfig.Seed = c.Seed
		}
		c = fileConfig
	}
	if pcc.quantiles != "" {
		qs, err := parseQuantiles(pcc.quantiles)
		if err != nil {
			return c, err
		}
		c.Quantiles = qs
	}
	return c, nil
}

func parseQuantiles(s string) ([]float64, error) {
	var qs []float64
	for _, field := range strings.Split(s, ",") {
		q, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing quantile %q", field)
		}
		qs = append(qs, q)
	}
	return qs, nil
}

/*
predictorSchema reads the metadata, leaving the forest's response out, and
checks that the predictors are those the forest was trained on.
*/
func (pcc *predictCmdConfig) predictorSchema(b *forest.Bundle) (*frame.Schema, error) {
	features, _, err := pcc.readSchema(pcc.metadataInput, "")
	if err != nil {
		return nil, err
	}
	predictors := make([]frame.Feature, 0, len(features))
	for _, f := range features {
		if f.Name != b.Meta.Response {
			predictors = append(predictors, f)
		}
	}
	s, err := frame.NewSchema(predictors, "")
	if err != nil {
		return nil, err
	}
	if b.Meta.Names != nil && strings.Join(s.Names(), ",") != strings.Join(b.Meta.Names, ",") {
		return nil, errors.Errorf("metadata predictors %v differ from the forest's %v", s.Names(), b.Meta.Names)
	}
	return s, nil
}

func (pcc *predictCmdConfig) inputFrame(s *frame.Schema) (*frame.Builder, error) {
	row, err := bio.ReadInputRow(os.Stdin, s.Predictors, stdoutFeatureValueRequester(pcc.undefinedValue), pcc.undefinedValue)
	if err != nil {
		return nil, err
	}
	fb := frame.NewBuilder(s, true)
	return fb, fb.Add(row)
}

func printPrediction(b *forest.Bundle, res *predict.Result, quantiles []float64) {
	if b.Meta.IsClassification() {
		fmt.Printf("Predicted %s\n", formatPrediction(b, res.YPred[0]))
		for c, p := range res.Prob[0] {
			fmt.Printf("  %s: %f\n", b.Meta.ResponseLevels[c], p)
		}
		return
	}
	fmt.Printf("Predicted %g\n", res.YPred[0])
	for i, q := range quantiles {
		fmt.Printf("  quantile %g: %g\n", q, res.Quantiles[0][i])
	}
}

func (sfvr stdoutFeatureValueRequester) RequestValueFor(f frame.Feature) error {
	if f.IsFactor() {
		fmt.Printf("Please provide the observation's %s:\n(valid values are %v or %s if undefined)\n", f.Name, f.Levels, string(sfvr))
		return nil
	}
	fmt.Printf("Please provide the observation's %s:\n(valid values are real numbers or %s if undefined)\n", f.Name, string(sfvr))
	return nil
}

func (sfvr stdoutFeatureValueRequester) RejectValueFor(f frame.Feature, value string) error {
	if f.IsFactor() {
		fmt.Printf("%v is not a valid value for the observation's %s. Please provide one of %v or %s if undefined.\n", value, f.Name, f.Levels, string(sfvr))
		return nil
	}
	fmt.Printf("%v is not a valid value for the observation's %s. Please provide a real number or %s if undefined.\n", value, f.Name, string(sfvr))
	return nil
}
