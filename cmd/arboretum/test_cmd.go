package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pbanos/arboretum/pkg/bio"
	"github.com/pbanos/arboretum/pkg/forest"
	"github.com/pbanos/arboretum/pkg/frame"
	"github.com/pbanos/arboretum/pkg/predict"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type testCmdConfig struct {
	*rootCmdConfig
	forestInput   string
	storeURI      string
	forestID      string
	dataInput     string
	metadataInput string
	jsonOutput    string
	predict       predict.Config
}

func testCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &testCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test the performance of a forest",
		Long:  `Test the performance of a forest against a test data set holding the response, or out of bag against its training set`,
		Run: func(cmd *cobra.Command, args []string) {
			err := config.Validate()
			if err != nil {
				fail(1, err)
			}
			b, err := config.loadBundle(config.forestInput, config.storeURI, config.forestID)
			if err != nil {
				fail(3, err)
			}
			s, err := config.testSchema(b)
			if err != nil {
				fail(4, err)
			}
			fb, err := config.readFrame(config.dataInput, s, true)
			if err != nil {
				fail(5, errors.Wrap(err, "reading testing set"))
			}
			fr, resp := fb.Frame()
			config.Logf("Testing forest against a set with %d observations...", fr.NRow)
			res, err := predict.Predict(config.Context(), b, fr, config.predict, config)
			if err != nil {
				fail(6, errors.Wrap(err, "predicting"))
			}
			var v *predict.Validation
			if resp.IsCategorical() {
				v, err = predict.ValidateClassification(res, resp.Codes, len(resp.Levels))
			} else {
				v, err = predict.ValidateRegression(res, resp.Y)
			}
			if err != nil {
				fail(7, errors.Wrap(err, "validating predictions"))
			}
			config.Logf("Done")
			if config.jsonOutput != "" {
				if err = bio.WriteJSONValidationToFile(config.jsonOutput, v); err != nil {
					fail(8, err)
				}
				return
			}
			printValidation(b, v, fr.NRow, res.Warnings)
		},
	}
	f := cmd.PersistentFlags()
	f.StringVarP(&(config.forestInput), "forest", "f", "", "path to a file from which the forest to test will be read")
	f.StringVar(&(config.storeURI), "store", "", storeFlagUsage+" to read the forest from")
	f.StringVar(&(config.forestID), "id", "", "id of the forest in the store")
	f.StringVarP(&(config.dataInput), "input", "i", "", inputFlagUsage)
	f.StringVarP(&(config.metadataInput), "metadata", "m", "", "path to a YML file with metadata describing the different features available on the input (required)")
	f.StringVar(&(config.jsonOutput), "json", "", "path to a file to which the test results will be written in JSON format")
	f.BoolVar(&(config.predict.OOB), "oob", false, "score every observation only with the trees it was not sampled for; the input must be the training set")
	f.IntVarP(&(config.predict.NThread), "threads", "t", 0, "number of threads to predict with (defaults to the number of CPUs)")
	f.Int64Var(&(config.predict.Seed), "seed", 0, "seed to break ties between category votes")
	return cmd
}

func (tcc *testCmdConfig) Validate() error {
	if tcc.metadataInput == "" {
		return fmt.Errorf("required metadata flag was not set")
	}
	if tcc.forestInput == "" && (tcc.storeURI == "" || tcc.forestID == "") {
		return fmt.Errorf("required forest flag was not set, nor store and id flags")
	}
	return nil
}

func (tcc *testCmdConfig) testSchema(b *forest.Bundle) (*frame.Schema, error) {
	if b.Meta.Response == "" {
		return nil, errors.New("the forest does not name its response")
	}
	_, s, err := tcc.readSchema(tcc.metadataInput, b.Meta.Response)
	if err != nil {
		return nil, err
	}
	if b.Meta.Names != nil && strings.Join(s.Names(), ",") != strings.Join(b.Meta.Names, ",") {
		return nil, errors.Errorf("metadata predictors %v differ from the forest's %v", s.Names(), b.Meta.Names)
	}
	return s, nil
}

func printValidation(b *forest.Bundle, v *predict.Validation, nRow, warnings int) {
	fmt.Printf("%d of %d observations scored", v.N, nRow)
	if warnings > 0 {
		fmt.Printf(", %d values not seen in training", warnings)
	}
	fmt.Println()
	if !b.Meta.IsClassification() {
		fmt.Fprintf(os.Stdout, "mean squared error %f\nmean absolute error %f\nR squared %f\n", v.MSE, v.MAE, v.RSquared)
		return
	}
	fmt.Printf("%f success rate\n", 1-v.Misprediction)
	fmt.Println("confusion (actual by predicted):")
	for actual, counts := range v.Confusion {
		fmt.Printf("  %s:", b.Meta.ResponseLevels[actual])
		for _, n := range counts {
			fmt.Printf(" %d", n)
		}
		fmt.Println()
	}
}
