package main

import (
	"fmt"

	"github.com/pbanos/arboretum/pkg/bio"
	"github.com/pbanos/arboretum/pkg/train"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type trainCmdConfig struct {
	*rootCmdConfig
	dataInput     string
	metadataInput string
	output        string
	storeURI      string
	response      string
	compression   string
	train         train.Config
}

func trainCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &trainCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a random forest from a set of data",
		Long:  `Train a random forest from a set of data to predict a certain feature, by regression for continuous features and by classification for discrete ones.`,
		Run: func(cmd *cobra.Command, args []string) {
			err := config.Validate()
			if err != nil {
				fail(1, err)
			}
			c, err := config.trainConfig(cmd)
			if err != nil {
				fail(2, err)
			}
			_, s, err := config.readSchema(config.metadataInput, config.response)
			if err != nil {
				fail(3, err)
			}
			b, err := config.readFrame(config.dataInput, s, false)
			if err != nil {
				fail(4, errors.Wrap(err, "reading training set"))
			}
			fr, resp := b.Frame()
			var r train.Response = train.Regression{Y: resp.Y}
			if resp.IsCategorical() {
				r = train.Classification{Y: resp.Codes, NCtg: len(resp.Levels), Levels: resp.Levels}
			}
			config.Logf("Training %d trees on a set with %d observations and %d predictors to predict %s ...", c.NTree, fr.NRow, fr.NPred(), config.response)
			bundle, err := train.Train(config.Context(), fr, r, c, config)
			if err != nil {
				fail(5, errors.Wrap(err, "training the forest"))
			}
			config.Logf("Done")
			bundle.Meta.Response = s.Response.Name
			for _, p := range s.Predictors {
				if p.IsFactor() {
					bundle.Meta.Levels = append(bundle.Meta.Levels, p.Levels)
				}
			}
			compression, err := bio.ParseCompression(config.compression)
			if err != nil {
				fail(6, err)
			}
			if err = config.saveBundle(bundle, config.output, config.storeURI, compression); err != nil {
				fail(7, err)
			}
		},
	}
	f := cmd.PersistentFlags()
	f.StringVarP(&(config.dataInput), "input", "i", "", inputFlagUsage)
	f.StringVarP(&(config.metadataInput), "metadata", "m", "", "path to a YML file with metadata describing the different features available on the input (required)")
	f.StringVarP(&(config.output), "output", "o", "", "path to a file to which the trained forest will be written (defaults to STDOUT)")
	f.StringVar(&(config.storeURI), "store", "", storeFlagUsage+" to keep the trained forest in, printing its id")
	f.StringVarP(&(config.response), "response", "r", "", "name of the feature the forest should predict (required)")
	f.StringVar(&(config.compression), "compression", "zstd", "compression of the written forest: none, zstd or lz4")
	f.IntVarP(&(config.train.NTree), "trees", "n", train.DefaultNTree, "number of trees to train")
	f.IntVar(&(config.train.NSamp), "samples", 0, "number of rows sampled per tree (defaults to the row count)")
	f.BoolVar(&(config.train.WithReplacement), "with-replacement", true, "sample rows with replacement")
	f.IntVar(&(config.train.MinNode), "min-node", 0, "minimum number of samples a node needs to be split")
	f.IntVar(&(config.train.MaxDepth), "max-depth", 0, "maximum depth of every tree (defaults to 0: unbounded)")
	f.Float64Var(&(config.train.MinRatio), "min-ratio", 0, "minimum ratio of a split's information to its parent's")
	f.IntVar(&(config.train.PredFixed), "pred-fixed", 0, "number of predictors tried at every node (defaults to a third of them for regression and their square root for classification)")
	f.IntVar(&(config.train.LeafMax), "leaf-max", 0, "maximum number of leaves per tree (defaults to 0: unbounded)")
	f.BoolVar(&(config.train.Thin), "thin", false, "omit per-sample leaf detail, which disables quantile prediction")
	f.IntVarP(&(config.train.NThread), "threads", "t", 0, "number of threads to train with (defaults to the number of CPUs)")
	f.Int64Var(&(config.train.Seed), "seed", 0, "seed of the training run")
	return cmd
}

func (tcc *trainCmdConfig) Validate() error {
	if tcc.metadataInput == "" {
		return fmt.Errorf("required metadata flag was not set")
	}
	if tcc.response == "" {
		return fmt.Errorf("required response flag was not set")
	}
	if tcc.output != "" && tcc.storeURI != "" {
		return fmt.Errorf("cannot set both output and store flags at the same time")
	}
	return nil
}

/*
trainConfig starts from the configuration file, if any, and overrides it
with every flag set explicitly. Without a file, flag defaults apply.
*/
func (tcc *trainCmdConfig) trainConfig(cmd *cobra.Command) (train.Config, error) {
	if tcc.configInput == "" {
		return tcc.train, nil
	}
	fc, err := tcc.config()
	if err != nil {
		return train.Config{}, err
	}
	c := fc.Train
	flags := cmd.Flags()
	override := map[string]func(){
		"trees":            func() { c.NTree = tcc.train.NTree },
		"samples":          func() { c.NSamp = tcc.train.NSamp },
		"with-replacement": func() { c.WithReplacement = tcc.train.WithReplacement },
		"min-node":         func() { c.MinNode = tcc.train.MinNode },
		"max-depth":        func() { c.MaxDepth = tcc.train.MaxDepth },
		"min-ratio":        func() { c.MinRatio = tcc.train.MinRatio },
		"pred-fixed":       func() { c.PredFixed = tcc.train.PredFixed },
		"leaf-max":         func() { c.LeafMax = tcc.train.LeafMax },
		"thin":             func() { c.Thin = tcc.train.Thin },
		"threads":          func() { c.NThread = tcc.train.NThread },
		"seed":             func() { c.Seed = tcc.train.Seed },
	}
	for name, set := range override {
		if flags.Changed(name) {
			set()
		}
	}
	return c, nil
}
