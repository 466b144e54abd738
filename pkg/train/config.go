package train

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// ErrConfig is returned for inconsistent training configuration.
var ErrConfig = errors.New("invalid training configuration")

/*
Logger is implemented by anything able to report progress of a training
run. Logf follows fmt.Printf formatting.
*/
type Logger interface {
	Logf(format string, a ...interface{})
}

type nopLogger struct{}

func (nopLogger) Logf(string, ...interface{}) {}

// NopLogger discards everything logged to it.
var NopLogger Logger = nopLogger{}

const (
	// DefaultNTree is the number of trees grown when none is configured.
	DefaultNTree = 500
	// DefaultAutoCompress is the fraction of rows a single value must exceed
	// for a predictor to be stored densely.
	DefaultAutoCompress = 0.25
	// DefaultSplitQuantile places numeric split values midway between ranks.
	DefaultSplitQuantile = 0.5
)

/*
Config holds every option of a training run. A Config is never modified by
training; Validate fills in defaults on a copy.
*/
type Config struct {
	NTree int `yaml:"nTree"`
	// TrainBlock is the number of trees grown between progress log lines.
	// It has no effect on the trees themselves.
	TrainBlock int `yaml:"trainBlock"`
	NSamp      int `yaml:"nSamp"`
	// WithReplacement selects bootstrap sampling.
	WithReplacement bool      `yaml:"withReplacement"`
	SampleWeight    []float64 `yaml:"sampleWeight"`
	MinNode         int       `yaml:"minNode"`
	// MaxDepth bounds the depth of every tree, the root being at depth 0.
	// Zero leaves depth unbounded.
	MaxDepth int     `yaml:"maxDepth"`
	MinRatio float64 `yaml:"minRatio"`
	// PredFixed is the number of predictors tried per node. When zero,
	// PredProb gives a per-predictor probability of being tried instead.
	PredFixed int       `yaml:"predFixed"`
	PredProb  []float64 `yaml:"predProb"`
	// Monotone holds, per predictor, a value in [-1, 1] whose magnitude is
	// the probability that a regression split on it is constrained to be
	// nondecreasing (positive) or nonincreasing (negative).
	Monotone      []float64 `yaml:"monotone"`
	LeafMax       int       `yaml:"leafMax"`
	Thin          bool      `yaml:"thin"`
	NThread       int       `yaml:"nThread"`
	AutoCompress  float64   `yaml:"autoCompress"`
	ClassWeight   []float64 `yaml:"classWeight"`
	// SplitQuantile places numeric split values between the highest left
	// value and the lowest right one, in [0, 1). Nil selects
	// DefaultSplitQuantile.
	SplitQuantile *float64 `yaml:"splitQuantile"`
	Seed          int64    `yaml:"seed"`
}

func configErrorf(format string, a ...interface{}) error {
	return errors.Wrap(ErrConfig, fmt.Sprintf(format, a...))
}

/*
Validate checks the configuration against a frame of nRow rows and nPred
predictors and returns a copy with defaults filled in. nCtg is the category
count of a classification response and 0 for regression.
*/
func (c Config) Validate(nRow, nPred, nCtg int) (Config, error) {
	if nRow < 1 {
		return c, configErrorf("no observations")
	}
	if nPred < 1 {
		return c, configErrorf("no predictors")
	}
	if c.NTree == 0 {
		c.NTree = DefaultNTree
	}
	if c.NTree < 0 {
		return c, configErrorf("negative tree count %d", c.NTree)
	}
	if c.TrainBlock < 1 || c.TrainBlock > c.NTree {
		c.TrainBlock = c.NTree
	}
	if c.NSamp == 0 {
		c.NSamp = nRow
	}
	if c.NSamp < 0 || (!c.WithReplacement && c.NSamp > nRow) {
		return c, configErrorf("cannot sample %d of %d rows without replacement", c.NSamp, nRow)
	}
	if c.SampleWeight != nil {
		if len(c.SampleWeight) != nRow {
			return c, configErrorf("%d sample weights for %d rows", len(c.SampleWeight), nRow)
		}
		positive := 0
		for _, w := range c.SampleWeight {
			if w < 0 || math.IsNaN(w) {
				return c, configErrorf("negative sample weight %v", w)
			}
			if w > 0 {
				positive++
			}
		}
		if positive == 0 || (!c.WithReplacement && positive < c.NSamp) {
			return c, configErrorf("%d rows with positive weight cannot supply %d samples", positive, c.NSamp)
		}
	}
	if c.MinNode < 1 {
		c.MinNode = 1
	}
	if c.MaxDepth < 0 {
		return c, configErrorf("negative maximum depth %d", c.MaxDepth)
	}
	if c.MinRatio < 0 {
		return c, configErrorf("negative minimum information ratio %v", c.MinRatio)
	}
	if c.PredProb != nil {
		if len(c.PredProb) != nPred {
			return c, configErrorf("%d predictor probabilities for %d predictors", len(c.PredProb), nPred)
		}
		for _, p := range c.PredProb {
			if p < 0 || p > 1 {
				return c, configErrorf("predictor probability %v outside [0, 1]", p)
			}
		}
	}
	if c.PredFixed == 0 && c.PredProb == nil {
		if nCtg > 0 {
			c.PredFixed = int(math.Floor(math.Sqrt(float64(nPred))))
		} else {
			c.PredFixed = nPred / 3
		}
		if c.PredFixed < 1 {
			c.PredFixed = 1
		}
	}
	if c.PredFixed > nPred {
		c.PredFixed = nPred
	}
	if c.Monotone != nil {
		if len(c.Monotone) != nPred {
			return c, configErrorf("%d monotone constraints for %d predictors", len(c.Monotone), nPred)
		}
		for _, m := range c.Monotone {
			if m < -1 || m > 1 {
				return c, configErrorf("monotone constraint %v outside [-1, 1]", m)
			}
		}
		if nCtg > 0 {
			c.Monotone = nil
		}
	}
	if c.LeafMax < 0 {
		return c, configErrorf("negative leaf cap %d", c.LeafMax)
	}
	if c.AutoCompress == 0 {
		c.AutoCompress = DefaultAutoCompress
	}
	if c.AutoCompress < 0 {
		return c, configErrorf("negative auto-compression threshold %v", c.AutoCompress)
	}
	if c.SplitQuantile == nil {
		q := DefaultSplitQuantile
		c.SplitQuantile = &q
	}
	if q := *c.SplitQuantile; !(q >= 0 && q < 1) {
		return c, configErrorf("split quantile %v outside [0, 1)", q)
	}
	if nCtg > 0 {
		if c.ClassWeight == nil {
			c.ClassWeight = make([]float64, nCtg)
			for i := range c.ClassWeight {
				c.ClassWeight[i] = 1
			}
		}
		if len(c.ClassWeight) != nCtg {
			return c, configErrorf("%d class weights for %d categories", len(c.ClassWeight), nCtg)
		}
		for _, w := range c.ClassWeight {
			if !(w > 0) {
				return c, configErrorf("class weight %v is not positive", w)
			}
		}
	}
	return c, nil
}
