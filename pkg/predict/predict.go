/*
Package predict walks a trained forest over a frame, producing scores,
category votes and probabilities, response quantiles and out-of-bag
validation statistics.
*/
package predict

import (
	"context"
	"math/rand"

	"github.com/pbanos/arboretum/internal/parallel"
	"github.com/pbanos/arboretum/pkg/bv"
	"github.com/pbanos/arboretum/pkg/forest"
	"github.com/pbanos/arboretum/pkg/frame"
	"github.com/pkg/errors"
)

var (
	// ErrRowMismatch is returned when a frame does not fit the forest or its bag.
	ErrRowMismatch = errors.New("frame does not match the trained forest")
	// ErrEmptyBag is returned for out-of-bag prediction without a recorded bag.
	ErrEmptyBag = errors.New("forest carries no bag")
	// ErrQuantiles is returned for quantile requests the bundle cannot serve.
	ErrQuantiles = errors.New("quantiles unavailable")
)

// DefaultRowBlock is the number of rows a worker scores at a time.
const DefaultRowBlock = 0x400

/*
Logger is implemented by anything able to report progress. Logf follows
fmt.Printf formatting.
*/
type Logger interface {
	Logf(format string, a ...interface{})
}

type nopLogger struct{}

func (nopLogger) Logf(string, ...interface{}) {}

// Config holds the options of a prediction run.
type Config struct {
	NThread int `yaml:"nThread"`
	// OOB restricts every row to the trees it was not sampled for. The frame
	// must then be the training frame.
	OOB bool `yaml:"oob"`
	// Quantiles lists the response quantiles to estimate, regression only.
	Quantiles []float64 `yaml:"quantiles"`
	RowBlock  int       `yaml:"rowBlock"`
	// Seed drives the tie-breaking of category votes.
	Seed int64 `yaml:"seed"`
}

/*
Result holds per-row predictions. YPred is the mean leaf score for
regression and the winning category code for classification. Votes and
Prob are filled for classification, Quantiles and QEst when quantiles were
requested. Scored counts the trees contributing to each row; rows no tree
scored receive the leaf frame's default. Warnings counts factor values not
seen in training, which are sent right at every split.
*/
type Result struct {
	YPred     []float64
	Votes     [][]uint32
	Prob      [][]float64
	Quantiles [][]float64
	QEst      []float64
	Scored    []int
	Warnings  int
}

// predictor holds everything shared by the workers of one run.
type predictor struct {
	b      *forest.Bundle
	fr     *frame.Frame
	cfg    Config
	bag    *bv.BitMatrix
	quant  *quant
	jitter []float64
	res    *Result
}

/*
Predict scores every row of fr with the bundle's forest.
*/
func Predict(ctx context.Context, b *forest.Bundle, fr *frame.Frame, cfg Config, log Logger) (*Result, error) {
	if log == nil {
		log = nopLogger{}
	}
	p, err := newPredictor(b, fr, cfg)
	if err != nil {
		return nil, err
	}
	if w := p.res.Warnings; w > 0 {
		log.Logf("%d factor values unseen in training were sent right", w)
	}
	block := cfg.RowBlock
	if block < 1 {
		block = DefaultRowBlock
	}
	err = parallel.Blocks(ctx, cfg.NThread, fr.NRow, block, func(lo, hi int) error {
		p.predictBlock(lo, hi)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Logf("Predicted %d rows over %d trees", fr.NRow, b.Forest.NTree())
	return p.res, nil
}

func newPredictor(b *forest.Bundle, fr *frame.Frame, cfg Config) (*predictor, error) {
	if err := fr.Validate(); err != nil {
		return nil, err
	}
	if fr.NPredNum() != b.Forest.NPredNum() || fr.NPredFac() != len(b.Meta.Cardinality) {
		return nil, errors.Wrapf(ErrRowMismatch, "frame has %d numeric and %d factor predictors, forest %d and %d",
			fr.NPredNum(), fr.NPredFac(), b.Forest.NPredNum(), len(b.Meta.Cardinality))
	}
	p := &predictor{b: b, fr: fr, cfg: cfg, res: &Result{}}
	if cfg.OOB {
		if b.Bag == nil || b.Bag.IsEmpty() {
			return nil, ErrEmptyBag
		}
		if b.Bag.NRow() != fr.NRow {
			return nil, errors.Wrapf(ErrRowMismatch, "bag covers %d rows, frame has %d", b.Bag.NRow(), fr.NRow)
		}
		p.bag = b.Bag.Matrix()
	}
	if len(cfg.Quantiles) > 0 {
		q, err := newQuant(b, cfg.Quantiles)
		if err != nil {
			return nil, err
		}
		p.quant = q
	}
	n := fr.NRow
	p.res.YPred = make([]float64, n)
	p.res.Scored = make([]int, n)
	if nCtg := b.Leaf.NCtg; nCtg > 0 {
		p.res.Votes = make([][]uint32, n)
		p.res.Prob = make([][]float64, n)
		rng := rand.New(rand.NewSource(cfg.Seed))
		p.jitter = make([]float64, n*nCtg)
		for i := range p.jitter {
			p.jitter[i] = 0.5 * rng.Float64()
		}
	}
	if p.quant != nil {
		p.res.Quantiles = make([][]float64, n)
		p.res.QEst = make([]float64, n)
	}
	for f := 0; f < fr.NPredFac(); f++ {
		card := b.Meta.Cardinality[f]
		for _, code := range fr.Factor[f] {
			if code >= card {
				p.res.Warnings++
			}
		}
	}
	return p, nil
}

func (p *predictor) predictBlock(lo, hi int) {
	nTree := p.b.Forest.NTree()
	leaves := make([]int32, nTree)
	var bins []uint32
	if p.quant != nil {
		bins = p.quant.newBins()
	}
	for row := lo; row < hi; row++ {
		view := p.fr.Row(row)
		for t := range leaves {
			if p.bag != nil && p.bag.Test(row, t) {
				leaves[t] = -1
				continue
			}
			leaves[t] = int32(p.b.Forest.Leaf(t, view))
		}
		if p.b.Leaf.NCtg > 0 {
			p.scoreCtg(row, leaves)
		} else {
			p.scoreReg(row, leaves)
		}
		if p.quant != nil {
			p.res.Quantiles[row], p.res.QEst[row] = p.quant.predictRow(leaves, p.res.YPred[row], bins)
		}
	}
}

func (p *predictor) scoreReg(row int, leaves []int32) {
	lf := p.b.Leaf
	sum, scored := 0.0, 0
	for t, leaf := range leaves {
		if leaf < 0 {
			continue
		}
		sum += lf.Score(t, uint32(leaf))
		scored++
	}
	p.res.Scored[row] = scored
	if scored == 0 {
		p.res.YPred[row] = lf.Default
		return
	}
	p.res.YPred[row] = sum / float64(scored)
}

/*
scoreCtg counts one vote per tree for its leaf's category and averages the
leaves' category weights. The winner is the most voted category, ties
broken by a per-row draw.
*/
func (p *predictor) scoreCtg(row int, leaves []int32) {
	lf := p.b.Leaf
	nCtg := lf.NCtg
	votes := make([]uint32, nCtg)
	prob := make([]float64, nCtg)
	scored := 0
	for t, leaf := range leaves {
		if leaf < 0 {
			continue
		}
		votes[int(lf.Score(t, uint32(leaf)))]++
		for c, w := range lf.Weight(t, uint32(leaf)) {
			prob[c] += w
		}
		scored++
	}
	p.res.Votes[row] = votes
	p.res.Prob[row] = prob
	p.res.Scored[row] = scored
	if scored == 0 {
		p.res.YPred[row] = lf.Default
		return
	}
	best, bestKey := 0, -1.0
	for c := range prob {
		prob[c] /= float64(scored)
		key := float64(votes[c]) + p.jitter[row*nCtg+c]
		if key > bestKey {
			best, bestKey = c, key
		}
	}
	p.res.YPred[row] = float64(best)
}
