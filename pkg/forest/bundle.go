package forest

/*
Meta describes what a forest was trained on: the predictors in frame order,
factor levels, and the response.
*/
type Meta struct {
	Names       []string
	NPredNum    int
	Cardinality []uint32
	// Levels holds the level names of each factor predictor, when known.
	Levels [][]string
	// Response names the response feature, when known.
	Response string
	// ResponseLevels names the categories of a classification response.
	ResponseLevels []string
	// YTrain is the training response of a regression, kept for quantiles.
	YTrain []float64
}

// IsClassification reports whether the bundle predicts categories.
func (m *Meta) IsClassification() bool {
	return len(m.ResponseLevels) > 0
}

// Bundle is everything training produces and prediction consumes.
type Bundle struct {
	Forest *Forest
	Leaf   *LeafFrame
	Bag    *Bag
	Meta   Meta
}
