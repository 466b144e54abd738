package sql

import (
	"github.com/pbanos/arboretum/pkg/frame"
	"github.com/pkg/errors"
)

/*
Observation is a row read from a Set, keyed by column.
*/
type Observation struct {
	/*
		Values is a map of string columns names to interface{}.
		Specifically, the value must be
		* nil for an undefined value for any feature the column
		  is representing or
		* an int for the level id of a discrete feature the column
		  is representing or
		* a float64 for the value of a continuous feature the
		  column is representing
	*/
	Values map[string]interface{}
	/*
		Levels is a map of int to strings that holds the relation
		of level ids on the Observation's Values map to their string
		representations
	*/
	Levels map[int]string
	/*
		FeatureNamesColumns is a map that translates the name
		of a feature to the column representing it on the database.
	*/
	FeatureNamesColumns map[string]string
}

/*
ValueFor takes a feature and returns the value for the feature
according to the observation or nil if is undefined. Discrete values are
translated from their level id into the level itself.
*/
func (o *Observation) ValueFor(f frame.Feature) (interface{}, error) {
	c, ok := o.FeatureNamesColumns[f.Name]
	if !ok {
		return nil, nil
	}
	v, ok := o.Values[c]
	if !ok || v == nil {
		return nil, nil
	}
	if f.IsFactor() {
		iv, ok := v.(int)
		if !ok {
			return nil, errors.Errorf("expected sql representation for the value of %s to be an int, got %T", f.Name, v)
		}
		level, ok := o.Levels[iv]
		if !ok {
			return nil, errors.Errorf("unknown level id %d for %s", iv, f.Name)
		}
		return level, nil
	}
	return v, nil
}

// Row returns the observation keyed by feature name.
func (o *Observation) Row(features []frame.Feature) (map[string]interface{}, error) {
	row := make(map[string]interface{}, len(features))
	for _, f := range features {
		v, err := o.ValueFor(f)
		if err != nil {
			return nil, err
		}
		row[f.Name] = v
	}
	return row, nil
}
