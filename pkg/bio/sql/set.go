/*
Package sql keeps observation sets in SQL databases through an Adapter per
database engine, and reads them back into frames.
*/
package sql

import (
	"context"
	"math"

	"github.com/pbanos/arboretum/pkg/frame"
	"github.com/pkg/errors"
)

/*
Set is an observation set backed by a database. Write stores rows keyed by
feature name; Read streams them back in insertion order.
*/
type Set struct {
	db                  Adapter
	features            []frame.Feature
	featureNamesColumns map[string]string
	columnFeatures      map[string]frame.Feature
	levels              map[int]string
	inverseLevels       map[string]int
	dfColumns           []string
	cfColumns           []string
}

/*
OpenSet takes an Adapter to a db backend and a slice of features
and returns a Set backed by the given adapter or an error if no set is
available through the given adapter.

This function expects the adapter to have the observation and level
tables already created, and the level table initialized with all
the levels of the discrete features in the features slice.
*/
func OpenSet(ctx context.Context, dbAdapter Adapter, features []frame.Feature) (*Set, error) {
	ss := &Set{db: dbAdapter, features: features}
	err := ss.initFeatureColumns()
	if err != nil {
		return nil, err
	}
	err = ss.init(ctx)
	if err != nil {
		return nil, err
	}
	return ss, nil
}

/*
CreateSet takes an Adapter and a slice of features and returns a Set
backed by the given adapter or an error.

This function will ensure that the observation and level tables are
created on the database, and that the level table has all the
levels of the discrete features on the features slice.
*/
func CreateSet(ctx context.Context, dbAdapter Adapter, features []frame.Feature) (*Set, error) {
	ss := &Set{db: dbAdapter, features: features}
	err := ss.initFeatureColumns()
	if err != nil {
		return nil, err
	}
	err = ss.initDB(ctx)
	if err != nil {
		return nil, err
	}
	return ss, nil
}

// Count returns the number of observations in the set.
func (ss *Set) Count(ctx context.Context) (int, error) {
	return ss.db.CountObservations(ctx)
}

/*
Write stores rows keyed by feature name, with levels as strings and
continuous values as anything the frame builder accepts. It returns the
number of rows stored.
*/
func (ss *Set) Write(ctx context.Context, rows []map[string]interface{}) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	rawRows := make([]map[string]interface{}, 0, len(rows))
	for i, r := range rows {
		rr, err := ss.newRawRow(r)
		if err != nil {
			return 0, errors.Wrapf(err, "row %d", i)
		}
		rawRows = append(rawRows, rr)
	}
	return ss.db.AddObservations(ctx, rawRows, ss.dfColumns, ss.cfColumns)
}

/*
Read calls handle with every observation of the set, keyed by feature
name, stopping at the first error.
*/
func (ss *Set) Read(ctx context.Context, handle func(map[string]interface{}) error) error {
	return ss.db.IterateOnObservations(ctx, ss.dfColumns, ss.cfColumns,
		func(n int, values map[string]interface{}) (bool, error) {
			o := &Observation{
				Values:              values,
				Levels:              ss.levels,
				FeatureNamesColumns: ss.featureNamesColumns,
			}
			row, err := o.Row(ss.features)
			if err != nil {
				return false, errors.Wrapf(err, "observation %d", n)
			}
			if err = handle(row); err != nil {
				return false, errors.Wrapf(err, "observation %d", n)
			}
			return true, ctx.Err()
		})
}

/*
ReadFrame reads the whole set into a frame builder laid out by the schema.
*/
func (ss *Set) ReadFrame(ctx context.Context, s *frame.Schema, proxy bool) (*frame.Builder, error) {
	b := frame.NewBuilder(s, proxy)
	if err := ss.Read(ctx, b.Add); err != nil {
		return nil, err
	}
	return b, nil
}

func (ss *Set) initDB(ctx context.Context) error {
	err := ss.db.CreateLevelsTable(ctx)
	if err != nil {
		return err
	}
	err = ss.db.CreateObservationTable(ctx, ss.dfColumns, ss.cfColumns)
	if err != nil {
		return err
	}
	ss.levels, err = ss.db.ListLevels(ctx)
	if err != nil {
		return err
	}
	_, err = ss.db.AddLevels(ctx, ss.unavailableLevels())
	if err != nil {
		return err
	}
	return ss.init(ctx)
}

func (ss *Set) unavailableLevels() []string {
	present := make(map[string]bool, len(ss.levels))
	for _, l := range ss.levels {
		present[l] = true
	}
	var unavailable []string
	for _, f := range ss.features {
		for _, l := range f.Levels {
			if !present[l] {
				present[l] = true
				unavailable = append(unavailable, l)
			}
		}
	}
	return unavailable
}

func (ss *Set) init(ctx context.Context) error {
	var err error
	ss.levels, err = ss.db.ListLevels(ctx)
	if err != nil {
		return err
	}
	ss.inverseLevels = make(map[string]int)
	for k, v := range ss.levels {
		ss.inverseLevels[v] = k
	}
	return nil
}

func (ss *Set) newRawRow(r map[string]interface{}) (map[string]interface{}, error) {
	rr := make(map[string]interface{})
	for _, f := range ss.features {
		v, ok := r[f.Name]
		if !ok || v == nil {
			continue
		}
		column := ss.featureNamesColumns[f.Name]
		if f.IsFactor() {
			s, ok := v.(string)
			if !ok {
				return nil, errors.Errorf("expected string value for discrete feature %s, got %T", f.Name, v)
			}
			if s == frame.Undefined {
				continue
			}
			id, ok := ss.inverseLevels[s]
			if !ok {
				return nil, errors.Errorf("value '%s' is not a level of feature '%s'", s, f.Name)
			}
			rr[column] = id
			continue
		}
		x, err := frame.ParseNumber(v)
		if err != nil {
			return nil, errors.Wrapf(err, "feature %s", f.Name)
		}
		if !math.IsNaN(x) {
			rr[column] = x
		}
	}
	return rr, nil
}

func (ss *Set) initFeatureColumns() error {
	ss.columnFeatures = make(map[string]frame.Feature)
	ss.featureNamesColumns = make(map[string]string)
	for _, f := range ss.features {
		column, err := ss.db.ColumnName(f.Name)
		if err != nil {
			return errors.Wrapf(err, "invalid feature %s", f.Name)
		}
		of, ok := ss.columnFeatures[column]
		if ok {
			return errors.Errorf("%s and %s feature names translate to the same column name %s", f.Name, of.Name, column)
		}
		ss.columnFeatures[column] = f
		ss.featureNamesColumns[f.Name] = column
	}
	for _, f := range ss.features {
		if f.IsFactor() {
			ss.dfColumns = append(ss.dfColumns, ss.featureNamesColumns[f.Name])
		} else {
			ss.cfColumns = append(ss.cfColumns, ss.featureNamesColumns[f.Name])
		}
	}
	return nil
}
