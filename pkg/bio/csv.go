package bio

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/pbanos/arboretum/pkg/frame"
	"github.com/pkg/errors"
)

/*
RowHandler receives the observations read from a source one at a time, as
a map from feature name to raw value. Returning an error stops the reading.
*/
type RowHandler func(row map[string]interface{}) error

/*
ReadCSV takes an io.Reader for a CSV stream and the features it may hold,
and calls handle with every row parsed from it.

The header or first row of the CSV content is expected to consist of the names
of features in the given slice; only the last column may name an unknown
feature, in which case it is ignored. The rest of the rows should consist of
valid values for the features and/or the '?' string to indicate an
undefined value.
*/
func ReadCSV(reader io.Reader, features []frame.Feature, handle RowHandler) error {
	featuresByName := featureSliceToMap(features)
	r := csv.NewReader(reader)
	header, err := r.Read()
	if err != nil {
		return errors.Wrap(err, "reading header")
	}
	columns, err := parseFeaturesFromCSVHeader(header, featuresByName)
	if err != nil {
		return err
	}
	for l := 2; ; l++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "reading body")
		}
		values := make(map[string]interface{}, len(columns))
		for i, f := range columns {
			values[f.Name] = row[i]
		}
		if err = handle(values); err != nil {
			return errors.Wrapf(err, "parsing line %d", l)
		}
	}
	return nil
}

/*
ReadCSVFrame reads a CSV stream into a frame laid out by the schema, along
with the response when the schema declares one. With proxy set, discrete
values outside the declared levels are accepted and counted instead of
rejected.
*/
func ReadCSVFrame(reader io.Reader, s *frame.Schema, proxy bool) (*frame.Builder, error) {
	b := frame.NewBuilder(s, proxy)
	features := append([]frame.Feature(nil), s.Predictors...)
	if s.Response != nil {
		features = append(features, *s.Response)
	}
	if err := ReadCSV(reader, features, b.Add); err != nil {
		return nil, err
	}
	return b, nil
}

/*
ReadCSVFrameFromFilePath opens the file to which the filepath points to, or
the standard input when it is empty, and uses ReadCSVFrame on it.
*/
func ReadCSVFrameFromFilePath(filepath string, s *frame.Schema, proxy bool) (*frame.Builder, error) {
	var f *os.File
	var err error
	if filepath == "" {
		f = os.Stdin
	} else {
		f, err = os.Open(filepath)
		if err != nil {
			return nil, errors.Wrap(err, "opening observation set")
		}
		defer f.Close()
	}
	b, err := ReadCSVFrame(f, s, proxy)
	if err != nil {
		err = errors.Wrapf(err, "parsing CSV file %s", filepath)
	}
	return b, err
}

func parseFeaturesFromCSVHeader(header []string, features map[string]frame.Feature) ([]frame.Feature, error) {
	featureOrder := []frame.Feature{}
	for i, name := range header {
		f, ok := features[name]
		if ok {
			featureOrder = append(featureOrder, f)
		} else {
			if i != len(header)-1 {
				return nil, errors.Errorf("parsing header: reference to unknown feature %s", name)
			}
		}
	}
	return featureOrder, nil
}

func featureSliceToMap(features []frame.Feature) map[string]frame.Feature {
	result := make(map[string]frame.Feature)
	for _, f := range features {
		result[f.Name] = f
	}
	return result
}
