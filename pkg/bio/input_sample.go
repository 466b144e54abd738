package bio

import (
	"bufio"
	"io"
	"strconv"

	"github.com/pbanos/arboretum/pkg/frame"
	"github.com/pkg/errors"
)

/*
FeatureValueRequester represents a way to ask
for feature values and reject the given values.
*/
type FeatureValueRequester interface {
	RequestValueFor(frame.Feature) error
	RejectValueFor(frame.Feature, string) error
}

/*
ReadInputRow takes an io.Reader, a slice of features, a FeatureValueRequester
and an undefinedValue coding string and reads one observation with a value
for each feature, in order, first requesting it with the requester.

Each value is expected on its own line. A line holding undefinedValue leaves
the feature undefined. For a continuous feature, lines are read until one
holds a valid number; for a discrete feature, until one holds one of its
levels. Lines not accepted are rejected with the requester's RejectValueFor
method, and an error from it stops the reading.
*/
func ReadInputRow(r io.Reader, features []frame.Feature, requester FeatureValueRequester, undefinedValue string) (map[string]interface{}, error) {
	scanner := bufio.NewScanner(r)
	row := make(map[string]interface{}, len(features))
	for _, f := range features {
		if err := requester.RequestValueFor(f); err != nil {
			return nil, err
		}
		v, err := readValue(scanner, f, requester, undefinedValue)
		if err != nil {
			return nil, errors.Wrapf(err, "reading value for %s", f.Name)
		}
		row[f.Name] = v
	}
	return row, nil
}

func readValue(scanner *bufio.Scanner, f frame.Feature, requester FeatureValueRequester, undefinedValue string) (interface{}, error) {
	for scanner.Scan() {
		line := scanner.Text()
		if line == undefinedValue {
			if f.IsFactor() {
				return frame.Undefined, nil
			}
			return nil, nil
		}
		if f.IsFactor() {
			if _, ok := f.LevelCode(line); ok {
				return line, nil
			}
		} else if value, err := strconv.ParseFloat(line, 64); err == nil {
			return value, nil
		}
		if err := requester.RejectValueFor(f, line); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.ErrUnexpectedEOF
}
