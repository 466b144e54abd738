package frame

import (
	"fmt"
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// Undefined is the textual marker for a missing value.
const Undefined = "?"

/*
Feature describes one column of an observation set. Features without levels
are continuous; features with levels are discrete and take one of them.
*/
type Feature struct {
	Name   string
	Levels []string
}

// IsFactor reports whether the feature is discrete.
func (f Feature) IsFactor() bool {
	return len(f.Levels) > 0
}

// LevelCode returns the code of level v, and false if v is not a level.
func (f Feature) LevelCode(v string) (uint32, bool) {
	for i, l := range f.Levels {
		if l == v {
			return uint32(i), true
		}
	}
	return 0, false
}

/*
Schema lists the predictor features of a set and, optionally, the response
feature. Predictors are kept in frame order.
*/
type Schema struct {
	Predictors []Feature
	Response   *Feature
}

/*
NewSchema selects the response named response (if not empty) out of
features and orders the rest into frame order: continuous features first,
discrete features after, each group keeping its relative order.
*/
func NewSchema(features []Feature, response string) (*Schema, error) {
	s := &Schema{}
	var fac []Feature
	for i := range features {
		f := features[i]
		switch {
		case response != "" && f.Name == response:
			s.Response = &f
		case f.IsFactor():
			fac = append(fac, f)
		default:
			s.Predictors = append(s.Predictors, f)
		}
	}
	if response != "" && s.Response == nil {
		return nil, errors.Errorf("response feature '%s' is not defined", response)
	}
	s.Predictors = append(s.Predictors, fac...)
	return s, nil
}

// Names returns the predictor names in frame order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Predictors))
	for i, f := range s.Predictors {
		names[i] = f.Name
	}
	return names
}

/*
Response is a response column: numeric values for regression, or level codes
for classification along with the level names.
*/
type Response struct {
	Y      []float64
	Codes  []uint32
	Levels []string
}

// IsCategorical reports whether the response holds level codes.
func (r *Response) IsCategorical() bool {
	return len(r.Levels) > 0
}

// Len returns the number of responses.
func (r *Response) Len() int {
	if r.IsCategorical() {
		return len(r.Codes)
	}
	return len(r.Y)
}

/*
Builder accumulates observations row by row into a Frame and a Response.
With Proxy set, discrete values outside the declared levels are mapped to a
code equal to the level count and counted in Unseen; otherwise they are an
error.
*/
type Builder struct {
	Schema *Schema
	Proxy  bool
	Unseen int

	nRow    int
	numeric [][]float64
	factor  [][]uint32
	resp    Response
}

// NewBuilder returns a Builder for the given schema.
func NewBuilder(s *Schema, proxy bool) *Builder {
	b := &Builder{Schema: s, Proxy: proxy}
	for _, f := range s.Predictors {
		if f.IsFactor() {
			b.factor = append(b.factor, nil)
		} else {
			b.numeric = append(b.numeric, nil)
		}
	}
	if s.Response != nil {
		b.resp.Levels = s.Response.Levels
	}
	return b
}

/*
Add appends one observation. values maps feature names to values, which may
be strings, numbers or byte slices as produced by CSV readers, database
drivers and BSON decoders. A missing response is an error only if the
schema declares one.
*/
func (b *Builder) Add(values map[string]interface{}) error {
	nums := make([]float64, 0, len(b.numeric))
	codes := make([]uint32, 0, len(b.factor))
	for _, f := range b.Schema.Predictors {
		v, ok := values[f.Name]
		if !ok {
			return errors.Errorf("row %d: missing value for feature '%s'", b.nRow, f.Name)
		}
		if f.IsFactor() {
			code, err := b.code(f, v)
			if err != nil {
				return errors.Wrapf(err, "row %d", b.nRow)
			}
			codes = append(codes, code)
			continue
		}
		x, err := ParseNumber(v)
		if err != nil {
			return errors.Wrapf(err, "row %d: feature '%s'", b.nRow, f.Name)
		}
		nums = append(nums, x)
	}
	if r := b.Schema.Response; r != nil {
		v, ok := values[r.Name]
		if !ok {
			return errors.Errorf("row %d: missing response '%s'", b.nRow, r.Name)
		}
		if r.IsFactor() {
			code, ok := r.LevelCode(text(v))
			if !ok {
				return errors.Errorf("row %d: response value '%v' is not a level of '%s'", b.nRow, v, r.Name)
			}
			b.resp.Codes = append(b.resp.Codes, code)
		} else {
			y, err := ParseNumber(v)
			if err != nil || math.IsNaN(y) {
				return errors.Errorf("row %d: response '%s' must be numeric, got '%v'", b.nRow, r.Name, v)
			}
			b.resp.Y = append(b.resp.Y, y)
		}
	}
	for i, x := range nums {
		b.numeric[i] = append(b.numeric[i], x)
	}
	for i, c := range codes {
		b.factor[i] = append(b.factor[i], c)
	}
	b.nRow++
	return nil
}

func (b *Builder) code(f Feature, v interface{}) (uint32, error) {
	s := text(v)
	if code, ok := f.LevelCode(s); ok {
		return code, nil
	}
	if !b.Proxy {
		return 0, errors.Errorf("value '%s' is not a level of feature '%s'", s, f.Name)
	}
	b.Unseen++
	return uint32(len(f.Levels)), nil
}

/*
Frame returns the accumulated frame and, when the schema declares one, the
response.
*/
func (b *Builder) Frame() (*Frame, *Response) {
	f := &Frame{
		NRow:    b.nRow,
		Numeric: b.numeric,
		Factor:  b.factor,
		Names:   b.Schema.Names(),
	}
	for _, p := range b.Schema.Predictors {
		if p.IsFactor() {
			f.Cardinality = append(f.Cardinality, uint32(len(p.Levels)))
		}
	}
	for i := range f.Numeric {
		if f.Numeric[i] == nil {
			f.Numeric[i] = []float64{}
		}
	}
	for i := range f.Factor {
		if f.Factor[i] == nil {
			f.Factor[i] = []uint32{}
		}
	}
	if b.Schema.Response == nil {
		return f, nil
	}
	resp := b.resp
	return f, &resp
}

func text(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return Undefined
	default:
		return fmt.Sprintf("%v", t)
	}
}

/*
ParseNumber converts a raw value to float64. nil, empty strings and the
undefined marker are NaN.
*/
func ParseNumber(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case nil:
		return math.NaN(), nil
	}
	s := text(v)
	if s == Undefined || s == "" {
		return math.NaN(), nil
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing '%s'", s)
	}
	return x, nil
}
