package bio

import (
	"io/ioutil"

	"github.com/pbanos/arboretum/pkg/frame"
	"github.com/pbanos/arboretum/pkg/predict"
	"github.com/pbanos/arboretum/pkg/train"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
	yamlv3 "gopkg.in/yaml.v3"
)

/*
ReadYMLFeatures takes a slice of bytes with a feature specification in YML and
returns a slice of features parsed from it or an error.
The YML is expected to be an object containing a features property. The value for this
should be an object with a property for each feature with its name and either a
string value of 'continuous' for continuous features or a list of valid values
for discrete features. Features are returned in declaration order.

Names and levels are taken verbatim from the document, so keys such as y or
on name features called y and on.
*/
func ReadYMLFeatures(md []byte) ([]frame.Feature, error) {
	var doc yamlv3.Node
	err := yamlv3.Unmarshal(md, &doc)
	if err != nil {
		return nil, errors.Wrap(err, "parsing yml features")
	}
	fn := featuresNode(&doc)
	if fn == nil {
		return nil, errors.New("metadata file has no feature information")
	}
	if fn.Kind != yamlv3.MappingNode {
		return nil, errors.Errorf("line %d: features must be an object", fn.Line)
	}
	features := []frame.Feature{}
	names := make(map[string]bool)
	for i := 0; i+1 < len(fn.Content); i += 2 {
		key, value := fn.Content[i], fn.Content[i+1]
		if key.Kind != yamlv3.ScalarNode {
			return nil, errors.Errorf("line %d: feature name must be a scalar", key.Line)
		}
		name := key.Value
		if names[name] {
			return nil, errors.Errorf("line %d: feature %s declared twice", key.Line, name)
		}
		names[name] = true
		switch value.Kind {
		case yamlv3.ScalarNode:
			if value.Value != "continuous" {
				return nil, errors.Errorf("feature %s: unknown feature type '%s'", name, value.Value)
			}
			features = append(features, frame.Feature{Name: name})
		case yamlv3.SequenceNode:
			if len(value.Content) == 0 {
				return nil, errors.Errorf("feature %s: empty list of values", name)
			}
			levels := make([]string, 0, len(value.Content))
			seen := make(map[string]bool, len(value.Content))
			for _, l := range value.Content {
				if l.Kind != yamlv3.ScalarNode {
					return nil, errors.Errorf("feature %s: line %d: level must be a scalar", name, l.Line)
				}
				if seen[l.Value] {
					return nil, errors.Errorf("feature %s: level '%s' listed twice", name, l.Value)
				}
				seen[l.Value] = true
				levels = append(levels, l.Value)
			}
			features = append(features, frame.Feature{Name: name, Levels: levels})
		default:
			return nil, errors.Errorf("feature %s: invalid feature declaration", name)
		}
	}
	return features, nil
}

// featuresNode finds the value of the top-level features key, if any.
func featuresNode(doc *yamlv3.Node) *yamlv3.Node {
	if doc.Kind != yamlv3.DocumentNode || len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yamlv3.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "features" {
			return root.Content[i+1]
		}
	}
	return nil
}

/*
ReadYMLFeaturesFromFile takes a filepath string, reads its contents and uses
ReadYMLFeatures to parse it and return a slice of parsed features or an error.
If the file indicated by the filepath cannot be opened for reading an error
will be returned.
*/
func ReadYMLFeaturesFromFile(filepath string) ([]frame.Feature, error) {
	md, err := ioutil.ReadFile(filepath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading features yml file %s", filepath)
	}
	features, err := ReadYMLFeatures(md)
	if err != nil {
		err = errors.Wrapf(err, "parsing features yml file %s", filepath)
	}
	return features, err
}

/*
Config is the content of a YML configuration file: a train section with the
options of train.Config and a predict section with those of predict.Config,
keyed by their yaml tags.
*/
type Config struct {
	Train   train.Config   `yaml:"train"`
	Predict predict.Config `yaml:"predict"`
}

/*
ReadYMLConfig parses a YML configuration. Options left out keep their zero
values, which training and prediction replace with defaults.
*/
func ReadYMLConfig(md []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.UnmarshalStrict(md, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing yml configuration")
	}
	return cfg, nil
}

// ReadYMLConfigFromFile reads a file and parses it with ReadYMLConfig.
func ReadYMLConfigFromFile(filepath string) (*Config, error) {
	md, err := ioutil.ReadFile(filepath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading configuration yml file %s", filepath)
	}
	cfg, err := ReadYMLConfig(md)
	if err != nil {
		err = errors.Wrapf(err, "parsing configuration yml file %s", filepath)
	}
	return cfg, err
}
