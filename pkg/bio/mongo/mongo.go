/*
Package mongo keeps observation sets in a MongoDB collection, one document
per observation, and reads them back into frames.
*/
package mongo

import (
	"context"
	"math"
	"strings"

	"github.com/pbanos/arboretum/pkg/frame"
	"github.com/pkg/errors"
	mgo "gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
)

// DefaultCollection is the collection observations are kept in.
const DefaultCollection = "observations"

/*
Set is an observation set backed by a MongoDB collection. Discrete values are
stored as their level strings and continuous values as doubles; undefined
values are left out of the document.
*/
type Set struct {
	session    *mgo.Session
	collection string
	features   []frame.Feature
}

/*
Open takes a MongoDB session and the features of the set and returns a Set
on the named collection of the session's default database, ensuring a sparse
index per feature. An empty collection name selects DefaultCollection.
*/
func Open(ctx context.Context, session *mgo.Session, collection string, features []frame.Feature) (*Set, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	s := &Set{session: session, collection: collection, features: features}
	if err := s.ensureIndexes(); err != nil {
		return nil, err
	}
	return s, nil
}

// Count returns the number of observations in the set.
func (s *Set) Count(ctx context.Context) (int, error) {
	return s.c().Count()
}

// Write stores rows keyed by feature name and returns how many were stored.
func (s *Set) Write(ctx context.Context, rows []map[string]interface{}) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	docs := make([]interface{}, 0, len(rows))
	for i, r := range rows {
		doc, err := document(s.features, r)
		if err != nil {
			return 0, errors.Wrapf(err, "row %d", i)
		}
		docs = append(docs, doc)
	}
	if err := s.c().Insert(docs...); err != nil {
		return 0, errors.Wrap(err, "inserting observations")
	}
	return len(docs), nil
}

/*
Read calls handle with every observation of the set in natural order,
keyed by feature name with nil for undefined values.
*/
func (s *Set) Read(ctx context.Context, handle func(map[string]interface{}) error) error {
	iter := s.c().Find(nil).Iter()
	var doc bson.M
	for n := 0; iter.Next(&doc); n++ {
		if err := ctx.Err(); err != nil {
			iter.Close()
			return err
		}
		if err := handle(row(s.features, doc)); err != nil {
			iter.Close()
			return errors.Wrapf(err, "observation %d", n)
		}
		doc = nil
	}
	return iter.Close()
}

// ReadFrame reads the whole set into a frame builder laid out by the schema.
func (s *Set) ReadFrame(ctx context.Context, sc *frame.Schema, proxy bool) (*frame.Builder, error) {
	b := frame.NewBuilder(sc, proxy)
	if err := s.Read(ctx, b.Add); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Set) ensureIndexes() error {
	for _, f := range s.features {
		if err := validName(f.Name); err != nil {
			return err
		}
		index := mgo.Index{
			Key:        []string{f.Name},
			Background: true,
			Sparse:     true,
		}
		if err := s.c().EnsureIndex(index); err != nil {
			return errors.Wrapf(err, "indexing feature %s", f.Name)
		}
	}
	return nil
}

func (s *Set) c() *mgo.Collection {
	return s.session.DB("").C(s.collection)
}

func validName(name string) error {
	if name == "_id" {
		return errors.Errorf("invalid feature name %q: reserved collection field", name)
	}
	if strings.ContainsAny(name, ".$") {
		return errors.Errorf("invalid feature name %q: contains reserved characters %q or %q", name, ".", "$")
	}
	return nil
}

func document(features []frame.Feature, r map[string]interface{}) (bson.M, error) {
	doc := make(bson.M, len(features))
	for _, f := range features {
		v, ok := r[f.Name]
		if !ok || v == nil {
			continue
		}
		if f.IsFactor() {
			l, ok := v.(string)
			if !ok {
				return nil, errors.Errorf("expected string value for discrete feature %s, got %T", f.Name, v)
			}
			if l == frame.Undefined {
				continue
			}
			if _, ok = f.LevelCode(l); !ok {
				return nil, errors.Errorf("value '%s' is not a level of feature '%s'", l, f.Name)
			}
			doc[f.Name] = l
			continue
		}
		x, err := frame.ParseNumber(v)
		if err != nil {
			return nil, errors.Wrapf(err, "feature %s", f.Name)
		}
		if !math.IsNaN(x) {
			doc[f.Name] = x
		}
	}
	return doc, nil
}

func row(features []frame.Feature, doc bson.M) map[string]interface{} {
	r := make(map[string]interface{}, len(features))
	for _, f := range features {
		r[f.Name] = doc[f.Name]
	}
	return r
}
