package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/pbanos/arboretum/pkg/bio"
	"github.com/pbanos/arboretum/pkg/bio/mongo"
	biosql "github.com/pbanos/arboretum/pkg/bio/sql"
	"github.com/pbanos/arboretum/pkg/bio/sql/pgadapter"
	"github.com/pbanos/arboretum/pkg/bio/sql/sqlite3adapter"
	"github.com/pbanos/arboretum/pkg/forest"
	"github.com/pbanos/arboretum/pkg/frame"
	"github.com/pbanos/arboretum/pkg/store"
	"github.com/pbanos/arboretum/pkg/store/redisstore"
	"github.com/pkg/errors"
	mgo "gopkg.in/mgo.v2"
	"gopkg.in/redis.v5"
)

const (
	inputFlagUsage = "path to an input CSV (.csv) or SQLite3 (.db) file, or a PostgreSQL (postgresql://) or MongoDB (mongodb://) connection URL with the observations (defaults to STDIN, interpreted as CSV)"
	storeFlagUsage = "directory or Redis URL (redis://host:port/prefix) of a bundle store"
	cacheSize      = 8
)

func isPostgreSQL(input string) bool {
	return strings.HasPrefix(input, "postgresql://") || strings.HasPrefix(input, "postgres://")
}

func isMongoDB(input string) bool {
	return strings.HasPrefix(input, "mongodb://")
}

/*
readFrame reads the observations at input into a builder laid out by the
schema, picking the source from the shape of input.
*/
func (rcc *rootCmdConfig) readFrame(input string, s *frame.Schema, proxy bool) (*frame.Builder, error) {
	features := append([]frame.Feature(nil), s.Predictors...)
	if s.Response != nil {
		features = append(features, *s.Response)
	}
	switch {
	case input == "":
		rcc.Logf("Reading set from STDIN...")
		return bio.ReadCSVFrameFromFilePath("", s, proxy)
	case isPostgreSQL(input):
		rcc.Logf("Creating PostgreSQL adapter for url %s to read set...", input)
		adapter, err := pgadapter.New(input)
		if err != nil {
			return nil, err
		}
		defer adapter.Close()
		return rcc.readSQLFrame(adapter, features, s, proxy)
	case isMongoDB(input):
		rcc.Logf("Dialing MongoDB at %s to read set...", input)
		session, err := mgo.Dial(input)
		if err != nil {
			return nil, errors.Wrap(err, "dialing MongoDB")
		}
		defer session.Close()
		set, err := mongo.Open(rcc.Context(), session, "", features)
		if err != nil {
			return nil, err
		}
		return set.ReadFrame(rcc.Context(), s, proxy)
	case strings.HasSuffix(input, ".db"):
		rcc.Logf("Creating SQLite3 adapter for file %s to read set...", input)
		adapter, err := sqlite3adapter.New(input)
		if err != nil {
			return nil, err
		}
		defer adapter.Close()
		return rcc.readSQLFrame(adapter, features, s, proxy)
	}
	rcc.Logf("Opening %s to read set...", input)
	return bio.ReadCSVFrameFromFilePath(input, s, proxy)
}

func (rcc *rootCmdConfig) readSQLFrame(adapter biosql.Adapter, features []frame.Feature, s *frame.Schema, proxy bool) (*frame.Builder, error) {
	set, err := biosql.OpenSet(rcc.Context(), adapter, features)
	if err != nil {
		return nil, err
	}
	return set.ReadFrame(rcc.Context(), s, proxy)
}

/*
bundleStore opens the store at uri: a Redis store for redis:// URLs and a
file store on the directory otherwise, both behind an LRU cache.
*/
func bundleStore(uri string, c bio.Compression) (store.BundleStore, error) {
	codec := store.Codec{Compression: c}
	var bs store.BundleStore
	if strings.HasPrefix(uri, "redis://") {
		u, err := url.Parse(uri)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing store URL %s", uri)
		}
		prefix := strings.Trim(u.Path, "/")
		if prefix == "" {
			prefix = "arboretum"
		}
		opts := &redis.Options{Addr: u.Host}
		if pw, ok := u.User.Password(); ok {
			opts.Password = pw
		}
		bs = redisstore.New(redis.NewClient(opts), prefix, codec)
	} else {
		var err error
		if bs, err = store.NewFileStore(uri, codec); err != nil {
			return nil, err
		}
	}
	return store.NewCached(bs, cacheSize)
}

/*
loadBundle reads a bundle from the file at path or, when path is empty,
from the store at storeURI under id.
*/
func (rcc *rootCmdConfig) loadBundle(path, storeURI, id string) (*forest.Bundle, error) {
	if path != "" {
		rcc.Logf("Reading forest from %s...", path)
		return bio.ReadBundleFromFile(path)
	}
	if storeURI == "" || id == "" {
		return nil, errors.New("either the forest flag or both the store and id flags must be set")
	}
	bs, err := bundleStore(storeURI, bio.CompressionNone)
	if err != nil {
		return nil, err
	}
	defer bs.Close(rcc.Context())
	rcc.Logf("Retrieving forest %s from %s...", id, storeURI)
	return bs.Get(rcc.Context(), id)
}

/*
saveBundle writes a bundle to the file at path, to the store at storeURI, or
to STDOUT when neither is set. Bundles created in a store have their id
printed on STDOUT.
*/
func (rcc *rootCmdConfig) saveBundle(b *forest.Bundle, path, storeURI string, c bio.Compression) error {
	if storeURI != "" {
		bs, err := bundleStore(storeURI, c)
		if err != nil {
			return err
		}
		defer bs.Close(rcc.Context())
		id, err := bs.Create(rcc.Context(), b)
		if err != nil {
			return err
		}
		rcc.Logf("Stored forest in %s", storeURI)
		fmt.Println(id)
		return nil
	}
	if path == "" {
		return bio.WriteBundle(os.Stdout, b, c)
	}
	rcc.Logf("Writing forest to %s...", path)
	return bio.WriteBundleToFile(path, b, c)
}

/*
readSchema reads the metadata file and splits off the named response,
returning the features in file order and the schema.
*/
func (rcc *rootCmdConfig) readSchema(metadataInput, response string) ([]frame.Feature, *frame.Schema, error) {
	rcc.Logf("Reading features from metadata at %s...", metadataInput)
	features, err := bio.ReadYMLFeaturesFromFile(metadataInput)
	if err != nil {
		return nil, nil, err
	}
	s, err := frame.NewSchema(features, response)
	if err != nil {
		return nil, nil, err
	}
	return features, s, nil
}

func (rcc *rootCmdConfig) config() (*bio.Config, error) {
	if rcc.configInput == "" {
		return &bio.Config{}, nil
	}
	rcc.Logf("Reading configuration from %s...", rcc.configInput)
	return bio.ReadYMLConfigFromFile(rcc.configInput)
}
