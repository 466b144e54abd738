package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pbanos/arboretum/pkg/forest"
	"github.com/pkg/errors"
)

type cachedStore struct {
	BundleStore
	cache *lru.Cache
}

/*
NewCached puts an LRU cache of up to size decoded bundles in front of a
store. Bundles returned by Get are shared between callers and must not be
modified.
*/
func NewCached(bs BundleStore, size int) (BundleStore, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "creating bundle cache")
	}
	return &cachedStore{bs, cache}, nil
}

func (cs *cachedStore) Create(ctx context.Context, b *forest.Bundle) (string, error) {
	id, err := cs.BundleStore.Create(ctx, b)
	if err == nil {
		cs.cache.Add(id, b)
	}
	return id, err
}

func (cs *cachedStore) Get(ctx context.Context, id string) (*forest.Bundle, error) {
	if b, ok := cs.cache.Get(id); ok {
		return b.(*forest.Bundle), nil
	}
	b, err := cs.BundleStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cs.cache.Add(id, b)
	return b, nil
}

func (cs *cachedStore) Store(ctx context.Context, id string, b *forest.Bundle) error {
	cs.cache.Remove(id)
	if err := cs.BundleStore.Store(ctx, id, b); err != nil {
		return err
	}
	cs.cache.Add(id, b)
	return nil
}

func (cs *cachedStore) Delete(ctx context.Context, id string) error {
	cs.cache.Remove(id)
	return cs.BundleStore.Delete(ctx, id)
}

func (cs *cachedStore) Close(ctx context.Context) error {
	cs.cache.Purge()
	return cs.BundleStore.Close(ctx)
}
