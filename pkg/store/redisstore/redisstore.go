/*
Package redisstore provides a store.BundleStore keeping encoded bundles
as Redis string values.
*/
package redisstore

import (
	"context"
	"fmt"

	"github.com/pbanos/arboretum/pkg/forest"
	"github.com/pbanos/arboretum/pkg/store"
	"github.com/pkg/errors"
	"gopkg.in/redis.v5"
)

type redisStore struct {
	rc     *redis.Client
	prefix string
	encdec store.EncodeDecoder
}

// New builds a store.BundleStore backed by a redis DB, keying bundles as prefix:id.
func New(rc *redis.Client, prefix string, encdec store.EncodeDecoder) store.BundleStore {
	return &redisStore{rc, prefix, encdec}
}

func (rs *redisStore) Create(ctx context.Context, b *forest.Bundle) (string, error) {
	data, err := rs.encdec.Encode(b)
	if err != nil {
		return "", errors.Wrap(err, "creating bundle: encoding bundle")
	}
	for {
		id := store.NewID()
		ok, err := rs.rc.SetNX(rs.keyFor(id), data, 0).Result()
		if err != nil {
			return "", errors.Wrap(err, "creating bundle in redis")
		}
		if ok {
			return id, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
}

func (rs *redisStore) Get(ctx context.Context, id string) (*forest.Bundle, error) {
	data, err := rs.rc.Get(rs.keyFor(id)).Bytes()
	if err == redis.Nil {
		return nil, errors.Wrapf(store.ErrNotFound, "bundle %q", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving bundle %q", id)
	}
	b, err := rs.encdec.Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving bundle %q: decoding", id)
	}
	return b, nil
}

func (rs *redisStore) Store(ctx context.Context, id string, b *forest.Bundle) error {
	data, err := rs.encdec.Encode(b)
	if err != nil {
		return errors.Wrapf(err, "storing bundle %q: encoding bundle", id)
	}
	if err = rs.rc.Set(rs.keyFor(id), data, 0).Err(); err != nil {
		return errors.Wrapf(err, "storing bundle %q in redis", id)
	}
	return nil
}

func (rs *redisStore) Delete(ctx context.Context, id string) error {
	n, err := rs.rc.Del(rs.keyFor(id)).Result()
	if err != nil {
		return errors.Wrapf(err, "deleting bundle %q from redis", id)
	}
	if n == 0 {
		return errors.Wrapf(store.ErrNotFound, "bundle %q", id)
	}
	return nil
}

func (rs *redisStore) Close(ctx context.Context) error {
	return rs.rc.Close()
}

func (rs *redisStore) keyFor(id string) string {
	return fmt.Sprintf("%s:%s", rs.prefix, id)
}
