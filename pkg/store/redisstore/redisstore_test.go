package redisstore

import (
	"context"
	"os"
	"testing"

	"github.com/pbanos/arboretum/pkg/bio"
	"github.com/pbanos/arboretum/pkg/bv"
	"github.com/pbanos/arboretum/pkg/forest"
	"github.com/pbanos/arboretum/pkg/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/redis.v5"
)

// TestRedisStore runs against the server at ARBORETUM_REDIS_ADDR, if set.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("ARBORETUM_REDIS_ADDR")
	if addr == "" {
		t.Skip("ARBORETUM_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rs := New(redis.NewClient(&redis.Options{Addr: addr}), "arboretum-test", store.Codec{Compression: bio.CompressionLZ4})
	defer rs.Close(ctx)

	fb := forest.NewBuilder(0)
	fb.AddTree([]forest.Node{{Offset: 0}}, bv.New(0), 0)
	lf := forest.NewLeafFrame(0, true)
	lf.AddTree([]forest.Leaf{{Score: 7, Extent: 1, SCount: 1}}, nil, nil)
	b := &forest.Bundle{Forest: fb.Forest(), Leaf: lf, Bag: forest.NewBag(1)}

	id, err := rs.Create(ctx, b)
	require.NoError(t, err)
	got, err := rs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 7.0, got.Leaf.Score(0, 0))

	require.NoError(t, rs.Delete(ctx, id))
	_, err = rs.Get(ctx, id)
	assert.Equal(t, store.ErrNotFound, errors.Cause(err))
}
