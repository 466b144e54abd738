package store

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pbanos/arboretum/pkg/bio"
	"github.com/pbanos/arboretum/pkg/bv"
	"github.com/pbanos/arboretum/pkg/forest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stump(score float64) *forest.Bundle {
	fb := forest.NewBuilder(1)
	fb.AddTree([]forest.Node{{Offset: 0}}, bv.New(0), 0)
	lf := forest.NewLeafFrame(0, false)
	lf.AddTree([]forest.Leaf{{Score: score, Extent: 2, SCount: 2}}, nil,
		[]forest.BagSample{{Leaf: 0, Row: 0, SCount: 1}, {Leaf: 0, Row: 1, SCount: 1}})
	bag := forest.NewBag(2)
	bag.AddTree([]uint32{0, 1})
	return &forest.Bundle{
		Forest: fb.Forest(),
		Leaf:   lf,
		Bag:    bag,
		Meta:   forest.Meta{NPredNum: 1, YTrain: []float64{score, score}},
	}
}

func newFileStore(t *testing.T) (BundleStore, func()) {
	dir, err := ioutil.TempDir("", "arboretum-store")
	require.NoError(t, err)
	fs, err := NewFileStore(dir, Codec{Compression: bio.CompressionZSTD})
	require.NoError(t, err)
	return fs, func() { os.RemoveAll(dir) }
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	fs, done := newFileStore(t)
	defer done()

	id, err := fs.Create(ctx, stump(3))
	require.NoError(t, err)
	assert.Len(t, id, IDLength)

	b, err := fs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3.0, b.Leaf.Score(0, 0))

	require.NoError(t, fs.Store(ctx, id, stump(4)))
	b, err = fs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4.0, b.Leaf.Score(0, 0))

	require.NoError(t, fs.Delete(ctx, id))
	_, err = fs.Get(ctx, id)
	assert.Equal(t, ErrNotFound, errors.Cause(err))
	assert.Equal(t, ErrNotFound, errors.Cause(fs.Delete(ctx, id)))

	_, err = fs.Get(ctx, "../escape")
	assert.Error(t, err)
	assert.NoError(t, fs.Close(ctx))
}

func TestFileStoreCreateCleansUpFailedWrite(t *testing.T) {
	ctx := context.Background()
	bs, done := newFileStore(t)
	defer done()
	fs := bs.(*fileStore)
	fs.create = func(path string) (*os.File, error) {
		return os.OpenFile(path, os.O_RDONLY|os.O_CREATE|os.O_EXCL, 0644)
	}

	_, err := fs.Create(ctx, stump(3))
	assert.Error(t, err)
	left, err := filepath.Glob(filepath.Join(fs.dir, "*"+FileExt))
	require.NoError(t, err)
	assert.Empty(t, left)
}

type countingStore struct {
	BundleStore
	gets int
}

func (cs *countingStore) Get(ctx context.Context, id string) (*forest.Bundle, error) {
	cs.gets++
	return cs.BundleStore.Get(ctx, id)
}

func TestCachedStore(t *testing.T) {
	ctx := context.Background()
	fs, done := newFileStore(t)
	defer done()
	counting := &countingStore{BundleStore: fs}
	cs, err := NewCached(counting, 1)
	require.NoError(t, err)

	a, err := fs.Create(ctx, stump(1))
	require.NoError(t, err)
	b, err := fs.Create(ctx, stump(2))
	require.NoError(t, err)

	first, err := cs.Get(ctx, a)
	require.NoError(t, err)
	again, err := cs.Get(ctx, a)
	require.NoError(t, err)
	assert.True(t, first == again)
	assert.Equal(t, 1, counting.gets)

	_, err = cs.Get(ctx, b)
	require.NoError(t, err)
	_, err = cs.Get(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 3, counting.gets)

	require.NoError(t, cs.Delete(ctx, a))
	_, err = cs.Get(ctx, a)
	assert.Equal(t, ErrNotFound, errors.Cause(err))

	_, err = NewCached(fs, 0)
	assert.Error(t, err)
}

func TestNewID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		assert.Len(t, id, IDLength)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
