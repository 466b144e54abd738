package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForVisitsEveryIndex(t *testing.T) {
	for _, nThread := range []int{0, 1, 4} {
		seen := make([]int32, 100)
		err := For(context.Background(), nThread, len(seen), func(i int) error {
			atomic.AddInt32(&seen[i], 1)
			return nil
		})
		assert.NoError(t, err)
		for i, s := range seen {
			assert.Equal(t, int32(1), s, "index %d with %d threads", i, nThread)
		}
	}
}

func TestForReturnsError(t *testing.T) {
	boom := errors.New("boom")
	err := For(context.Background(), 3, 10, func(i int) error {
		if i == 7 {
			return boom
		}
		return nil
	})
	assert.Equal(t, boom, err)
}

func TestBlocksCoverRange(t *testing.T) {
	var total int64
	err := Blocks(context.Background(), 2, 1000, 64, func(lo, hi int) error {
		assert.True(t, hi-lo <= 64)
		atomic.AddInt64(&total, int64(hi-lo))
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(1000), total)
}

func TestThreads(t *testing.T) {
	assert.Equal(t, 3, Threads(3))
	assert.True(t, Threads(0) >= 1)
}
