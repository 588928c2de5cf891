package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	err := For(context.Background(), n, func(_ int) error {
		atomic.AddInt64(&counter, 1)
		return nil
	}, cfg)

	require.NoError(t, err)
	assert.Equal(t, int64(n), counter)
}

func TestFor_EveryIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}

	seen := make([]int32, 97)
	err := For(context.Background(), len(seen), func(i int) error {
		atomic.AddInt32(&seen[i], 1)
		return nil
	}, cfg)

	require.NoError(t, err)
	for i, v := range seen {
		assert.Equal(t, int32(1), v, "index %d", i)
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var order []int
	err := For(context.Background(), 10, func(i int) error {
		order = append(order, i)
		return nil
	}, cfg)

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestFor_PropagatesError(t *testing.T) {
	boom := errors.New("boom")

	for _, cfg := range []Config{{Enabled: false}, {Enabled: true, NumWorkers: 3, MinChunkSize: 1}} {
		err := For(context.Background(), 50, func(i int) error {
			if i == 17 {
				return boom
			}
			return nil
		}, cfg)
		assert.ErrorIs(t, err, boom)
	}
}

func TestFor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := For(ctx, 10, func(_ int) error { return nil }, Config{Enabled: false})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFor_Empty(t *testing.T) {
	called := false
	err := For(context.Background(), 0, func(_ int) error {
		called = true
		return nil
	}, DefaultConfig())

	require.NoError(t, err)
	assert.False(t, called)
}
