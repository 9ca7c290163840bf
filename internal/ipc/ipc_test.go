package ipc

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrid-audio/astrid/internal/astriderr"
)

func TestShmStoreCellRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := newShmStore(nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cell")
	_, err = store.CreateCell(ctx, path, 16)
	require.NoError(t, err)

	require.NoError(t, store.SetCell(ctx, path, []byte("hello")))
	got, err := store.GetCell(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got[:5]))

	require.NoError(t, store.DestroyCell(ctx, path))
}

func TestShmStoreCreateCellIdempotent(t *testing.T) {
	ctx := context.Background()
	store, err := newShmStore(nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cell")
	id1, err := store.CreateCell(ctx, path, 16)
	require.NoError(t, err)
	id2, err := store.CreateCell(ctx, path, 16)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

// TestShmStoreCounterConcurrent checks that N concurrent read_and_increment
// calls return a permutation of {start..start+N-1}.
func TestShmStoreCounterConcurrent(t *testing.T) {
	ctx := context.Background()
	store, err := newShmStore(nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "counter")
	require.NoError(t, store.CreateCounter(ctx, path))

	const n = 200
	results := make([]uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := store.ReadAndIncrement(ctx, path)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool, n)
	for _, v := range results {
		assert.False(t, seen[v], "duplicate value %d", v)
		seen[v] = true
	}
	for v := uint64(1); v <= n; v++ {
		assert.True(t, seen[v], "missing value %d", v)
	}
}

func TestShmStoreGetMissingCellIsNotFound(t *testing.T) {
	ctx := context.Background()
	store, err := newShmStore(nil)
	require.NoError(t, err)

	_, err = store.GetCell(ctx, filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, astriderr.Is(err, astriderr.NotFound))
}
