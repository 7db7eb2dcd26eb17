package wordpress

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTermCacheResolveOnceUnderConcurrency(t *testing.T) {
	cache := NewTermCache()
	var resolveCalls atomic.Int32

	resolve := func(ctx context.Context) (int, error) {
		resolveCalls.Add(1)
		// Hold the flight open long enough for every goroutine to join it.
		time.Sleep(20 * time.Millisecond)
		return 42, nil
	}

	const callers = 16
	ids := make([]int, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = cache.Resolve(context.Background(), "categories", "Tech", resolve)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), resolveCalls.Load(), "concurrent misses must collapse into one resolve")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 42, ids[i])
	}
}

func TestTermCacheHitSkipsResolve(t *testing.T) {
	cache := NewTermCache()
	cache.Put("tags", "go", 7)

	id, err := cache.Resolve(context.Background(), "tags", "go", func(ctx context.Context) (int, error) {
		t.Fatal("resolve must not run on a cache hit")
		return 0, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, id)
}

func TestTermCacheKeysAreCaseSensitiveAndTaxonomyScoped(t *testing.T) {
	cache := NewTermCache()
	cache.Put("categories", "Tech", 1)

	next := 100
	resolve := func(ctx context.Context) (int, error) {
		next++
		return next, nil
	}

	lower, err := cache.Resolve(context.Background(), "categories", "tech", resolve)
	require.NoError(t, err)
	assert.NotEqual(t, 1, lower, "term names are case-sensitive")

	tagged, err := cache.Resolve(context.Background(), "tags", "Tech", resolve)
	require.NoError(t, err)
	assert.NotEqual(t, 1, tagged, "taxonomies are independent namespaces")

	assert.Equal(t, 3, cache.Len())
}

func TestTermCacheResolveErrorNotCached(t *testing.T) {
	cache := NewTermCache()
	calls := 0

	_, err := cache.Resolve(context.Background(), "categories", "Tech", func(ctx context.Context) (int, error) {
		calls++
		return 0, assert.AnError
	})
	require.Error(t, err)

	id, err := cache.Resolve(context.Background(), "categories", "Tech", func(ctx context.Context) (int, error) {
		calls++
		return 9, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 9, id)
	assert.Equal(t, 2, calls)
}
