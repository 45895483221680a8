package snow_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fivetwenty-io/snow/pkg/snow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_Basic(t *testing.T) {
	t.Parallel()

	cache := snow.NewMemoryCache(10)
	ctx := context.Background()

	entry := &snow.CacheEntry{
		Data:      []byte(`{"name":"cmdb_ci"}`),
		ExpiresAt: time.Now().Add(time.Hour),
	}

	require.NoError(t, cache.Set(ctx, "meta/cmdb_ci", entry))
	assert.True(t, cache.Has(ctx, "meta/cmdb_ci"))

	got, err := cache.Get(ctx, "meta/cmdb_ci")
	require.NoError(t, err)
	assert.Equal(t, entry.Data, got.Data)

	require.NoError(t, cache.Delete(ctx, "meta/cmdb_ci"))
	assert.False(t, cache.Has(ctx, "meta/cmdb_ci"))

	_, err = cache.Get(ctx, "meta/cmdb_ci")
	require.ErrorIs(t, err, snow.ErrCacheKeyNotFound)
}

func TestMemoryCache_Expiry(t *testing.T) {
	t.Parallel()

	cache := snow.NewMemoryCache(10)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "old", &snow.CacheEntry{Data: []byte("x"), ExpiresAt: time.Now().Add(-time.Second)}))
	require.NoError(t, cache.Set(ctx, "forever", &snow.CacheEntry{Data: []byte("y")}))

	assert.False(t, cache.Has(ctx, "old"))

	_, err := cache.Get(ctx, "old")
	require.ErrorIs(t, err, snow.ErrCacheEntryExpired)

	_, err = cache.Get(ctx, "old")
	require.ErrorIs(t, err, snow.ErrCacheKeyNotFound)

	assert.True(t, cache.Has(ctx, "forever"))
}

func TestMemoryCache_Eviction(t *testing.T) {
	t.Parallel()

	cache := snow.NewMemoryCache(2)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, cache.Set(ctx, "soon", &snow.CacheEntry{ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, cache.Set(ctx, "later", &snow.CacheEntry{ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, cache.Set(ctx, "new", &snow.CacheEntry{ExpiresAt: now.Add(time.Hour)}))

	assert.False(t, cache.Has(ctx, "soon"))
	assert.True(t, cache.Has(ctx, "later"))
	assert.True(t, cache.Has(ctx, "new"))

	// Overwriting an existing key does not evict.
	require.NoError(t, cache.Set(ctx, "new", &snow.CacheEntry{ExpiresAt: now.Add(2 * time.Hour)}))
	assert.True(t, cache.Has(ctx, "later"))
}

func TestMemoryCache_EvictionKeepsEntriesWithoutExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now()

	cache := snow.NewMemoryCache(2)
	require.NoError(t, cache.Set(ctx, "cmdb_ci", &snow.CacheEntry{}))
	require.NoError(t, cache.Set(ctx, "cmdb_ci_server", &snow.CacheEntry{ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, cache.Set(ctx, "cmdb_ci_linux_server", &snow.CacheEntry{ExpiresAt: now.Add(2 * time.Hour)}))

	assert.True(t, cache.Has(ctx, "cmdb_ci"))
	assert.False(t, cache.Has(ctx, "cmdb_ci_server"))
	assert.True(t, cache.Has(ctx, "cmdb_ci_linux_server"))

	permanent := snow.NewMemoryCache(1)
	require.NoError(t, permanent.Set(ctx, "a", &snow.CacheEntry{}))
	require.NoError(t, permanent.Set(ctx, "b", &snow.CacheEntry{}))

	assert.False(t, permanent.Has(ctx, "a"))
	assert.True(t, permanent.Has(ctx, "b"))
}

func TestMemoryCache_Cleanup(t *testing.T) {
	t.Parallel()

	cache := snow.NewMemoryCache(10)
	ctx := context.Background()

	for i := range 3 {
		require.NoError(t, cache.Set(ctx, fmt.Sprintf("expired-%d", i), &snow.CacheEntry{ExpiresAt: time.Now().Add(-time.Minute)}))
	}

	require.NoError(t, cache.Set(ctx, "live", &snow.CacheEntry{ExpiresAt: time.Now().Add(time.Minute)}))

	cache.Cleanup()

	for i := range 3 {
		_, err := cache.Get(ctx, fmt.Sprintf("expired-%d", i))
		require.ErrorIs(t, err, snow.ErrCacheKeyNotFound)
	}

	assert.True(t, cache.Has(ctx, "live"))

	require.NoError(t, cache.Clear(ctx))
	assert.False(t, cache.Has(ctx, "live"))
}

func TestMemoryCache_StartCleanup(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache := snow.NewMemoryCache(10)
	require.NoError(t, cache.Set(ctx, "expired", &snow.CacheEntry{ExpiresAt: time.Now().Add(-time.Minute)}))

	cache.StartCleanup(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		_, err := cache.Get(context.Background(), "expired")

		return err != nil
	}, time.Second, 10*time.Millisecond)
}

func TestCacheEntry_Expired(t *testing.T) {
	t.Parallel()

	assert.False(t, (&snow.CacheEntry{}).Expired())
	assert.True(t, (&snow.CacheEntry{ExpiresAt: time.Now().Add(-time.Second)}).Expired())
	assert.False(t, (&snow.CacheEntry{ExpiresAt: time.Now().Add(time.Minute)}).Expired())
}
