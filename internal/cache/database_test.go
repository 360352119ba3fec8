package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/modelgate/modelgate/internal/cache"
	"github.com/modelgate/modelgate/internal/database/testutil"
)

func newDatabaseStore(t *testing.T) *cache.DatabaseStore {
	t.Helper()
	return cache.NewDatabaseStore(testutil.MustOpenTestDB(t))
}

func TestDatabaseStoreSetGet(t *testing.T) {
	store := newDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Minute))

	value, found, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v1"), value)

	// Overwrite via upsert.
	require.NoError(t, store.Set(ctx, "k1", []byte("v2"), time.Minute))
	value, found, err = store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v2"), value)

	_, found, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreExpiry(t *testing.T) {
	store := newDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("x"), time.Millisecond))
	time.Sleep(10 * time.Millisecond)

	_, found, err := store.Get(ctx, "short")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreDelete(t *testing.T) {
	store := newDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "d1", []byte("x"), time.Minute))
	require.NoError(t, store.Delete(ctx, "d1"))

	_, found, err := store.Get(ctx, "d1")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Delete(ctx))
}

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	store := newDatabaseStore(t)
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Greater(t, ttl, time.Duration(0))

	count, _, err = store.IncrementWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	// An expired window restarts the count.
	count, _, err = store.IncrementWithTTL(ctx, "window", time.Millisecond)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	time.Sleep(10 * time.Millisecond)
	count, _, err = store.IncrementWithTTL(ctx, "window", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}
