package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", payload{Text: "hi", Score: 0.5}, time.Minute))
	var got payload
	require.NoError(t, mc.Get(ctx, "k", &got))
	assert.Equal(t, payload{Text: "hi", Score: 0.5}, got)

	require.NoError(t, mc.Delete(ctx, "k"))
	assert.ErrorIs(t, mc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	var s string
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", 2, 0))
	time.Sleep(time.Millisecond)
	var n int
	require.NoError(t, mc.Get(ctx, "a", &n)) // touch a
	require.NoError(t, mc.Set(ctx, "c", 3, 0))

	assert.ErrorIs(t, mc.Get(ctx, "b", &n), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "a", &n))
	assert.NoError(t, mc.Get(ctx, "c", &n))
}

func TestMemoryCacheLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "run:api", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = mc.TryLock(ctx, "run:api", time.Minute)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "run:api"))
	ok, _ = mc.TryLock(ctx, "run:api", time.Minute)
	assert.True(t, ok)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "insight:api:abc", Key("insight", "api", "abc"))
	assert.Len(t, HashKey("x"), 16)
}
