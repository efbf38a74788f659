package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache(2)

	require.NoError(t, c.SetBytes(ctx, "a", []byte("png-a"), time.Minute))
	b, ok, err := c.GetBytes(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("png-a"), b)

	require.NoError(t, c.SetBytes(ctx, "short", []byte("x"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok, _ = c.GetBytes(ctx, "short")
	assert.False(t, ok)

	// full: the expired entry makes room
	require.NoError(t, c.SetBytes(ctx, "z", []byte("y"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.SetBytes(ctx, "c", []byte("png-c"), 0))
	_, ok, _ = c.GetBytes(ctx, "a")
	assert.True(t, ok)
	_, ok, _ = c.GetBytes(ctx, "c")
	assert.True(t, ok)
}
