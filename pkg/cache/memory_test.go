package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	var got payload
	found, err := c.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "k", payload{Name: "a", Count: 2}, 0))

	found, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{Name: "a", Count: 2}, got)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	require.NoError(t, c.Set(ctx, "short", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	var s string
	found, err := c.Get(ctx, "short", &s)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCache_DeletePattern(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	for _, k := range []string{"coupon:valid", "coupon:code:SAVE20", "product:1"} {
		require.NoError(t, c.Set(ctx, k, 1, 0))
	}

	require.NoError(t, c.DeletePattern(ctx, "coupon:*"))

	var v int
	for _, k := range []string{"coupon:valid", "coupon:code:SAVE20"} {
		found, _ := c.Get(ctx, k, &v)
		assert.False(t, found, k)
	}
	found, _ := c.Get(ctx, "product:1", &v)
	assert.True(t, found)

	require.NoError(t, c.Delete(ctx, "product:1"))
	found, _ = c.Get(ctx, "product:1", &v)
	assert.False(t, found)
}
