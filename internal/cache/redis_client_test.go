package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_SetAndGet(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	err := c.Set(ctx, "makes", []byte(`["ford","toyota"]`), time.Minute)
	require.NoError(t, err)

	val, err := c.Get(ctx, "makes")
	require.NoError(t, err)
	assert.Equal(t, `["ford","toyota"]`, string(val))
}

func TestMemoryClient_MissAndExpiry(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	_, err := c.Get(ctx, "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "ephemeral", []byte("x"), -time.Second))
	_, err = c.Get(ctx, "ephemeral")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_DeleteByPrefix(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "distinct:make", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "distinct:model:toyota", []byte("b"), time.Minute))
	require.NoError(t, c.Set(ctx, "other", []byte("c"), time.Minute))

	require.NoError(t, c.DeleteByPrefix(ctx, DistinctValuesPrefix()))

	_, err := c.Get(ctx, "distinct:make")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "distinct:model:toyota")
	assert.ErrorIs(t, err, ErrCacheMiss)

	val, err := c.Get(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, "c", string(val))
}

func TestMemoryClient_EvictsAtMaxSize(t *testing.T) {
	c := NewMemoryClient(2)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 2*time.Minute))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 3*time.Minute))

	// Entry with the earliest expiry is evicted first.
	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = c.Get(ctx, "b")
	assert.NoError(t, err)
	_, err = c.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestDistinctValuesKey(t *testing.T) {
	assert.Equal(t, "distinct:make", DistinctValuesKey("make", ""))
	assert.Equal(t, "distinct:model:toyota", DistinctValuesKey("model", "toyota"))
}

func TestDistinctValuesKey_CoveredByPrefix(t *testing.T) {
	prefix := DistinctValuesPrefix()
	for _, key := range []string{
		DistinctValuesKey("make", ""),
		DistinctValuesKey("model", "toyota"),
	} {
		assert.Truef(t, len(key) >= len(prefix) && key[:len(prefix)] == prefix,
			"key %q not covered by prefix %q", key, prefix)
	}
}
