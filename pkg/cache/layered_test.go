package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayeredCacheWritesThroughAndPromotes(t *testing.T) {
	remote := NewMemoryCache()
	defer remote.Close()
	lc := NewLayeredCache(remote, WithLocalTTL(time.Minute))
	defer lc.Close()
	ctx := context.Background()

	require.NoError(t, lc.Set(ctx, "decision:BTCUSDT", board{Symbol: "BTCUSDT", Edge: 0.4}, time.Hour))
	var got board
	require.NoError(t, remote.Get(ctx, "decision:BTCUSDT", &got))
	assert.Equal(t, 0.4, got.Edge)

	// written by another instance straight to the shared store
	require.NoError(t, remote.Set(ctx, "decision:ETHUSDT", board{Symbol: "ETHUSDT"}, time.Hour))
	require.NoError(t, lc.Get(ctx, "decision:ETHUSDT", &got))
	assert.Equal(t, "ETHUSDT", got.Symbol)

	require.NoError(t, remote.Delete(ctx, "decision:ETHUSDT"))
	require.NoError(t, lc.Get(ctx, "decision:ETHUSDT", &got), "promoted entry served locally")

	require.NoError(t, lc.Set(ctx, "note", "plain", 0))
	var s string
	require.NoError(t, lc.Get(ctx, "note", &s))
	assert.Equal(t, "plain", s)
}

func TestLayeredCacheLocalEntriesExpire(t *testing.T) {
	remote := NewMemoryCache()
	defer remote.Close()
	lc := NewLayeredCache(remote, WithLocalTTL(20*time.Millisecond))
	defer lc.Close()
	ctx := context.Background()

	require.NoError(t, lc.Set(ctx, "k", board{Edge: 1}, time.Hour))
	require.NoError(t, remote.Set(ctx, "k", board{Edge: 2}, time.Hour))

	var got board
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, 1.0, got.Edge)

	time.Sleep(40 * time.Millisecond)
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, 2.0, got.Edge)
}

func TestLayeredCacheMGetMergesLayers(t *testing.T) {
	remote := NewMemoryCache()
	defer remote.Close()
	lc := NewLayeredCache(remote)
	defer lc.Close()
	ctx := context.Background()

	require.NoError(t, lc.MSet(ctx, map[string]interface{}{"a": board{Symbol: "A"}}, time.Hour))
	require.NoError(t, remote.Set(ctx, "b", board{Symbol: "B"}, time.Hour))

	found, err := MGetTyped[board](ctx, lc, "a", "b", "c")
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, "B", found["b"].Symbol)

	ok, err := lc.Exists(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, lc.Delete(ctx, "a"))
	ok, _ = lc.Exists(ctx, "a")
	assert.False(t, ok)
}

func TestGenerateKeyWithParams(t *testing.T) {
	assert.Equal(t, "decision:symbol:BTCUSDT", GenerateKeyWithParams("decision", "symbol", "BTCUSDT"))
	assert.Equal(t, "state", GenerateKeyWithParams("state"))
}
