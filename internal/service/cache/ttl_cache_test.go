package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewTTLCache[int](time.Minute)
	c.now = func() time.Time { return now }

	c.Set("BTCUSDT", 7)
	v, ok := c.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 7, v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("BTCUSDT")
	assert.False(t, ok)
}

func TestTTLCacheDoesNotCacheErrors(t *testing.T) {
	c := NewTTLCache[string](time.Minute)
	_, err := c.GetOrLoad("k", func() (string, error) { return "", errors.New("upstream down") })
	require.Error(t, err)

	v, err := c.GetOrLoad("k", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestTTLCacheSharesConcurrentLoads(t *testing.T) {
	c := NewTTLCache[int](time.Minute)
	var loads atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrLoad("ETHUSDT", func() (int, error) {
				loads.Add(1)
				<-release
				return 42, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
}
