package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/akshayaggarwal99/seobridge/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T, cfg cache.Config) cache.Cache {
	t.Helper()
	c, err := cache.New(BackendName, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetPut(t *testing.T) {
	c := newCache(t, cache.Config{})
	ctx := context.Background()

	_, ok := c.Get(ctx, "m.get {}")
	assert.False(t, ok)

	c.Put(ctx, "m.get {}", json.RawMessage(`{"x":1}`))
	v, ok := c.Get(ctx, "m.get {}")
	require.True(t, ok)
	assert.JSONEq(t, `{"x":1}`, string(v))

	s := c.Stats(ctx)
	assert.Equal(t, BackendName, s.Backend)
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, 1, s.Entries)
}

func TestReturnedValueIsACopy(t *testing.T) {
	c := newCache(t, cache.Config{})
	ctx := context.Background()

	orig := json.RawMessage(`{"x":1}`)
	c.Put(ctx, "k", orig)
	orig[2] = 'y'

	v, ok := c.Get(ctx, "k")
	require.True(t, ok)
	v[2] = 'z'

	again, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, `{"x":1}`, string(again))
}

func TestExpiredEntryIsMiss(t *testing.T) {
	c := newCache(t, cache.Config{TTL: 30 * time.Millisecond})
	ctx := context.Background()

	c.Put(ctx, "k", json.RawMessage(`1`))
	_, ok := c.Get(ctx, "k")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)

	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestBoundEvictsLeastRecentlyUsed(t *testing.T) {
	c := newCache(t, cache.Config{MaxEntries: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		c.Put(ctx, cache.Signature(fmt.Sprintf("k%d", i)), json.RawMessage(`1`))
	}
	// Touch k0 so k1 becomes the oldest.
	_, ok := c.Get(ctx, "k0")
	require.True(t, ok)

	c.Put(ctx, "k3", json.RawMessage(`1`))

	_, ok = c.Get(ctx, "k1")
	assert.False(t, ok)
	for _, k := range []cache.Signature{"k0", "k2", "k3"} {
		_, ok := c.Get(ctx, k)
		assert.True(t, ok, "expected %s to survive", k)
	}
	s := c.Stats(ctx)
	assert.Equal(t, 3, s.Entries)
	assert.Equal(t, int64(1), s.Evictions)
}

func TestConcurrentAccess(t *testing.T) {
	c := newCache(t, cache.Config{MaxEntries: 50})
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				sig := cache.Signature(fmt.Sprintf("k%d", (g*200+i)%120))
				c.Put(ctx, sig, json.RawMessage(fmt.Sprintf(`%d`, i)))
				c.Get(ctx, sig)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Stats(ctx).Entries, 50)
}

func TestCloseDropsEntries(t *testing.T) {
	c, err := New(cache.Config{})
	require.NoError(t, err)
	ctx := context.Background()

	c.Put(ctx, "k", json.RawMessage(`1`))
	require.NoError(t, c.Close())

	assert.Zero(t, c.Stats(ctx).Entries)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}
