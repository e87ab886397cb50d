// Package memory is the default in-process cache backend.
package memory

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/akshayaggarwal99/seobridge/internal/cache"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// BackendName is the registry name of this backend.
const BackendName = "memory"

// Cache is an expiring LRU held in process memory.
type Cache struct {
	lru      *expirable.LRU[cache.Signature, json.RawMessage]
	counters *cache.Counters
}

var _ cache.Cache = (*Cache)(nil)

// New creates a memory cache. It has no backend-specific options.
//
// The underlying LRU runs one expiry goroutine per cache for the life of the
// process; Close empties the cache but cannot stop it. Create caches once and
// share them rather than one per request.
func New(cfg cache.Config) (cache.Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Cache{counters: &cache.Counters{}}
	c.lru = expirable.NewLRU[cache.Signature, json.RawMessage](cfg.MaxEntries, func(cache.Signature, json.RawMessage) {
		c.counters.Evict()
	}, cfg.TTL)
	return c, nil
}

func init() {
	cache.Register(BackendName, New)
}

func (c *Cache) Get(_ context.Context, sig cache.Signature) (json.RawMessage, bool) {
	v, ok := c.lru.Get(sig)
	if !ok {
		c.counters.Miss()
		return nil, false
	}
	c.counters.Hit()
	return bytes.Clone(v), true
}

func (c *Cache) Put(_ context.Context, sig cache.Signature, value json.RawMessage) {
	c.lru.Add(sig, bytes.Clone(value))
}

func (c *Cache) Stats(_ context.Context) cache.Stats {
	return c.counters.Snapshot(BackendName, c.lru.Len())
}

func (c *Cache) Name() string {
	return BackendName
}

func (c *Cache) Healthy(context.Context) error {
	return nil
}

// Close drops every entry. The expiry goroutine keeps running, idle, until the
// process exits.
func (c *Cache) Close() error {
	c.lru.Purge()
	return nil
}
