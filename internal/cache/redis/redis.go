// Package redis is a cache backend shared between processes through Redis.
//
// Each entry is stored as a plain string key with an expiry equal to the cache
// TTL. A sorted set indexes the entry keys by last use so the backend can trim
// itself back to the configured bound after every insertion.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/akshayaggarwal99/seobridge/internal/cache"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	// BackendName is the registry name of this backend.
	BackendName = "redis"

	// DefaultPrefix namespaces every key written by the backend.
	DefaultPrefix = "seobridge:cache"
)

// Cache stores results in Redis. Redis failures are logged and degrade to a
// miss (Get) or a dropped write (Put).
type Cache struct {
	rdb        *goredis.Client
	prefix     string
	ttl        time.Duration
	maxEntries int
	counters   *cache.Counters
	now        func() time.Time
}

var _ cache.Cache = (*Cache)(nil)

// New creates a Redis cache.
// cfg.Options["addr"] is required; "password", "db" and "prefix" are optional.
func New(cfg cache.Config) (cache.Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	addr := cfg.Option("addr", "")
	if addr == "" {
		return nil, fmt.Errorf("%w: redis addr is required", cache.ErrInvalidConfig)
	}

	db := 0
	if raw := cfg.Option("db", ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: redis db %q: %v", cache.ErrInvalidConfig, raw, err)
		}
		db = n
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: cfg.Option("password", ""),
		DB:       db,
	})
	return NewWithClient(rdb, cfg), nil
}

// NewWithClient creates a Redis cache on an existing client. The cache takes
// ownership of rdb and closes it on Close. Non-positive TTL and bound settings
// are replaced by the defaults.
func NewWithClient(rdb *goredis.Client, cfg cache.Config) *Cache {
	if err := cfg.Validate(); err != nil {
		log.Warn().Err(err).Msg("Invalid redis cache settings, using defaults")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = cache.DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = cache.DefaultMaxEntries
	}
	return &Cache{
		rdb:        rdb,
		prefix:     strings.Trim(cfg.Option("prefix", DefaultPrefix), ":"),
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
		counters:   &cache.Counters{},
		now:        time.Now,
	}
}

func init() {
	cache.Register(BackendName, New)
}

func (c *Cache) entryKey(sig cache.Signature) string {
	sum := sha256.Sum256([]byte(sig))
	return c.prefix + ":entry:" + hex.EncodeToString(sum[:])
}

func (c *Cache) indexKey() string {
	return c.prefix + ":index"
}

func (c *Cache) Get(ctx context.Context, sig cache.Signature) (json.RawMessage, bool) {
	key := c.entryKey(sig)

	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			log.Warn().Err(err).Msg("Redis cache lookup failed, treating as miss")
		}
		c.counters.Miss()
		return nil, false
	}

	// Refresh recency for existing index members only.
	score := float64(c.now().UnixNano())
	if err := c.rdb.ZAddXX(ctx, c.indexKey(), goredis.Z{Score: score, Member: key}).Err(); err != nil {
		log.Debug().Err(err).Msg("Redis cache recency update failed")
	}

	c.counters.Hit()
	return json.RawMessage(val), true
}

func (c *Cache) Put(ctx context.Context, sig cache.Signature, value json.RawMessage) {
	key := c.entryKey(sig)
	now := c.now()

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, key, []byte(value), c.ttl)
	pipe.ZAdd(ctx, c.indexKey(), goredis.Z{Score: float64(now.UnixNano()), Member: key})
	// Members untouched for a full TTL belong to expired entries.
	pipe.ZRemRangeByScore(ctx, c.indexKey(), "-inf", "("+strconv.FormatInt(now.Add(-c.ttl).UnixNano(), 10))
	card := pipe.ZCard(ctx, c.indexKey())
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Msg("Redis cache write failed, dropping entry")
		return
	}

	if excess := card.Val() - int64(c.maxEntries); excess > 0 {
		c.evict(ctx, excess)
	}
}

// evict removes the n least recently used entries.
func (c *Cache) evict(ctx context.Context, n int64) {
	victims, err := c.rdb.ZRange(ctx, c.indexKey(), 0, n-1).Result()
	if err != nil || len(victims) == 0 {
		if err != nil {
			log.Warn().Err(err).Msg("Redis cache eviction lookup failed")
		}
		return
	}

	members := make([]any, len(victims))
	for i, v := range victims {
		members[i] = v
	}

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, victims...)
	pipe.ZRem(ctx, c.indexKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Int("count", len(victims)).Msg("Redis cache eviction failed")
		return
	}
	for range victims {
		c.counters.Evict()
	}
}

func (c *Cache) Stats(ctx context.Context) cache.Stats {
	entries, err := c.rdb.ZCard(ctx, c.indexKey()).Result()
	if err != nil {
		log.Debug().Err(err).Msg("Redis cache size lookup failed")
	}
	return c.counters.Snapshot(BackendName, int(entries))
}

func (c *Cache) Name() string {
	return BackendName
}

func (c *Cache) Healthy(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}
