// Package cache defines the response cache used by the SEO API client.
//
// A cache maps a call Signature to the raw JSON result the API returned for it.
// Entries expire a fixed TTL after insertion and the number of live entries is
// bounded; once the bound is reached older entries are evicted on a recency
// basis. Backends register themselves by name so the client can be configured
// with an in-process cache or one shared between processes.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

const (
	// DefaultTTL is how long an entry stays valid after insertion.
	DefaultTTL = 60 * time.Minute

	// DefaultMaxEntries bounds the number of live entries.
	DefaultMaxEntries = 1000
)

// Common errors returned by backends.
var (
	// ErrUnknownBackend indicates no backend is registered under the requested name.
	ErrUnknownBackend = errors.New("unknown cache backend")

	// ErrInvalidConfig indicates the backend configuration is invalid.
	ErrInvalidConfig = errors.New("invalid cache configuration")
)

// Signature identifies a call: the method plus its canonicalized parameters.
type Signature string

// NewSignature builds the signature of a call. Parameter maps are rendered as
// JSON with object keys sorted at every level, so maps built in a different
// order produce the same signature. A missing key and a key set to null are
// distinct. A nil params map is treated as empty.
func NewSignature(method string, params map[string]any) (Signature, error) {
	if params == nil {
		params = map[string]any{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(params); err != nil {
		return "", fmt.Errorf("canonicalize params for %s: %w", method, err)
	}

	return Signature(method + " " + strings.TrimRight(buf.String(), "\n")), nil
}

// Cache is implemented by every backend. Implementations must be safe for
// concurrent use and must never report an expired entry as a hit.
//
// Get and Put do not return errors: a backend that cannot serve a lookup
// reports a miss, and a backend that cannot store a value drops it.
type Cache interface {
	// Get returns the cached result for sig, if present and not expired.
	Get(ctx context.Context, sig Signature) (json.RawMessage, bool)

	// Put stores value under sig, evicting older entries when the bound is reached.
	Put(ctx context.Context, sig Signature, value json.RawMessage)

	// Stats returns a snapshot of hit/miss counters and the current size.
	Stats(ctx context.Context) Stats

	// Name returns the backend identifier (e.g., "memory", "redis").
	Name() string

	// Healthy returns nil if the backend is operational.
	Healthy(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error
}

// Config carries the settings shared by all backends plus backend-specific options.
type Config struct {
	// TTL is the lifetime of an entry from insertion (default: 60 minutes)
	TTL time.Duration

	// MaxEntries bounds the number of live entries (default: 1000)
	MaxEntries int

	// Options holds backend-specific settings (e.g., "addr" and "prefix" for redis)
	Options map[string]any
}

// Validate applies defaults and checks the shared settings.
func (c *Config) Validate() error {
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxEntries == 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.TTL < 0 {
		return fmt.Errorf("%w: ttl must be positive", ErrInvalidConfig)
	}
	if c.MaxEntries < 0 {
		return fmt.Errorf("%w: max entries must be positive", ErrInvalidConfig)
	}
	return nil
}

// Option returns the string option stored under key, or def.
func (c Config) Option(key, def string) string {
	if v, ok := c.Options[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Backend   string  `json:"backend"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Entries   int     `json:"entries"`
	HitRate   float64 `json:"hit_rate"`
}

// Counters tracks hits, misses and evictions for a backend.
type Counters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// Hit records a lookup that found a live entry.
func (c *Counters) Hit() { c.hits.Add(1) }

// Miss records a lookup that found nothing, or only an expired entry.
func (c *Counters) Miss() { c.misses.Add(1) }

// Evict records an entry removed before it was replaced or read again.
func (c *Counters) Evict() { c.evictions.Add(1) }

// Snapshot builds a Stats value from the counters.
func (c *Counters) Snapshot(backend string, entries int) Stats {
	s := Stats{
		Backend:   backend,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   entries,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// Factory creates a Cache from configuration.
type Factory func(cfg Config) (Cache, error)

var registry = make(map[string]Factory)

// Register registers a backend factory under the given name.
// This is typically called in init() functions of backend implementations.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// New creates a cache using the backend registered under name.
func New(name string, cfg Config) (Cache, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return factory(cfg)
}

// Backends returns the names of all registered backends, sorted.
func Backends() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
