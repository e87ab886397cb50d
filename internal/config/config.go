// Package config loads seobridge settings.
//
// Sources are applied lowest precedence first: built-in defaults, the YAML
// config file, a .env file, then the process environment. Command-line flags
// are applied by the caller on top of the loaded Config before Validate.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/akshayaggarwal99/seobridge/internal/cache"
	"github.com/akshayaggarwal99/seobridge/internal/ratelimit"
	"github.com/akshayaggarwal99/seobridge/internal/seoapi"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFile is read when no config file is named. It may be absent.
	DefaultFile = "seobridge.yaml"

	// DefaultEnvFile is loaded into the environment if present.
	DefaultEnvFile = ".env"

	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "SEOBRIDGE_"

	// TokenEnv is the conventional variable holding the API token.
	TokenEnv = "SERPSTAT_TOKEN"

	redacted = "REDACTED"
)

// ErrInvalidConfig indicates the configuration is invalid.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete seobridge configuration.
type Config struct {
	API       APIConfig       `yaml:"api"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
}

// APIConfig holds the remote API connection settings.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// RateLimitConfig bounds outbound calls.
type RateLimitConfig struct {
	MaxPerWindow int           `yaml:"max_per_window"`
	Window       time.Duration `yaml:"window"`
}

// CacheConfig selects and sizes the response cache.
type CacheConfig struct {
	Backend    string        `yaml:"backend"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig is used by the redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration. It has no token.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: seoapi.DefaultBaseURL,
			Timeout: seoapi.DefaultTimeout,
		},
		RateLimit: RateLimitConfig{
			MaxPerWindow: ratelimit.DefaultMaxPerWindow,
			Window:       ratelimit.DefaultWindow,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			TTL:        cache.DefaultTTL,
			MaxEntries: cache.DefaultMaxEntries,
		},
		Log: LogConfig{
			Level: zerolog.InfoLevel.String(),
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (DefaultFile if
// empty), the .env file and the environment. A missing DefaultFile or .env is
// not an error; a missing explicitly named file is. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// godotenv never overrides variables already set in the environment.
	if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", DefaultEnvFile, err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
// SEOBRIDGE_API_TOKEN takes precedence over SERPSTAT_TOKEN.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	var errs []error
	str := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s%s=%q is not an integer", ErrInvalidConfig, EnvPrefix, name, v))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s%s=%q is not a duration", ErrInvalidConfig, EnvPrefix, name, v))
				return
			}
			*dst = d
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s%s=%q is not a boolean", ErrInvalidConfig, EnvPrefix, name, v))
				return
			}
			*dst = b
		}
	}

	if v, ok := lookup(TokenEnv); ok && strings.TrimSpace(v) != "" {
		c.API.Token = strings.TrimSpace(v)
	}
	str("API_TOKEN", &c.API.Token)
	str("API_BASE_URL", &c.API.BaseURL)
	dur("API_TIMEOUT", &c.API.Timeout)

	num("RATE_LIMIT_MAX", &c.RateLimit.MaxPerWindow)
	dur("RATE_LIMIT_WINDOW", &c.RateLimit.Window)

	str("CACHE_BACKEND", &c.Cache.Backend)
	dur("CACHE_TTL", &c.Cache.TTL)
	num("CACHE_MAX_ENTRIES", &c.Cache.MaxEntries)
	str("REDIS_ADDR", &c.Cache.Redis.Addr)
	str("REDIS_PASSWORD", &c.Cache.Redis.Password)
	num("REDIS_DB", &c.Cache.Redis.DB)
	str("REDIS_PREFIX", &c.Cache.Redis.Prefix)

	str("LOG_LEVEL", &c.Log.Level)
	flag("LOG_JSON", &c.Log.JSON)

	return errors.Join(errs...)
}

// Validate applies defaults to unset fields and checks the rest.
func (c *Config) Validate() error {
	d := Default()

	// Apply defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = d.API.Timeout
	}
	if c.RateLimit.MaxPerWindow == 0 {
		c.RateLimit.MaxPerWindow = d.RateLimit.MaxPerWindow
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = d.RateLimit.Window
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = d.Cache.Backend
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = d.Cache.TTL
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = d.Cache.MaxEntries
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}

	// Validate constraints
	if c.API.Token == "" {
		return fmt.Errorf("%w: api token is required (set %s or %sAPI_TOKEN)", ErrInvalidConfig, TokenEnv, EnvPrefix)
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: base url %q must be an http(s) URL", ErrInvalidConfig, c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("%w: api timeout must be positive", ErrInvalidConfig)
	}
	if c.RateLimit.MaxPerWindow < 0 {
		return fmt.Errorf("%w: rate limit must be positive", ErrInvalidConfig)
	}
	if c.RateLimit.Window < 0 {
		return fmt.Errorf("%w: rate limit window must be positive", ErrInvalidConfig)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("%w: cache ttl must be positive", ErrInvalidConfig)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("%w: cache max entries must be positive", ErrInvalidConfig)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("%w: redis cache requires cache.redis.addr", ErrInvalidConfig)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log level %q: %v", ErrInvalidConfig, c.Log.Level, err)
	}
	return nil
}

// Client returns the API client settings.
func (c *Config) Client() seoapi.Config {
	return seoapi.Config{
		BaseURL: c.API.BaseURL,
		Token:   c.API.Token,
		Timeout: c.API.Timeout,
	}
}

// CacheBackend returns the settings passed to cache.New for the configured backend.
func (c *Config) CacheBackend() cache.Config {
	cfg := cache.Config{
		TTL:        c.Cache.TTL,
		MaxEntries: c.Cache.MaxEntries,
	}
	if c.Cache.Backend == "redis" {
		cfg.Options = map[string]any{
			"addr":     c.Cache.Redis.Addr,
			"password": c.Cache.Redis.Password,
			"db":       strconv.Itoa(c.Cache.Redis.DB),
			"prefix":   c.Cache.Redis.Prefix,
		}
	}
	return cfg
}

// LogLevel returns the parsed log level, falling back to info.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Redacted returns a copy safe to print: secrets are replaced.
func (c *Config) Redacted() *Config {
	out := *c
	if out.API.Token != "" {
		out.API.Token = redacted
	}
	if out.Cache.Redis.Password != "" {
		out.Cache.Redis.Password = redacted
	}
	return &out
}
