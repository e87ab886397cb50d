// Package seoapi is the client for the SEO data API.
//
// Every call goes through the same pipeline: the response cache is consulted
// first, then the rate limiter admits the call, the JSON-RPC envelope is POSTed
// with the auth token as a query parameter, and the reply is classified. Any
// failure is reported as a *RemoteError.
package seoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/akshayaggarwal99/seobridge/internal/cache"
	"github.com/akshayaggarwal99/seobridge/internal/cache/memory"
	"github.com/akshayaggarwal99/seobridge/internal/proto"
	"github.com/akshayaggarwal99/seobridge/internal/ratelimit"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is the public API endpoint.
	DefaultBaseURL = "https://api.serpstat.com/v4"

	// DefaultTimeout bounds a single HTTP exchange.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies the client to the API.
	DefaultUserAgent = "seobridge/1.0"

	contentType = "application/json; charset=UTF-8"
)

// ErrMissingToken indicates the client was configured without an auth token.
var ErrMissingToken = errors.New("api token is required")

// Config holds the connection settings.
type Config struct {
	// BaseURL is the API endpoint (default: DefaultBaseURL)
	BaseURL string

	// Token is sent as the "token" query parameter
	Token string

	// Timeout bounds each request (default: 30s)
	Timeout time.Duration

	// UserAgent overrides DefaultUserAgent
	UserAgent string
}

// Client calls the SEO data API. It is safe for concurrent use; the limiter and
// cache it owns are shared by all calls made through it.
type Client struct {
	endpoint   string
	redacted   string
	userAgent  string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	cache      cache.Cache
	now        func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithLimiter sets the rate limiter.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithCache sets the response cache.
func WithCache(rc cache.Cache) Option {
	return func(c *Client) { c.cache = rc }
}

// WithHTTPClient replaces the HTTP client. Its timeout is left untouched.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client. Without options it gets a default limiter
// (10 calls per second) and an in-memory cache (1000 entries, 60 minutes).
// The in-memory cache holds a background goroutine that outlives Close, so
// long-running programs should create one client and share it.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", cfg.BaseURL)
	}

	q := u.Query()
	q.Set("token", cfg.Token)
	u.RawQuery = q.Encode()
	endpoint := u.String()

	q.Set("token", "REDACTED")
	u.RawQuery = q.Encode()

	c := &Client{
		endpoint:   endpoint,
		redacted:   u.String(),
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.limiter == nil {
		c.limiter = ratelimit.New(ratelimit.DefaultMaxPerWindow, ratelimit.DefaultWindow)
	}
	if c.cache == nil {
		rc, err := memory.New(cache.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to create response cache: %w", err)
		}
		c.cache = rc
	}
	return c, nil
}

// Call invokes method with params. A nil params map is sent as {}.
//
// A cached result short-circuits the limiter and the network; the returned
// Response then carries the current time, not the time of the original call.
func (c *Client) Call(ctx context.Context, method string, params map[string]any) (*Response, error) {
	if params == nil {
		params = map[string]any{}
	}

	sig, err := cache.NewSignature(method, params)
	if err != nil {
		return nil, &RemoteError{Method: method, Message: "failed to encode params", Err: err}
	}

	if result, ok := c.cache.Get(ctx, sig); ok {
		log.Debug().Str("method", method).Msg("Cache hit")
		return newResponse(method, params, result, c.now(), true), nil
	}

	c.limiter.Acquire(ctx)

	start := c.now()
	result, err := c.do(ctx, method, params)
	if err != nil {
		log.Debug().Err(err).Str("method", method).Dur("took", time.Since(start)).Msg("API call failed")
		return nil, err
	}
	log.Debug().Str("method", method).Dur("took", time.Since(start)).Msg("API call succeeded")

	c.cache.Put(ctx, sig, result)
	return newResponse(method, params, result, c.now(), false), nil
}

// do performs one HTTP exchange and returns the raw "result" member.
func (c *Client) do(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	body, err := encodeRequest(proto.NewRequest(method, params))
	if err != nil {
		return nil, &RemoteError{Method: method, Message: "failed to encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &RemoteError{Method: method, Message: "failed to build request", Err: c.redact(err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RemoteError{Method: method, Message: "request failed", Err: c.redact(err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Method: method, StatusCode: resp.StatusCode, Message: "failed to read response", Err: c.redact(err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{Method: method, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var envelope proto.Response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &RemoteError{Method: method, StatusCode: resp.StatusCode, Message: "failed to decode response", Body: string(raw), Err: err}
	}
	if envelope.Error != nil {
		msg := envelope.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("remote error (code %d)", envelope.Error.Code)
		}
		return nil, &RemoteError{Method: method, StatusCode: resp.StatusCode, Code: envelope.Error.Code, Message: msg}
	}
	if envelope.Result == nil {
		return nil, &RemoteError{Method: method, StatusCode: resp.StatusCode, Message: "response has no result", Body: string(raw)}
	}

	return envelope.Result, nil
}

func encodeRequest(r *proto.Request) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// redact hides the token in errors that embed the request URL.
func (c *Client) redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = c.redacted
	}
	return err
}

// Stats is a snapshot of the client's limiter and cache.
type Stats struct {
	Limiter ratelimit.Stats `json:"limiter"`
	Cache   cache.Stats     `json:"cache"`
}

// Stats returns limiter and cache counters.
func (c *Client) Stats(ctx context.Context) Stats {
	return Stats{
		Limiter: c.limiter.Stats(),
		Cache:   c.cache.Stats(ctx),
	}
}

// Close releases the cache.
func (c *Client) Close() error {
	return c.cache.Close()
}
