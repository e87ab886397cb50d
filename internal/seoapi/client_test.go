package seoapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akshayaggarwal99/seobridge/internal/cache"
	"github.com/akshayaggarwal99/seobridge/internal/cache/memory"
	"github.com/akshayaggarwal99/seobridge/internal/ratelimit"
	"github.com/akshayaggarwal99/seobridge/internal/seoapi/seoapitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "s3cret-token"

func newTestClient(t *testing.T, srv *seoapitest.Server, opts ...Option) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: srv.Endpoint(), Token: testToken}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func newServer(t *testing.T) *seoapitest.Server {
	t.Helper()
	srv := seoapitest.New(testToken)
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = New(Config{Token: "t", BaseURL: "ftp://example.com"})
	assert.Error(t, err)

	c, err := New(Config{Token: "t"})
	require.NoError(t, err)
	defer c.Close()
	assert.True(t, strings.HasPrefix(c.endpoint, DefaultBaseURL+"?"))
	assert.Contains(t, c.redacted, "token=REDACTED")
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
}

func TestCall_SecondIdenticalCallServedFromCache(t *testing.T) {
	srv := newServer(t)
	srv.Handle("m.get", seoapitest.Sequence(
		seoapitest.Result(map[string]any{"x": 1}),
	))
	c := newTestClient(t, srv)
	ctx := context.Background()

	var out struct {
		X int `json:"x"`
	}

	first, err := c.Call(ctx, "m.get", map[string]any{"domain": "a.com"})
	require.NoError(t, err)
	require.NoError(t, first.Decode(&out))
	assert.Equal(t, 1, out.X)
	assert.False(t, first.Cached)

	second, err := c.Call(ctx, "m.get", map[string]any{"domain": "a.com"})
	require.NoError(t, err)
	out.X = 0
	require.NoError(t, second.Decode(&out))
	assert.Equal(t, 1, out.X)
	assert.True(t, second.Cached)

	assert.Equal(t, 1, srv.CallCount("m.get"))
	assert.JSONEq(t, string(first.Result), string(second.Result))
}

func TestCall_CacheHitSkipsLimiter(t *testing.T) {
	srv := newServer(t)
	srv.Handle("m.get", seoapitest.Result(map[string]any{"x": 1}))

	limiter := ratelimit.New(1, time.Hour)
	c := newTestClient(t, srv, WithLimiter(limiter))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := c.Call(ctx, "m.get", nil)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), limiter.Stats().Admitted)
	assert.Equal(t, int64(0), limiter.Stats().Throttled)
}

func TestCall_CacheHitTimestampIsCurrent(t *testing.T) {
	srv := newServer(t)
	srv.Handle("m.get", seoapitest.Result(map[string]any{"x": 1}))
	c := newTestClient(t, srv)

	t1 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(5 * time.Minute)
	clock := t1
	c.now = func() time.Time { return clock }

	first, err := c.Call(context.Background(), "m.get", nil)
	require.NoError(t, err)
	assert.Equal(t, t1, first.Timestamp)

	clock = t2
	second, err := c.Call(context.Background(), "m.get", nil)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, t2, second.Timestamp)
	assert.Equal(t, t2.UnixMilli(), second.TimestampMillis())
}

func TestCall_RateLimitDelaysBurst(t *testing.T) {
	srv := newServer(t)
	srv.Handle("m.get", seoapitest.Result(map[string]any{"ok": true}))
	c := newTestClient(t, srv, WithLimiter(ratelimit.New(2, time.Second)))

	start := time.Now()
	for _, d := range []string{"a.com", "b.com", "c.com"} {
		_, err := c.Call(context.Background(), "m.get", map[string]any{"domain": d})
		require.NoError(t, err)
	}

	assert.GreaterOrEqual(t, time.Since(start), time.Second)
	assert.Equal(t, 3, srv.CallCount("m.get"))
}

func TestCall_HTTPStatusFailure(t *testing.T) {
	srv := newServer(t)
	srv.Handle("m.get", seoapitest.Status(http.StatusInternalServerError, "boom"))
	rc, err := memory.New(cache.Config{})
	require.NoError(t, err)
	c := newTestClient(t, srv, WithCache(rc))
	ctx := context.Background()

	_, err = c.Call(ctx, "m.get", map[string]any{"domain": "a.com"})
	require.Error(t, err)

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusInternalServerError, remote.StatusCode)
	assert.True(t, remote.HTTPStatusError())
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "boom")

	sig, err := cache.NewSignature("m.get", map[string]any{"domain": "a.com"})
	require.NoError(t, err)
	_, ok := rc.Get(ctx, sig)
	assert.False(t, ok)

	_, err = c.Call(ctx, "m.get", map[string]any{"domain": "a.com"})
	require.Error(t, err)
	assert.Equal(t, 2, srv.CallCount("m.get"))
}

func TestCall_BodyLevelError(t *testing.T) {
	srv := newServer(t)
	srv.Handle("m.get", seoapitest.Error("bad token"))
	c := newTestClient(t, srv)

	_, err := c.Call(context.Background(), "m.get", nil)
	require.Error(t, err)

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "bad token", remote.Message)
	assert.Equal(t, http.StatusOK, remote.StatusCode)
	assert.False(t, remote.HTTPStatusError())
	assert.Equal(t, "bad token", err.Error())
}

func TestCall_StringErrorMember(t *testing.T) {
	srv := newServer(t)
	srv.Handle("m.get", seoapitest.Raw(`{"id":1,"error":"quota exceeded"}`))
	c := newTestClient(t, srv)

	_, err := c.Call(context.Background(), "m.get", nil)
	require.Error(t, err)
	assert.Equal(t, "quota exceeded", err.Error())
}

func TestCall_ErrorWithoutMessageUsesCode(t *testing.T) {
	srv := newServer(t)
	srv.Handle("m.get", seoapitest.Raw(`{"id":1,"error":{"code":32018}}`))
	c := newTestClient(t, srv)

	_, err := c.Call(context.Background(), "m.get", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32018")
}

func TestCall_UnusableReplies(t *testing.T) {
	cases := map[string]string{
		"not json":       `<html>gateway</html>`,
		"missing result": `{"id":1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newServer(t)
			srv.Handle("m.get", seoapitest.Raw(body))
			c := newTestClient(t, srv)

			_, err := c.Call(context.Background(), "m.get", nil)
			var remote *RemoteError
			require.True(t, errors.As(err, &remote))
			assert.Equal(t, body, remote.Body)
		})
	}
}

func TestCall_UnknownMethodIsRemoteError(t *testing.T) {
	srv := newServer(t)
	c := newTestClient(t, srv)

	_, err := c.Call(context.Background(), "m.missing", nil)
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Contains(t, remote.Message, "method not found")
}

func TestCall_WrongTokenIsHTTPFailure(t *testing.T) {
	srv := newServer(t)
	srv.Handle("m.get", seoapitest.Result(1))

	c, err := New(Config{BaseURL: srv.Endpoint(), Token: "wrong"})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Call(context.Background(), "m.get", nil)
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusUnauthorized, remote.StatusCode)
	assert.Equal(t, 0, srv.CallCount("m.get"))
}

func TestCall_WireFormat(t *testing.T) {
	srv := newServer(t)
	srv.Handle("m.get", seoapitest.Result(map[string]any{"ok": true}))
	c := newTestClient(t, srv)

	_, err := c.Call(context.Background(), "m.get", map[string]any{"domain": "a.com", "page": 2})
	require.NoError(t, err)

	calls := srv.Calls()
	require.Len(t, calls, 1)
	call := calls[0]

	assert.Equal(t, testToken, call.Query.Get("token"))
	assert.Equal(t, "application/json; charset=UTF-8", call.Header.Get("Content-Type"))
	assert.Equal(t, "application/json; charset=UTF-8", call.Header.Get("Accept"))
	assert.Equal(t, DefaultUserAgent, call.Header.Get("User-Agent"))
	assert.JSONEq(t, `{"id":1,"method":"m.get","params":{"domain":"a.com","page":2}}`, string(call.Body))
}

func TestCall_NilParamsEqualsEmptyParams(t *testing.T) {
	srv := newServer(t)
	srv.Handle("m.get", seoapitest.Result(map[string]any{"ok": true}))

	a := newTestClient(t, srv)
	b := newTestClient(t, srv)

	resp, err := a.Call(context.Background(), "m.get", nil)
	require.NoError(t, err)
	assert.NotNil(t, resp.RequestParams)

	_, err = b.Call(context.Background(), "m.get", map[string]any{})
	require.NoError(t, err)

	calls := srv.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, string(calls[0].Body), string(calls[1].Body))
	assert.Contains(t, string(calls[0].Body), `"params":{}`)

	// Same client: the second form hits the cache entry of the first.
	_, err = a.Call(context.Background(), "m.get", map[string]any{})
	require.NoError(t, err)
	assert.Len(t, srv.Calls(), 2)
}

func TestCall_NonASCIIRoundTrip(t *testing.T) {
	srv := newServer(t)
	srv.Handle("m.get", func(call seoapitest.Call) seoapitest.Reply {
		return seoapitest.Result(map[string]any{"echo": call.Params["keyword"]})(call)
	})
	c := newTestClient(t, srv)

	keyword := "café & 日本語 <b>"
	resp, err := c.Call(context.Background(), "m.get", map[string]any{"keyword": keyword})
	require.NoError(t, err)

	var out struct {
		Echo string `json:"echo"`
	}
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, keyword, out.Echo)
	assert.Contains(t, string(srv.Calls()[0].Body), keyword)
}

func TestCall_TransportFailureHidesToken(t *testing.T) {
	srv := newServer(t)
	endpoint := srv.Endpoint()
	srv.Close()

	c, err := New(Config{BaseURL: endpoint, Token: testToken})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Call(context.Background(), "m.get", nil)
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Error(t, remote.Err)
	assert.Equal(t, 0, remote.StatusCode)
	assert.NotContains(t, err.Error(), testToken)
}

func TestCall_Timeout(t *testing.T) {
	srv := newServer(t)
	srv.Handle("m.get", func(call seoapitest.Call) seoapitest.Reply {
		time.Sleep(300 * time.Millisecond)
		return seoapitest.Result(1)(call)
	})

	c, err := New(Config{BaseURL: srv.Endpoint(), Token: testToken, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Call(context.Background(), "m.get", nil)
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.NotContains(t, err.Error(), testToken)
}

func TestCall_CancelledContext(t *testing.T) {
	srv := newServer(t)
	srv.Handle("m.get", seoapitest.Result(1))
	c := newTestClient(t, srv, WithLimiter(ratelimit.New(1, time.Hour)))

	_, err := c.Call(context.Background(), "m.get", map[string]any{"n": 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The limiter absorbs the cancellation; the transport reports it.
	_, err = c.Call(ctx, "m.get", map[string]any{"n": 2})
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCall_ConcurrentCallersShareCache(t *testing.T) {
	srv := newServer(t)
	srv.Handle("m.get", seoapitest.Result(map[string]any{"ok": true}))
	c := newTestClient(t, srv, WithLimiter(ratelimit.New(100, time.Second)))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Call(context.Background(), "m.get", map[string]any{"n": i % 3})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 3; i++ {
		resp, err := c.Call(context.Background(), "m.get", map[string]any{"n": i})
		require.NoError(t, err)
		assert.True(t, resp.Cached)
	}

	s := c.Stats(context.Background())
	assert.Equal(t, s.Limiter.Admitted, int64(srv.CallCount("m.get")))
	assert.GreaterOrEqual(t, s.Cache.Hits, int64(3))
}

func TestResponse_RequestParamsAreACopy(t *testing.T) {
	srv := newServer(t)
	srv.Handle("m.get", seoapitest.Result(1))
	c := newTestClient(t, srv)

	params := map[string]any{"domain": "a.com"}
	resp, err := c.Call(context.Background(), "m.get", params)
	require.NoError(t, err)

	params["domain"] = "b.com"
	assert.Equal(t, "a.com", resp.RequestParams["domain"])
}
