// Package seoapitest provides an in-process fake of the SEO data API for tests.
//
// The fake speaks the same wire protocol as the real API: JSON-RPC envelopes
// POSTed to /v4 with the auth token in the "token" query parameter. Each API
// method is answered by a scripted Handler; every request is recorded so tests
// can assert on what reached the network.
package seoapitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"

	"github.com/akshayaggarwal99/seobridge/internal/proto"
	"github.com/labstack/echo/v4"
)

const contentType = "application/json; charset=UTF-8"

// Call is a request received by the fake.
type Call struct {
	Method string
	Params map[string]any
	Body   []byte
	Header http.Header
	Query  url.Values
}

// Reply is the raw HTTP answer to a call.
type Reply struct {
	Status int
	Body   string
}

// Handler answers one call.
type Handler func(call Call) Reply

// API is the fake's request handler. It can be served by any http.Server; New
// wraps it in an httptest.Server for tests.
type API struct {
	Token string

	echo     *echo.Echo
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Call
}

// NewAPI creates a fake API that accepts token.
func NewAPI(token string) *API {
	s := &API{
		Token:    token,
		handlers: make(map[string]Handler),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.POST("/v4", s.handleCall, s.authMiddleware)
	s.echo = e
	return s
}

// Echo returns the underlying echo instance, e.g. to Start and Shutdown it.
func (s *API) Echo() *echo.Echo {
	return s.echo
}

func (s *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Server is a running fake API.
type Server struct {
	*API
	*httptest.Server
}

// New starts a fake API that accepts token.
func New(token string) *Server {
	api := NewAPI(token)
	return &Server{API: api, Server: httptest.NewServer(api)}
}

// Endpoint returns the API endpoint (without the token).
func (s *Server) Endpoint() string {
	return s.Server.URL + "/v4"
}

// Handle scripts the answer for method.
func (s *API) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Calls returns every recorded call, in arrival order.
func (s *API) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many calls reached method.
func (s *API) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (s *API) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.QueryParam("token") != s.Token {
			return c.JSON(http.StatusUnauthorized, map[string]any{
				"error": map[string]any{"code": http.StatusUnauthorized, "message": "invalid or missing token"},
			})
		}
		return next(c)
	}
}

func (s *API) handleCall(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read body").SetInternal(err)
	}

	var req proto.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return c.Blob(http.StatusOK, contentType, errorBody(proto.ParseError, "parse error"))
	}

	call := Call{
		Method: req.Method,
		Params: req.Params,
		Body:   body,
		Header: c.Request().Header.Clone(),
		Query:  c.QueryParams(),
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	h, ok := s.handlers[req.Method]
	s.mu.Unlock()

	if !ok {
		return c.Blob(http.StatusOK, contentType, errorBody(proto.MethodNotFound, "method not found: "+req.Method))
	}

	reply := h(call)
	if reply.Status == 0 {
		reply.Status = http.StatusOK
	}
	return c.Blob(reply.Status, contentType, []byte(reply.Body))
}

func errorBody(code int, message string) []byte {
	b, _ := json.Marshal(map[string]any{
		"id":    proto.RequestID,
		"error": proto.RPCError{Code: code, Message: message},
	})
	return b
}

// Result answers every call with {"id":1,"result":v}.
func Result(v any) Handler {
	return func(Call) Reply {
		b, err := json.Marshal(map[string]any{"id": proto.RequestID, "result": v})
		if err != nil {
			return Reply{Status: http.StatusInternalServerError, Body: err.Error()}
		}
		return Reply{Body: string(b)}
	}
}

// Error answers every call with a body-level error and HTTP 200.
func Error(message string) Handler {
	return func(Call) Reply {
		return Reply{Body: string(errorBody(0, message))}
	}
}

// Status answers every call with the given status and raw body.
func Status(code int, body string) Handler {
	return func(Call) Reply {
		return Reply{Status: code, Body: body}
	}
}

// Raw answers every call with HTTP 200 and the given raw body.
func Raw(body string) Handler {
	return Status(http.StatusOK, body)
}

// Sequence answers the n-th call with the n-th handler. Calls beyond the
// scripted ones get HTTP 500.
func Sequence(handlers ...Handler) Handler {
	var mu sync.Mutex
	next := 0
	return func(call Call) Reply {
		mu.Lock()
		i := next
		next++
		mu.Unlock()
		if i >= len(handlers) {
			return Reply{Status: http.StatusInternalServerError, Body: fmt.Sprintf("unexpected call #%d", i+1)}
		}
		return handlers[i](call)
	}
}
