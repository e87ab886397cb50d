package seoapi

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Response is the outcome of a successful call. It must not be modified after
// it is returned.
type Response struct {
	// Result is the raw "result" member of the API reply
	Result json.RawMessage `json:"result"`

	// Method is the API method that produced the result
	Method string `json:"method"`

	// RequestParams are the params the call was made with (never nil)
	RequestParams map[string]any `json:"request_params"`

	// Timestamp is when this response was retrieved, from the API or the cache
	Timestamp time.Time `json:"timestamp"`

	// Cached reports whether the result came from the response cache
	Cached bool `json:"cached"`
}

func newResponse(method string, params map[string]any, result json.RawMessage, at time.Time, cached bool) *Response {
	return &Response{
		Result:        result,
		Method:        method,
		RequestParams: maps.Clone(params),
		Timestamp:     at,
		Cached:        cached,
	}
}

// TimestampMillis returns the retrieval time in epoch milliseconds.
func (r *Response) TimestampMillis() int64 {
	return r.Timestamp.UnixMilli()
}

// Decode unmarshals the result into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Result, v); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", r.Method, err)
	}
	return nil
}

// RemoteError is returned for every failed call: a non-2xx status, an error
// member in the reply body, an unusable reply, or a transport fault.
type RemoteError struct {
	// Method is the API method that was called
	Method string

	// StatusCode is the HTTP status, or 0 if no response was received
	StatusCode int

	// Code is the body-level error code, if the API supplied one
	Code int

	// Message describes the failure; for body-level errors it is the API's message
	Message string

	// Body is the raw response body for status and decode failures
	Body string

	// Err is the underlying cause for transport and decode failures
	Err error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message == "" && e.StatusCode != 0:
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
	default:
		return e.Message
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// HTTPStatusError reports whether the failure was a non-2xx HTTP status.
func (e *RemoteError) HTTPStatusError() bool {
	return e.Message == "" && e.StatusCode != 0 && (e.StatusCode < 200 || e.StatusCode > 299)
}
