// Package proto defines the JSON-RPC message types exchanged with the SEO data API
// and the notification messages emitted towards the calling agent.
package proto

import "encoding/json"

// RequestID is the fixed envelope id. The API requires the field but every call
// is a single request/response exchange, so it is never used for correlation.
const RequestID = 1

// Request is the envelope POSTed to the API.
type Request struct {
	ID     int            `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// Response is the envelope returned by the API. Exactly one of Result or Error
// is expected on a 2xx reply.
type Response struct {
	ID     any             `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// RPCError is the body-level error object.
type RPCError struct {
	Code    int             `json:"code,omitempty"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Standard JSON-RPC 2.0 error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// UnmarshalJSON accepts both the object form and a bare error string.
func (e *RPCError) UnmarshalJSON(b []byte) error {
	var msg string
	if err := json.Unmarshal(b, &msg); err == nil {
		e.Message = msg
		return nil
	}
	type plain RPCError
	return json.Unmarshal(b, (*plain)(e))
}

// Notification is a JSON-RPC 2.0 notification (no id, no response expected).
type Notification struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
}

// MethodLogMessage is the MCP method used for log notifications.
const MethodLogMessage = "notifications/message"

// Log levels carried by log notifications.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// NewRequest creates a request envelope. A nil params map is sent as {}.
func NewRequest(method string, params map[string]any) *Request {
	if params == nil {
		params = map[string]any{}
	}
	return &Request{
		ID:     RequestID,
		Method: method,
		Params: params,
	}
}

// NewNotification creates a JSON-RPC 2.0 notification.
func NewNotification(method string, params map[string]any) *Notification {
	return &Notification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	}
}

// NewLogNotification creates an MCP log message notification.
func NewLogNotification(level, logger, data string) *Notification {
	return NewNotification(MethodLogMessage, map[string]any{
		"level":  level,
		"logger": logger,
		"data":   data,
	})
}

// ContentBlock is a single block of tool output.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the result shape handed back to the agent for a tool call.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// NewTextResult wraps text in a single-block tool result.
func NewTextResult(text string, isError bool) *ToolResult {
	return &ToolResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: isError,
	}
}
