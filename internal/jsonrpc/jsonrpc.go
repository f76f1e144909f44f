// Package jsonrpc implements JSON-RPC 2.0 message encoding and decoding for
// the MCP transports and client.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

const Version = "2.0"

// Predefined error codes (JSON-RPC 2.0 spec + MCP usage).
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is an outbound or inbound call expecting a Response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Notification carries no id and expects no response.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Error is the JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Response carries either Result or Error, never both.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Kind identifies which message variant a decoded envelope represents.
type Kind int

const (
	KindUnknown Kind = iota
	KindRequest
	KindNotification
	KindResponse
)

// envelope is used only to sniff which fields are present before unmarshaling
// into a concrete variant.
type envelope struct {
	Method *string          `json:"method"`
	ID     *json.RawMessage `json:"id"`
	Result *json.RawMessage `json:"result"`
	Error  *Error           `json:"error"`
}

// NewRequest builds a Request with the JSON-RPC version field pre-filled.
func NewRequest(id, method string, params json.RawMessage) *Request {
	return &Request{JSONRPC: Version, ID: id, Method: method, Params: params}
}

// NewNotification builds a Notification with the JSON-RPC version field pre-filled.
func NewNotification(method string, params json.RawMessage) *Notification {
	return &Notification{JSONRPC: Version, Method: method, Params: params}
}

// NewResultResponse builds a success Response.
func NewResultResponse(id string, result json.RawMessage) *Response {
	return &Response{JSONRPC: Version, ID: id, Result: result}
}

// NewErrorResponse builds a failure Response.
func NewErrorResponse(id string, code int, message string, data json.RawMessage) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: &Error{Code: code, Message: message, Data: data}}
}

// Encode serializes any of the three variants to UTF-8 JSON.
func Encode(msg any) ([]byte, error) {
	switch m := msg.(type) {
	case *Request:
		m.JSONRPC = Version
	case *Notification:
		m.JSONRPC = Version
	case *Response:
		m.JSONRPC = Version
	}
	return json.Marshal(msg)
}

// EncodeLine encodes msg and appends a trailing newline, for line-delimited
// stdio transport.
func EncodeLine(msg any) ([]byte, error) {
	b, err := Encode(msg)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Decode dispatches on which fields are present in the envelope:
// method+id -> Request, method+no-id -> Notification, no-method+id -> Response.
func Decode(data []byte) (Kind, any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return KindUnknown, nil, fmt.Errorf("jsonrpc: decode envelope: %w", err)
	}

	switch {
	case env.Method != nil && env.ID != nil:
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			return KindUnknown, nil, fmt.Errorf("jsonrpc: decode request: %w", err)
		}
		return KindRequest, &req, nil
	case env.Method != nil && env.ID == nil:
		var n Notification
		if err := json.Unmarshal(data, &n); err != nil {
			return KindUnknown, nil, fmt.Errorf("jsonrpc: decode notification: %w", err)
		}
		return KindNotification, &n, nil
	case env.Method == nil && env.ID != nil:
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			return KindUnknown, nil, fmt.Errorf("jsonrpc: decode response: %w", err)
		}
		return KindResponse, &resp, nil
	default:
		return KindUnknown, nil, fmt.Errorf("jsonrpc: message has neither method nor id")
	}
}
