// Package mcpclient implements the MCP client: request/response correlation
// over a transport, the initialize handshake, and caches for tools,
// resources, and prompts (§4.3).
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskd/taskd/internal/jsonrpc"
	"github.com/taskd/taskd/internal/mcptransport"
)

const ProtocolVersion = "2024-11-05"

// ClientError is raised for any MCP protocol-level failure: a decoded
// error response, a transport failure, or a timeout (§7 ClientError).
type ClientError struct {
	Method string
	Err    error
}

func (e *ClientError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("mcp client error (%s): %v", e.Method, e.Err)
	}
	return fmt.Sprintf("mcp client error: %v", e.Err)
}

func (e *ClientError) Unwrap() error { return e.Err }

// Tool, Resource, and Prompt mirror the MCP tools/list, resources/list, and
// prompts/list result shapes.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

type Prompt struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ContentItem is one element of an MCP tool-call or resource-read result.
type ContentItem struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Data     string          `json:"data,omitempty"`
	MimeType string          `json:"mimeType,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// ServerInfo is the server's self-reported identity from initialize.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string          `json:"protocolVersion"`
	ServerInfo      ServerInfo      `json:"serverInfo"`
	Capabilities    json.RawMessage `json:"capabilities"`
}

type toolsListResult struct {
	Tools []Tool `json:"tools"`
}

type resourcesListResult struct {
	Resources []Resource `json:"resources"`
}

type promptsListResult struct {
	Prompts []Prompt `json:"prompts"`
}

type toolCallResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type resourceReadResult struct {
	Contents []ContentItem `json:"contents"`
}

type promptGetResult struct {
	Description string `json:"description,omitempty"`
	Messages    []struct {
		Role    string      `json:"role"`
		Content ContentItem `json:"content"`
	} `json:"messages"`
}

// Client wraps one transport, handling request/response correlation and the
// initialize handshake.
type Client struct {
	transport mcptransport.Transport
	timeout   time.Duration

	mu          sync.Mutex
	pending     map[string]chan *jsonrpc.Response
	initialized bool
	protocolVer string
	serverInfo  ServerInfo

	cacheMu   sync.Mutex
	tools     []Tool
	toolsSet  bool
	resources []Resource
	resSet    bool
	prompts   []Prompt
	promptSet bool
}

// New constructs a Client bound to transport. requestTimeout defaults to 30s.
func New(transport mcptransport.Transport, requestTimeout time.Duration) *Client {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	c := &Client{
		transport: transport,
		timeout:   requestTimeout,
		pending:   make(map[string]chan *jsonrpc.Response),
	}
	return c
}

// Connect opens the transport and performs the initialize handshake.
func (c *Client) Connect(ctx context.Context, clientName, clientVersion string) error {
	if err := c.transport.Connect(ctx, c.handleMessage); err != nil {
		return err
	}

	params, _ := json.Marshal(map[string]any{
		"protocolVersion": ProtocolVersion,
		"clientInfo":      map[string]string{"name": clientName, "version": clientVersion},
		"capabilities": map[string]any{
			"roots":    map[string]any{"listChanged": true},
			"sampling": map[string]any{},
		},
	})

	result, err := c.sendRequest(ctx, "initialize", params)
	if err != nil {
		return err
	}

	var initRes initializeResult
	if err := json.Unmarshal(result, &initRes); err != nil {
		return &ClientError{Method: "initialize", Err: err}
	}

	c.mu.Lock()
	c.protocolVer = initRes.ProtocolVersion
	c.serverInfo = initRes.ServerInfo
	c.mu.Unlock()

	if err := c.sendNotification(ctx, "notifications/initialized", nil); err != nil {
		return err
	}

	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()

	return nil
}

func (c *Client) Disconnect(ctx context.Context) error {
	c.InvalidateCache()
	c.mu.Lock()
	c.initialized = false
	c.mu.Unlock()
	return c.transport.Disconnect(ctx)
}

func (c *Client) IsConnected() bool { return c.transport.IsConnected() }

func (c *Client) IsInitialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

func (c *Client) ProtocolVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.protocolVer
}

func (c *Client) ServerInfo() ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo
}

// InvalidateCache clears the tools/resources/prompts caches (called on disconnect).
func (c *Client) InvalidateCache() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.tools, c.toolsSet = nil, false
	c.resources, c.resSet = nil, false
	c.prompts, c.promptSet = nil, false
}

func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	c.cacheMu.Lock()
	if c.toolsSet {
		defer c.cacheMu.Unlock()
		return c.tools, nil
	}
	c.cacheMu.Unlock()

	result, err := c.sendRequest(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var res toolsListResult
	if err := json.Unmarshal(result, &res); err != nil {
		return nil, &ClientError{Method: "tools/list", Err: err}
	}

	c.cacheMu.Lock()
	c.tools, c.toolsSet = res.Tools, true
	c.cacheMu.Unlock()
	return res.Tools, nil
}

func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) ([]ContentItem, bool, error) {
	params, _ := json.Marshal(map[string]any{"name": name, "arguments": arguments})
	result, err := c.sendRequest(ctx, "tools/call", params)
	if err != nil {
		return nil, false, err
	}
	var res toolCallResult
	if err := json.Unmarshal(result, &res); err != nil {
		return nil, false, &ClientError{Method: "tools/call", Err: err}
	}
	return res.Content, res.IsError, nil
}

func (c *Client) ListResources(ctx context.Context) ([]Resource, error) {
	c.cacheMu.Lock()
	if c.resSet {
		defer c.cacheMu.Unlock()
		return c.resources, nil
	}
	c.cacheMu.Unlock()

	result, err := c.sendRequest(ctx, "resources/list", nil)
	if err != nil {
		return nil, err
	}
	var res resourcesListResult
	if err := json.Unmarshal(result, &res); err != nil {
		return nil, &ClientError{Method: "resources/list", Err: err}
	}

	c.cacheMu.Lock()
	c.resources, c.resSet = res.Resources, true
	c.cacheMu.Unlock()
	return res.Resources, nil
}

func (c *Client) ReadResource(ctx context.Context, uri string) ([]ContentItem, error) {
	params, _ := json.Marshal(map[string]any{"uri": uri})
	result, err := c.sendRequest(ctx, "resources/read", params)
	if err != nil {
		return nil, err
	}
	var res resourceReadResult
	if err := json.Unmarshal(result, &res); err != nil {
		return nil, &ClientError{Method: "resources/read", Err: err}
	}
	return res.Contents, nil
}

func (c *Client) ListPrompts(ctx context.Context) ([]Prompt, error) {
	c.cacheMu.Lock()
	if c.promptSet {
		defer c.cacheMu.Unlock()
		return c.prompts, nil
	}
	c.cacheMu.Unlock()

	result, err := c.sendRequest(ctx, "prompts/list", nil)
	if err != nil {
		return nil, err
	}
	var res promptsListResult
	if err := json.Unmarshal(result, &res); err != nil {
		return nil, &ClientError{Method: "prompts/list", Err: err}
	}

	c.cacheMu.Lock()
	c.prompts, c.promptSet = res.Prompts, true
	c.cacheMu.Unlock()
	return res.Prompts, nil
}

func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]any) (*promptGetResult, error) {
	params, _ := json.Marshal(map[string]any{"name": name, "arguments": arguments})
	result, err := c.sendRequest(ctx, "prompts/get", params)
	if err != nil {
		return nil, err
	}
	var res promptGetResult
	if err := json.Unmarshal(result, &res); err != nil {
		return nil, &ClientError{Method: "prompts/get", Err: err}
	}
	return &res, nil
}

// sendRequest registers a pending future, sends the request, and awaits the
// matching response with c.timeout, removing the entry on completion or timeout.
func (c *Client) sendRequest(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	id := uuid.NewString()
	ch := make(chan *jsonrpc.Response, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	data, err := jsonrpc.Encode(jsonrpc.NewRequest(id, method, params))
	if err != nil {
		return nil, &ClientError{Method: method, Err: err}
	}

	if err := c.transport.Send(ctx, data); err != nil {
		return nil, &ClientError{Method: method, Err: err}
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, &ClientError{Method: method, Err: resp.Error}
		}
		return resp.Result, nil
	case <-time.After(c.timeout):
		return nil, &ClientError{Method: method, Err: fmt.Errorf("Request timeout: %s", method)}
	case <-ctx.Done():
		return nil, &ClientError{Method: method, Err: ctx.Err()}
	}
}

func (c *Client) sendNotification(ctx context.Context, method string, params json.RawMessage) error {
	data, err := jsonrpc.Encode(jsonrpc.NewNotification(method, params))
	if err != nil {
		return &ClientError{Method: method, Err: err}
	}
	if err := c.transport.Send(ctx, data); err != nil {
		return &ClientError{Method: method, Err: err}
	}
	return nil
}

// handleMessage is the transport's inbound-message callback; only decoded
// Responses are routed (requests/notifications from the server are not part
// of the client-side surface this spec covers).
func (c *Client) handleMessage(data []byte) {
	kind, msg, err := jsonrpc.Decode(data)
	if err != nil || kind != jsonrpc.KindResponse {
		return
	}
	resp := msg.(*jsonrpc.Response)

	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	c.mu.Unlock()
	if ok {
		ch <- resp
	}
}
