package mcptransport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"
)

// HTTPConfig describes an HTTP MCP transport: one POST per outbound message,
// the synchronous response body is the paired inbound message.
type HTTPConfig struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration // must be >= 60s per §4.2
}

type HTTPTransport struct {
	cfg    HTTPConfig
	client *http.Client

	mu        sync.Mutex
	connected bool
	onMessage MessageHandler
}

func NewHTTPTransport(cfg HTTPConfig) *HTTPTransport {
	if cfg.Timeout < 60*time.Second {
		cfg.Timeout = 60 * time.Second
	}
	return &HTTPTransport{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (t *HTTPTransport) Connect(ctx context.Context, onMessage MessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	// HTTP is request/response: "connect" only marks the transport usable.
	// onMessage is invoked synchronously from Send for each response.
	t.onMessage = onMessage
	t.connected = true
	return nil
}

func (t *HTTPTransport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	return nil
}

func (t *HTTPTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *HTTPTransport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	connected := t.connected
	onMessage := t.onMessage
	t.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return &TransportError{Transport: "http", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return &TransportError{Transport: "http", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Transport: "http", Err: err}
	}

	// Notifications get a (possibly empty) response that carries no paired
	// message; an empty body means there is nothing to dispatch.
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if onMessage != nil {
		onMessage(body)
	}
	return nil
}
