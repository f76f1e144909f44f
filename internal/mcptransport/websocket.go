package mcptransport

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketConfig describes a full-duplex MCP transport.
type WebSocketConfig struct {
	URL     string
	Headers map[string]string
}

type WebSocketTransport struct {
	cfg WebSocketConfig

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	writeMu   sync.Mutex
}

func NewWebSocketTransport(cfg WebSocketConfig) *WebSocketTransport {
	return &WebSocketTransport{cfg: cfg}
}

func (t *WebSocketTransport) Connect(ctx context.Context, onMessage MessageHandler) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	header := http.Header{}
	for k, v := range t.cfg.Headers {
		header.Set(k, v)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.cfg.URL, header)
	if err != nil {
		return &TransportError{Transport: "websocket", Err: err}
	}

	t.mu.Lock()
	t.conn = conn
	t.connected = true
	t.mu.Unlock()

	go t.readLoop(conn, onMessage)

	return nil
}

func (t *WebSocketTransport) readLoop(conn *websocket.Conn, onMessage MessageHandler) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			t.connected = false
			t.mu.Unlock()
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if onMessage != nil {
			onMessage(data)
		}
	}
}

func (t *WebSocketTransport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	conn := t.conn
	connected := t.connected
	t.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &TransportError{Transport: "websocket", Err: err}
	}
	return nil
}

func (t *WebSocketTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *WebSocketTransport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	conn := t.conn
	t.connected = false
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return conn.Close()
}
