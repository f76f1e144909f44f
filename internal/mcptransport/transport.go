// Package mcptransport implements the three wire transports the MCP client
// can speak: subprocess stdio, HTTP request/response, and WebSocket duplex.
package mcptransport

import (
	"context"
	"errors"
	"fmt"
)

// TransportError wraps any I/O failure from a transport (§7 TransportError).
type TransportError struct {
	Transport string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mcp transport %s: %v", e.Transport, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrNotConnected is returned by Send/Receive when the transport has not
// been connected, or has been disconnected.
var ErrNotConnected = errors.New("transport not connected")

// MessageHandler is invoked by the background reader for every inbound
// message (once Connect has started the reader loop).
type MessageHandler func(data []byte)

// Transport is the uniform surface the MCP client drives. connect/disconnect
// are idempotent; Send/Receive operate on raw JSON-RPC encoded bytes (without
// a trailing newline — framing is transport-internal).
type Transport interface {
	Connect(ctx context.Context, onMessage MessageHandler) error
	Disconnect(ctx context.Context) error
	Send(ctx context.Context, data []byte) error
	IsConnected() bool
}
