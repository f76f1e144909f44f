package mcptransport

import (
	"context"
	"testing"
	"time"
)

// cat echoes stdin to stdout unmodified, letting us exercise the framing and
// reconnection logic without a real MCP server.
func TestStdioTransportEchoRoundTrip(t *testing.T) {
	transport := NewStdioTransport(StdioConfig{Command: "cat"})

	received := make(chan []byte, 1)
	err := transport.Connect(context.Background(), func(data []byte) {
		received <- data
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer transport.Disconnect(context.Background())

	if !transport.IsConnected() {
		t.Fatal("expected connected after Connect")
	}

	if err := transport.Send(context.Background(), []byte(`{"jsonrpc":"2.0","id":"1","method":"ping"}`)); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case data := <-received:
		if string(data) != `{"jsonrpc":"2.0","id":"1","method":"ping"}` {
			t.Fatalf("got %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed message")
	}
}

func TestStdioTransportFailsForMissingCommand(t *testing.T) {
	transport := NewStdioTransport(StdioConfig{Command: "this-binary-does-not-exist-xyz"})
	err := transport.Connect(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for missing command")
	}
}

func TestStdioTransportDisconnectIdempotent(t *testing.T) {
	transport := NewStdioTransport(StdioConfig{Command: "cat"})
	if err := transport.Connect(context.Background(), func([]byte) {}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := transport.Disconnect(context.Background()); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if err := transport.Disconnect(context.Background()); err != nil {
		t.Fatalf("second disconnect should be idempotent: %v", err)
	}
	if transport.IsConnected() {
		t.Fatal("expected disconnected")
	}
}
