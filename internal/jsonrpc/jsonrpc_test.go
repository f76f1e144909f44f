package jsonrpc

import (
	"encoding/json"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	req := NewRequest("abc-1", "tools/list", json.RawMessage(`{"foo":1}`))
	data, err := Encode(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	kind, msg, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if kind != KindRequest {
		t.Fatalf("kind = %v, want KindRequest", kind)
	}
	got := msg.(*Request)
	if got.ID != req.ID || got.Method != req.Method {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, req)
	}
}

func TestDecodeNotification(t *testing.T) {
	n := NewNotification("notifications/initialized", nil)
	data, err := Encode(n)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	kind, _, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if kind != KindNotification {
		t.Fatalf("kind = %v, want KindNotification", kind)
	}
}

func TestDecodeResponseWithError(t *testing.T) {
	resp := NewErrorResponse("id-2", CodeMethodNotFound, "not found", nil)
	data, err := Encode(resp)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	kind, msg, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if kind != KindResponse {
		t.Fatalf("kind = %v, want KindResponse", kind)
	}
	got := msg.(*Response)
	if got.Error == nil || got.Error.Code != CodeMethodNotFound {
		t.Fatalf("error = %+v, want code %d", got.Error, CodeMethodNotFound)
	}
}

func TestEncodeLineAppendsNewline(t *testing.T) {
	n := NewNotification("ping", nil)
	data, err := EncodeLine(n)
	if err != nil {
		t.Fatalf("encode line: %v", err)
	}
	if data[len(data)-1] != '\n' {
		t.Fatalf("expected trailing newline")
	}
}

func TestDecodeMalformedMessage(t *testing.T) {
	if _, _, err := Decode([]byte(`{"jsonrpc":"2.0"}`)); err == nil {
		t.Fatal("expected error for message without method or id")
	}
}
