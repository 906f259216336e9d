package guestagent

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/vmsandbox/orchestrator/internal/wire"
)

func TestHandlePing(t *testing.T) {
	s := NewServer()
	resp := s.handle(`{"jsonrpc":"2.0","id":1,"method":"ping","params":{}}`)

	if resp.ID != 1 {
		t.Fatalf("expected id 1, got %d", resp.ID)
	}
	if resp.Error != nil {
		t.Fatalf("expected no error, got %+v", resp.Error)
	}
	if string(resp.Result) != `{"pong":true}` {
		t.Fatalf("unexpected result: %s", resp.Result)
	}
}

func TestHandleMethodNotFound(t *testing.T) {
	s := NewServer()
	resp := s.handle(`{"jsonrpc":"2.0","id":2,"method":"bogus","params":{}}`)

	if resp.Error == nil || resp.Error.Code != wire.CodeMethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", resp.Error)
	}
	if resp.ID != 2 {
		t.Fatalf("expected id 2, got %d", resp.ID)
	}
}

func TestHandleParseErrorUsesIDZero(t *testing.T) {
	s := NewServer()
	resp := s.handle(`{not json`)

	if resp.Error == nil || resp.Error.Code != wire.CodeParseError {
		t.Fatalf("expected parse error, got %+v", resp.Error)
	}
	if resp.ID != 0 {
		t.Fatalf("expected id 0 on parse error, got %d", resp.ID)
	}
}

func TestHandleInvalidParams(t *testing.T) {
	s := NewServer()
	resp := s.handle(`{"jsonrpc":"2.0","id":3,"method":"exec","params":"not-an-object"}`)

	if resp.Error == nil || resp.Error.Code != wire.CodeInvalidParams {
		t.Fatalf("expected invalid-params, got %+v", resp.Error)
	}
}

func TestParseConnect(t *testing.T) {
	port, ok := parseConnect("CONNECT 52")
	if !ok || port != 52 {
		t.Fatalf("expected port 52, got %d ok=%v", port, ok)
	}
	if _, ok := parseConnect(`{"jsonrpc":"2.0"}`); ok {
		t.Fatal("JSON line must not parse as a handshake")
	}
	if _, ok := parseConnect(""); ok {
		t.Fatal("blank line must not parse as a handshake")
	}
}

// TestConnectionHandshakeThenRPC drives one connection end to end: the
// CONNECT handshake must be answered with OK before any JSON exchange.
func TestConnectionHandshakeThenRPC(t *testing.T) {
	s := NewServer()
	client, server := net.Pipe()
	defer client.Close()
	go s.handleConn(server)

	r := wire.NewFrameReader(client)
	w := wire.NewFrameWriter(client)

	if err := w.WriteLine("CONNECT 52"); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
	line, err := r.ReadLine()
	if err != nil {
		t.Fatalf("read handshake reply: %v", err)
	}
	if line != "OK 52" {
		t.Fatalf("expected OK 52, got %q", line)
	}

	if err := w.WriteLine(`{"jsonrpc":"2.0","id":1,"method":"ping","params":{}}`); err != nil {
		t.Fatalf("write request: %v", err)
	}
	line, err = r.ReadLine()
	if err != nil {
		t.Fatalf("read response: %v", err)
	}

	var resp wire.Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.ID != 1 || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

// TestConnectionFirstLineJSON covers peers that skip the handshake: a JSON
// first line is processed as the first request.
func TestConnectionFirstLineJSON(t *testing.T) {
	s := NewServer()
	client, server := net.Pipe()
	defer client.Close()
	go s.handleConn(server)

	w := wire.NewFrameWriter(client)
	r := wire.NewFrameReader(client)

	if err := w.WriteLine(`{"jsonrpc":"2.0","id":9,"method":"ping","params":{}}`); err != nil {
		t.Fatalf("write request: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := r.ReadLine()
	if err != nil {
		t.Fatalf("read response: %v", err)
	}

	var resp wire.Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.ID != 9 {
		t.Fatalf("expected id 9, got %d", resp.ID)
	}
}
