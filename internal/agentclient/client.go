// Package agentclient is the host-side connector to a single guest agent:
// it establishes the framed transport over a Unix-domain socket (including
// the CONNECT/OK handshake), then issues correlated JSON-RPC calls with
// per-call deadlines.
package agentclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vmsandbox/orchestrator/internal/sandboxerr"
	"github.com/vmsandbox/orchestrator/internal/wire"
	"github.com/vmsandbox/orchestrator/pkg/types"
)

// GuestPort is the fixed vsock port the guest agent binds.
const GuestPort = 52

const (
	connectRetryInterval = 100 * time.Millisecond
	connectTimeout       = 10 * time.Second
	callTimeout          = 30 * time.Second
)

// Client is the host-side connector to one guest agent. It is meant to be
// exclusively owned by a single Sandbox; concurrent callers must serialize
// through a lock of their own.
type Client struct {
	conn        net.Conn
	reader      *bufio.Reader
	nextID      uint64
	callTimeout time.Duration
}

// Option adjusts a Client at dial time.
type Option func(*Client)

// WithCallTimeout overrides the default 30s per-call deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.callTimeout = d
	}
}

// Dial opens the Unix-domain socket at sockPath, retrying at 100ms
// intervals for up to 10s to absorb VM boot time, then performs the
// CONNECT/OK handshake against GuestPort.
func Dial(ctx context.Context, sockPath string, opts ...Option) (*Client, error) {
	deadline := time.Now().Add(connectTimeout)

	var lastErr error
	for {
		if time.Now().After(deadline) {
			return nil, sandboxerr.Wrap(sandboxerr.KindConnection, "agent connect timeout", lastErr)
		}

		client, err := tryConnect(ctx, sockPath)
		if err == nil {
			for _, opt := range opts {
				opt(client)
			}
			return client, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, sandboxerr.Wrap(sandboxerr.KindConnection, "agent connect canceled", ctx.Err())
		case <-time.After(connectRetryInterval):
		}
	}
}

func tryConnect(ctx context.Context, sockPath string) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, connectRetryInterval*5)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "unix", sockPath)
	if err != nil {
		return nil, err
	}

	if _, err := fmt.Fprintf(conn, "CONNECT %d\n", GuestPort); err != nil {
		conn.Close()
		return nil, err
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, err
	}
	if !strings.HasPrefix(line, "OK ") {
		conn.Close()
		return nil, fmt.Errorf("handshake failed: %s", strings.TrimSpace(line))
	}

	return &Client{conn: conn, reader: reader, callTimeout: callTimeout}, nil
}

// Close closes the underlying socket.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call issues one JSON-RPC request and waits for the matching response, with
// the per-call deadline measured from just after send to response receipt.
// IDs are monotonically increasing and the caller is trusted to serialize
// concurrent calls (the agent itself processes a connection serially).
func (c *Client) call(method string, params any) (wire.Response, error) {
	id := atomic.AddUint64(&c.nextID, 1)

	req, err := wire.NewRequest(id, method, params)
	if err != nil {
		return wire.Response{}, sandboxerr.Wrap(sandboxerr.KindRPC, "marshal request", err)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return wire.Response{}, sandboxerr.Wrap(sandboxerr.KindRPC, "marshal request", err)
	}

	if err := c.conn.SetDeadline(time.Now().Add(c.callTimeout)); err != nil {
		return wire.Response{}, sandboxerr.Wrap(sandboxerr.KindRPC, "set deadline", err)
	}
	defer c.conn.SetDeadline(time.Time{})

	if _, err := c.conn.Write(append(payload, '\n')); err != nil {
		return wire.Response{}, sandboxerr.Wrap(sandboxerr.KindRPC, "write request", err)
	}

	respLine, err := c.reader.ReadString('\n')
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return wire.Response{}, sandboxerr.RPC(-1, "response timeout")
		}
		return wire.Response{}, sandboxerr.Wrap(sandboxerr.KindRPC, "read response", err)
	}

	var resp wire.Response
	if err := json.Unmarshal([]byte(strings.TrimSpace(respLine)), &resp); err != nil {
		return wire.Response{}, sandboxerr.Wrap(sandboxerr.KindRPC, "unmarshal response", err)
	}

	// An error object takes precedence over a result; a response with
	// neither is rejected.
	if resp.Error != nil {
		return resp, sandboxerr.RPC(resp.Error.Code, resp.Error.Message)
	}
	if resp.Result == nil {
		return resp, sandboxerr.RPC(-1, "missing result in response")
	}
	return resp, nil
}

// Ping issues the ping method.
func (c *Client) Ping() (bool, error) {
	resp, err := c.call(wire.MethodPing, struct{}{})
	if err != nil {
		return false, err
	}
	var result wire.PingResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return false, sandboxerr.Wrap(sandboxerr.KindRPC, "decode ping result", err)
	}
	return result.Pong, nil
}

// Exec runs cmd via the default shell interpreter inside the guest.
func (c *Client) Exec(cmd string) (types.ExecResult, error) {
	return c.exec(wire.MethodExec, wire.ExecParams{Cmd: cmd})
}

// ExecCode runs code through the interpreter selected by lang.
func (c *Client) ExecCode(lang, code string) (types.ExecResult, error) {
	return c.exec(wire.MethodExecCode, wire.ExecParams{Lang: lang, Code: code})
}

func (c *Client) exec(method string, params wire.ExecParams) (types.ExecResult, error) {
	resp, err := c.call(method, params)
	if err != nil {
		return types.ExecResult{}, err
	}
	var result types.ExecResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return types.ExecResult{}, sandboxerr.Wrap(sandboxerr.KindRPC, "decode exec result", err)
	}
	return result, nil
}

// ReadFile reads path inside the guest.
func (c *Client) ReadFile(path string) (string, error) {
	resp, err := c.call(wire.MethodReadFile, wire.PathParams{Path: path})
	if err != nil {
		return "", err
	}
	var result wire.ReadFileResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return "", sandboxerr.Wrap(sandboxerr.KindRPC, "decode read_file result", err)
	}
	return result.Content, nil
}

// WriteFile writes content to path inside the guest, creating parent
// directories as needed.
func (c *Client) WriteFile(path, content string) error {
	resp, err := c.call(wire.MethodWriteFile, wire.WriteFileParams{Path: path, Content: content})
	if err != nil {
		return err
	}
	var result wire.WriteFileResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return sandboxerr.Wrap(sandboxerr.KindRPC, "decode write_file result", err)
	}
	return nil
}

// ListDir lists the entries of path inside the guest, sorted by name.
func (c *Client) ListDir(path string) ([]types.FileEntry, error) {
	resp, err := c.call(wire.MethodListDir, wire.PathParams{Path: path})
	if err != nil {
		return nil, err
	}
	var result wire.ListDirResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, sandboxerr.Wrap(sandboxerr.KindRPC, "decode list_dir result", err)
	}
	entries := make([]types.FileEntry, len(result.Entries))
	for i, e := range result.Entries {
		entries[i] = types.FileEntry{Name: e.Name, IsDir: e.IsDir, Size: e.Size}
	}
	return entries, nil
}
