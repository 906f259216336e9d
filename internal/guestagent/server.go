// Package guestagent implements the in-VM sandbox agent: a small server
// that accepts framed connections over the datagram channel, each served on
// its own goroutine, and serves the JSON-RPC surface described by internal/wire (ping, exec,
// exec_code, read_file, write_file, list_dir). It has no knowledge of
// vsock itself — cmd/guestagent supplies the net.Listener.
package guestagent

import (
	"net"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vmsandbox/orchestrator/internal/wire"
)

// GuestPort is the vsock port the agent binds inside the guest, accepting
// connections from any peer context-ID.
const GuestPort uint32 = 52

// Server accepts connections on a listener and dispatches framed JSON-RPC
// requests to the handlers in exec.go and filesystem.go.
type Server struct {
	log *logrus.Entry
}

// NewServer builds a Server ready to Serve.
func NewServer() *Server {
	return &Server{log: logrus.WithField("component", "guestagent")}
}

// Serve accepts connections from lis until it is closed or returns an
// error. Each connection is served in its own goroutine; the agent never
// closes a connection proactively, only the peer's EOF ends it.
func (s *Server) Serve(lis net.Listener) error {
	for {
		conn, err := lis.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// handleConn serves one connection: an optional CONNECT handshake line,
// then a sequential read-dispatch-write loop until EOF.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	reader := wire.NewFrameReader(conn)
	writer := wire.NewFrameWriter(conn)

	first, err := reader.ReadLine()
	if err != nil {
		return
	}
	if port, ok := parseConnect(first); ok {
		if werr := writer.WriteLine("OK " + strconv.FormatUint(uint64(port), 10)); werr != nil {
			return
		}
	} else if strings.TrimSpace(first) != "" {
		if !s.dispatchLine(first, writer) {
			return
		}
	}

	for {
		line, err := reader.ReadLine()
		if err != nil {
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !s.dispatchLine(line, writer) {
			return
		}
	}
}

// parseConnect recognizes the "CONNECT <port>\n" handshake line used by
// hypervisor-side vsock proxies.
func parseConnect(line string) (uint32, bool) {
	trimmed := strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(trimmed, "CONNECT ")
	if !ok {
		return 0, false
	}
	port, err := strconv.ParseUint(strings.TrimSpace(rest), 10, 32)
	if err != nil {
		return GuestPort, true
	}
	return uint32(port), true
}

// dispatchLine parses one request line, dispatches it, and writes the
// response. It returns false only when the response could not be written
// (connection broken), so the caller should stop serving.
func (s *Server) dispatchLine(line string, writer *wire.FrameWriter) bool {
	resp := s.handle(line)
	return writer.WriteJSON(resp) == nil
}

func (s *Server) handle(line string) wire.Response {
	req, err := wire.ParseRequest(line)
	if err != nil {
		s.log.WithError(err).Warn("parse error")
		return wire.Failure(0, wire.CodeParseError, "parse error: "+err.Error())
	}

	s.log.WithFields(logrus.Fields{"method": req.Method, "id": req.ID}).Debug("handling request")

	switch req.Method {
	case wire.MethodPing:
		return wire.Success(req.ID, wire.PingResult{Pong: true})
	case wire.MethodExec:
		return s.handleExec(req)
	case wire.MethodExecCode:
		return s.handleExecCode(req)
	case wire.MethodReadFile:
		return s.handleReadFile(req)
	case wire.MethodWriteFile:
		return s.handleWriteFile(req)
	case wire.MethodListDir:
		return s.handleListDir(req)
	default:
		s.log.WithField("method", req.Method).Warn("method not found")
		return wire.Failure(req.ID, wire.CodeMethodNotFound, "method not found: "+req.Method)
	}
}
