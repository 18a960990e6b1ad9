// Package coordtest runs throwaway line-protocol peers for tests.
package coordtest

import (
	"bufio"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/danmuck/darrayctl/internal/protocol"
)

// Handler maps one decoded request to the reply line, without terminator.
type Handler func(env protocol.Envelope) string

// ConnHandler takes over a raw accepted connection. The server closes the
// connection after it returns.
type ConnHandler func(conn net.Conn)

type Server struct {
	ln   net.Listener
	Host string
	Port int

	mu       sync.Mutex
	received []protocol.Envelope
	wg       sync.WaitGroup
}

// Start serves h on 127.0.0.1 until the test ends. Undecodable lines are
// answered with "ERROR: <reason>".
func Start(t testing.TB, h Handler) *Server {
	t.Helper()
	s := listen(t)
	s.serve(t, func(conn net.Conn) {
		env, err := protocol.ReadEnvelope(bufio.NewReader(conn), protocol.DefaultMaxLineBytes)
		reply := ""
		if err != nil {
			reply = "ERROR: " + err.Error()
		} else {
			s.mu.Lock()
			s.received = append(s.received, env)
			s.mu.Unlock()
			reply = h(env)
		}
		_, _ = conn.Write([]byte(reply + "\n"))
	})
	return s
}

// StartRaw serves h on 127.0.0.1 until the test ends. h must return once the
// client has gone away.
func StartRaw(t testing.TB, h ConnHandler) *Server {
	t.Helper()
	s := listen(t)
	s.serve(t, h)
	return s
}

func listen(t testing.TB) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return &Server{ln: ln, Host: host, Port: port}
}

func (s *Server) serve(t testing.TB, h ConnHandler) {
	ln := s.ln
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer conn.Close()
				h(conn)
			}()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		s.wg.Wait()
	})
}

// Received returns the envelopes decoded so far.
func (s *Server) Received() []protocol.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Envelope, len(s.received))
	copy(out, s.received)
	return out
}

// UnusedPort returns a loopback port with nothing listening on it.
func UnusedPort(t testing.TB) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}
