package server_test

import (
	"bytes"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/omochice/socket-relay/internal/config"
	"github.com/omochice/socket-relay/internal/relay"
	"github.com/omochice/socket-relay/internal/server"
)

// event is one announcement captured by recordingSink.
type event struct {
	id         string
	disconnect bool
	data       string
}

type recordingSink struct {
	mu     sync.Mutex
	events []event
}

func (s *recordingSink) Message(id, _ string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event{id: id, data: string(data)})
}

func (s *recordingSink) Disconnect(id, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event{id: id, disconnect: true})
}

func (s *recordingSink) Events() []event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event(nil), s.events...)
}

func (s *recordingSink) Messages() []string {
	var out []string
	for _, e := range s.Events() {
		if !e.disconnect {
			out = append(out, e.data)
		}
	}
	return out
}

func (s *recordingSink) Disconnects() int {
	n := 0
	for _, e := range s.Events() {
		if e.disconnect {
			n++
		}
	}
	return n
}

// lockedBuffer is a bytes.Buffer safe for the concurrent writes of a sink.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig() config.Server {
	cfg := config.DefaultServer()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startServer binds cfg and serves it in the background until the test ends.
func startServer(t *testing.T, cfg config.Server, sink relay.Sink) (*server.Server, <-chan error) {
	t.Helper()

	srv := server.New(cfg, sink, discardLogger())
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve()
	}()
	t.Cleanup(func() {
		_ = srv.Stop(cfg.ShutdownTimeout)
	})

	return srv, errChan
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Failed to connect to server: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func write(t *testing.T, conn net.Conn, data string) {
	t.Helper()
	if _, err := conn.Write([]byte(data)); err != nil {
		t.Fatalf("Failed to send %q: %v", data, err)
	}
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}
