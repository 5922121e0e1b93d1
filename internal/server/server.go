// Package server implements the relay dispatcher: it accepts connections
// and runs one reader loop per connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/omochice/socket-relay/internal/config"
	"github.com/omochice/socket-relay/internal/logging"
	"github.com/omochice/socket-relay/internal/relay"
	"github.com/omochice/socket-relay/internal/transport/tcp"
	"github.com/omochice/socket-relay/internal/transport/ws"
)

// ErrServerClosed is returned by Serve after Stop.
var ErrServerClosed = errors.New("server stopped")

// handshakeTimeout bounds the WebSocket upgrade of a fresh connection.
const handshakeTimeout = 10 * time.Second

// adaptFunc turns an accepted socket into a relay connection.
type adaptFunc func(net.Conn) (relay.Conn, error)

// Server accepts TCP (and optionally WebSocket) connections and announces
// everything they send through a relay.Sink.
type Server struct {
	cfg    config.Server
	reader *relay.Reader
	hub    *relay.Hub
	logger *slog.Logger

	mu          sync.Mutex
	tcpListener net.Listener
	wsListener  net.Listener

	// slots holds one token per running connection when MaxConns > 0.
	slots chan struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Server. It does not bind until Listen is called.
func New(cfg config.Server, sink relay.Sink, logger *slog.Logger) *Server {
	logger = logging.Component(logger, "dispatcher")
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg: cfg,
		reader: &relay.Reader{
			Sink:        sink,
			Framing:     cfg.FramingMode(),
			IdleTimeout: cfg.IdleTimeout,
			Logger:      logger,
		},
		hub:    relay.NewHub(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		quit:   make(chan struct{}),
	}
	if cfg.MaxConns > 0 {
		s.slots = make(chan struct{}, cfg.MaxConns)
	}
	return s
}

// Listen binds the configured addresses.
func (s *Server) Listen() error {
	tcpListener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	var wsListener net.Listener
	if s.cfg.WSAddr != "" {
		wsListener, err = net.Listen("tcp", s.cfg.WSAddr)
		if err != nil {
			tcpListener.Close()
			return fmt.Errorf("failed to start WebSocket listener: %w", err)
		}
	}

	s.mu.Lock()
	s.tcpListener = tcpListener
	s.wsListener = wsListener
	s.mu.Unlock()

	s.logger.Info("server started", "addr", tcpListener.Addr().String(), "framing", s.cfg.FramingMode().String())
	if wsListener != nil {
		s.logger.Info("WebSocket listener started", "addr", wsListener.Addr().String())
	}
	return nil
}

// Serve accepts connections until Stop is called or an accept fails.
// Accept failures are returned as-is for the caller to treat as fatal;
// after Stop it returns ErrServerClosed.
func (s *Server) Serve() error {
	s.mu.Lock()
	tcpListener, wsListener := s.tcpListener, s.wsListener
	s.mu.Unlock()
	if tcpListener == nil {
		return errors.New("server is not listening")
	}

	errChan := make(chan error, 2)
	go func() {
		errChan <- s.acceptLoop(tcpListener, "tcp", adaptTCP)
	}()
	if wsListener != nil {
		go func() {
			errChan <- s.acceptLoop(wsListener, "websocket", adaptWebSocket)
		}()
	}

	return <-errChan
}

// Stop closes the listeners and every live connection, then waits up to
// timeout for the reader loops to finish. It is safe to call more than once.
func (s *Server) Stop(timeout time.Duration) error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.quit)
		for _, l := range []net.Listener{s.tcpListener, s.wsListener} {
			if l != nil {
				l.Close()
			}
		}
		s.mu.Unlock()
		s.cancel()

		closed := s.hub.CloseAll()
		s.logger.Info("shutting down", "connections", closed)
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		s.logger.Warn("shutdown timeout reached, some connections are still running")
		return context.DeadlineExceeded
	}
}

// Addr returns the TCP listening address
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tcpListener != nil {
		return s.tcpListener.Addr().String()
	}
	return ""
}

// WSAddr returns the WebSocket listening address
func (s *Server) WSAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wsListener != nil {
		return s.wsListener.Addr().String()
	}
	return ""
}

// ActiveCount returns the number of connections with a running reader loop
func (s *Server) ActiveCount() int {
	return s.hub.Count()
}

// acceptLoop serves one listener. Listeners share the slot pool: a loop
// waiting for a slot holds the connection it accepted and stops accepting,
// which leaves further clients in the kernel backlog.
func (s *Server) acceptLoop(l net.Listener, kind string, adapt adaptFunc) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if s.closing() {
				return ErrServerClosed
			}
			return fmt.Errorf("failed to accept %s connection: %w", kind, err)
		}

		if err := s.acquire(); err != nil {
			conn.Close()
			return err
		}

		// Stop closes quit under mu before waiting, so no Add can follow its Wait
		s.mu.Lock()
		if s.closing() {
			s.mu.Unlock()
			s.release()
			conn.Close()
			return ErrServerClosed
		}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.handleConnection(conn, kind, adapt)
	}
}

// handleConnection owns conn for its whole life and always closes it.
func (s *Server) handleConnection(conn net.Conn, kind string, adapt adaptFunc) {
	defer s.wg.Done()
	defer s.release()

	rc, err := adapt(conn)
	if err != nil {
		s.logger.Warn("connection setup failed", "transport", kind, "remote", conn.RemoteAddr().String(), "error", err)
		conn.Close()
		return
	}

	session := relay.NewSession(rc)
	logger := s.logger.With("conn", session.ID, "remote", rc.RemoteAddr(), "transport", kind)

	s.hub.Register(session)
	defer s.hub.Unregister(session)
	defer rc.Close()

	// Stop may have snapshotted the hub before this registration
	if s.closing() {
		return
	}

	logger.Info("client connected")
	if err := s.reader.Run(s.ctx, session); err != nil {
		logger.Warn("connection failed", "error", err)
		return
	}
	logger.Debug("reader loop finished")
}

// acquire takes a connection slot for an accepted connection.
func (s *Server) acquire() error {
	if s.slots == nil {
		return nil
	}
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-s.quit:
		return ErrServerClosed
	}
}

func (s *Server) release() {
	if s.slots != nil {
		<-s.slots
	}
}

func (s *Server) closing() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

func adaptTCP(conn net.Conn) (relay.Conn, error) {
	return tcp.NewConn(conn), nil
}

func adaptWebSocket(conn net.Conn) (relay.Conn, error) {
	if err := conn.SetDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return nil, err
	}
	wc, err := ws.Upgrade(conn)
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, err
	}
	return wc, nil
}
