// Package client implements the relay client: it forwards operator-typed
// lines to the server, one write per line.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode"

	"github.com/omochice/socket-relay/internal/config"
	"github.com/omochice/socket-relay/internal/logging"
	"github.com/omochice/socket-relay/internal/transport/tcp"
	"github.com/omochice/socket-relay/internal/transport/ws"
	"github.com/omochice/socket-relay/pkg/protocol"
)

// Conn is the sending side of a connection to the server.
type Conn interface {
	Write(data []byte) (int, error)
	Close() error
	RemoteAddr() string
}

// Sender writes lines read from an input to one server connection.
type Sender struct {
	conn    Conn
	framing protocol.Framing
	out     io.Writer
	logger  *slog.Logger
}

// New wraps an established connection. Input errors are reported to out.
func New(conn Conn, framing protocol.Framing, out io.Writer, logger *slog.Logger) *Sender {
	return &Sender{
		conn:    conn,
		framing: framing,
		out:     out,
		logger:  logging.Component(logger, "sender"),
	}
}

// Dial connects to the configured server over TCP, or over WebSocket when
// the address is a ws:// URL.
func Dial(ctx context.Context, cfg config.Client) (Conn, error) {
	if cfg.IsWebSocket() {
		conn, err := ws.Dial(ctx, cfg.Server)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to server: %w", err)
		}
		return conn, nil
	}

	conn, err := tcp.Dial(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return conn, nil
}

// Run reads newline-terminated lines from in and sends each one, with
// trailing whitespace removed, as exactly one write. It never reads from
// the server.
//
// When reading input fails (including end of input) the error is printed
// and Run returns nil. A line that cannot be framed is reported and
// skipped. A failed write is returned.
func (s *Sender) Run(in io.Reader) error {
	reader := bufio.NewReader(in)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(s.out, "input error: %v\n", err)
			return nil
		}

		err = s.Send(strings.TrimRightFunc(line, unicode.IsSpace))
		switch {
		case err == nil:
		case errors.Is(err, protocol.ErrFrameTooLarge):
			fmt.Fprintf(s.out, "message not sent: %v\n", err)
		default:
			return err
		}
	}
}

// Send writes one message. An empty text still results in one write.
func (s *Sender) Send(text string) error {
	data, err := s.framing.Encode([]byte(text))
	if err != nil {
		return err
	}
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	s.logger.Debug("sent", "bytes", len(data))
	return nil
}

// Close closes the connection to the server.
func (s *Sender) Close() error {
	return s.conn.Close()
}
