package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/omochice/socket-relay/pkg/protocol"
)

// Reader pulls chunks from one connection at a time and forwards the
// decoded messages to Sink.
type Reader struct {
	Sink    Sink
	Framing protocol.Framing

	// IdleTimeout bounds each read when the connection supports deadlines.
	// Zero disables it.
	IdleTimeout time.Duration

	Logger *slog.Logger
}

// Run reads s until end-of-stream, a failure, or shutdown.
//
// End-of-stream is announced through Sink.Disconnect exactly once, after
// every message received before it. A failure is returned as *ConnError
// and is not announced. A locally closed connection or a cancelled ctx ends
// the loop with a nil error.
func (r *Reader) Run(ctx context.Context, s *Session) error {
	remote := s.Conn.RemoteAddr()
	logger := r.logger().With("conn", s.ID, "remote", remote)
	dec := r.Framing.NewDecoder()
	buf := make([]byte, ChunkSize)

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := r.renewDeadline(s.Conn); err != nil {
			return &ConnError{ID: s.ID, Op: "set deadline", Err: err}
		}

		chunk, err := readChunk(s.Conn, buf)
		if len(chunk) > 0 {
			msgs, decErr := dec.Feed(chunk)
			for _, msg := range msgs {
				r.Sink.Message(s.ID, remote, msg)
			}
			if decErr != nil {
				return &ConnError{ID: s.ID, Op: "decode", Err: decErr}
			}
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			if n := dec.Buffered(); n > 0 {
				logger.Warn("discarding truncated frame", "bytes", n)
			}
			r.Sink.Disconnect(s.ID, remote)
			return nil
		case ctx.Err() != nil, errors.Is(err, net.ErrClosed):
			logger.Debug("reader stopped", "error", err)
			return nil
		default:
			return &ConnError{ID: s.ID, Op: "read", Err: err}
		}
	}
}

// readChunk performs one bounded read. The returned chunk aliases buf and
// is empty when the transport returned no bytes.
func readChunk(conn Conn, buf []byte) ([]byte, error) {
	n, err := conn.Read(buf)
	if n < 0 {
		n = 0
	}
	return buf[:n], err
}

func (r *Reader) renewDeadline(conn Conn) error {
	if r.IdleTimeout <= 0 {
		return nil
	}
	d, ok := conn.(deadliner)
	if !ok {
		return nil
	}
	return d.SetReadDeadline(time.Now().Add(r.IdleTimeout))
}

func (r *Reader) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
