// Package relay provides the per-connection read loop and the sinks that
// announce what each connection delivers.
package relay

import (
	"fmt"
	"sync/atomic"
	"time"
)

// ChunkSize is the capacity of a single transport read.
const ChunkSize = 1024

// Conn abstracts a byte-stream connection for both TCP and WebSocket.
// This interface isolates transport details from the relay logic.
type Conn interface {
	// Read reads up to len(buf) bytes.
	// Returns io.EOF when the peer has closed the stream.
	Read(buf []byte) (int, error)

	// Write sends raw bytes.
	Write(data []byte) (int, error)

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

// deadliner is implemented by connections that support read deadlines.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// Session is one accepted connection together with its opaque id.
type Session struct {
	ID   string
	Conn Conn
}

var lastID atomic.Uint64

// NewSession assigns the next connection id to conn.
func NewSession(conn Conn) *Session {
	return &Session{
		ID:   fmt.Sprintf("conn-%d", lastID.Add(1)),
		Conn: conn,
	}
}
