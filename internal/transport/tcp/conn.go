// Package tcp provides the TCP transport for the relay.
package tcp

import (
	"net"
	"time"
)

// Conn adapts net.Conn to relay.Conn interface.
type Conn struct {
	conn net.Conn
}

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn}
}

// Dial opens a TCP connection to address.
func Dial(address string) (*Conn, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, err
	}
	return NewConn(conn), nil
}

// Read implements relay.Conn.
// Reads at most len(buf) bytes, whatever the socket has available.
func (c *Conn) Read(buf []byte) (int, error) {
	return c.conn.Read(buf)
}

// Write implements relay.Conn.
func (c *Conn) Write(data []byte) (int, error) {
	return c.conn.Write(data)
}

// Close implements relay.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements relay.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// SetReadDeadline sets the read deadline on the underlying socket.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}
