// Package ws provides the WebSocket transport for the relay, using gobwas/ws.
package ws

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
)

const (
	// maxPayload bounds a single inbound frame.
	maxPayload = 1 << 20

	// closeTimeout bounds the write of the close frame.
	closeTimeout = time.Second
)

// Conn adapts a server side WebSocket session to relay.Conn.
// The payloads of inbound data frames form the byte stream; a payload
// larger than the read buffer is served across several reads.
type Conn struct {
	conn    net.Conn
	pending []byte

	// fragmented is set while a data message continues in later frames.
	fragmented bool

	writeMu   sync.Mutex
	closeSent bool
}

// Upgrade performs the WebSocket handshake on an accepted connection.
func Upgrade(conn net.Conn) (*Conn, error) {
	if _, err := ws.Upgrade(conn); err != nil {
		return nil, fmt.Errorf("websocket upgrade: %w", err)
	}
	return &Conn{conn: conn}, nil
}

// Read implements relay.Conn.
// A close frame from the peer is reported as io.EOF. An empty data frame
// yields a zero-length read.
func (c *Conn) Read(buf []byte) (int, error) {
	if len(c.pending) == 0 {
		data, err := c.nextData()
		if err != nil {
			return 0, err
		}
		c.pending = data
	}

	n := copy(buf, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// nextData returns the payload of the next data frame, answering control
// frames on the way. Continuation frames are returned as they come.
func (c *Conn) nextData() ([]byte, error) {
	for {
		h, err := ws.ReadHeader(c.conn)
		if err != nil {
			return nil, err
		}
		if err := ws.CheckHeader(h, c.state()); err != nil {
			_ = c.writeClose(ws.StatusProtocolError, err.Error())
			return nil, fmt.Errorf("websocket: %w", err)
		}
		if h.Length > maxPayload {
			return nil, fmt.Errorf("websocket frame of %d bytes exceeds %d", h.Length, maxPayload)
		}

		payload := make([]byte, h.Length)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			return nil, err
		}
		if h.Masked {
			ws.Cipher(payload, h.Mask, 0)
		}

		switch h.OpCode {
		case ws.OpClose:
			_ = c.writeCloseFrame(ws.NewCloseFrame(payload))
			return nil, io.EOF
		case ws.OpPing:
			if err := c.writeFrame(ws.NewPongFrame(payload)); err != nil {
				return nil, err
			}
		case ws.OpPong:
		default:
			c.fragmented = !h.Fin
			return payload, nil
		}
	}
}

func (c *Conn) state() ws.State {
	s := ws.StateServerSide
	if c.fragmented {
		s = s.Set(ws.StateFragmented)
	}
	return s
}

func (c *Conn) writeFrame(f ws.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.conn, f)
}

// Write implements relay.Conn.
// Each call is sent as one binary message.
func (c *Conn) Write(data []byte) (int, error) {
	if err := c.writeFrame(ws.NewBinaryFrame(data)); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (c *Conn) writeClose(code ws.StatusCode, reason string) error {
	return c.writeCloseFrame(ws.NewCloseFrame(ws.NewCloseFrameBody(code, reason)))
}

// writeCloseFrame sends f unless a close frame already went out. The write
// is bounded by closeTimeout so a peer that stopped reading cannot stall it.
func (c *Conn) writeCloseFrame(f ws.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closeSent {
		return nil
	}
	c.closeSent = true

	if err := c.conn.SetWriteDeadline(time.Now().Add(closeTimeout)); err != nil {
		return err
	}
	return ws.WriteFrame(c.conn, f)
}

// Close implements relay.Conn.
// It sends a normal closure frame, once, and closes the socket.
func (c *Conn) Close() error {
	_ = c.writeClose(ws.StatusNormalClosure, "")
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
