package ws

import (
	"context"
	"fmt"
	"net"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// ClientConn is the dialing side of a WebSocket session.
type ClientConn struct {
	conn net.Conn
}

// Dial opens a WebSocket session to url (ws://host:port/path).
func Dial(ctx context.Context, url string) (*ClientConn, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	// the server never speaks first; nothing buffered is of interest
	if br != nil {
		ws.PutReader(br)
	}
	return &ClientConn{conn: conn}, nil
}

// Write sends data as one binary message.
func (c *ClientConn) Write(data []byte) (int, error) {
	if err := wsutil.WriteClientBinary(c.conn, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Close sends a close frame and closes the socket.
func (c *ClientConn) Close() error {
	_ = wsutil.WriteClientMessage(c.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
	return c.conn.Close()
}

// RemoteAddr returns the server address.
func (c *ClientConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
