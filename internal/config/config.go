// Package config holds the command-line configuration of the relay server
// and client, with defaults and validation.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/omochice/socket-relay/pkg/protocol"
)

const (
	// DefaultPort is the port both binaries use unless told otherwise.
	DefaultPort = "8088"

	defaultShutdownTimeout = 5 * time.Second
)

// Server holds the relay server settings.
type Server struct {
	// Addr is the TCP listen address.
	Addr string
	// WSAddr is the WebSocket listen address; empty disables it.
	WSAddr string
	// Framing is raw or varint; both ends must agree.
	Framing string
	// MaxConns caps concurrent connections; 0 means unlimited.
	MaxConns int
	// IdleTimeout disconnects silent peers; 0 disables it.
	IdleTimeout time.Duration
	// ShutdownTimeout bounds how long Stop waits for reader loops.
	ShutdownTimeout time.Duration
	// ShowRemote prefixes announcements with the peer address.
	ShowRemote bool
	LogLevel   string
}

// Client holds the relay client settings.
type Client struct {
	// Server is host:port for TCP or ws://host:port/path for WebSocket.
	Server   string
	Framing  string
	LogLevel string
}

// DefaultServer returns the server defaults: every interface, port 8088.
func DefaultServer() Server {
	return Server{
		Addr:            ":" + DefaultPort,
		Framing:         protocol.FramingRaw.String(),
		ShutdownTimeout: defaultShutdownTimeout,
		LogLevel:        "info",
	}
}

// DefaultClient returns the client defaults: localhost, port 8088.
func DefaultClient() Client {
	return Client{
		Server:   "localhost:" + DefaultPort,
		Framing:  protocol.FramingRaw.String(),
		LogLevel: "info",
	}
}

// RegisterFlags binds the server settings to fs, using the current
// values as defaults.
func (c *Server) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "TCP address to listen on (e.g., :8088)")
	fs.StringVar(&c.WSAddr, "ws-addr", c.WSAddr, "WebSocket address to listen on; empty disables it")
	fs.StringVar(&c.Framing, "framing", c.Framing, "Message framing: raw or varint")
	fs.IntVar(&c.MaxConns, "max-conns", c.MaxConns, "Maximum concurrent connections (0 = unlimited)")
	fs.DurationVar(&c.IdleTimeout, "idle-timeout", c.IdleTimeout, "Disconnect peers idle for this long (0 = never)")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "How long to wait for connections on shutdown")
	fs.BoolVar(&c.ShowRemote, "show-remote", c.ShowRemote, "Prefix each announcement with the peer address")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
}

// RegisterFlags binds the client settings to fs.
func (c *Client) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Server, "server", c.Server, "Server address (e.g., localhost:8088 or ws://localhost:8089/)")
	fs.StringVar(&c.Framing, "framing", c.Framing, "Message framing: raw or varint")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
}

// Validate reports every invalid server setting at once.
func (c Server) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.WSAddr != "" && c.WSAddr == c.Addr {
		errs = append(errs, errors.New("ws-addr must differ from addr"))
	}
	if _, err := protocol.ParseFraming(c.Framing); err != nil {
		errs = append(errs, err)
	}
	if c.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("max-conns must be >= 0, got %d", c.MaxConns))
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("idle-timeout must be >= 0, got %v", c.IdleTimeout))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown-timeout must be > 0, got %v", c.ShutdownTimeout))
	}
	return errors.Join(errs...)
}

// FramingMode returns the parsed framing. Call Validate first.
func (c Server) FramingMode() protocol.Framing {
	f, _ := protocol.ParseFraming(c.Framing)
	return f
}

// Validate reports every invalid client setting at once.
func (c Client) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server) == "" {
		errs = append(errs, errors.New("server is required"))
	}
	if _, err := protocol.ParseFraming(c.Framing); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// FramingMode returns the parsed framing. Call Validate first.
func (c Client) FramingMode() protocol.Framing {
	f, _ := protocol.ParseFraming(c.Framing)
	return f
}

// IsWebSocket reports whether Server names a WebSocket URL.
func (c Client) IsWebSocket() bool {
	return strings.HasPrefix(c.Server, "ws://") || strings.HasPrefix(c.Server, "wss://")
}
