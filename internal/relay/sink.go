package relay

import (
	"bytes"
	"io"
	"sync"
)

// Sink receives announcements from reader loops. Implementations must be
// safe for concurrent use; calls for one connection arrive in order.
type Sink interface {
	Message(id, remote string, data []byte)
	Disconnect(id, remote string)
}

// ConsoleSink prints announcements as text lines.
// Every announcement is a single write so lines from different
// connections never tear into each other.
type ConsoleSink struct {
	// ShowRemote prefixes each line with the peer address.
	ShowRemote bool

	mu  sync.Mutex
	out io.Writer
	buf bytes.Buffer
}

// NewConsoleSink creates a sink writing to out.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{out: out}
}

// Message announces one message. The bytes are printed as-is; they are
// not guaranteed to be valid UTF-8.
func (s *ConsoleSink) Message(_, remote string, data []byte) {
	s.announce(remote, func(b *bytes.Buffer) {
		b.WriteString("Message: ")
		b.Write(data)
	})
}

// Disconnect announces that a peer closed its stream.
func (s *ConsoleSink) Disconnect(_, remote string) {
	s.announce(remote, func(b *bytes.Buffer) {
		b.WriteString("client disconnect...")
	})
}

func (s *ConsoleSink) announce(remote string, body func(*bytes.Buffer)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Reset()
	if s.ShowRemote {
		s.buf.WriteByte('[')
		s.buf.WriteString(remote)
		s.buf.WriteString("] ")
	}
	body(&s.buf)
	s.buf.WriteByte('\n')
	_, _ = s.out.Write(s.buf.Bytes())
}
