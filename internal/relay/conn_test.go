package relay_test

import (
	"io"
	"sync"
	"time"

	"github.com/omochice/socket-relay/internal/relay"
)

// readStep is one scripted result of scriptedConn.Read.
type readStep struct {
	data []byte
	err  error
}

// scriptedConn is a mock implementation of relay.Conn that replays reads.
// Once the script is exhausted every read returns io.EOF.
type scriptedConn struct {
	mu         sync.Mutex
	steps      []readStep
	reads      int
	closed     bool
	deadlines  []time.Time
	remoteAddr string
}

func newScriptedConn(addr string, steps ...readStep) *scriptedConn {
	return &scriptedConn{steps: steps, remoteAddr: addr}
}

func (m *scriptedConn) Read(buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if len(m.steps) == 0 {
		return 0, io.EOF
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	n := copy(buf, step.data)
	return n, step.err
}

func (m *scriptedConn) Write(data []byte) (int, error) {
	return len(data), nil
}

func (m *scriptedConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *scriptedConn) RemoteAddr() string {
	return m.remoteAddr
}

func (m *scriptedConn) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadlines = append(m.deadlines, t)
	return nil
}

func (m *scriptedConn) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

func (m *scriptedConn) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

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

// Compile-time check that scriptedConn implements relay.Conn
var _ relay.Conn = (*scriptedConn)(nil)
