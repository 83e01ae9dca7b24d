package netsync

import (
	"sync"
	"testing"
	"time"

	"github.com/danmuck/netsync/internal/protocol"
	"github.com/danmuck/netsync/internal/transport"
)

type fakeConn struct {
	addr string

	mu       sync.Mutex
	sent     [][]byte
	closed   int
	failSend bool
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{addr: addr}
}

func (c *fakeConn) RemoteAddr() string { return c.addr }

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend || c.closed > 0 {
		return transport.ErrConnClosed
	}
	c.sent = append(c.sent, append([]byte(nil), payload...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// messages decodes everything sent so far.
func (c *fakeConn) messages(t *testing.T) []protocol.Message {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Message, 0, len(c.sent))
	for _, raw := range c.sent {
		msg, err := protocol.Decode(raw)
		if err != nil {
			t.Fatalf("sent payload %s does not decode: %v", raw, err)
		}
		out = append(out, msg)
	}
	return out
}

func (c *fakeConn) types(t *testing.T) []string {
	t.Helper()
	msgs := c.messages(t)
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Type)
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.sent = nil
	c.mu.Unlock()
}

type hostEvents struct {
	mu           sync.Mutex
	connects     []string
	disconnects  []string
	drops        []string
	messages     []protocol.Message
	protocolErrs []error
}

func (e *hostEvents) handlers() HostHandlers {
	return HostHandlers{
		OnConnect: func(c *Connection) {
			e.mu.Lock()
			e.connects = append(e.connects, c.ID)
			e.mu.Unlock()
		},
		OnDisconnect: func(c *Connection) {
			e.mu.Lock()
			e.disconnects = append(e.disconnects, c.ID)
			e.mu.Unlock()
		},
		OnDropped: func(c *Connection) {
			e.mu.Lock()
			e.drops = append(e.drops, c.ID)
			e.mu.Unlock()
		},
		OnMessage: func(c *Connection, msg protocol.Message) {
			e.mu.Lock()
			e.messages = append(e.messages, msg)
			e.mu.Unlock()
		},
		OnProtocolError: func(c *Connection, err error) {
			e.mu.Lock()
			e.protocolErrs = append(e.protocolErrs, err)
			e.mu.Unlock()
		},
	}
}

func (e *hostEvents) counts() (connects, disconnects, drops, messages, protocolErrs int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.connects), len(e.disconnects), len(e.drops), len(e.messages), len(e.protocolErrs)
}

func eventually(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
