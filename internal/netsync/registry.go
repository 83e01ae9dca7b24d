package netsync

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/netsync/internal/transport"
	"github.com/oklog/ulid/v2"
)

// Connection is one registered peer of a Host.
type Connection struct {
	ID          string
	Session     ulid.ULID
	ConnectedAt time.Time

	conn   transport.Conn
	missed atomic.Int64
}

// ConnectionID derives the registry key from the transport endpoint.
func ConnectionID(c transport.Conn) string {
	return c.RemoteAddr()
}

func newConnection(c transport.Conn) *Connection {
	return &Connection{
		ID:          ConnectionID(c),
		Session:     ulid.Make(),
		ConnectedAt: time.Now(),
		conn:        c,
	}
}

// MissedPings returns consecutive heartbeat periods without any message from the peer.
func (c *Connection) MissedPings() int {
	return int(c.missed.Load())
}

func (c *Connection) send(payload []byte) error {
	return c.conn.Send(payload)
}

func (c *Connection) close() error {
	return c.conn.Close()
}

func (c *Connection) owns(tc transport.Conn) bool {
	return c.conn == tc
}

// ConnectionInfo is a point-in-time view of a Connection.
type ConnectionInfo struct {
	ID          string    `json:"id"`
	Session     string    `json:"session"`
	ConnectedAt time.Time `json:"connected_at"`
	MissedPings int       `json:"missed_pings"`
}

func (c *Connection) Info() ConnectionInfo {
	return ConnectionInfo{
		ID:          c.ID,
		Session:     c.Session.String(),
		ConnectedAt: c.ConnectedAt,
		MissedPings: c.MissedPings(),
	}
}

// Registry tracks live connections by id.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

func (r *Registry) Add(c *Connection) error {
	return r.Admit(c, nil)
}

// Admit registers c once admit succeeds. admit runs under the registry lock, so
// nothing reaching c through the registry can observe it before admit returns.
// admit must not call back into the registry.
func (r *Registry) Admit(c *Connection, admit func(c *Connection) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateConnection, c.ID)
	}
	if admit != nil {
		if err := admit(c); err != nil {
			return err
		}
	}
	r.conns[c.ID] = c
	return nil
}

func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	return true
}

// ForEach visits connections in id order. The visitor may call back into the registry.
func (r *Registry) ForEach(visit func(c *Connection)) {
	for _, c := range r.sorted() {
		visit(c)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) Snapshot() []ConnectionInfo {
	conns := r.sorted()
	out := make([]ConnectionInfo, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.Info())
	}
	return out
}

func (r *Registry) sorted() []*Connection {
	r.mu.RLock()
	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
