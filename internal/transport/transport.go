// Package transport adapts websocket connections to the event callbacks used by
// netsync endpoints.
//
// Ownership boundary:
// - accepting (Server) and dialing (Dial) websocket connections
// - per-connection read and write pumps carrying opaque text payloads
// - reconnect backoff primitives
//
// Payload meaning is owned by package protocol.
package transport

import (
	"errors"
	"time"
)

var (
	ErrConnClosed     = errors.New("transport: connection closed")
	ErrSendBufferFull = errors.New("transport: send buffer full")
)

// Conn is one live connection. Send and Close are safe for concurrent use.
type Conn interface {
	// RemoteAddr returns the peer endpoint as host:port.
	RemoteAddr() string
	// Send queues payload for delivery without waiting for the write.
	Send(payload []byte) error
	// Close is idempotent.
	Close() error
}

// Handler receives connection events. OnOpen precedes every OnMessage of a conn,
// messages arrive in transport order, and OnClose is delivered exactly once.
type Handler interface {
	OnOpen(c Conn)
	OnMessage(c Conn, payload []byte)
	OnClose(c Conn)
}

// Config bounds per-connection resources.
type Config struct {
	ReadLimit        int64
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	SendBuffer       int
}

func DefaultConfig() Config {
	return Config{
		ReadLimit:        8 * 1024 * 1024,
		WriteTimeout:     15 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		SendBuffer:       256,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ReadLimit <= 0 {
		c.ReadLimit = def.ReadLimit
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = def.SendBuffer
	}
	return c
}
