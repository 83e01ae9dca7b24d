package netsync

import (
	"strings"
	"time"

	"github.com/danmuck/netsync/internal/transport"
)

// HostConfig configures the authoritative endpoint.
type HostConfig struct {
	HeartbeatInterval time.Duration
	MissedPingLimit   int
	EventBuffer       int
	Transport         transport.Config
}

func DefaultHostConfig() HostConfig {
	return HostConfig{
		HeartbeatInterval: 250 * time.Millisecond,
		MissedPingLimit:   4,
		EventBuffer:       1024,
		Transport:         transport.DefaultConfig(),
	}
}

// WithDefaults fills zero fields. Negative values are left for Validate.
func (c HostConfig) WithDefaults() HostConfig {
	def := DefaultHostConfig()
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.MissedPingLimit == 0 {
		c.MissedPingLimit = def.MissedPingLimit
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	c.Transport = c.Transport.WithDefaults()
	return c
}

func (c HostConfig) Validate() error {
	if c.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeatInterval
	}
	if c.MissedPingLimit <= 0 {
		return ErrInvalidMissedPingLimit
	}
	return nil
}

// FollowerConfig configures the connecting endpoint.
type FollowerConfig struct {
	URL                string
	Reconnect          bool
	MaxConnectAttempts int
	Backoff            transport.BackoffConfig
	EventBuffer        int
	Transport          transport.Config
}

func DefaultFollowerConfig() FollowerConfig {
	return FollowerConfig{
		Reconnect:   true,
		Backoff:     transport.DefaultBackoffConfig(),
		EventBuffer: 1024,
		Transport:   transport.DefaultConfig(),
	}
}

func (c FollowerConfig) WithDefaults() FollowerConfig {
	def := DefaultFollowerConfig()
	c.URL = strings.TrimSpace(c.URL)
	if c.Backoff == (transport.BackoffConfig{}) {
		c.Backoff = def.Backoff
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	c.Transport = c.Transport.WithDefaults()
	return c
}

func (c FollowerConfig) Validate() error {
	if c.URL == "" {
		return ErrURLRequired
	}
	return nil
}
