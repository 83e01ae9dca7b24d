package netsync

import (
	"github.com/danmuck/netsync/internal/observability"
	"github.com/danmuck/netsync/internal/protocol"
	logs "github.com/danmuck/netsync/internal/logging"
)

// Heartbeat expels connections that stayed silent for limit consecutive periods.
type Heartbeat struct {
	registry  *Registry
	limit     int
	onDropped func(c *Connection)
}

func NewHeartbeat(registry *Registry, limit int, onDropped func(c *Connection)) *Heartbeat {
	return &Heartbeat{registry: registry, limit: limit, onDropped: onDropped}
}

// Tick runs one heartbeat period: expel connections at the limit (dropped signal
// first, then transport close), ping the survivors, then count the period as
// missed for each survivor. It returns the expelled connections.
func (hb *Heartbeat) Tick() []*Connection {
	var expired []*Connection
	hb.registry.ForEach(func(c *Connection) {
		if c.MissedPings() >= hb.limit {
			expired = append(expired, c)
		}
	})
	for _, c := range expired {
		if !hb.registry.Remove(c.ID) {
			continue
		}
		logs.Warnf("netsync.Heartbeat.drop id=%q session=%s missed=%d", c.ID, c.Session, c.MissedPings())
		if hb.onDropped != nil {
			hb.onDropped(c)
		}
		_ = c.close()
	}

	ping := protocol.Ping()
	pinged := 0
	hb.registry.ForEach(func(c *Connection) {
		if err := c.send(ping); err != nil {
			observability.RecordSendFailure(observability.RoleHost)
			logs.Debugf("netsync.Heartbeat.ping id=%q err=%v", c.ID, err)
		} else {
			pinged++
		}
		c.missed.Add(1)
	})
	observability.RecordPings(pinged)
	return expired
}

// Observe records receipt of any message from c.
func (hb *Heartbeat) Observe(c *Connection) {
	c.missed.Store(0)
}
