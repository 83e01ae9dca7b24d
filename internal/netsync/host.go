package netsync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/danmuck/netsync/internal/delta"
	logs "github.com/danmuck/netsync/internal/logging"
	"github.com/danmuck/netsync/internal/observability"
	"github.com/danmuck/netsync/internal/protocol"
	"github.com/danmuck/netsync/internal/replica"
	"github.com/danmuck/netsync/internal/transport"
)

// HostHandlers are optional callbacks invoked on the host event loop. Handlers
// must not block and must not call Update, Sync or Snapshot: those wait on the
// loop the handler is running on. A handler may mutate the shared state
// directly; the next Sync replicates it.
type HostHandlers struct {
	OnConnect       func(c *Connection)
	OnDisconnect    func(c *Connection)
	OnDropped       func(c *Connection)
	OnMessage       func(c *Connection, msg protocol.Message)
	OnProtocolError func(c *Connection, err error)
}

// Host owns the authoritative state and the registry of follower connections.
// It implements transport.Handler.
type Host struct {
	cfg      HostConfig
	state    any
	tracker  *replica.Tracker
	registry *Registry
	monitor  *Heartbeat
	handlers HostHandlers
	loop     *loop
	running  atomic.Bool
}

var _ transport.Handler = (*Host)(nil)

// NewHost wraps state, which must encode as a JSON object. The caller keeps
// mutating state, but only inside Update or a handler.
// A follower that connects receives the state as of the last Sync, and sees
// later updates with the next diff.
func NewHost(state any, cfg HostConfig, handlers HostHandlers) (*Host, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tracker, err := replica.NewTracker(state)
	if err != nil {
		return nil, fmt.Errorf("netsync: host state: %w", err)
	}
	h := &Host{
		cfg:      cfg,
		state:    state,
		tracker:  tracker,
		registry: NewRegistry(),
		handlers: handlers,
		loop:     newLoop(cfg.EventBuffer),
	}
	h.monitor = NewHeartbeat(h.registry, cfg.MissedPingLimit, h.dropped)
	return h, nil
}

// Run drives the event loop and the heartbeat until ctx is done, then closes
// every registered connection.
func (h *Host) Run(ctx context.Context) error {
	if !h.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	logs.Infof("netsync.Host.Run heartbeat=%s missed_limit=%d", h.cfg.HeartbeatInterval, h.cfg.MissedPingLimit)

	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.monitor.Tick()
		case fn := <-h.loop.events:
			fn()
		}
	}
}

func (h *Host) shutdown() {
	h.loop.stop()
	released := 0
	h.registry.ForEach(func(c *Connection) {
		h.registry.Remove(c.ID)
		_ = c.close()
		released++
	})
	observability.SetConnections(0)
	logs.Infof("netsync.Host.shutdown released=%d ticks=%d", released, h.tracker.Ticks())
}

func (h *Host) OnOpen(c transport.Conn) {
	h.loop.post(func() { h.handleOpen(c) })
}

func (h *Host) OnMessage(c transport.Conn, payload []byte) {
	h.loop.post(func() { h.handleMessage(c, payload) })
}

func (h *Host) OnClose(c transport.Conn) {
	h.loop.post(func() { h.handleClose(c) })
}

// Update runs mutate on the event loop, the only place the host state may change.
// It must not be called from a handler.
func (h *Host) Update(ctx context.Context, mutate func()) error {
	return h.loop.call(ctx, mutate)
}

// Sync performs one replication tick and reports which reserved type was broadcast.
func (h *Host) Sync(ctx context.Context) (string, error) {
	var (
		kind    string
		syncErr error
	)
	if err := h.loop.call(ctx, func() { kind, syncErr = h.sync() }); err != nil {
		return "", err
	}
	return kind, syncErr
}

// Snapshot returns a deep copy of the current authoritative state.
func (h *Host) Snapshot(ctx context.Context) (map[string]any, error) {
	var (
		out      map[string]any
		cloneErr error
	)
	err := h.loop.call(ctx, func() {
		var v any
		v, cloneErr = delta.Clone(h.state)
		if cloneErr == nil {
			out, _ = v.(map[string]any)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, cloneErr
}

// Send delivers one application message to the connection with the given id.
// It reports false for unknown ids and refused payloads.
func (h *Host) Send(id string, v any) bool {
	payload, err := protocol.EncodeApp(v)
	if err != nil {
		logs.Warnf("netsync.Host.Send id=%q err=%v", id, err)
		return false
	}
	c, ok := h.registry.Get(id)
	if !ok {
		return false
	}
	if err := c.send(payload); err != nil {
		observability.RecordSendFailure(observability.RoleHost)
		logs.Debugf("netsync.Host.Send id=%q err=%v", id, err)
		return false
	}
	return true
}

// Broadcast delivers one application message to every registered connection and
// returns how many accepted it.
func (h *Host) Broadcast(v any) (int, error) {
	payload, err := protocol.EncodeApp(v)
	if err != nil {
		return 0, err
	}
	return h.broadcast(payload), nil
}

// Running reports whether Run is serving the event loop.
func (h *Host) Running() bool {
	return h.running.Load() && !h.loop.stopped()
}

// Connections lists registered connections in id order.
func (h *Host) Connections() []ConnectionInfo {
	return h.registry.Snapshot()
}

func (h *Host) broadcast(payload []byte) int {
	sent := 0
	h.registry.ForEach(func(c *Connection) {
		if err := c.send(payload); err != nil {
			observability.RecordSendFailure(observability.RoleHost)
			logs.Debugf("netsync.Host.broadcast id=%q err=%v", c.ID, err)
			return
		}
		sent++
	})
	return sent
}

func (h *Host) sync() (string, error) {
	d, changed, err := h.tracker.Next()
	if err != nil {
		return "", err
	}
	kind := protocol.TypeEmpty
	payload := protocol.Empty()
	if changed {
		kind = protocol.TypeDiff
		if payload, err = protocol.EncodeDiff(d); err != nil {
			return "", err
		}
	}
	sent := h.broadcast(payload)
	observability.RecordTick(kind)
	logs.Tracef("netsync.Host.sync tick=%d kind=%s peers=%d", h.tracker.Ticks(), kind, sent)
	return kind, nil
}

// lookup resolves a transport conn to its live registry entry.
func (h *Host) lookup(tc transport.Conn) (*Connection, bool) {
	c, ok := h.registry.Get(ConnectionID(tc))
	if !ok || !c.owns(tc) {
		return nil, false
	}
	return c, true
}

func (h *Host) handleOpen(tc transport.Conn) {
	c := newConnection(tc)
	err := h.registry.Admit(c, func(c *Connection) error {
		baseline, err := h.tracker.Baseline()
		if err != nil {
			return err
		}
		payload, err := protocol.EncodeFullState(baseline)
		if err != nil {
			return err
		}
		if err := c.send(payload); err != nil {
			observability.RecordSendFailure(observability.RoleHost)
			return err
		}
		return nil
	})
	if err != nil {
		logs.Warnf("netsync.Host.open id=%q err=%v", c.ID, err)
		_ = tc.Close()
		return
	}

	observability.RecordConnect(observability.RoleHost)
	observability.SetConnections(h.registry.Len())
	logs.Infof("netsync.Host.open id=%q session=%s peers=%d", c.ID, c.Session, h.registry.Len())
	if h.handlers.OnConnect != nil {
		h.handlers.OnConnect(c)
	}
}

func (h *Host) handleMessage(tc transport.Conn, payload []byte) {
	c, ok := h.lookup(tc)
	if !ok {
		logs.Debugf("netsync.Host.message unregistered remote=%q", tc.RemoteAddr())
		return
	}
	h.monitor.Observe(c)

	msg, consumed, err := route(payload)
	if err != nil {
		observability.RecordProtocolError(observability.RoleHost)
		logs.Warnf("netsync.Host.message id=%q err=%v", c.ID, err)
		if h.handlers.OnProtocolError != nil {
			h.handlers.OnProtocolError(c, err)
		}
		return
	}
	observability.RecordMessage(observability.RoleHost, msg.Type)
	if consumed {
		return
	}
	if h.handlers.OnMessage != nil {
		h.handlers.OnMessage(c, msg)
	}
}

func (h *Host) handleClose(tc transport.Conn) {
	c, ok := h.lookup(tc)
	if !ok {
		return
	}
	h.registry.Remove(c.ID)
	observability.RecordDisconnect(observability.RoleHost)
	observability.SetConnections(h.registry.Len())
	logs.Infof("netsync.Host.close id=%q session=%s peers=%d", c.ID, c.Session, h.registry.Len())
	if h.handlers.OnDisconnect != nil {
		h.handlers.OnDisconnect(c)
	}
}

func (h *Host) dropped(c *Connection) {
	observability.RecordDrop()
	observability.SetConnections(h.registry.Len())
	if h.handlers.OnDropped != nil {
		h.handlers.OnDropped(c)
	}
}
