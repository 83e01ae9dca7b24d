package netsync

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	logs "github.com/danmuck/netsync/internal/logging"
	"github.com/danmuck/netsync/internal/observability"
	"github.com/danmuck/netsync/internal/protocol"
	"github.com/danmuck/netsync/internal/replica"
	"github.com/danmuck/netsync/internal/transport"
)

// FollowerHandlers are optional callbacks invoked on the follower event loop.
// Handlers must not call View, which waits on the same loop; the mirror map can
// be read directly from inside a handler.
type FollowerHandlers struct {
	OnConnect       func()
	OnDisconnect    func()
	OnMessage       func(msg protocol.Message)
	OnProtocolError func(err error)
}

// Follower mirrors the host state into the map it was constructed with.
type Follower struct {
	cfg      FollowerConfig
	mirror   *replica.Mirror
	handlers FollowerHandlers
	loop     *loop
	rng      *rand.Rand
	running  atomic.Bool
	status   atomic.Int32

	mu   sync.RWMutex
	conn transport.Conn
}

// NewFollower mirrors into state. A nil state allocates an empty map. The map is
// only mutated on the event loop; read it from handlers or through View.
func NewFollower(state map[string]any, cfg FollowerConfig, handlers FollowerHandlers) (*Follower, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Follower{
		cfg:      cfg,
		mirror:   replica.NewMirror(state),
		handlers: handlers,
		loop:     newLoop(cfg.EventBuffer),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Run dials the host and drives the event loop. With Reconnect set it redials
// with backoff after every disconnect until ctx is done or MaxConnectAttempts
// consecutive dials fail.
func (f *Follower) Run(ctx context.Context) error {
	if !f.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer f.loop.stop()

	sessions := make(chan error, 1)
	go func() { sessions <- f.supervise(ctx) }()

	// Keep serving events after cancellation so the final close is delivered.
	done := ctx.Done()
	for {
		select {
		case <-done:
			done = nil
		case err := <-sessions:
			f.loop.drain()
			if ctx.Err() != nil {
				return nil
			}
			return err
		case fn := <-f.loop.events:
			fn()
		}
	}
}

func (f *Follower) supervise(ctx context.Context) error {
	attempt := 0
	for {
		attempt++
		session := &followerSession{f: f, done: make(chan struct{})}
		conn, err := transport.Dial(ctx, f.cfg.URL, session, f.cfg.Transport)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logs.Warnf("netsync.Follower.dial url=%q attempt=%d err=%v", f.cfg.URL, attempt, err)
			if f.cfg.MaxConnectAttempts > 0 && attempt >= f.cfg.MaxConnectAttempts {
				return err
			}
			if err := transport.SleepBackoff(ctx, f.cfg.Backoff, attempt, f.rng); err != nil {
				return nil
			}
			continue
		}
		attempt = 0

		select {
		case <-ctx.Done():
			_ = conn.Close()
			<-session.done
			return nil
		case <-session.done:
		}
		if !f.cfg.Reconnect {
			return nil
		}
		logs.Infof("netsync.Follower.reconnect url=%q", f.cfg.URL)
	}
}

// Send delivers one application message to the host.
func (f *Follower) Send(v any) error {
	c := f.current()
	if c == nil {
		return ErrNotConnected
	}
	payload, err := protocol.EncodeApp(v)
	if err != nil {
		return err
	}
	if err := c.Send(payload); err != nil {
		observability.RecordSendFailure(observability.RoleFollower)
		return err
	}
	return nil
}

// View runs read on the event loop with the mirrored state.
func (f *Follower) View(ctx context.Context, read func(state map[string]any)) error {
	return f.loop.call(ctx, func() { read(f.mirror.State()) })
}

func (f *Follower) Status() replica.Status {
	return replica.Status(f.status.Load())
}

func (f *Follower) Connected() bool {
	return f.current() != nil
}

func (f *Follower) current() transport.Conn {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.conn
}

func (f *Follower) setConn(c transport.Conn) {
	f.mu.Lock()
	f.conn = c
	f.mu.Unlock()
}

func (f *Follower) syncStatus() {
	f.status.Store(int32(f.mirror.Status()))
}

func (f *Follower) handleOpen(c transport.Conn) {
	f.setConn(c)
	observability.RecordConnect(observability.RoleFollower)
	logs.Infof("netsync.Follower.open host=%q", c.RemoteAddr())
	if f.handlers.OnConnect != nil {
		f.handlers.OnConnect()
	}
}

func (f *Follower) handleMessage(c transport.Conn, payload []byte) {
	msg, consumed, err := route(payload)
	if err != nil {
		observability.RecordProtocolError(observability.RoleFollower)
		logs.Warnf("netsync.Follower.message err=%v", err)
		if f.handlers.OnProtocolError != nil {
			f.handlers.OnProtocolError(err)
		}
		return
	}
	observability.RecordMessage(observability.RoleFollower, msg.Type)
	if consumed {
		if err := c.Send(protocol.Ping()); err != nil {
			observability.RecordSendFailure(observability.RoleFollower)
			logs.Debugf("netsync.Follower.pong err=%v", err)
		}
		return
	}

	switch msg.Type {
	case protocol.TypeFullState:
		f.apply(c, msg.Type, f.mirror.SetFull(msg.FullState))
	case protocol.TypeDiff:
		f.apply(c, msg.Type, f.mirror.Patch(msg.Diff))
	}
	f.syncStatus()

	if f.handlers.OnMessage != nil {
		f.handlers.OnMessage(msg)
	}
}

// apply records the outcome of a fullstate or diff. A diff that did not apply
// closes the connection; the next session starts from a fresh fullstate.
func (f *Follower) apply(c transport.Conn, kind string, err error) {
	switch {
	case err == nil:
		observability.RecordApply(kind, "ok")
	case errors.Is(err, replica.ErrNotSynced):
		observability.RecordApply(kind, "discarded")
		logs.Debugf("netsync.Follower.apply kind=%s discarded=%d", kind, f.mirror.Discarded())
	case errors.Is(err, replica.ErrDesynced):
		observability.RecordApply(kind, "failed")
		logs.Warnf("netsync.Follower.apply kind=%s resync host=%q err=%v", kind, c.RemoteAddr(), err)
		_ = c.Close()
	default:
		observability.RecordApply(kind, "failed")
		logs.Warnf("netsync.Follower.apply kind=%s err=%v", kind, err)
	}
}

func (f *Follower) handleClose(c transport.Conn) {
	if f.current() == c {
		f.setConn(nil)
	}
	f.mirror.Reset()
	f.syncStatus()
	observability.RecordDisconnect(observability.RoleFollower)
	logs.Infof("netsync.Follower.close host=%q version=%d", c.RemoteAddr(), f.mirror.Version())
	if f.handlers.OnDisconnect != nil {
		f.handlers.OnDisconnect()
	}
}

// followerSession scopes transport callbacks to one dialed connection.
type followerSession struct {
	f    *Follower
	done chan struct{}
}

func (s *followerSession) OnOpen(c transport.Conn) {
	s.f.loop.post(func() { s.f.handleOpen(c) })
}

func (s *followerSession) OnMessage(c transport.Conn, payload []byte) {
	s.f.loop.post(func() { s.f.handleMessage(c, payload) })
}

func (s *followerSession) OnClose(c transport.Conn) {
	s.f.loop.post(func() { s.f.handleClose(c) })
	close(s.done)
}
