package netsync

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/netsync/internal/protocol"
	"github.com/danmuck/netsync/internal/replica"
	"github.com/danmuck/netsync/internal/testutil/testlog"
	"github.com/danmuck/netsync/internal/transport"
	"github.com/gorilla/websocket"
)

type liveHost struct {
	host   *Host
	server *httptest.Server
	url    string
}

func startLiveHost(t *testing.T, state any, cfg HostConfig, handlers HostHandlers) *liveHost {
	t.Helper()
	h, err := NewHost(state, cfg, handlers)
	if err != nil {
		t.Fatalf("new host: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = h.Run(ctx)
	}()

	ws := transport.NewServer(h, cfg.Transport)
	ts := httptest.NewServer(ws)
	t.Cleanup(func() {
		_ = ws.Close()
		ts.Close()
		cancel()
		<-stopped
	})
	return &liveHost{
		host:   h,
		server: ts,
		url:    "ws" + strings.TrimPrefix(ts.URL, "http"),
	}
}

func startFollower(t *testing.T, url string, state map[string]any, handlers FollowerHandlers) *Follower {
	t.Helper()
	cfg := DefaultFollowerConfig()
	cfg.URL = url
	cfg.Reconnect = false
	f, err := NewFollower(state, cfg, handlers)
	if err != nil {
		t.Fatalf("new follower: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = f.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return f
}

func viewCount(t *testing.T, f *Follower) any {
	t.Helper()
	var count any
	if err := f.View(context.Background(), func(state map[string]any) { count = state["count"] }); err != nil {
		t.Fatalf("view: %v", err)
	}
	return count
}

func TestSessionFollowerConvergesOverWebsocket(t *testing.T) {
	testlog.Start(t)
	state := map[string]any{"count": 0}
	live := startLiveHost(t, state, DefaultHostConfig(), HostHandlers{})

	var kinds []string
	seen := make(chan string, 16)
	f := startFollower(t, live.url, nil, FollowerHandlers{
		OnMessage: func(msg protocol.Message) { seen <- msg.Type },
	})

	if got := <-seen; got != protocol.TypeFullState {
		t.Fatalf("expected fullstate first, got %q", got)
	}
	if f.Status() != replica.StatusSynced || viewCount(t, f) != float64(0) {
		t.Fatalf("expected synced mirror with count 0")
	}

	ctx := context.Background()
	if err := live.host.Update(ctx, func() { state["count"] = 1 }); err != nil {
		t.Fatalf("update: %v", err)
	}
	for _, want := range []string{protocol.TypeDiff, protocol.TypeEmpty} {
		kind, err := live.host.Sync(ctx)
		if err != nil || kind != want {
			t.Fatalf("expected %s tick, got %q err=%v", want, kind, err)
		}
		select {
		case got := <-seen:
			kinds = append(kinds, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("follower never received %s", want)
		}
	}
	if kinds[0] != protocol.TypeDiff || kinds[1] != protocol.TypeEmpty {
		t.Fatalf("expected [diff empty], got %v", kinds)
	}
	if got := viewCount(t, f); got != float64(1) {
		t.Fatalf("expected mirrored count 1, got %v", got)
	}
}

func TestSessionApplicationMessagesBothWays(t *testing.T) {
	testlog.Start(t)
	fromFollower := make(chan protocol.Message, 1)
	live := startLiveHost(t, map[string]any{}, DefaultHostConfig(), HostHandlers{
		OnMessage: func(c *Connection, msg protocol.Message) { fromFollower <- msg },
	})

	fromHost := make(chan protocol.Message, 1)
	connected := make(chan struct{}, 1)
	f := startFollower(t, live.url, nil, FollowerHandlers{
		OnConnect: func() { connected <- struct{}{} },
		OnMessage: func(msg protocol.Message) {
			if !msg.Reserved() {
				fromHost <- msg
			}
		},
	})
	<-connected

	if err := f.Send(map[string]any{"type": "hello", "name": "f1"}); err != nil {
		t.Fatalf("follower send: %v", err)
	}
	var msg protocol.Message
	select {
	case msg = <-fromFollower:
	case <-time.After(2 * time.Second):
		t.Fatalf("host never received follower message")
	}
	if msg.Type != "hello" {
		t.Fatalf("expected hello, got %q", msg.Type)
	}

	eventually(t, 2*time.Second, "registration", func() bool { return len(live.host.Connections()) == 1 })
	id := live.host.Connections()[0].ID
	if !live.host.Send(id, map[string]any{"type": "welcome"}) {
		t.Fatalf("host send to %s failed", id)
	}
	select {
	case msg = <-fromHost:
	case <-time.After(2 * time.Second):
		t.Fatalf("follower never received host message")
	}
	if msg.Type != "welcome" {
		t.Fatalf("expected welcome, got %q", msg.Type)
	}
}

func TestSessionSilentPeerIsDropped(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultHostConfig()
	cfg.HeartbeatInterval = 20 * time.Millisecond

	var drops, disconnects atomic.Int32
	dropped := make(chan struct{}, 1)
	live := startLiveHost(t, map[string]any{}, cfg, HostHandlers{
		OnDropped: func(c *Connection) {
			drops.Add(1)
			dropped <- struct{}{}
		},
		OnDisconnect: func(c *Connection) { disconnects.Add(1) },
	})

	// A raw client that never answers pings. Reading keeps the close frame visible.
	ws, _, err := websocket.DefaultDialer.Dial(live.url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-dropped:
	case <-time.After(2 * time.Second):
		t.Fatalf("silent peer was never dropped")
	}
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("dropped peer transport was never closed")
	}
	time.Sleep(50 * time.Millisecond)
	if drops.Load() != 1 || disconnects.Load() != 0 {
		t.Fatalf("expected drops=1 disconnects=0, got drops=%d disconnects=%d", drops.Load(), disconnects.Load())
	}
}

func TestSessionRespondingFollowerSurvivesHeartbeat(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultHostConfig()
	cfg.HeartbeatInterval = 10 * time.Millisecond

	var drops atomic.Int32
	live := startLiveHost(t, map[string]any{}, cfg, HostHandlers{
		OnDropped: func(c *Connection) { drops.Add(1) },
	})
	connected := make(chan struct{}, 1)
	f := startFollower(t, live.url, nil, FollowerHandlers{
		OnConnect: func() { connected <- struct{}{} },
	})
	<-connected

	time.Sleep(20 * cfg.HeartbeatInterval)
	if drops.Load() != 0 || !f.Connected() {
		t.Fatalf("expected follower answering pings to stay connected, drops=%d", drops.Load())
	}
}

func TestSessionFollowerObservesHostShutdown(t *testing.T) {
	testlog.Start(t)
	h, err := NewHost(map[string]any{"count": 0}, DefaultHostConfig(), HostHandlers{})
	if err != nil {
		t.Fatalf("new host: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = h.Run(ctx)
	}()
	ws := transport.NewServer(h, transport.DefaultConfig())
	ts := httptest.NewServer(ws)
	defer ts.Close()
	defer ws.Close()

	disconnected := make(chan struct{}, 1)
	synced := make(chan struct{}, 1)
	f := startFollower(t, "ws"+strings.TrimPrefix(ts.URL, "http"), nil, FollowerHandlers{
		OnMessage: func(msg protocol.Message) {
			if msg.Type == protocol.TypeFullState {
				synced <- struct{}{}
			}
		},
		OnDisconnect: func() { disconnected <- struct{}{} },
	})
	<-synced

	cancel()
	<-stopped
	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatalf("follower never observed host shutdown")
	}
	if f.Status() != replica.StatusUninitialized {
		t.Fatalf("expected uninitialized after disconnect, got %s", f.Status())
	}
}
