package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/danmuck/netsync/internal/admin"
	logs "github.com/danmuck/netsync/internal/logging"
	"github.com/danmuck/netsync/internal/netsync"
	"github.com/danmuck/netsync/internal/protocol"
	"github.com/danmuck/netsync/internal/transport"
)

// HostServiceConfig configures the synchostctl process.
type HostServiceConfig struct {
	Name           string
	ListenAddr     string
	SyncPath       string
	CorsOrigins    []string
	SyncInterval   time.Duration
	MutateInterval time.Duration
	Host           netsync.HostConfig
}

func DefaultHostServiceConfig() HostServiceConfig {
	return HostServiceConfig{
		Name:           "synchost",
		ListenAddr:     ":8080",
		SyncPath:       "/sync",
		SyncInterval:   100 * time.Millisecond,
		MutateInterval: time.Second,
		Host:           netsync.DefaultHostConfig(),
	}
}

// HostService runs one Host behind the admin router. The shared document is
// {"name", "counter", "peers", "last_message"}.
type HostService struct {
	cfg   HostServiceConfig
	host  *netsync.Host
	state map[string]any
}

func NewHostService(cfg HostServiceConfig) (*HostService, error) {
	def := DefaultHostServiceConfig()
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = def.Name
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if strings.TrimSpace(cfg.SyncPath) == "" {
		cfg.SyncPath = def.SyncPath
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = def.SyncInterval
	}
	cfg.Host = cfg.Host.WithDefaults()

	s := &HostService{
		cfg: cfg,
		state: map[string]any{
			"name":         cfg.Name,
			"counter":      0,
			"peers":        []string{},
			"last_message": nil,
		},
	}
	host, err := netsync.NewHost(s.state, cfg.Host, netsync.HostHandlers{
		OnConnect:    func(c *netsync.Connection) { s.setPeers() },
		OnDisconnect: func(c *netsync.Connection) { s.setPeers() },
		OnDropped:    func(c *netsync.Connection) { s.setPeers() },
		OnMessage:    s.onMessage,
	})
	if err != nil {
		return nil, err
	}
	s.host = host
	return s, nil
}

func (s *HostService) Host() *netsync.Host {
	return s.host
}

// Run blocks until SIGINT or SIGTERM.
func (s *HostService) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the host, its HTTP surface and the tick driver on ln until ctx is done.
func (s *HostService) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ws := transport.NewServer(s.host, s.cfg.Host.Transport)
	adm := admin.New(s.host, ws, admin.Options{
		Node:        s.cfg.Name,
		SyncPath:    s.cfg.SyncPath,
		CorsOrigins: s.cfg.CorsOrigins,
	})
	srv := &http.Server{
		Handler:           adm.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := s.host.Run(ctx); err != nil {
			errs <- err
		}
	}()
	go func() {
		defer wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()
	go func() {
		defer wg.Done()
		s.drive(ctx)
	}()
	logs.Warnf("service.HostService.Serve listening addr=%q sync_path=%q", ln.Addr().String(), s.cfg.SyncPath)

	var err error
	select {
	case <-ctx.Done():
	case err = <-errs:
	}
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_ = srv.Shutdown(shutdownCtx)
	_ = ws.Close()
	wg.Wait()
	logs.Warnf("service.HostService.Serve stopped name=%q", s.cfg.Name)
	return err
}

// drive is the external tick driver: one Sync per SyncInterval, one demo
// mutation per MutateInterval.
func (s *HostService) drive(ctx context.Context) {
	syncTicker := time.NewTicker(s.cfg.SyncInterval)
	defer syncTicker.Stop()

	var mutate <-chan time.Time
	if s.cfg.MutateInterval > 0 {
		mutateTicker := time.NewTicker(s.cfg.MutateInterval)
		defer mutateTicker.Stop()
		mutate = mutateTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-syncTicker.C:
			if _, err := s.host.Sync(ctx); err != nil && ctx.Err() == nil {
				logs.Errf("service.HostService.drive sync err=%v", err)
			}
		case <-mutate:
			if err := s.host.Update(ctx, s.increment); err != nil && ctx.Err() == nil {
				logs.Errf("service.HostService.drive update err=%v", err)
			}
		}
	}
}

func (s *HostService) increment() {
	n, _ := s.state["counter"].(int)
	s.state["counter"] = n + 1
}

// setPeers runs on the host loop.
func (s *HostService) setPeers() {
	conns := s.host.Connections()
	peers := make([]string, 0, len(conns))
	for _, c := range conns {
		peers = append(peers, c.ID)
	}
	s.state["peers"] = peers
}

func (s *HostService) onMessage(c *netsync.Connection, msg protocol.Message) {
	logs.Infof("service.HostService.message id=%q type=%q", c.ID, msg.Type)
	s.state["last_message"] = map[string]any{
		"from": c.ID,
		"type": msg.Type,
		"at":   time.Now().UTC().Format(time.RFC3339),
	}
}
