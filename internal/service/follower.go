package service

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	logs "github.com/danmuck/netsync/internal/logging"
	"github.com/danmuck/netsync/internal/netsync"
	"github.com/danmuck/netsync/internal/protocol"
)

// FollowerServiceConfig configures the syncfollowerctl process.
type FollowerServiceConfig struct {
	Name     string
	Follower netsync.FollowerConfig
}

func DefaultFollowerServiceConfig() FollowerServiceConfig {
	cfg := netsync.DefaultFollowerConfig()
	cfg.URL = "ws://127.0.0.1:8080/sync"
	return FollowerServiceConfig{
		Name:     "syncfollower",
		Follower: cfg,
	}
}

// FollowerService runs one Follower and logs the mirror as it changes.
type FollowerService struct {
	cfg      FollowerServiceConfig
	follower *netsync.Follower
	state    map[string]any
}

func NewFollowerService(cfg FollowerServiceConfig) (*FollowerService, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = DefaultFollowerServiceConfig().Name
	}
	s := &FollowerService{cfg: cfg, state: map[string]any{}}
	f, err := netsync.NewFollower(s.state, cfg.Follower, netsync.FollowerHandlers{
		OnConnect: func() {
			logs.Infof("service.FollowerService.connect name=%q url=%q", s.cfg.Name, s.cfg.Follower.URL)
		},
		OnDisconnect: func() {
			logs.Warnf("service.FollowerService.disconnect name=%q", s.cfg.Name)
		},
		OnMessage: s.onMessage,
	})
	if err != nil {
		return nil, err
	}
	s.follower = f
	return s, nil
}

func (s *FollowerService) Follower() *netsync.Follower {
	return s.follower
}

// Run blocks until SIGINT or SIGTERM, or until the follower gives up.
func (s *FollowerService) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.follower.Run(ctx)
}

func (s *FollowerService) onMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeFullState, protocol.TypeDiff:
		logs.Infof("service.FollowerService.apply type=%s status=%s counter=%v peers=%v",
			msg.Type, s.follower.Status(), s.state["counter"], s.state["peers"])
	case protocol.TypeEmpty:
	default:
		logs.Infof("service.FollowerService.message type=%q", msg.Type)
	}
}
