package config

import (
	"strings"

	"github.com/danmuck/netsync/internal/service"
)

// HostService overlays the file values onto service defaults.
func HostService(cfg HostFileConfig) (service.HostServiceConfig, error) {
	out := service.DefaultHostServiceConfig()
	out.Name = strings.TrimSpace(cfg.Name)
	out.ListenAddr = strings.TrimSpace(cfg.Addr)
	out.SyncPath = strings.TrimSpace(cfg.SyncPath)
	out.CorsOrigins = cfg.CorsOrigins

	var err error
	if d, err := parseDuration("heartbeat_interval", cfg.HeartbeatInterval); err != nil {
		return service.HostServiceConfig{}, err
	} else if d > 0 {
		out.Host.HeartbeatInterval = d
	}
	if d, err := parseDuration("sync_interval", cfg.SyncInterval); err != nil {
		return service.HostServiceConfig{}, err
	} else if d > 0 {
		out.SyncInterval = d
	}
	if cfg.MutateInterval != "" {
		if out.MutateInterval, err = parseDuration("mutate_interval", cfg.MutateInterval); err != nil {
			return service.HostServiceConfig{}, err
		}
	}
	if cfg.MissedPingLimit > 0 {
		out.Host.MissedPingLimit = cfg.MissedPingLimit
	}
	if cfg.SendBuffer > 0 {
		out.Host.Transport.SendBuffer = cfg.SendBuffer
	}
	if cfg.ReadLimit > 0 {
		out.Host.Transport.ReadLimit = cfg.ReadLimit
	}
	return out, nil
}

// FollowerService overlays the file values onto service defaults.
func FollowerService(cfg FollowerFileConfig) (service.FollowerServiceConfig, error) {
	out := service.DefaultFollowerServiceConfig()
	out.Name = strings.TrimSpace(cfg.Name)
	out.Follower.URL = strings.TrimSpace(cfg.URL)
	if cfg.Reconnect != nil {
		out.Follower.Reconnect = *cfg.Reconnect
	}
	out.Follower.MaxConnectAttempts = cfg.MaxConnectAttempts

	if d, err := parseDuration("backoff_initial", cfg.BackoffInitial); err != nil {
		return service.FollowerServiceConfig{}, err
	} else if d > 0 {
		out.Follower.Backoff.InitialDelay = d
	}
	if d, err := parseDuration("backoff_max", cfg.BackoffMax); err != nil {
		return service.FollowerServiceConfig{}, err
	} else if d > 0 {
		out.Follower.Backoff.MaxDelay = d
	}
	if cfg.SendBuffer > 0 {
		out.Follower.Transport.SendBuffer = cfg.SendBuffer
	}
	if cfg.ReadLimit > 0 {
		out.Follower.Transport.ReadLimit = cfg.ReadLimit
	}
	return out, nil
}
