package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/netsync/internal/service"
)

// synchostctl config.toml key mapping to HostService settings.
type fileConfig struct {
	Name                string   `toml:"name"`
	Addr                string   `toml:"addr"`
	SyncPath            string   `toml:"sync_path"`
	CorsOrigins         []string `toml:"cors_origins"`
	HeartbeatInterval   string   `toml:"heartbeat_interval"`
	HeartbeatIntervalMS int64    `toml:"heartbeat_interval_ms"`
	MissedPingLimit     int      `toml:"missed_ping_limit"`
	SyncInterval        string   `toml:"sync_interval"`
	MutateInterval      string   `toml:"mutate_interval"`
	SendBuffer          int      `toml:"send_buffer"`
	ReadLimit           int64    `toml:"read_limit"`
}

func loadServiceConfig(path string) (service.HostServiceConfig, error) {
	cfg := service.DefaultHostServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return service.HostServiceConfig{}, fmt.Errorf("load synchost config: %w", err)
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Name = name
		}
	}
	if meta.IsDefined("addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("sync_path") {
		cfg.SyncPath = strings.TrimSpace(raw.SyncPath)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("heartbeat_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HeartbeatInterval))
		if err != nil {
			return service.HostServiceConfig{}, fmt.Errorf("parse heartbeat_interval: %w", err)
		}
		cfg.Host.HeartbeatInterval = d
	}
	if meta.IsDefined("heartbeat_interval_ms") {
		cfg.Host.HeartbeatInterval = time.Duration(raw.HeartbeatIntervalMS) * time.Millisecond
	}
	if meta.IsDefined("missed_ping_limit") {
		cfg.Host.MissedPingLimit = raw.MissedPingLimit
	}
	if meta.IsDefined("sync_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.SyncInterval))
		if err != nil {
			return service.HostServiceConfig{}, fmt.Errorf("parse sync_interval: %w", err)
		}
		cfg.SyncInterval = d
	}
	if meta.IsDefined("mutate_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.MutateInterval))
		if err != nil {
			return service.HostServiceConfig{}, fmt.Errorf("parse mutate_interval: %w", err)
		}
		cfg.MutateInterval = d
	}
	if meta.IsDefined("send_buffer") {
		cfg.Host.Transport.SendBuffer = raw.SendBuffer
	}
	if meta.IsDefined("read_limit") {
		cfg.Host.Transport.ReadLimit = raw.ReadLimit
	}

	if err := cfg.Host.WithDefaults().Validate(); err != nil {
		return service.HostServiceConfig{}, err
	}
	return cfg, nil
}
