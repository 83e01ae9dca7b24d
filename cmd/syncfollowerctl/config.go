package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/netsync/internal/service"
)

// syncfollowerctl config.toml key mapping to FollowerService settings.
type fileConfig struct {
	Name               string `toml:"name"`
	URL                string `toml:"url"`
	Reconnect          bool   `toml:"reconnect"`
	MaxConnectAttempts int    `toml:"max_connect_attempts"`
	BackoffInitial     string `toml:"backoff_initial"`
	BackoffMax         string `toml:"backoff_max"`
	BackoffJitter      bool   `toml:"backoff_jitter"`
	SendBuffer         int    `toml:"send_buffer"`
	ReadLimit          int64  `toml:"read_limit"`
}

func loadServiceConfig(path string) (service.FollowerServiceConfig, error) {
	cfg := service.DefaultFollowerServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return service.FollowerServiceConfig{}, fmt.Errorf("load syncfollower config: %w", err)
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Name = name
		}
	}
	if meta.IsDefined("url") {
		cfg.Follower.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("reconnect") {
		cfg.Follower.Reconnect = raw.Reconnect
	}
	if meta.IsDefined("max_connect_attempts") {
		cfg.Follower.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	if meta.IsDefined("backoff_initial") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.BackoffInitial))
		if err != nil {
			return service.FollowerServiceConfig{}, fmt.Errorf("parse backoff_initial: %w", err)
		}
		cfg.Follower.Backoff.InitialDelay = d
	}
	if meta.IsDefined("backoff_max") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.BackoffMax))
		if err != nil {
			return service.FollowerServiceConfig{}, fmt.Errorf("parse backoff_max: %w", err)
		}
		cfg.Follower.Backoff.MaxDelay = d
	}
	if meta.IsDefined("backoff_jitter") {
		cfg.Follower.Backoff.Jitter = raw.BackoffJitter
	}
	if meta.IsDefined("send_buffer") {
		cfg.Follower.Transport.SendBuffer = raw.SendBuffer
	}
	if meta.IsDefined("read_limit") {
		cfg.Follower.Transport.ReadLimit = raw.ReadLimit
	}
	return cfg, nil
}
