package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

var ErrInvalidConfig = errors.New("config: invalid")

// HostFileConfig is the synchostctl config.toml schema.
type HostFileConfig struct {
	Name              string   `toml:"name"`
	Addr              string   `toml:"addr"`
	SyncPath          string   `toml:"sync_path"`
	CorsOrigins       []string `toml:"cors_origins"`
	HeartbeatInterval string   `toml:"heartbeat_interval"`
	MissedPingLimit   int      `toml:"missed_ping_limit"`
	SyncInterval      string   `toml:"sync_interval"`
	MutateInterval    string   `toml:"mutate_interval"`
	SendBuffer        int      `toml:"send_buffer"`
	ReadLimit         int64    `toml:"read_limit"`
}

// FollowerFileConfig is the syncfollowerctl config.toml schema.
type FollowerFileConfig struct {
	Name               string `toml:"name"`
	URL                string `toml:"url"`
	Reconnect          *bool  `toml:"reconnect"`
	MaxConnectAttempts int    `toml:"max_connect_attempts"`
	BackoffInitial     string `toml:"backoff_initial"`
	BackoffMax         string `toml:"backoff_max"`
	SendBuffer         int    `toml:"send_buffer"`
	ReadLimit          int64  `toml:"read_limit"`
}

func LoadHostConfig(path string) (HostFileConfig, error) {
	var cfg HostFileConfig
	if err := loadToml(path, &cfg); err != nil {
		return HostFileConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "synchost"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.SyncPath == "" {
		cfg.SyncPath = "/sync"
	}
	if err := ValidateHostConfig(cfg); err != nil {
		return HostFileConfig{}, err
	}
	return cfg, nil
}

func LoadFollowerConfig(path string) (FollowerFileConfig, error) {
	var cfg FollowerFileConfig
	if err := loadToml(path, &cfg); err != nil {
		return FollowerFileConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "syncfollower"
	}
	if err := ValidateFollowerConfig(cfg); err != nil {
		return FollowerFileConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateHostConfig(cfg HostFileConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("%w: host config missing name", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("%w: host config missing addr", ErrInvalidConfig)
	}
	if !strings.HasPrefix(strings.TrimSpace(cfg.SyncPath), "/") {
		return fmt.Errorf("%w: sync_path must start with /", ErrInvalidConfig)
	}
	for _, field := range []struct{ key, raw string }{
		{"heartbeat_interval", cfg.HeartbeatInterval},
		{"sync_interval", cfg.SyncInterval},
		{"mutate_interval", cfg.MutateInterval},
	} {
		if _, err := parseDuration(field.key, field.raw); err != nil {
			return err
		}
	}
	if cfg.MissedPingLimit < 0 {
		return fmt.Errorf("%w: missed_ping_limit must not be negative", ErrInvalidConfig)
	}
	return validateLimits(cfg.SendBuffer, cfg.ReadLimit)
}

func ValidateFollowerConfig(cfg FollowerFileConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("%w: follower config missing name", ErrInvalidConfig)
	}
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return fmt.Errorf("%w: follower config missing url", ErrInvalidConfig)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: url: %v", ErrInvalidConfig, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: url scheme must be ws or wss, got %q", ErrInvalidConfig, u.Scheme)
	}
	if cfg.MaxConnectAttempts < 0 {
		return fmt.Errorf("%w: max_connect_attempts must not be negative", ErrInvalidConfig)
	}
	if _, err := parseDuration("backoff_initial", cfg.BackoffInitial); err != nil {
		return err
	}
	if _, err := parseDuration("backoff_max", cfg.BackoffMax); err != nil {
		return err
	}
	return validateLimits(cfg.SendBuffer, cfg.ReadLimit)
}

func validateLimits(sendBuffer int, readLimit int64) error {
	if sendBuffer < 0 {
		return fmt.Errorf("%w: send_buffer must not be negative", ErrInvalidConfig)
	}
	if readLimit < 0 {
		return fmt.Errorf("%w: read_limit must not be negative", ErrInvalidConfig)
	}
	return nil
}

// parseDuration treats an empty value as unset.
func parseDuration(key, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, key)
	}
	return d, nil
}
