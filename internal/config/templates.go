package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "host":
		return hostTemplate, nil
	case "follower":
		return followerTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// Validate loads path as the given kind.
func Validate(path, kind string) error {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "host":
		_, err := LoadHostConfig(path)
		return err
	case "follower":
		_, err := LoadFollowerConfig(path)
		return err
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}

const hostTemplate = `name = "synchost"
addr = ":8080"
sync_path = "/sync"
cors_origins = ["http://localhost:3000"]
heartbeat_interval = "250ms"
missed_ping_limit = 4
sync_interval = "100ms"
mutate_interval = "1s"
send_buffer = 256
`

const followerTemplate = `name = "syncfollower"
url = "ws://127.0.0.1:8080/sync"
reconnect = true
max_connect_attempts = 0
backoff_initial = "250ms"
backoff_max = "5s"
send_buffer = 256
`
