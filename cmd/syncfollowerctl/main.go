package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"

	logs "github.com/danmuck/netsync/internal/logging"
	"github.com/danmuck/netsync/internal/service"
)

func main() {
	path := flag.String("config", "cmd/syncfollowerctl/config.toml", "config path (defaults apply when missing)")
	url := flag.String("url", "", "host sync url, overrides config")
	flag.Parse()
	logs.ConfigureRuntime()

	cfg, err := loadServiceConfig(*path)
	if errors.Is(err, fs.ErrNotExist) {
		logs.Warnf("syncfollowerctl config not found path=%q, using defaults", *path)
		cfg, err = service.DefaultFollowerServiceConfig(), nil
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "syncfollowerctl: %v\n", err)
		os.Exit(1)
	}
	if v := strings.TrimSpace(*url); v != "" {
		cfg.Follower.URL = v
	}

	svc, err := service.NewFollowerService(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "syncfollowerctl: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "syncfollowerctl: %v\n", err)
		os.Exit(1)
	}
}
