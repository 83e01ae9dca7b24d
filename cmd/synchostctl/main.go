package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	logs "github.com/danmuck/netsync/internal/logging"
	"github.com/danmuck/netsync/internal/service"
)

func main() {
	path := flag.String("config", "cmd/synchostctl/config.toml", "config path (defaults apply when missing)")
	flag.Parse()
	logs.ConfigureRuntime()

	cfg, err := loadServiceConfig(*path)
	if errors.Is(err, fs.ErrNotExist) {
		logs.Warnf("synchostctl config not found path=%q, using defaults", *path)
		cfg, err = service.DefaultHostServiceConfig(), nil
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "synchostctl: %v\n", err)
		os.Exit(1)
	}

	svc, err := service.NewHostService(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "synchostctl: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "synchostctl: %v\n", err)
		os.Exit(1)
	}
}
