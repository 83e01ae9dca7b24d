package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/netsync/internal/config"
	logs "github.com/danmuck/netsync/internal/logging"
)

func defaultPath(kind string) (string, error) {
	switch kind {
	case "host":
		return "cmd/synchostctl/config.toml", nil
	case "follower":
		return "cmd/syncfollowerctl/config.toml", nil
	default:
		return "", fmt.Errorf("unknown kind: %s", kind)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
	os.Exit(1)
}

func main() {
	kind := flag.String("kind", "host", "config kind: host|follower")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()
	logs.ConfigureRuntime()

	path := *output
	if *validate {
		path = *input
	}
	if path == "" {
		var err error
		if path, err = defaultPath(*kind); err != nil {
			fail(err)
		}
	}

	if *validate {
		if err := config.Validate(path, *kind); err != nil {
			fail(err)
		}
		logs.Infof("configgen validated kind=%s path=%q", *kind, path)
		return
	}
	if err := config.WriteTemplate(path, *kind, *force); err != nil {
		fail(err)
	}
	logs.Infof("configgen wrote kind=%s path=%q", *kind, path)
}
