// cmd/preflight/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hamed0406/shardprobe/internal/config"
	"github.com/hamed0406/shardprobe/internal/index"
	"github.com/hamed0406/shardprobe/internal/probe"
)

func main() {
	failed := false
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		failed = true
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "; ") {
			fail(line)
		}
	} else {
		ok("configuration valid")
	}

	ok("SERVER_ROOT=" + cfg.ServerRoot)
	if strings.TrimSpace(os.Getenv("VARIANTS")) == "" {
		warn("VARIANTS empty; probing the default 2D,3D")
	}

	if err := writable(cfg.WorkDir); err != nil {
		fail("WORK_DIR not writable: " + err.Error())
	} else {
		ok("WORK_DIR=" + cfg.WorkDir + " writable")
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		fail("LOG_DIR cannot be created: " + err.Error())
	} else if err := writable(cfg.LogDir); err != nil {
		fail("LOG_DIR not writable: " + err.Error())
	} else {
		ok("LOG_DIR=" + cfg.LogDir + " writable")
	}

	if cfg.IndexFile != "" {
		entries, err := index.ReadFile(cfg.IndexFile)
		if first, ferr := index.First(entries); err != nil || ferr != nil {
			fail(fmt.Sprintf("INDEX_FILE unusable: %v", firstErr(err, ferr)))
		} else {
			ok(fmt.Sprintf("INDEX_FILE has %d entries; first %s under %s", len(entries), first.Key, first.Variant))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dns := probe.CheckDNS(ctx, hostOf(cfg.ServerRoot))
	if dns.Resolvable() {
		ok("DNS " + dns.Class)
	} else {
		warn("DNS " + dns.Class + " for " + hostOf(cfg.ServerRoot) + "; expect HostUnreachable outcomes")
	}

	if cfg.SlackWebhookURL == "" {
		warn("SLACK_WEBHOOK_URL empty; summary will only be printed")
	} else {
		ok("SLACK_WEBHOOK_URL present")
	}

	if failed {
		os.Exit(1)
	}
	ok("preflight passed")
}

func writable(dir string) error {
	f, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}

func hostOf(root string) string {
	if i := strings.Index(root, "://"); i >= 0 {
		root = root[i+3:]
	}
	if i := strings.IndexAny(root, "/:"); i >= 0 {
		root = root[:i]
	}
	return root
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
