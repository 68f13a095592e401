package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hamed0406/shardprobe/internal/domain"
	"github.com/hamed0406/shardprobe/internal/shard"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [KEY]",
	Short: "Print the remote URL and local paths for a key under each variant",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	raw := cfg.TestKey
	if len(args) == 1 {
		raw = args[0]
	}
	key, err := domain.ParseResourceKey(raw)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, v := range cfg.Variants {
		t, err := shard.Resolve(cfg.ServerRoot, key, v, cfg.Suffix, cfg.WorkDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n  url:    %s\n  flat:   %s\n  nested: %s\n", v, t.URL, t.FlatPath, t.NestedPath)
	}
	return nil
}
