package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hamed0406/shardprobe/internal/config"
	"github.com/hamed0406/shardprobe/internal/domain"
)

var cfgFlags struct {
	file          string
	root          string
	variants      string
	fetchVariants string
	key           string
	indexKey      string
	indexFile     string
	suffix        string
	workDir       string
	logDir        string
	retries       int
}

// bindConfigFlags registers the flags that override environment and file
// configuration. They are persistent so every subcommand accepts them.
func bindConfigFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&cfgFlags.file, "config", "c", "", "YAML config file layered over the environment")
	f.StringVar(&cfgFlags.root, "root", "", "Server root URL (env SERVER_ROOT)")
	f.StringVar(&cfgFlags.variants, "variants", "", "Comma-separated path variants to probe (env VARIANTS)")
	f.StringVar(&cfgFlags.fetchVariants, "fetch-variants", "", "Comma-separated variants every strategy fetches from (env FETCH_VARIANTS)")
	f.StringVarP(&cfgFlags.key, "key", "k", "", "Reference key, e.g. ACAAML (env TEST_KEY)")
	f.StringVar(&cfgFlags.indexKey, "index-key", "", "Production-index-shaped key (env INDEX_KEY)")
	f.StringVar(&cfgFlags.indexFile, "index-file", "", ".uri or rsync index whose first entry supplies the index key (env INDEX_FILE)")
	f.StringVar(&cfgFlags.suffix, "suffix", "", "Resource file suffix (env SUFFIX)")
	f.StringVar(&cfgFlags.workDir, "work-dir", "", "Working directory for downloads (env WORK_DIR)")
	f.StringVar(&cfgFlags.logDir, "log-dir", "", "Log directory (env LOG_DIR)")
	f.IntVar(&cfgFlags.retries, "retries", 0, "Re-attempts per strategy on transient failure (env RETRY_ATTEMPTS)")
}

// loadConfig layers environment, optional YAML file and changed flags, then
// validates the result.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.FromEnv()
	if cfgFlags.file != "" {
		var err error
		if cfg, err = config.LoadFile(cfg, cfgFlags.file); err != nil {
			return cfg, err
		}
	}

	changed := cmd.Flags().Changed
	str := func(name string, dst *string, v string) {
		if changed(name) {
			*dst = v
		}
	}
	str("root", &cfg.ServerRoot, cfgFlags.root)
	str("key", &cfg.TestKey, cfgFlags.key)
	str("index-key", &cfg.IndexKey, cfgFlags.indexKey)
	str("index-file", &cfg.IndexFile, cfgFlags.indexFile)
	str("suffix", &cfg.Suffix, cfgFlags.suffix)
	str("work-dir", &cfg.WorkDir, cfgFlags.workDir)
	str("log-dir", &cfg.LogDir, cfgFlags.logDir)
	if changed("variants") {
		cfg.Variants = domain.ParseVariants(cfgFlags.variants)
	}
	if changed("fetch-variants") {
		cfg.FetchVariants = domain.ParseVariants(cfgFlags.fetchVariants)
	}
	if changed("retries") {
		cfg.RetryAttempts = cfgFlags.retries
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
