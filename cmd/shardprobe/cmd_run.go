package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/shardprobe/internal/evidence"
	"github.com/hamed0406/shardprobe/internal/harness"
	"github.com/hamed0406/shardprobe/internal/logging"
	"github.com/hamed0406/shardprobe/internal/repo/postgres"
)

var runFlags struct {
	markdown bool
	keep     bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every strategy and existence probe, then print the summary (default)",
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

func init() {
	bindRunFlags(runCmd)
}

func bindRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&runFlags.markdown, "markdown", false, "Render summary tables as Markdown")
	f.BoolVar(&runFlags.keep, "keep", false, "Keep successfully fetched files for inspection (env KEEP_ARTIFACTS)")
}

// runRun exits non-zero only for local fatal errors. Strategy failures are
// the evidence, not an error.
func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("keep") {
		cfg.KeepArtifacts = runFlags.keep
	}

	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("cannot write logs: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := harness.New(logger, cfg, cmd.OutOrStdout())
	if runFlags.markdown {
		h.Format = evidence.FormatMarkdown
	}
	if cfg.DatabaseURL != "" {
		if store, err := openArchive(ctx, cfg.DatabaseURL, logger); err != nil {
			logger.Warn("archive_unavailable", zap.Error(err))
			fmt.Fprintln(cmd.ErrOrStderr(), "⚠ run archive unavailable:", err)
		} else {
			defer store.Close()
			h.Archive = store
		}
	}
	if _, _, err := h.Run(ctx); err != nil {
		logger.Error("run_fatal", zap.Error(err))
		return err
	}
	return nil
}

func openArchive(ctx context.Context, dsn string, logger *zap.Logger) (*postgres.Store, error) {
	store, err := postgres.New(ctx, dsn, logger)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
