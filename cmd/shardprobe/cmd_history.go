package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/shardprobe/internal/evidence"
	"github.com/hamed0406/shardprobe/internal/repo/postgres"
)

var historyFlags struct {
	limit    int
	markdown bool
}

var historyCmd = &cobra.Command{
	Use:   "history [RUN_ID]",
	Short: "List archived runs, or print the summary of one (needs DATABASE_URL)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.IntVar(&historyFlags.limit, "limit", 20, "Number of runs to list")
	f.BoolVar(&historyFlags.markdown, "markdown", false, "Render summary tables as Markdown")
}

// archivedRuns is the read side of the run archive.
type archivedRuns interface {
	RecentRunIDs(ctx context.Context, limit int) ([]string, error)
	LoadReport(ctx context.Context, runID string) (evidence.Report, error)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("history needs DATABASE_URL")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := postgres.New(ctx, cfg.DatabaseURL, zap.NewNop())
	if err != nil {
		return fmt.Errorf("open run archive: %w", err)
	}
	defer store.Close()

	f := evidence.FormatText
	if historyFlags.markdown {
		f = evidence.FormatMarkdown
	}
	return printHistory(ctx, cmd.OutOrStdout(), store, args, historyFlags.limit, f)
}

func printHistory(ctx context.Context, out io.Writer, runs archivedRuns, args []string, limit int, f evidence.Format) error {
	if len(args) == 1 {
		r, err := runs.LoadReport(ctx, args[0])
		if errors.Is(err, postgres.ErrRunNotFound) {
			return fmt.Errorf("run %s is not archived", args[0])
		}
		if err != nil {
			return err
		}
		return evidence.Render(out, r, evidence.Summarize(r), f)
	}

	ids, err := runs.RecentRunIDs(ctx, limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(out, "no archived runs")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(out, id)
	}
	return nil
}
