// fixture serves a local directory laid out as <bucket>/<subbucket>/<file>
// under the chosen path variants, so shardprobe can be validated offline.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/shardprobe/internal/domain"
	"github.com/hamed0406/shardprobe/internal/fixture"
	"github.com/hamed0406/shardprobe/internal/logging"
)

var flags struct {
	addr       string
	dir        string
	variants   string
	logDir     string
	rejectHead bool
	delay      time.Duration
	failFirst  int
}

var rootCmd = &cobra.Command{
	Use:          "fixture",
	Short:        "Serve a local mirror of a sharded repository",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         serve,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flags.addr, "addr", "127.0.0.1:8081", "Listen address")
	f.StringVar(&flags.dir, "dir", ".", "Directory holding <bucket>/<subbucket>/<file>")
	f.StringVar(&flags.variants, "variants", "3D", "Comma-separated variants to serve; others answer 404")
	f.StringVar(&flags.logDir, "log-dir", "logs", "Log directory")
	f.BoolVar(&flags.rejectHead, "reject-head", false, "Answer HEAD with 405")
	f.DurationVar(&flags.delay, "delay", 0, "Delay before every file response")
	f.IntVar(&flags.failFirst, "fail-first", 0, "Answer the first N file requests with 503")
}

func serve(cmd *cobra.Command, _ []string) error {
	logger, err := logging.NewLogger(flags.logDir)
	if err != nil {
		return fmt.Errorf("cannot write logs: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if _, err := os.Stat(flags.dir); err != nil {
		return err
	}
	srv := fixture.New(logger, fixture.Options{
		Variants:   domain.ParseVariants(flags.variants),
		Files:      os.DirFS(flags.dir),
		RejectHead: flags.rejectHead,
		Delay:      flags.delay,
		FailFirst:  flags.failFirst,
	})

	logger.Info("fixture_listen", zap.String("addr", flags.addr), zap.String("dir", flags.dir), zap.String("variants", flags.variants))
	fmt.Fprintf(cmd.OutOrStdout(), "serving %s on http://%s (variants %s)\n", flags.dir, flags.addr, flags.variants)
	return http.ListenAndServe(flags.addr, srv.Router())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✖", err)
		os.Exit(1)
	}
}
