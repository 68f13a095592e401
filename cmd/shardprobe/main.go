// shardprobe probes which URL variant, local directory strategy and
// retrieval strategy work against a sharded remote repository.
//
// Usage:
//
//	shardprobe [run] [--root=<url>] [--variants=2D,3D] [--key=ACAAML] [--index-file=<path>]
//	shardprobe resolve --key=ACAAML [--variants=3D]
//	shardprobe history [RUN_ID] [--limit=20]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "shardprobe",
	Short: "Probe path variants and retrieval strategies of a sharded repository",
	Long: "shardprobe fetches a known resource with several retrieval strategies,\n" +
		"checks which path variants the server serves, and prints the evidence.\n" +
		"Run it before trusting a batch download of similarly shaped resources.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	RunE: runRun,
}

func init() {
	bindConfigFlags(rootCmd)
	bindRunFlags(rootCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✖", err)
		os.Exit(1)
	}
}
