// Package main is the entry point for the pingrank CLI.
//
// PingRank can be embedded as a library (SDK) or run as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	pingrank serve -c config.yaml       # Serve the live dashboard
//	pingrank run -c config.yaml -n 10   # Run 10 rounds and print the ranking
//	pingrank validate -c config.yaml    # Validate configuration
//	pingrank version                    # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd only displays help; functionality lives in subcommands.
var rootCmd = &cobra.Command{
	Use:   "pingrank",
	Short: "Rank hosts by HTTP round-trip latency",
	Long: `PingRank measures HTTP round-trip latency to a set of hosts and keeps a
live ranking of them, fastest first.

Quick start:
  1. Run: pingrank serve --targets api.example.com,cdn.example.com
  2. Open http://localhost:8080 in your browser

Or headless:
  pingrank run --targets api.example.com,cdn.example.com --rounds 5

Example config:
  port: 8080
  mode: manual
  concurrency: 6
  targets:
    - api.example.com
    - share-eu.example.com`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this pingrank binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "pingrank %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.AddCommand(versionCmd)
}
