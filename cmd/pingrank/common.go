package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pingrank"
	"github.com/jpalmerr/pingrank/config"
)

// newLogger creates a JSON logger for CLI use.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func loggerFromFlags(cmd *cobra.Command) (*slog.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	return newLogger(cmd.ErrOrStderr(), level)
}

// addConfigFlags registers the flags shared by serve and run.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "path to config file (defaults apply when omitted)")
	cmd.Flags().StringP("targets", "t", "", "comma-separated hosts, replacing the configured targets")
}

// loadConfig reads --config, or returns the defaults when it is not set,
// then applies --targets.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.Parse(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if list, _ := cmd.Flags().GetString("targets"); list != "" {
		targets, err := pingrank.ParseTargets(list)
		if err != nil {
			return nil, fmt.Errorf("invalid --targets: %w", err)
		}
		cfg.Targets = cfg.Targets[:0]
		for _, t := range targets {
			cfg.Targets = append(cfg.Targets, t.Host())
		}
		cfg.Grids = nil
	}
	return cfg, nil
}
