package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pingrank"
	"github.com/jpalmerr/pingrank/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the PingRank dashboard server.

The server will:
  - Load configuration from the given YAML file, if any
  - In auto mode, probe all targets continuously
  - Serve the live ranking on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  pingrank serve -c config.yaml
  pingrank serve --targets api.example.com,cdn.example.com`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addConfigFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := loggerFromFlags(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger.Info("config loaded",
		"targets", len(cfg.Targets),
		"grids", len(cfg.Grids),
		"mode", cfg.Mode,
	)

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts, pingrank.WithLogger(logger))

	pr, err := pingrank.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create PingRank: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serveUntilDone(ctx, pr.Start, logger.Info, logger.Warn)
}

// serveUntilDone runs start until it returns, waiting at most
// shutdownTimeout after ctx is cancelled.
func serveUntilDone(ctx context.Context, start func(context.Context) error, info, warn func(string, ...any)) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		info("shutdown complete")
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
