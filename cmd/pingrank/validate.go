package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pingrank"
	"github.com/jpalmerr/pingrank/config"
)

// validateCmd validates a config file without starting anything.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a PingRank configuration file without probing anything.

This command parses the YAML, expands environment variables, validates all
fields and expands grids into targets. It is useful for CI/CD pipelines or
pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  pingrank validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	targets, err := config.BuildTargets(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	direct := len(cfg.Targets)
	fromGrids := len(targets) - direct

	// catches duplicates across targets and grids
	if len(targets) > 0 {
		if _, err := pingrank.NewRegistry(targets...); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:          %d\n", cfg.Port)
	fmt.Fprintf(out, "  Mode:          %s\n", cfg.Mode)
	fmt.Fprintf(out, "  Concurrency:   %d\n", cfg.Concurrency)
	fmt.Fprintf(out, "  Probe timeout: %s\n", cfg.ProbeTimeout.Duration())
	if len(targets) == 0 {
		fmt.Fprintf(out, "  Targets:       none configured, using defaults (%s)\n", pingrank.DefaultTargets)
	} else {
		fmt.Fprintf(out, "  Targets:       %d direct + %d from grids = %d total\n",
			direct, fromGrids, len(targets))
	}

	return nil
}
