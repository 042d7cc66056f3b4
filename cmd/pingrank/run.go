package main

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pingrank"
	"github.com/jpalmerr/pingrank/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run manual rounds and print the ranking",
	Long: `Run a fixed number of probing rounds without the dashboard, then print
the final ranking as a table.

Every round probes each target once. Rounds are separated by the
configured round_pause. Interrupting the run prints the ranking so far.

Example:
  pingrank run -c config.yaml
  pingrank run --targets api.example.com,cdn.example.com --rounds 5
  pingrank run --category private`,
	RunE: runRounds,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addConfigFlags(runCmd)
	runCmd.Flags().IntP("rounds", "n", 0, "number of rounds (defaults to the configured rounds)")
	runCmd.Flags().String("category", "", "only print targets in this category (public, private, codex)")
}

func runRounds(cmd *cobra.Command, args []string) error {
	logger, err := loggerFromFlags(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var category pingrank.Category
	if c, _ := cmd.Flags().GetString("category"); c != "" {
		if category, err = pingrank.ParseCategory(c); err != nil {
			return err
		}
	}

	n, _ := cmd.Flags().GetInt("rounds")
	if n < 0 {
		return fmt.Errorf("--rounds must be positive, got %d", n)
	}

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts, pingrank.WithLogger(logger), pingrank.WithAutoMode(false))

	pr, err := pingrank.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create PingRank: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := pr.RunRounds(ctx, n)
	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("run failed: %w", runErr)
	}

	snap := pr.Snapshot()
	targets := snap.Targets
	if category != "" {
		targets = snap.Filter(category)
	}
	if err := printRanking(cmd.OutOrStdout(), targets); err != nil {
		return err
	}

	if runErr != nil {
		return errors.New("run interrupted")
	}
	return nil
}

// printRanking writes targets as an aligned table in rank order.
func printRanking(w io.Writer, targets []pingrank.TargetStats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tHOST\tCATEGORY\tAVG\tMIN\tMAX\tTESTS\tLOSS")
	for i, t := range targets {
		m := t.Metrics()
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			i+1,
			t.Host,
			t.Category,
			formatMs(m.Average),
			formatMs(m.Min),
			formatMs(m.Max),
			t.TestCount,
			t.PacketLoss(),
		)
	}
	return tw.Flush()
}

func formatMs(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2fms", *v)
}
