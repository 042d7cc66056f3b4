package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/pingrank"
)

func main() {
	hosts := map[string]mockHost{
		"edge-fast.example.com":     {baseLatency: 20 * time.Millisecond, jitter: 10 * time.Millisecond},
		"edge-slow.example.com":     {baseLatency: 250 * time.Millisecond, jitter: 100 * time.Millisecond},
		"share-eu.example.com":      {baseLatency: 60 * time.Millisecond, jitter: 40 * time.Millisecond},
		"share-us.example.com":      {baseLatency: 90 * time.Millisecond, jitter: 40 * time.Millisecond, dropRate: 0.2},
		"codex-primary.example.com": {baseLatency: 40 * time.Millisecond, jitter: 20 * time.Millisecond},
	}

	// start mock server (see mock_server.go)
	go StartMockLatencyServer(":9999", hosts)
	time.Sleep(100 * time.Millisecond)

	var targets []pingrank.Target
	for _, h := range []string{
		"edge-fast.example.com",
		"edge-slow.example.com",
		"share-eu.example.com",
		"share-us.example.com",
		"codex-primary.example.com",
	} {
		t, err := pingrank.NewTarget(h)
		if err != nil {
			slog.Error("invalid target", "host", h, "error", err)
			os.Exit(1)
		}
		targets = append(targets, t)
	}

	pr, err := pingrank.New(
		pingrank.WithTargets(targets...),
		pingrank.WithTitle("PingRank Demo"),
		pingrank.WithPort(8080),
		pingrank.WithConcurrency(3),
		pingrank.WithAutoMode(false),
		// route every probe to the local mock instead of the real host
		pingrank.WithURLFormat(func(host string) string {
			return "http://localhost:9999/" + host
		}),
		pingrank.WithSnapshotCallback(func(s pingrank.Snapshot) {
			if len(s.Targets) > 0 && s.Targets[0].TestCount > 0 {
				slog.Debug("leader", "host", s.Targets[0].Host, "seq", s.Seq)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create pingrank", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  PingRank Demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 and press \"Start test\"")
	fmt.Println("  5 mock hosts, one of them dropping 20% of requests")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := pr.Start(ctx); err != nil {
		slog.Error("pingrank error", "error", err)
		os.Exit(1)
	}
}
