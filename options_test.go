package pingrank

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"
)

func mustTargets(t *testing.T, list string) []Target {
	t.Helper()
	targets, err := ParseTargets(list)
	if err != nil {
		t.Fatalf("ParseTargets(%q) error = %v", list, err)
	}
	return targets
}

func TestNew_Valid(t *testing.T) {
	pr, err := New(WithTargets(mustTargets(t, "a.example.com,b.example.com")...))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if len(pr.Targets()) != 2 {
		t.Errorf("len(Targets()) = %v, want %v", len(pr.Targets()), 2)
	}
}

func TestNew_Defaults(t *testing.T) {
	pr, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got := len(pr.Targets()); got != 6 {
		t.Errorf("len(Targets()) = %d, want 6 default targets", got)
	}
	if pr.Targets()[0].Host() != "claude.ai" {
		t.Errorf("Targets()[0] = %q, want %q", pr.Targets()[0].Host(), "claude.ai")
	}
	if pr.Port() != 8080 {
		t.Errorf("Port() = %d, want 8080", pr.Port())
	}
	if pr.Concurrency() != 6 {
		t.Errorf("Concurrency() = %d, want 6", pr.Concurrency())
	}
	if !pr.autoMode {
		t.Error("auto mode should be enabled by default")
	}

	p := pr.Progress()
	if p.State != RunIdle || p.Busy || p.Manual {
		t.Errorf("Progress() = %+v, want idle", p)
	}
}

func TestNew_InitialSnapshotIsPending(t *testing.T) {
	pr, err := New(WithTargets(mustTargets(t, "a.example.com,b.example.com")...))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	snap := pr.Snapshot()
	if len(snap.Targets) != 2 {
		t.Fatalf("len(Targets) = %d, want 2", len(snap.Targets))
	}
	for i, ts := range snap.Targets {
		if ts.Status != StatusPending {
			t.Errorf("Targets[%d].Status = %q, want pending", i, ts.Status)
		}
		if ts.PacketLoss() != "0%" {
			t.Errorf("Targets[%d].PacketLoss() = %q, want 0%%", i, ts.PacketLoss())
		}
	}
	if snap.Targets[0].Host != "a.example.com" {
		t.Errorf("unmeasured targets should keep registry order, got %q first", snap.Targets[0].Host)
	}
}

func TestNew_DuplicateTargets(t *testing.T) {
	a, _ := NewTarget("api.example.com")
	b, _ := NewTarget("api.example.com")

	_, err := New(WithTarget(a), WithTarget(b))
	if err == nil {
		t.Fatal("New() expected error for duplicate targets, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate target") {
		t.Errorf("New() error = %v, want error containing 'duplicate target'", err)
	}
}

func TestNew_ZeroTarget(t *testing.T) {
	_, err := New(WithTarget(Target{}))
	if err == nil {
		t.Error("New() expected error for zero-value target, got nil")
	}
}

func TestOptions_Validation(t *testing.T) {
	tests := []struct {
		name    string
		opt     Option
		wantErr bool
	}{
		{"concurrency positive", WithConcurrency(3), false},
		{"concurrency zero", WithConcurrency(0), true},
		{"concurrency negative", WithConcurrency(-1), true},
		{"probe timeout positive", WithProbeTimeout(time.Second), false},
		{"probe timeout zero", WithProbeTimeout(0), true},
		{"rounds positive", WithRounds(3), false},
		{"rounds zero", WithRounds(0), true},
		{"round pause zero", WithRoundPause(0), false},
		{"round pause negative", WithRoundPause(-time.Second), true},
		{"auto pause positive", WithAutoPause(time.Second), false},
		{"auto pause negative", WithAutoPause(-time.Second), true},
		{"port min", WithPort(1), false},
		{"port max", WithPort(65535), false},
		{"port zero", WithPort(0), true},
		{"port too high", WithPort(65536), true},
		{"retention full", WithRetention(RetentionFullHistory), false},
		{"retention best", WithRetention(RetentionBestOf), false},
		{"retention unknown", WithRetention(Retention(42)), true},
		{"dispatch rate zero", WithDispatchRate(0), false},
		{"dispatch rate negative", WithDispatchRate(-1), true},
		{"logger nil", WithLogger(nil), true},
		{"http client nil", WithHTTPClient(nil), true},
		{"http client", WithHTTPClient(&http.Client{}), false},
		{"url format nil", WithURLFormat(nil), true},
		{"snapshot callback nil", WithSnapshotCallback(nil), false},
		{"auto mode off", WithAutoMode(false), false},
		{"title", WithTitle("Latency"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOptions_Applied(t *testing.T) {
	pr, err := New(
		WithTargets(mustTargets(t, "a.example.com")...),
		WithConcurrency(2),
		WithPort(9090),
		WithAutoMode(false),
		WithTitle("Latency"),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if pr.Concurrency() != 2 {
		t.Errorf("Concurrency() = %d, want 2", pr.Concurrency())
	}
	if pr.Port() != 9090 {
		t.Errorf("Port() = %d, want 9090", pr.Port())
	}
	if pr.autoMode {
		t.Error("auto mode should be disabled")
	}
	if pr.title != "Latency" {
		t.Errorf("title = %q, want %q", pr.title, "Latency")
	}
}

func TestWithSnapshotCallback_NilIgnored(t *testing.T) {
	pr, err := New(WithSnapshotCallback(nil))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(pr.callbacks) != 0 {
		t.Errorf("len(callbacks) = %d, want 0", len(pr.callbacks))
	}
}

func TestWithLogger_UsedForProbeLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	srv := newProbeServer(t, map[string]hostBehaviour{"down.test": {fail: true}})
	pr := newTestPingRank(t, srv, "up.test,down.test", WithLogger(logger))

	if err := pr.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "probe failed") || !strings.Contains(out, "down.test") {
		t.Errorf("expected failure logged for down.test, got:\n%s", out)
	}
	if !strings.Contains(out, "probe completed") || !strings.Contains(out, "up.test") {
		t.Errorf("expected success logged for up.test, got:\n%s", out)
	}
}
