package pingrank

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunPass_ProbesEveryTargetOnce(t *testing.T) {
	srv := newProbeServer(t, nil)
	pr := newTestPingRank(t, srv, "a.test,b.test,c.test,d.test", WithConcurrency(2))

	if err := pr.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}

	for _, ts := range pr.Snapshot().Targets {
		if ts.TestCount != 1 {
			t.Errorf("%s TestCount = %d, want 1", ts.Host, ts.TestCount)
		}
		if ts.Status != StatusSuccess {
			t.Errorf("%s Status = %q, want success", ts.Host, ts.Status)
		}
		if len(ts.History) != 1 {
			t.Errorf("%s len(History) = %d, want 1", ts.Host, len(ts.History))
		}
	}
}

func TestRunRounds_ThreeRounds(t *testing.T) {
	srv := newProbeServer(t, nil)
	pr := newTestPingRank(t, srv, "a.test,b.test")

	if err := pr.RunRounds(context.Background(), 3); err != nil {
		t.Fatalf("RunRounds() error = %v", err)
	}

	for _, ts := range pr.Snapshot().Targets {
		if ts.TestCount != 3 {
			t.Errorf("%s TestCount = %d, want 3", ts.Host, ts.TestCount)
		}
		if ts.FailureCount != 0 {
			t.Errorf("%s FailureCount = %d, want 0", ts.Host, ts.FailureCount)
		}
		if ts.PacketLoss() != "0.0%" {
			t.Errorf("%s PacketLoss() = %q, want 0.0%%", ts.Host, ts.PacketLoss())
		}
	}

	p := pr.Progress()
	if p.State != RunDone || p.Round != 3 || p.Total != 3 || p.Manual || p.Busy {
		t.Errorf("Progress() = %+v, want done at round 3 of 3", p)
	}
	if p.RunID == "" {
		t.Error("Progress().RunID should be set")
	}
}

func TestRunRounds_DefaultCount(t *testing.T) {
	srv := newProbeServer(t, nil)
	pr := newTestPingRank(t, srv, "a.test", WithRounds(4))

	if err := pr.RunRounds(context.Background(), 0); err != nil {
		t.Fatalf("RunRounds() error = %v", err)
	}

	if got := pr.Snapshot().Targets[0].TestCount; got != 4 {
		t.Errorf("TestCount = %d, want 4", got)
	}
}

func TestRunRounds_AlwaysFailingTarget(t *testing.T) {
	srv := newProbeServer(t, map[string]hostBehaviour{"down.test": {fail: true}})
	pr := newTestPingRank(t, srv, "down.test,up.test")

	if err := pr.RunRounds(context.Background(), 5); err != nil {
		t.Fatalf("RunRounds() error = %v", err)
	}

	snap := pr.Snapshot()
	last := snap.Targets[len(snap.Targets)-1]
	if last.Host != "down.test" {
		t.Fatalf("last ranked = %q, want down.test", last.Host)
	}
	if last.TestCount != 5 || last.FailureCount != 5 {
		t.Errorf("down.test counts = %d/%d, want 5/5", last.FailureCount, last.TestCount)
	}
	if len(last.History) != 0 {
		t.Errorf("down.test History = %v, want empty", last.History)
	}
	if last.Status != StatusError {
		t.Errorf("down.test Status = %q, want error", last.Status)
	}
	if last.PacketLoss() != "100.0%" {
		t.Errorf("down.test PacketLoss() = %q, want 100.0%%", last.PacketLoss())
	}
	m := last.Metrics()
	if m.Min != nil || m.Max != nil || m.Average != nil {
		t.Errorf("down.test metrics = %+v, want nil latencies", m)
	}
}

func TestRunPass_RanksByAverageLatency(t *testing.T) {
	srv := newProbeServer(t, map[string]hostBehaviour{
		"slow.test": {delay: 60 * time.Millisecond},
		"mid.test":  {delay: 30 * time.Millisecond},
	})
	pr := newTestPingRank(t, srv, "slow.test,mid.test,fast.test")

	if err := pr.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}

	snap := pr.Snapshot()
	want := []string{"fast.test", "mid.test", "slow.test"}
	for i, host := range want {
		if snap.Targets[i].Host != host {
			t.Errorf("rank %d = %q, want %q", i, snap.Targets[i].Host, host)
		}
	}
	if avg := snap.Targets[2].Metrics().Average; avg == nil || *avg < 60 {
		t.Errorf("slow.test average = %v, want >= 60ms", avg)
	}
}

func TestRunPass_ProbeTimeoutIsFailure(t *testing.T) {
	srv := newProbeServer(t, map[string]hostBehaviour{"hang.test": {delay: 300 * time.Millisecond}})
	pr := newTestPingRank(t, srv, "hang.test", WithProbeTimeout(50*time.Millisecond))

	start := time.Now()
	if err := pr.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("RunPass() took %v, want it bounded by the probe timeout", elapsed)
	}

	ts := pr.Snapshot().Targets[0]
	if ts.Status != StatusError || ts.FailureCount != 1 {
		t.Errorf("hang.test = %+v, want one failure", ts)
	}
}

func TestRetentionBestOf_KeepsMinimum(t *testing.T) {
	srv := newProbeServer(t, nil)
	pr := newTestPingRank(t, srv, "a.test", WithRetention(RetentionBestOf))

	if err := pr.RunRounds(context.Background(), 4); err != nil {
		t.Fatalf("RunRounds() error = %v", err)
	}

	ts := pr.Snapshot().Targets[0]
	if ts.TestCount != 4 {
		t.Errorf("TestCount = %d, want 4", ts.TestCount)
	}
	if len(ts.History) != 1 {
		t.Errorf("len(History) = %d, want 1 in best-of mode", len(ts.History))
	}
}

func TestStartRounds_Busy(t *testing.T) {
	srv := newProbeServer(t, map[string]hostBehaviour{"a.test": {delay: 100 * time.Millisecond}})
	pr := newTestPingRank(t, srv, "a.test")

	id, err := pr.StartRounds(2)
	if err != nil {
		t.Fatalf("StartRounds() error = %v", err)
	}
	if id == "" {
		t.Error("StartRounds() returned empty run id")
	}

	if _, err := pr.StartRounds(2); !errors.Is(err, ErrBusy) {
		t.Errorf("second StartRounds() error = %v, want ErrBusy", err)
	}
	if err := pr.RunRounds(context.Background(), 1); !errors.Is(err, ErrBusy) {
		t.Errorf("RunRounds() during run error = %v, want ErrBusy", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && pr.Progress().State != RunDone {
		time.Sleep(10 * time.Millisecond)
	}
	if p := pr.Progress(); p.State != RunDone || p.RunID != id {
		t.Errorf("Progress() = %+v, want done for run %s", p, id)
	}
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	srv := newProbeServer(t, nil)
	pr := newTestPingRank(t, srv, "a.test")

	if err := pr.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}

	snap := pr.Snapshot()
	orig := snap.Targets[0].History[0]
	snap.Targets[0].History[0] = -1
	snap.Targets[0].TestCount = 99

	again := pr.Snapshot()
	if again.Targets[0].History[0] != orig {
		t.Errorf("History mutated through snapshot: got %v, want %v", again.Targets[0].History[0], orig)
	}
	if again.Targets[0].TestCount != 1 {
		t.Errorf("TestCount = %d, want 1", again.Targets[0].TestCount)
	}
}

func TestSnapshot_Filter(t *testing.T) {
	srv := newProbeServer(t, nil)
	pr := newTestPingRank(t, srv, "a.test,share-1.test,codex-1.test,share-2.test")

	snap := pr.Snapshot()
	private := snap.Filter(CategoryPrivate)
	if len(private) != 2 {
		t.Fatalf("len(Filter(private)) = %d, want 2", len(private))
	}
	if private[0].Host != "share-1.test" || private[1].Host != "share-2.test" {
		t.Errorf("Filter(private) = %v, want registry order", private)
	}
	if got := snap.Filter(CategoryCodex); len(got) != 1 || got[0].Host != "codex-1.test" {
		t.Errorf("Filter(codex) = %v, want codex-1.test", got)
	}
}

func TestRunPass_CancelledContext(t *testing.T) {
	srv := newProbeServer(t, nil)
	pr := newTestPingRank(t, srv, "a.test,b.test")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := pr.RunPass(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("RunPass() error = %v, want context.Canceled", err)
	}
	for _, ts := range pr.Snapshot().Targets {
		if ts.TestCount != 0 {
			t.Errorf("%s TestCount = %d, want 0", ts.Host, ts.TestCount)
		}
	}
}

func TestSubscribe_ReceivesRankings(t *testing.T) {
	srv := newProbeServer(t, nil)
	pr := newTestPingRank(t, srv, "a.test")

	ch, cancel := pr.Subscribe()
	if err := pr.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case snap := <-ch:
			if len(snap.Targets) == 1 && snap.Targets[0].TestCount == 1 {
				done = true
			}
		case <-deadline:
			t.Fatal("no snapshot with a completed probe received")
		}
	}

	cancel()
	cancel()
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("channel not closed after cancel")
		}
	}
}
