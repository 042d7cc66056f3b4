package pingrank

import (
	"time"

	"github.com/jpalmerr/pingrank/internal/rounds"
	"github.com/jpalmerr/pingrank/internal/stats"
)

// Status is the outcome of a target's most recent probe.
type Status string

const (
	// StatusPending means the target has not been probed yet.
	StatusPending Status = "pending"
	// StatusTesting means a probe is in flight.
	StatusTesting Status = "testing"
	// StatusSuccess means the last probe got a response.
	StatusSuccess Status = "success"
	// StatusError means the last probe failed or timed out.
	StatusError Status = "error"
)

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}

// Retention selects how successful latencies are kept per target.
type Retention = stats.Retention

const (
	// RetentionFullHistory keeps every measurement. This is the default.
	RetentionFullHistory = stats.FullHistory
	// RetentionBestOf keeps only the lowest latency observed.
	RetentionBestOf = stats.BestOf
)

// ParseRetention maps "full" or "best" to a [Retention].
func ParseRetention(s string) (Retention, error) {
	return stats.ParseRetention(s)
}

// Metrics holds values derived from a target's history.
//
// Min, Max and Average are nil until the target has at least one successful
// probe. PacketLossRate is failures over attempts, 0 before the first probe.
type Metrics struct {
	Min            *float64
	Max            *float64
	Average        *float64
	PacketLossRate float64
}

// TargetStats is a read-only view of one target's statistics.
type TargetStats struct {
	Host     string
	Category Category
	Status   Status
	// History holds successful latencies in milliseconds, oldest first. In
	// best-of mode it holds at most the single best latency.
	History      []float64
	TestCount    int
	FailureCount int
}

// Metrics derives min, max, average and packet-loss rate.
func (s TargetStats) Metrics() Metrics {
	m := s.internal().Metrics()
	return Metrics{
		Min:            m.Min,
		Max:            m.Max,
		Average:        m.Average,
		PacketLossRate: m.PacketLossRate,
	}
}

// PacketLoss formats the packet-loss rate as a percentage, e.g. "12.5%".
func (s TargetStats) PacketLoss() string {
	return s.internal().PacketLoss()
}

func (s TargetStats) internal() stats.TargetState {
	return stats.TargetState{
		Host:         s.Host,
		Category:     string(s.Category),
		Status:       stats.Status(s.Status),
		History:      s.History,
		TestCount:    s.TestCount,
		FailureCount: s.FailureCount,
	}
}

// Snapshot is a ranked, point-in-time view of every target: ascending
// average latency, never-measured targets last, registry order on ties.
type Snapshot struct {
	// Seq increases with every state change and orders snapshots.
	Seq     uint64
	TakenAt time.Time
	Targets []TargetStats
}

// Filter returns the snapshot's targets in category c, keeping rank order.
func (s Snapshot) Filter(c Category) []TargetStats {
	out := make([]TargetStats, 0, len(s.Targets))
	for _, t := range s.Targets {
		if t.Category == c {
			out = append(out, t)
		}
	}
	return out
}

// RunState is the state of the manual round scheduler.
type RunState string

const (
	// RunIdle means no manual run has completed, or the last one was aborted.
	RunIdle RunState = RunState(rounds.StateIdle)
	// RunRunning means a manual round is probing.
	RunRunning RunState = RunState(rounds.StateRunning)
	// RunPause means a manual run is waiting between rounds.
	RunPause RunState = RunState(rounds.StatePause)
	// RunDone means the last manual run finished every round.
	RunDone RunState = RunState(rounds.StateDone)
)

// Progress reports round progress and whether a pass is running.
type Progress struct {
	State RunState
	// Round is the current manual round (1-based), Total the run length.
	Round int
	Total int
	// Busy is true while any pass, auto or manual, is in flight.
	Busy bool
	// Manual is true while a manual run is in progress.
	Manual bool
	RunID  string
}

// toPublicSnapshot deep-copies an internal snapshot into the public type.
func toPublicSnapshot(snap stats.Snapshot) Snapshot {
	out := Snapshot{
		Seq:     snap.Seq,
		TakenAt: snap.TakenAt,
		Targets: make([]TargetStats, len(snap.Targets)),
	}
	for i, s := range snap.Targets {
		out.Targets[i] = TargetStats{
			Host:         s.Host,
			Category:     Category(s.Category),
			Status:       Status(s.Status),
			History:      copyFloats(s.History),
			TestCount:    s.TestCount,
			FailureCount: s.FailureCount,
		}
	}
	return out
}

func toPublicProgress(p rounds.Progress) Progress {
	return Progress{
		State:  RunState(p.State),
		Round:  p.Round,
		Total:  p.Total,
		Busy:   p.Busy,
		Manual: p.Manual,
		RunID:  p.RunID,
	}
}

// copyFloats returns a copy of the slice, or nil if input is empty.
func copyFloats(f []float64) []float64 {
	if len(f) == 0 {
		return nil
	}
	return append([]float64(nil), f...)
}
