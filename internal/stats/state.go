package stats

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Status is the result of the most recent probe of a target.
type Status string

const (
	// StatusPending means no probe has been dispatched yet.
	StatusPending Status = "pending"
	// StatusTesting means a probe is in flight.
	StatusTesting Status = "testing"
	// StatusSuccess means the last probe got a response.
	StatusSuccess Status = "success"
	// StatusError means the last probe failed.
	StatusError Status = "error"
)

// Retention selects how successful measurements are kept.
type Retention int

const (
	// FullHistory keeps every successful latency.
	FullHistory Retention = iota
	// BestOf keeps only the lowest latency ever observed.
	BestOf
)

// String implements fmt.Stringer.
func (r Retention) String() string {
	switch r {
	case BestOf:
		return "best"
	default:
		return "full"
	}
}

// ParseRetention maps "full" (or "") and "best" to a [Retention].
func ParseRetention(s string) (Retention, error) {
	switch s {
	case "", "full":
		return FullHistory, nil
	case "best":
		return BestOf, nil
	default:
		return FullHistory, fmt.Errorf("unknown retention %q (expected full or best)", s)
	}
}

// Target identifies one probed host.
type Target struct {
	Host     string
	Category string
}

// TargetState is the accumulated state of one target.
//
// History is shared with the aggregator and must be treated as read-only.
type TargetState struct {
	Host         string    `json:"host"`
	Category     string    `json:"category"`
	Status       Status    `json:"status"`
	History      []float64 `json:"history"`
	TestCount    int       `json:"test_count"`
	FailureCount int       `json:"failure_count"`

	// Order is the target's position in the registry.
	Order int `json:"-"`
}

// Snapshot is a point-in-time ranked view of every target.
type Snapshot struct {
	// Seq increases by one with every state change.
	Seq     uint64        `json:"seq"`
	TakenAt time.Time     `json:"taken_at"`
	Targets []TargetState `json:"targets"`
}

// Metrics holds values derived from a [TargetState].
// Min, Max and Average are nil while the target has no successful probe.
type Metrics struct {
	Min            *float64
	Max            *float64
	Average        *float64
	PacketLossRate float64
}

// Metrics derives min/max/average latency and the packet-loss rate.
func (s TargetState) Metrics() Metrics {
	m := Metrics{}
	if s.TestCount > 0 {
		m.PacketLossRate = float64(s.FailureCount) / float64(s.TestCount)
	}
	if len(s.History) == 0 {
		return m
	}

	lo, hi, sum := s.History[0], s.History[0], 0.0
	for _, v := range s.History {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		sum += v
	}
	avg := sum / float64(len(s.History))
	m.Min, m.Max, m.Average = &lo, &hi, &avg
	return m
}

// PacketLoss formats the packet-loss rate as a percentage with one decimal,
// or "0%" before the first probe.
func (s TargetState) PacketLoss() string {
	if s.TestCount == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", s.Metrics().PacketLossRate*100)
}

// average returns the mean of the history and whether it exists.
func (s TargetState) average() (float64, bool) {
	if len(s.History) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, v := range s.History {
		sum += v
	}
	return sum / float64(len(s.History)), true
}

// RoundLatency rounds a latency to two decimals for display.
func RoundLatency(ms float64) float64 {
	return math.Round(ms*100) / 100
}

// FormatLatency renders a latency the way the dashboard shows it: whole
// milliseconds, or "-" when absent.
func FormatLatency(ms *float64) string {
	if ms == nil {
		return "-"
	}
	return fmt.Sprintf("%.0fms", *ms)
}

// Rank returns a copy of states ordered by ascending average latency.
//
// Targets without any successful probe go after all measured targets. Ties
// keep registry order. Each average is computed once per call.
func Rank(states []TargetState) []TargetState {
	type keyed struct {
		state    TargetState
		avg      float64
		measured bool
	}
	keys := make([]keyed, len(states))
	for i, s := range states {
		avg, ok := s.average()
		keys[i] = keyed{state: s, avg: avg, measured: ok}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return keys[i].state.Order < keys[j].state.Order
	})
	sort.SliceStable(keys, func(i, j int) bool {
		ki, kj := keys[i], keys[j]
		if ki.measured && kj.measured {
			return ki.avg < kj.avg
		}
		return ki.measured && !kj.measured
	})

	ranked := make([]TargetState, len(keys))
	for i, k := range keys {
		ranked[i] = k.state
	}
	return ranked
}

// Filter returns the targets of snap in the given category, keeping rank
// order. An empty category returns all targets.
func Filter(snap Snapshot, category string) []TargetState {
	if category == "" {
		return snap.Targets
	}
	out := make([]TargetState, 0, len(snap.Targets))
	for _, t := range snap.Targets {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}
