package server

import (
	"time"

	"github.com/jpalmerr/pingrank/internal/rounds"
	"github.com/jpalmerr/pingrank/internal/stats"
)

// targetView is the wire form of one ranked target. The raw history is
// left out since it grows without bound in full-history mode.
type targetView struct {
	Rank         int      `json:"rank"`
	Host         string   `json:"host"`
	Category     string   `json:"category"`
	Status       string   `json:"status"`
	TestCount    int      `json:"test_count"`
	FailureCount int      `json:"failure_count"`
	Min          *float64 `json:"min"`
	Max          *float64 `json:"max"`
	Average      *float64 `json:"average"`
	Latency      string   `json:"latency"`
	PacketLoss   string   `json:"packet_loss"`
}

type rankingView struct {
	Seq      uint64          `json:"seq"`
	TakenAt  time.Time       `json:"taken_at"`
	Category string          `json:"category,omitempty"`
	Targets  []targetView    `json:"targets"`
	Progress rounds.Progress `json:"progress"`
}

func newRankingView(snap stats.Snapshot, progress rounds.Progress, category string) rankingView {
	targets := snap.Targets
	if category != "" {
		targets = stats.Filter(snap, category)
	}

	views := make([]targetView, len(targets))
	for i, t := range targets {
		m := t.Metrics()
		views[i] = targetView{
			Rank:         i + 1,
			Host:         t.Host,
			Category:     t.Category,
			Status:       string(t.Status),
			TestCount:    t.TestCount,
			FailureCount: t.FailureCount,
			Min:          rounded(m.Min),
			Max:          rounded(m.Max),
			Average:      rounded(m.Average),
			Latency:      stats.FormatLatency(m.Average),
			PacketLoss:   t.PacketLoss(),
		}
	}

	return rankingView{
		Seq:      snap.Seq,
		TakenAt:  snap.TakenAt,
		Category: category,
		Targets:  views,
		Progress: progress,
	}
}

func rounded(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := stats.RoundLatency(*v)
	return &r
}
