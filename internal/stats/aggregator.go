package stats

import (
	"fmt"
	"sync"
	"time"

	"github.com/jpalmerr/pingrank/internal/probe"
)

const subscriberBuffer = 100

// Aggregator owns the state of every target and re-ranks them after each
// change.
//
// All mutations go through one mutex: the state change, the re-rank and the
// fan-out to subscribers happen as a single transaction, so subscribers
// receive snapshots in Seq order. Subscribers get buffered channels; a
// subscriber whose buffer is full misses that snapshot rather than blocking
// the probing workers.
type Aggregator struct {
	mu        sync.Mutex
	states    []TargetState
	retention Retention
	seq       uint64
	latest    Snapshot
	now       func() time.Time

	subMu       sync.RWMutex
	subscribers map[chan Snapshot]struct{}
}

// Option configures an [Aggregator].
type Option func(*Aggregator)

// WithRetention selects full-history or best-of retention.
func WithRetention(r Retention) Option {
	return func(a *Aggregator) {
		a.retention = r
	}
}

// WithClock overrides the clock used for Snapshot.TakenAt.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an [Aggregator] with every target pending.
func New(targets []Target, opts ...Option) *Aggregator {
	a := &Aggregator{
		states:      make([]TargetState, len(targets)),
		now:         time.Now,
		subscribers: make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	for i, t := range targets {
		a.states[i] = TargetState{
			Host:     t.Host,
			Category: t.Category,
			Status:   StatusPending,
			Order:    i,
		}
	}
	a.latest = a.buildLocked()
	return a
}

// Retention returns the configured retention mode.
func (a *Aggregator) Retention() Retention {
	return a.retention
}

// Len returns the number of targets.
func (a *Aggregator) Len() int {
	return len(a.states)
}

// MarkTesting flags target i as having a probe in flight.
func (a *Aggregator) MarkTesting(i int) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.mustIndex(i)
	a.states[i].Status = StatusTesting
	return a.commitLocked()
}

// Apply folds one probe outcome into target i and returns the new ranking.
func (a *Aggregator) Apply(i int, out probe.Outcome) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.mustIndex(i)
	s := &a.states[i]
	s.TestCount++
	if !out.OK {
		s.FailureCount++
		s.Status = StatusError
		return a.commitLocked()
	}

	s.Status = StatusSuccess
	switch a.retention {
	case BestOf:
		// never written in place: published snapshots share the old slice
		if len(s.History) == 0 || out.LatencyMs < s.History[0] {
			s.History = []float64{out.LatencyMs}
		}
	default:
		s.History = append(s.History, out.LatencyMs)
	}
	return a.commitLocked()
}

// Snapshot returns the most recent ranking.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest
}

// Subscribe returns a channel receiving every new [Snapshot].
//
// Caller must call [Aggregator.Unsubscribe] when done.
func (a *Aggregator) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, subscriberBuffer)

	a.subMu.Lock()
	a.subscribers[ch] = struct{}{}
	a.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// more than once.
func (a *Aggregator) Unsubscribe(ch <-chan Snapshot) {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	for subCh := range a.subscribers {
		if subCh == ch {
			delete(a.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// commitLocked re-ranks, stores and publishes a new snapshot. Caller holds mu.
func (a *Aggregator) commitLocked() Snapshot {
	a.seq++
	a.latest = a.buildLocked()
	a.notifySubscribers(a.latest)
	return a.latest
}

// buildLocked ranks the current states into a snapshot. Histories are capped
// so later appends by the aggregator stay invisible to the snapshot.
func (a *Aggregator) buildLocked() Snapshot {
	states := make([]TargetState, len(a.states))
	for i, s := range a.states {
		s.History = s.History[:len(s.History):len(s.History)]
		states[i] = s
	}
	return Snapshot{
		Seq:     a.seq,
		TakenAt: a.now(),
		Targets: Rank(states),
	}
}

func (a *Aggregator) notifySubscribers(snap Snapshot) {
	a.subMu.RLock()
	defer a.subMu.RUnlock()

	for ch := range a.subscribers {
		select {
		case ch <- snap:
		default:
			// subscriber is slow, drop the snapshot
		}
	}
}

func (a *Aggregator) mustIndex(i int) {
	if i < 0 || i >= len(a.states) {
		panic(fmt.Sprintf("stats: target index %d out of range [0,%d)", i, len(a.states)))
	}
}
