// Package stats folds probe outcomes into per-target statistics and keeps a
// ranked view of all targets.
//
// This package is internal to pingrank. The [Aggregator] owns every
// [TargetState]; each outcome is applied as a single mutex-guarded
// read-modify-write followed by a full re-rank, so concurrent probe
// completions can never lose an update. Every change produces a fresh
// [Snapshot] that is pushed to subscribers.
//
// The main components are:
//
//   - [Aggregator]: owner of the mutable state, with pub/sub for snapshots
//   - [TargetState]: counters, history and current status of one target
//   - [Metrics]: min/max/average/packet-loss derived on demand
//   - [Rank]: the stable ordering by average latency
package stats
