// Package pingrank measures HTTP round-trip latency to a set of hosts and
// keeps a continuously re-ranked view of how they perform.
//
// PingRank is SDK-first: the engine is configured with functional options
// and can be embedded in any program. A small web dashboard is served by
// [PingRank.Start]; the cmd/pingrank binary drives the same engine from a
// YAML file.
//
// # Quick Start
//
//	targets, _ := pingrank.ParseTargets("api.example.com,cdn.example.com")
//	pr, _ := pingrank.New(pingrank.WithTargets(targets...))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	pr.Start(ctx) // blocks until context is cancelled
//
// # Probing
//
// A probe is one GET https://{host}/ with a hard timeout (5s by default).
// Any response counts as success, whatever its status; any error, including
// the timeout, counts as a failure. Redirects are not followed.
//
// A pass probes every target exactly once through a bounded pool of workers
// ([WithConcurrency], 6 by default). Passes never overlap. In auto mode
// passes run back to back; a manual run ([PingRank.RunRounds]) runs a fixed
// number of rounds with a pause between them.
//
// # Ranking
//
// After every completed probe the targets are re-ranked by average latency,
// ascending. Targets with no successful probe sort last, and ties keep the
// order in which targets were configured. [Snapshot] values are deep
// copies and safe to keep.
//
// Each target is classified into a [Category] from its host name, see
// [Classify].
//
// # Architecture
//
//   - internal/probe: single timed HTTP probe
//   - internal/pool: bounded worker pool running one pass
//   - internal/stats: per-target statistics, ranking and pub/sub
//   - internal/rounds: auto and manual round scheduling
//   - internal/server: dashboard HTTP, SSE and WebSocket API
//   - dashboard: embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package pingrank
