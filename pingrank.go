package pingrank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/pingrank/dashboard"
	"github.com/jpalmerr/pingrank/internal/pool"
	"github.com/jpalmerr/pingrank/internal/probe"
	"github.com/jpalmerr/pingrank/internal/rounds"
	"github.com/jpalmerr/pingrank/internal/server"
	"github.com/jpalmerr/pingrank/internal/stats"
)

const (
	defaultPort        = 8080
	defaultConcurrency = pool.DefaultLimit
	subscriberBuffer   = 16
)

// ErrBusy is returned when a manual run is requested while another manual
// run is still in progress.
var ErrBusy = rounds.ErrBusy

// PingRank probes a fixed set of hosts under a concurrency cap and keeps a
// live latency ranking of them.
//
// The typical lifecycle is:
//
//	pr, err := pingrank.New(pingrank.WithTargets(targets...))
//	if err != nil {
//	    slog.Error("failed to create pingrank", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	pr.Start(ctx) // blocks until context cancelled
//
// Without Start, the engine can be driven directly with [PingRank.RunPass]
// and [PingRank.RunRounds].
type PingRank struct {
	title    string
	port     int
	autoMode bool
	registry *Registry
	logger   *slog.Logger

	executor  *probe.Executor
	pool      *pool.Pool
	agg       *stats.Aggregator
	scheduler *rounds.Scheduler

	callbacks []func(Snapshot)
	// cbMu serializes Apply with callback delivery.
	cbMu sync.Mutex

	// runCtx bounds background manual runs; set by Start.
	ctxMu  sync.Mutex
	runCtx context.Context
}

// New creates a [PingRank] instance with the given options.
//
// Defaults:
//   - Targets: [DefaultTargets]
//   - Concurrency: 6
//   - Probe timeout: 5s
//   - Manual rounds: 10, 1s apart
//   - Auto mode: on, no pause between passes
//   - Port: 8080
//
// Returns an error if any option is invalid or the targets are not unique.
func New(opts ...Option) (*PingRank, error) {
	cfg := &prConfig{
		concurrency:  defaultConcurrency,
		probeTimeout: probe.DefaultTimeout,
		rounds:       rounds.DefaultRounds,
		roundPause:   rounds.DefaultPause,
		autoMode:     true,
		port:         defaultPort,
		retention:    RetentionFullHistory,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.targets) == 0 {
		defaults, err := ParseTargets(DefaultTargets)
		if err != nil {
			return nil, fmt.Errorf("default targets: %w", err)
		}
		cfg.targets = defaults
	}

	registry, err := NewRegistry(cfg.targets...)
	if err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	pr := &PingRank{
		title:     cfg.title,
		port:      cfg.port,
		autoMode:  cfg.autoMode,
		registry:  registry,
		logger:    logger,
		callbacks: cfg.snapshotCallbacks,
	}

	statTargets := make([]stats.Target, registry.Len())
	for i, t := range registry.targets {
		statTargets[i] = stats.Target{Host: t.host, Category: string(t.category)}
	}
	pr.agg = stats.New(statTargets, stats.WithRetention(cfg.retention))

	execOpts := []probe.Option{probe.WithTimeout(cfg.probeTimeout)}
	if cfg.httpClient != nil {
		execOpts = append(execOpts, probe.WithHTTPClient(cfg.httpClient))
	}
	if cfg.urlFormat != nil {
		execOpts = append(execOpts, probe.WithURLFormat(cfg.urlFormat))
	}
	pr.executor = probe.NewExecutor(execOpts...)

	poolOpts := []pool.Option{
		pool.WithLimit(cfg.concurrency),
		pool.WithDispatchHook(pr.onDispatch),
		pool.WithCompleteHook(pr.onComplete),
		pool.WithLogger(logger),
	}
	if cfg.dispatchRate > 0 {
		poolOpts = append(poolOpts, pool.WithRate(cfg.dispatchRate, cfg.concurrency))
	}
	pr.pool = pool.New(pr.executor.Probe, poolOpts...)

	pr.scheduler = rounds.New(pr.pass,
		rounds.WithPause(cfg.roundPause),
		rounds.WithAutoPause(cfg.autoPause),
		rounds.WithDefaultRounds(cfg.rounds),
		rounds.WithRoundHook(pr.onRound),
		rounds.WithLogger(logger),
	)

	return pr, nil
}

// Start serves the dashboard and, in auto mode, probes continuously.
//
// Start blocks until ctx is cancelled. Manual runs started from the
// dashboard are bound to ctx and stop with it.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server
// fails to start.
func (pr *PingRank) Start(ctx context.Context) error {
	pr.logger.Info("pingrank starting",
		"target_count", pr.registry.Len(),
		"concurrency", pr.pool.Limit(),
		"probe_timeout", pr.executor.Timeout(),
		"retention", pr.agg.Retention().String(),
		"auto_mode", pr.autoMode,
	)
	pr.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", pr.port))

	if ctx.Err() != nil {
		return nil
	}

	pr.ctxMu.Lock()
	pr.runCtx = ctx
	pr.ctxMu.Unlock()
	defer pr.executor.Close()

	httpServer := server.NewServer(serverEngine{pr}, pr.port, dashboard.Assets, pr.title, pr.logger)
	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if pr.autoMode {
		g.Go(func() error {
			return pr.scheduler.RunAuto(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	pr.logger.Info("pingrank stopped")
	return nil
}

// RunPass probes every target once and returns when all probes have
// completed. It waits for any pass already in progress.
func (pr *PingRank) RunPass(ctx context.Context) error {
	return pr.scheduler.RunOnce(ctx)
}

// RunRounds runs n manual rounds and blocks until they finish. n <= 0 uses
// the configured default. Returns [ErrBusy] if a manual run is active.
func (pr *PingRank) RunRounds(ctx context.Context, n int) error {
	return pr.scheduler.RunManual(ctx, n)
}

// StartRounds starts n manual rounds in the background and returns the
// run id. The run lives as long as the context given to [PingRank.Start],
// or indefinitely if Start was never called.
func (pr *PingRank) StartRounds(n int) (string, error) {
	return pr.scheduler.StartManual(pr.lifetime(), n)
}

// Snapshot returns the current ranking.
func (pr *PingRank) Snapshot() Snapshot {
	return toPublicSnapshot(pr.agg.Snapshot())
}

// Subscribe returns a channel receiving every new ranking, and a function
// that ends the subscription and closes the channel. A reader that falls
// behind misses intermediate snapshots; the latest is always available from
// [PingRank.Snapshot].
func (pr *PingRank) Subscribe() (<-chan Snapshot, func()) {
	in := pr.agg.Subscribe()
	out := make(chan Snapshot, subscriberBuffer)
	go func() {
		defer close(out)
		for snap := range in {
			select {
			case out <- toPublicSnapshot(snap):
			default:
			}
		}
	}()
	var once sync.Once
	return out, func() {
		once.Do(func() { pr.agg.Unsubscribe(in) })
	}
}

// Progress returns the manual run progress.
func (pr *PingRank) Progress() Progress {
	return toPublicProgress(pr.scheduler.Progress())
}

// Targets returns a copy of the targets in registry order.
func (pr *PingRank) Targets() []Target {
	return pr.registry.Targets()
}

// Port returns the configured HTTP port for the dashboard server.
func (pr *PingRank) Port() int {
	return pr.port
}

// Concurrency returns the maximum number of probes in flight.
func (pr *PingRank) Concurrency() int {
	return pr.pool.Limit()
}

func (pr *PingRank) lifetime() context.Context {
	pr.ctxMu.Lock()
	defer pr.ctxMu.Unlock()
	if pr.runCtx == nil {
		return context.Background()
	}
	return pr.runCtx
}

func (pr *PingRank) pass(ctx context.Context) error {
	return pr.pool.RunPass(ctx, pr.registry.Hosts())
}

func (pr *PingRank) onDispatch(i int) {
	pr.agg.MarkTesting(i)
}

func (pr *PingRank) onComplete(i int, out probe.Outcome) {
	snap := pr.applyAndNotify(i, out)

	host := pr.registry.targets[i].host
	if out.OK {
		pr.logger.Debug("probe completed", "target", host, "latency_ms", stats.RoundLatency(out.LatencyMs), "seq", snap.Seq)
	} else {
		pr.logger.Warn("probe failed", "target", host, "seq", snap.Seq)
	}
}

// applyAndNotify folds the outcome into the ranking and, when callbacks are
// registered, delivers the resulting snapshot before any later completion
// can apply. Every completed probe yields exactly one delivery, in Seq order.
func (pr *PingRank) applyAndNotify(i int, out probe.Outcome) stats.Snapshot {
	if len(pr.callbacks) == 0 {
		return pr.agg.Apply(i, out)
	}

	pr.cbMu.Lock()
	defer pr.cbMu.Unlock()

	snap := pr.agg.Apply(i, out)
	public := toPublicSnapshot(snap)
	for _, cb := range pr.callbacks {
		invokeCallbackSafe(cb, public, pr.logger)
	}
	return snap
}

func (pr *PingRank) onRound(sum rounds.RoundSummary) {
	attrs := []any{"elapsed", sum.Elapsed.Round(time.Millisecond).String()}
	if sum.Manual {
		attrs = append(attrs, "run_id", sum.RunID, "round", sum.Round, "total", sum.Total)
	}
	pr.logger.Info("round completed", attrs...)
}

// invokeCallbackSafe calls a snapshot callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Snapshot), snap Snapshot, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("snapshot callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", r,
				"seq", snap.Seq,
				"stack", string(debug.Stack()),
			)
		}
	}()
	cb(snap)
}

// serverEngine exposes the engine to the dashboard server.
type serverEngine struct {
	pr *PingRank
}

func (e serverEngine) Snapshot() stats.Snapshot {
	return e.pr.agg.Snapshot()
}

func (e serverEngine) Subscribe() <-chan stats.Snapshot {
	return e.pr.agg.Subscribe()
}

func (e serverEngine) Unsubscribe(ch <-chan stats.Snapshot) {
	e.pr.agg.Unsubscribe(ch)
}

func (e serverEngine) Progress() rounds.Progress {
	return e.pr.scheduler.Progress()
}

func (e serverEngine) StartRounds(n int) (string, error) {
	id, err := e.pr.StartRounds(n)
	if err != nil && !errors.Is(err, ErrBusy) {
		e.pr.logger.Error("failed to start manual run", "error", err)
	}
	return id, err
}
