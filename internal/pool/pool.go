// Package pool runs one probing pass over a fixed list of targets with a
// bounded number of probes in flight.
package pool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jpalmerr/pingrank/internal/probe"
)

// DefaultLimit is the default number of probes in flight.
const DefaultLimit = 6

// DispatchFunc is called with a target index right before its probe starts.
type DispatchFunc func(i int)

// CompleteFunc is called with a target index and its outcome once the probe
// finishes. The worker does not take its next target until it returns.
type CompleteFunc func(i int, out probe.Outcome)

// Pool is a greedy, work-conserving worker pool.
//
// Each pass seeds a FIFO queue with every target index and starts
// min(limit, len(targets)) workers that pull from it until it is empty.
// A worker that finishes early immediately takes the next queued index, so
// there are never more than limit probes in flight and never an idle slot
// while work is queued.
type Pool struct {
	probe    probe.Func
	limit    int
	limiter  *rate.Limiter
	dispatch DispatchFunc
	complete CompleteFunc
	logger   *slog.Logger
}

// Option configures a [Pool].
type Option func(*Pool)

// WithLimit sets the maximum number of probes in flight. Non-positive values
// are ignored.
func WithLimit(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.limit = n
		}
	}
}

// WithRate caps how many probes per second are dispatched. A non-positive
// rate leaves dispatching unthrottled.
func WithRate(perSecond float64, burst int) Option {
	return func(p *Pool) {
		if perSecond <= 0 {
			return
		}
		if burst <= 0 {
			burst = int(perSecond)
			if burst < 1 {
				burst = 1
			}
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithDispatchHook registers the function invoked before each probe.
func WithDispatchHook(fn DispatchFunc) Option {
	return func(p *Pool) {
		if fn != nil {
			p.dispatch = fn
		}
	}
}

// WithCompleteHook registers the function invoked after each probe.
func WithCompleteHook(fn CompleteFunc) Option {
	return func(p *Pool) {
		if fn != nil {
			p.complete = fn
		}
	}
}

// WithLogger sets the logger used for hook panics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a [Pool] that probes targets with fn.
func New(fn probe.Func, opts ...Option) *Pool {
	p := &Pool{
		probe:    fn,
		limit:    DefaultLimit,
		dispatch: func(int) {},
		complete: func(int, probe.Outcome) {},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Limit returns the configured concurrency limit.
func (p *Pool) Limit() int {
	return p.limit
}

// RunPass probes every host exactly once and returns when all probes have
// completed.
//
// Cancelling ctx stops new dispatches; probes already in flight run to
// completion under their own timeout and are still reported. RunPass then
// returns ctx.Err(). It returns nil for an empty host list.
func (p *Pool) RunPass(ctx context.Context, hosts []string) error {
	if len(hosts) == 0 {
		return nil
	}

	queue := make(chan int, len(hosts))
	for i := range hosts {
		queue <- i
	}
	close(queue)

	workers := p.limit
	if workers > len(hosts) {
		workers = len(hosts)
	}

	// in-flight probes are bounded by their own timeout, not by ctx
	probeCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				if ctx.Err() != nil {
					return
				}
				if p.limiter != nil {
					if err := p.limiter.Wait(ctx); err != nil {
						return
					}
				}
				p.runOne(probeCtx, i, hosts[i])
			}
		}()
	}
	wg.Wait()

	return ctx.Err()
}

// runOne dispatches a single probe and reports its outcome.
func (p *Pool) runOne(ctx context.Context, i int, host string) {
	p.safeHook("dispatch", host, func() { p.dispatch(i) })
	out := p.probe(ctx, host)
	p.safeHook("complete", host, func() { p.complete(i, out) })
}

// safeHook runs fn with panic recovery so one misbehaving hook cannot take
// the whole pass down.
func (p *Pool) safeHook(name, host string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pool hook panicked",
				"correlation_id", uuid.NewString(),
				"hook", name,
				"target", host,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}
