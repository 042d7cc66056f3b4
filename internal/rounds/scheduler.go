// Package rounds sequences probing passes, either as an endless auto loop or
// as a fixed number of manually triggered rounds.
//
// Passes never overlap: each pass holds a single-slot semaphore for its whole
// duration, and the next pass starts only after the previous one has
// returned. Round boundaries are driven by the pass's return, not by polling
// a flag.
package rounds

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultRounds is the number of passes in a manual run.
	DefaultRounds = 10
	// DefaultPause is the delay between manual rounds.
	DefaultPause = time.Second
)

// ErrBusy is returned when a manual run is requested while another one is
// still in progress.
var ErrBusy = errors.New("a manual run is already in progress")

// State is the scheduler's position in a run.
type State string

const (
	// StateIdle means no manual run has completed; an aborted run returns here.
	StateIdle State = "idle"
	// StateRunning means a manual round's pass is in progress.
	StateRunning State = "running"
	// StatePause means a manual run is waiting between rounds.
	StatePause State = "pause"
	// StateDone means the last manual run has finished.
	StateDone State = "done"
)

// PassFunc runs one pass over every target and returns once all probes have
// completed.
type PassFunc func(ctx context.Context) error

// Progress describes what the scheduler is doing right now.
type Progress struct {
	State State `json:"state"`
	// Round is the current manual round, 1-based; 0 before the first pass.
	Round int `json:"round"`
	// Total is the number of rounds in the current or last manual run.
	Total int `json:"total"`
	// Busy is true while any pass is running.
	Busy bool `json:"busy"`
	// Manual is true while a manual run is in progress.
	Manual bool   `json:"manual"`
	RunID  string `json:"run_id,omitempty"`
}

// RoundSummary is reported after every completed pass.
type RoundSummary struct {
	RunID   string
	Round   int
	Total   int
	Manual  bool
	Elapsed time.Duration
}

// Scheduler drives a [PassFunc] in auto or manual mode.
//
// All methods are safe for concurrent use.
type Scheduler struct {
	pass          PassFunc
	pause         time.Duration
	autoPause     time.Duration
	defaultRounds int
	sleep         func(ctx context.Context, d time.Duration) error
	onState       func(State)
	onRound       func(RoundSummary)
	logger        *slog.Logger

	// slot is held for the duration of a pass
	slot chan struct{}

	mu     sync.Mutex
	state  State
	round  int
	total  int
	busy   bool
	manual bool
	runID  string
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithPause sets the delay between manual rounds. Negative values are ignored.
func WithPause(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.pause = d
		}
	}
}

// WithAutoPause sets an optional delay between auto passes.
func WithAutoPause(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.autoPause = d
		}
	}
}

// WithDefaultRounds sets the round count used when a manual run asks for 0.
func WithDefaultRounds(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.defaultRounds = n
		}
	}
}

// WithSleep replaces the context-aware sleep used for pauses.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

// WithStateHook registers a function called on every manual-run state change.
func WithStateHook(fn func(State)) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.onState = fn
		}
	}
}

// WithRoundHook registers a function called after every completed pass.
func WithRoundHook(fn func(RoundSummary)) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.onRound = fn
		}
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a [Scheduler] around pass.
func New(pass PassFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		pass:          pass,
		pause:         DefaultPause,
		defaultRounds: DefaultRounds,
		sleep:         sleepContext,
		onState:       func(State) {},
		onRound:       func(RoundSummary) {},
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		slot:          make(chan struct{}, 1),
		state:         StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Progress returns the current progress.
func (s *Scheduler) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Progress{
		State:  s.state,
		Round:  s.round,
		Total:  s.total,
		Busy:   s.busy,
		Manual: s.manual,
		RunID:  s.runID,
	}
}

// RunOnce runs a single pass, waiting for any pass in progress to finish
// first.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	_, err := s.runPass(ctx)
	return err
}

// RunAuto runs passes back-to-back until ctx is cancelled, then returns nil.
// Manual runs started meanwhile interleave with auto passes but never
// overlap them.
func (s *Scheduler) RunAuto(ctx context.Context) error {
	s.logger.Info("auto mode started")
	defer s.logger.Info("auto mode stopped")

	for ctx.Err() == nil {
		elapsed, err := s.runPass(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("auto pass failed", "error", err)
		} else {
			s.onRound(RoundSummary{Elapsed: elapsed})
		}
		if err := s.sleep(ctx, s.autoPause); err != nil {
			return nil
		}
	}
	return nil
}

// RunManual runs n rounds (the default count when n <= 0) and blocks until
// they finish. It returns [ErrBusy] if a manual run is already active.
func (s *Scheduler) RunManual(ctx context.Context, n int) error {
	runID, n, err := s.beginManual(n)
	if err != nil {
		return err
	}
	return s.runManual(ctx, runID, n)
}

// StartManual starts a manual run in the background and returns its id.
// The run is bound to ctx, which should outlive the caller's request.
func (s *Scheduler) StartManual(ctx context.Context, n int) (string, error) {
	runID, n, err := s.beginManual(n)
	if err != nil {
		return "", err
	}
	go func() {
		if err := s.runManual(ctx, runID, n); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("manual run failed", "run_id", runID, "error", err)
		}
	}()
	return runID, nil
}

// beginManual reserves the manual run and resets the round counter.
func (s *Scheduler) beginManual(n int) (string, int, error) {
	if n <= 0 {
		n = s.defaultRounds
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manual {
		return "", 0, ErrBusy
	}
	s.manual = true
	s.runID = uuid.NewString()
	s.round = 0
	s.total = n
	s.state = StateIdle
	return s.runID, n, nil
}

func (s *Scheduler) runManual(ctx context.Context, runID string, n int) (err error) {
	s.logger.Info("manual run started", "run_id", runID, "rounds", n)
	defer func() {
		s.mu.Lock()
		s.manual = false
		if err != nil {
			s.state = StateIdle
		} else {
			s.state = StateDone
		}
		final := s.state
		s.mu.Unlock()
		s.onState(final)
		s.logger.Info("manual run finished", "run_id", runID, "state", final)
	}()

	for round := 1; round <= n; round++ {
		s.mu.Lock()
		s.round = round
		s.mu.Unlock()
		s.setState(StateRunning)

		elapsed, err := s.runPass(ctx)
		if err != nil {
			return err
		}
		s.onRound(RoundSummary{RunID: runID, Round: round, Total: n, Manual: true, Elapsed: elapsed})

		if round < n {
			s.setState(StatePause)
			if err := s.sleep(ctx, s.pause); err != nil {
				return err
			}
		}
	}
	return nil
}

// runPass waits for the pass slot, runs one pass and releases the slot.
func (s *Scheduler) runPass(ctx context.Context) (time.Duration, error) {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	defer func() { <-s.slot }()

	s.setBusy(true)
	defer s.setBusy(false)

	start := time.Now()
	err := s.pass(ctx)
	return time.Since(start), err
}

func (s *Scheduler) setBusy(busy bool) {
	s.mu.Lock()
	s.busy = busy
	s.mu.Unlock()
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.onState(st)
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
