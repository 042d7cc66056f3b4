package pingrank

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// prConfig holds mutable state during PingRank construction.
type prConfig struct {
	title             string
	targets           []Target
	concurrency       int
	probeTimeout      time.Duration
	rounds            int
	roundPause        time.Duration
	autoPause         time.Duration
	autoMode          bool
	port              int
	retention         Retention
	dispatchRate      float64
	logger            *slog.Logger
	snapshotCallbacks []func(Snapshot)
	httpClient        *http.Client
	urlFormat         func(host string) string
}

// Option is a function that configures a [PingRank] instance during construction.
//
// Options return an error if validation fails; [New] stops at the first one.
//
// Built-in options: [WithTarget], [WithTargets], [WithConcurrency],
// [WithProbeTimeout], [WithRounds], [WithRoundPause], [WithAutoMode], [WithPort].
type Option func(*prConfig) error

// WithTarget adds a single [Target] to the registry.
//
// Targets keep the order in which they are added; that order breaks ranking
// ties. If no target is configured, [New] falls back to [DefaultTargets].
func WithTarget(t Target) Option {
	return func(cfg *prConfig) error {
		cfg.targets = append(cfg.targets, t)
		return nil
	}
}

// WithTargets adds several [Target] values at once.
//
// Example:
//
//	targets, _ := pingrank.ParseTargets("a.example.com,b.example.com")
//	pr, err := pingrank.New(pingrank.WithTargets(targets...))
func WithTargets(targets ...Target) Option {
	return func(cfg *prConfig) error {
		cfg.targets = append(cfg.targets, targets...)
		return nil
	}
}

// WithConcurrency caps the number of probes in flight. Defaults to 6.
//
// Returns an error if n is zero or negative.
func WithConcurrency(n int) Option {
	return func(cfg *prConfig) error {
		if n <= 0 {
			return errors.New("concurrency must be positive")
		}
		cfg.concurrency = n
		return nil
	}
}

// WithProbeTimeout sets the hard timeout of a single probe. Defaults to 5s.
//
// A probe that exceeds it counts as a failure. There is no retry.
func WithProbeTimeout(d time.Duration) Option {
	return func(cfg *prConfig) error {
		if d <= 0 {
			return errors.New("probe timeout must be positive")
		}
		cfg.probeTimeout = d
		return nil
	}
}

// WithRounds sets the default number of rounds in a manual run. Defaults to 10.
func WithRounds(n int) Option {
	return func(cfg *prConfig) error {
		if n <= 0 {
			return errors.New("rounds must be positive")
		}
		cfg.rounds = n
		return nil
	}
}

// WithRoundPause sets the pause between manual rounds. Defaults to 1s.
// Zero disables the pause.
func WithRoundPause(d time.Duration) Option {
	return func(cfg *prConfig) error {
		if d < 0 {
			return errors.New("round pause cannot be negative")
		}
		cfg.roundPause = d
		return nil
	}
}

// WithAutoPause sets the pause between auto-mode passes. Defaults to zero,
// meaning passes run back to back.
func WithAutoPause(d time.Duration) Option {
	return func(cfg *prConfig) error {
		if d < 0 {
			return errors.New("auto pause cannot be negative")
		}
		cfg.autoPause = d
		return nil
	}
}

// WithAutoMode makes [PingRank.Start] run passes continuously until its
// context is cancelled. Enabled by default. When disabled, passes only run
// on demand through [PingRank.RunRounds], [PingRank.StartRounds] or the
// dashboard's start button.
func WithAutoMode(enabled bool) Option {
	return func(cfg *prConfig) error {
		cfg.autoMode = enabled
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *prConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithRetention selects how successful latencies are kept.
// [RetentionFullHistory] is the default.
func WithRetention(r Retention) Option {
	return func(cfg *prConfig) error {
		if r != RetentionFullHistory && r != RetentionBestOf {
			return fmt.Errorf("unknown retention %d", r)
		}
		cfg.retention = r
		return nil
	}
}

// WithDispatchRate limits how many probes per second may start across all
// workers. Zero, the default, means unlimited.
func WithDispatchRate(perSecond float64) Option {
	return func(cfg *prConfig) error {
		if perSecond < 0 {
			return errors.New("dispatch rate cannot be negative")
		}
		cfg.dispatchRate = perSecond
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *prConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithSnapshotCallback registers a function called with the freshly ranked
// [Snapshot] after every completed probe.
//
// Each completion is delivered exactly once. Callbacks run one at a time, in
// registration order, and see snapshots with increasing Seq. They must not
// block: no other probe result is applied until they return. Panics are
// recovered and logged.
//
// Nil callbacks are silently ignored.
func WithSnapshotCallback(cb func(Snapshot)) Option {
	return func(cfg *prConfig) error {
		if cb == nil {
			return nil
		}
		cfg.snapshotCallbacks = append(cfg.snapshotCallbacks, cb)
		return nil
	}
}

// WithTitle sets the dashboard title. Defaults to "PingRank".
func WithTitle(title string) Option {
	return func(cfg *prConfig) error {
		cfg.title = title
		return nil
	}
}

// WithHTTPClient probes through c instead of the built-in client. The
// client's redirect policy and timeout are overridden; only its transport
// is used.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *prConfig) error {
		if c == nil {
			return errors.New("http client cannot be nil")
		}
		cfg.httpClient = c
		return nil
	}
}

// WithURLFormat overrides how a host is turned into the probed URL.
// The default is "https://{host}/".
func WithURLFormat(fn func(host string) string) Option {
	return func(cfg *prConfig) error {
		if fn == nil {
			return errors.New("url format cannot be nil")
		}
		cfg.urlFormat = fn
		return nil
	}
}
