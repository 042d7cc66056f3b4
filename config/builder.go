package config

import (
	"fmt"

	"github.com/jpalmerr/pingrank"
)

// BuildTargets converts the configured targets and grids into SDK targets,
// direct targets first, then each grid in order. It returns nil when
// neither is configured, leaving the SDK to fall back to its defaults.
func BuildTargets(cfg *Config) ([]pingrank.Target, error) {
	var targets []pingrank.Target

	for i, host := range cfg.Targets {
		t, err := pingrank.NewTarget(host)
		if err != nil {
			return nil, fmt.Errorf("targets[%d]: %w", i, err)
		}
		targets = append(targets, t)
	}

	for i, gc := range cfg.Grids {
		gridTargets, err := pingrank.NewTargetGrid(gc.HostTemplate, gc.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("grids[%d]: %w", i, err)
		}
		targets = append(targets, gridTargets...)
	}

	return targets, nil
}

// BuildOptions converts the configuration into SDK options, targets
// included.
func BuildOptions(cfg *Config) ([]pingrank.Option, error) {
	targets, err := BuildTargets(cfg)
	if err != nil {
		return nil, err
	}

	retention, err := pingrank.ParseRetention(cfg.Retention)
	if err != nil {
		return nil, err
	}

	opts := []pingrank.Option{
		pingrank.WithTargets(targets...),
		pingrank.WithPort(cfg.Port),
		pingrank.WithAutoMode(cfg.Mode == ModeAuto),
		pingrank.WithConcurrency(cfg.Concurrency),
		pingrank.WithProbeTimeout(cfg.ProbeTimeout.Duration()),
		pingrank.WithRounds(cfg.Rounds),
		pingrank.WithAutoPause(cfg.AutoPause.Duration()),
		pingrank.WithRetention(retention),
		pingrank.WithDispatchRate(cfg.DispatchRate),
	}
	if cfg.RoundPause != nil {
		opts = append(opts, pingrank.WithRoundPause(cfg.RoundPause.Duration()))
	}
	if cfg.Title != "" {
		opts = append(opts, pingrank.WithTitle(cfg.Title))
	}
	return opts, nil
}
