// Package config provides YAML configuration parsing for PingRank.
//
// This package lets PingRank run as a standalone binary driven by a
// configuration file, as an alternative to the programmatic SDK.
//
// Example configuration:
//
//	title: Edge latency
//	port: 8080
//	mode: auto
//	concurrency: 6
//	probe_timeout: 5s
//
//	targets:
//	  - api.example.com
//	  - share-eu.example.com
//
//	grids:
//	  - host_template: "{{.region}}.codex.example.com"
//	    dimensions:
//	      region: [us, eu]
//
// targets may also be a comma-separated string, which pairs well with
// environment substitution: targets: ${PINGRANK_TARGETS}
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ModeAuto   = "auto"
	ModeManual = "manual"

	defaultPort         = 8080
	defaultConcurrency  = 6
	defaultProbeTimeout = 5 * time.Second
	defaultRounds       = 10
	defaultRoundPause   = time.Second

	// minProbeTimeout keeps a typo like "5ms" from failing every probe.
	minProbeTimeout = 100 * time.Millisecond
	maxRounds       = 1000
	maxConcurrency  = 256
)

// Config is the root configuration structure for PingRank.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "PingRank" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// Mode is "auto" (probe continuously) or "manual" (probe only when a
	// run is started). Defaults to auto.
	Mode string `yaml:"mode"`

	// Targets lists the probed hosts, as a YAML list or a comma-separated
	// string. Entries support ${VAR} and ${VAR:-default} substitution.
	Targets TargetList `yaml:"targets"`

	// Grids generate targets from a host template.
	Grids []GridConfig `yaml:"grids"`

	// Concurrency caps probes in flight. Defaults to 6.
	Concurrency int `yaml:"concurrency"`

	// ProbeTimeout is the hard timeout of one probe. Defaults to 5s.
	ProbeTimeout Duration `yaml:"probe_timeout"`

	// Rounds is the number of rounds in a manual run. Defaults to 10.
	Rounds int `yaml:"rounds"`

	// RoundPause is the pause between manual rounds. Defaults to 1s;
	// an explicit 0s disables it.
	RoundPause *Duration `yaml:"round_pause"`

	// AutoPause is the pause between auto passes. Defaults to 0.
	AutoPause Duration `yaml:"auto_pause"`

	// Retention is "full" (keep every latency) or "best" (keep the lowest).
	// Defaults to full.
	Retention string `yaml:"retention"`

	// DispatchRate limits probe starts per second. 0 means unlimited.
	DispatchRate float64 `yaml:"dispatch_rate"`
}

// GridConfig generates targets from a template via cartesian product.
//
// With dimensions {region: [us, eu], tier: [share, codex]}, the template
// "{{.tier}}-{{.region}}.example.com" yields four hosts.
type GridConfig struct {
	// HostTemplate is a Go template producing a bare host name.
	// Dimension keys are available as template variables.
	HostTemplate string `yaml:"host_template"`

	// Dimensions maps dimension names to their possible values.
	Dimensions map[string][]string `yaml:"dimensions"`
}

// TargetList is a list of hosts that also accepts a single comma-separated
// string in YAML.
type TargetList []string

// UnmarshalYAML implements yaml.Unmarshaler for TargetList.
func (t *TargetList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*t = TargetList{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*t = list
		return nil
	default:
		return fmt.Errorf("targets must be a list or a comma-separated string, got %v", node.Tag)
	}
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern captures the variable name and, when a ":-" fallback is
// present, the fallback text (possibly empty).
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars substitutes ${VAR} and ${VAR:-fallback} references. An unset
// variable without a fallback is an error.
func expandEnvVars(s string) (string, error) {
	var missing []string
	out := envVarPattern.ReplaceAllStringFunc(s, func(ref string) string {
		m := envVarPattern.FindStringSubmatch(ref)
		if v, ok := os.LookupEnv(m[1]); ok {
			return v
		}
		if m[2] != "" {
			return m[3]
		}
		missing = append(missing, m[1])
		return ref
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("environment variable %q is not set", missing[0])
	}
	return out, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data, applies defaults, expands
// environment variables in title, targets and host templates, and validates
// the result.
//
// A config with neither targets nor grids is valid; the default target list
// is used.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Mode == "" {
		c.Mode = ModeAuto
	}
	if c.Concurrency == 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = Duration(defaultProbeTimeout)
	}
	if c.Rounds == 0 {
		c.Rounds = defaultRounds
	}
	if c.RoundPause == nil {
		d := Duration(defaultRoundPause)
		c.RoundPause = &d
	}
	if c.Retention == "" {
		c.Retention = "full"
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	title, err := expandEnvVars(c.Title)
	if err != nil {
		return fmt.Errorf("title: %w", err)
	}
	c.Title = title

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Mode != ModeAuto && c.Mode != ModeManual {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeAuto, ModeManual, c.Mode)
	}
	if c.Concurrency < 1 || c.Concurrency > maxConcurrency {
		return fmt.Errorf("concurrency must be between 1 and %d, got %d", maxConcurrency, c.Concurrency)
	}
	if c.ProbeTimeout.Duration() < minProbeTimeout {
		return fmt.Errorf("probe_timeout must be at least %s, got %s", minProbeTimeout, c.ProbeTimeout.Duration())
	}
	if c.Rounds < 1 || c.Rounds > maxRounds {
		return fmt.Errorf("rounds must be between 1 and %d, got %d", maxRounds, c.Rounds)
	}
	if c.RoundPause.Duration() < 0 {
		return fmt.Errorf("round_pause cannot be negative, got %s", c.RoundPause.Duration())
	}
	if c.AutoPause.Duration() < 0 {
		return fmt.Errorf("auto_pause cannot be negative, got %s", c.AutoPause.Duration())
	}
	if c.Retention != "full" && c.Retention != "best" {
		return fmt.Errorf("retention must be \"full\" or \"best\", got %q", c.Retention)
	}
	if c.DispatchRate < 0 {
		return fmt.Errorf("dispatch_rate cannot be negative, got %v", c.DispatchRate)
	}

	if err := c.expandTargets(); err != nil {
		return err
	}

	for i := range c.Grids {
		g := &c.Grids[i]

		if g.HostTemplate == "" {
			return fmt.Errorf("grids[%d]: host_template is required", i)
		}
		expanded, err := expandEnvVars(g.HostTemplate)
		if err != nil {
			return fmt.Errorf("grids[%d]: host_template: %w", i, err)
		}
		g.HostTemplate = expanded

		// fail fast before the SDK tries to use an invalid template
		if _, err := template.New("").Parse(g.HostTemplate); err != nil {
			return fmt.Errorf("grids[%d]: invalid host_template: %w", i, err)
		}

		if len(g.Dimensions) == 0 {
			return fmt.Errorf("grids[%d]: at least one dimension is required", i)
		}
		for dimName, dimValues := range g.Dimensions {
			if len(dimValues) == 0 {
				return fmt.Errorf("grids[%d]: dimension %q has no values", i, dimName)
			}
			seen := make(map[string]struct{}, len(dimValues))
			for _, v := range dimValues {
				if _, exists := seen[v]; exists {
					return fmt.Errorf("grids[%d]: dimension %q has duplicate value %q", i, dimName, v)
				}
				seen[v] = struct{}{}
			}
		}
	}

	return nil
}

// expandTargets substitutes environment variables and splits comma lists,
// leaving one trimmed host per entry.
func (c *Config) expandTargets() error {
	var hosts TargetList
	for i, raw := range c.Targets {
		expanded, err := expandEnvVars(raw)
		if err != nil {
			return fmt.Errorf("targets[%d]: %w", i, err)
		}
		for _, part := range strings.Split(expanded, ",") {
			if h := strings.TrimSpace(part); h != "" {
				hosts = append(hosts, h)
			}
		}
	}
	c.Targets = hosts
	return nil
}
