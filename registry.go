package pingrank

import (
	"errors"
	"fmt"
)

// Registry is the fixed, ordered list of targets for the life of the
// process. Registry order is the dispatch order of every pass and the
// tie-break order of the ranking.
type Registry struct {
	targets []Target
}

// NewRegistry builds a [Registry]. At least one target is required and
// hosts must be unique.
func NewRegistry(targets ...Target) (*Registry, error) {
	if len(targets) == 0 {
		return nil, errors.New("at least one target is required")
	}
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if t.host == "" {
			return nil, errors.New("target host cannot be empty")
		}
		if seen[t.host] {
			return nil, fmt.Errorf("duplicate target: %q", t.host)
		}
		seen[t.host] = true
	}
	cp := make([]Target, len(targets))
	copy(cp, targets)
	return &Registry{targets: cp}, nil
}

// Len returns the number of targets.
func (r *Registry) Len() int {
	return len(r.targets)
}

// Targets returns a copy of the targets in registry order.
func (r *Registry) Targets() []Target {
	cp := make([]Target, len(r.targets))
	copy(cp, r.targets)
	return cp
}

// Hosts returns the target hosts in registry order.
func (r *Registry) Hosts() []string {
	hosts := make([]string, len(r.targets))
	for i, t := range r.targets {
		hosts[i] = t.host
	}
	return hosts
}
