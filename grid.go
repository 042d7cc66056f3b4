package pingrank

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// NewTargetGrid expands a host template over the cartesian product of the
// given dimensions.
//
// The template uses Go's text/template syntax with dimension keys as
// variables. Missing keys are an error. Keys are iterated in sorted order and
// values in the order given, so the resulting registry order is
// deterministic.
//
// Example:
//
//	targets, err := pingrank.NewTargetGrid("api-{{.region}}.example.com",
//	    map[string][]string{"region": {"hk", "us"}},
//	)
//	// api-hk.example.com, api-us.example.com
func NewTargetGrid(hostTemplate string, dims map[string][]string) ([]Target, error) {
	if strings.TrimSpace(hostTemplate) == "" {
		return nil, errors.New("host template required")
	}
	if len(dims) == 0 {
		return nil, errors.New("at least one dimension required")
	}
	for k, vals := range dims {
		if len(vals) == 0 {
			return nil, fmt.Errorf("dimension '%s' has no values", k)
		}
		for i, v := range vals {
			if v == "" {
				return nil, fmt.Errorf("dimension '%s' contains empty value at index %d", k, i)
			}
		}
	}

	tmpl, err := template.New("host").Option("missingkey=error").Parse(hostTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid host template: %w", err)
	}

	combinations := cartesianProduct(dims)
	targets := make([]Target, 0, len(combinations))
	for _, combo := range combinations {
		var buf strings.Builder
		if err := tmpl.Execute(&buf, combo); err != nil {
			return nil, fmt.Errorf("template execution failed: %w", err)
		}
		t, err := NewTarget(buf.String())
		if err != nil {
			return nil, fmt.Errorf("grid target %v: %w", combo, err)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// cartesianProduct expands dims into every key/value combination. Keys vary
// slowest-first in sorted order; values keep their slice order. An empty
// dimension yields no combinations.
func cartesianProduct(dims map[string][]string) []map[string]string {
	if len(dims) == 0 {
		return nil
	}
	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []map[string]string{{}}
	for _, k := range keys {
		next := make([]map[string]string, 0, len(combos)*len(dims[k]))
		for _, base := range combos {
			for _, v := range dims[k] {
				combo := make(map[string]string, len(base)+1)
				for bk, bv := range base {
					combo[bk] = bv
				}
				combo[k] = v
				next = append(next, combo)
			}
		}
		combos = next
	}
	if len(combos) == 0 {
		return nil
	}
	return combos
}
