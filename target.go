package pingrank

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DefaultTargets is the host list used when none is configured.
const DefaultTargets = "claude.ai,anthropic.com,google.com,github.com,stackoverflow.com,vercel.com"

// Category groups targets by the kind of service they front.
type Category string

const (
	// CategoryPublic is a shared, general-purpose endpoint.
	CategoryPublic Category = "public"
	// CategoryPrivate is a dedicated ("share") endpoint.
	CategoryPrivate Category = "private"
	// CategoryCodex is a codex endpoint.
	CategoryCodex Category = "codex"
)

// String implements fmt.Stringer.
func (c Category) String() string {
	return string(c)
}

// ParseCategory accepts "public", "private" or "codex", case-insensitively.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryPublic, CategoryPrivate, CategoryCodex:
		return c, nil
	default:
		return "", fmt.Errorf("unknown category %q", s)
	}
}

// Classify derives a target's [Category] from its host name.
//
// Hosts containing "codex" are [CategoryCodex], otherwise hosts containing
// "share" are [CategoryPrivate]; everything else is [CategoryPublic]. The
// match is case-insensitive.
func Classify(host string) Category {
	h := strings.ToLower(host)
	switch {
	case strings.Contains(h, "codex"):
		return CategoryCodex
	case strings.Contains(h, "share"):
		return CategoryPrivate
	default:
		return CategoryPublic
	}
}

// Target is one host to probe. It is immutable once created by [NewTarget];
// the category is computed once at construction.
type Target struct {
	host     string
	category Category
}

// Host returns the probed host, optionally with a port.
func (t Target) Host() string {
	return t.host
}

// Category returns the target's [Category].
func (t Target) Category() Category {
	return t.category
}

// NewTarget validates host and returns a [Target].
//
// host is a bare host name with an optional port, e.g. "api.example.com" or
// "127.0.0.1:8443". Schemes, paths and whitespace are rejected.
func NewTarget(host string) (Target, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return Target{}, errors.New("target host cannot be empty")
	}
	if strings.Contains(host, "://") {
		return Target{}, fmt.Errorf("target %q must be a host, not a URL", host)
	}
	if strings.ContainsAny(host, "/?# \t") {
		return Target{}, fmt.Errorf("target %q must not contain a path or whitespace", host)
	}
	u, err := url.Parse("https://" + host + "/")
	if err != nil {
		return Target{}, fmt.Errorf("invalid target %q: %w", host, err)
	}
	if u.Host != host || u.Hostname() == "" {
		return Target{}, fmt.Errorf("invalid target %q", host)
	}
	return Target{host: host, category: Classify(host)}, nil
}

// ParseTargets splits a comma-separated host list into targets. Empty
// entries are skipped.
func ParseTargets(list string) ([]Target, error) {
	var targets []Target
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, err := NewTarget(part)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}
