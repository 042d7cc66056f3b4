package pingrank

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		host string
		want Category
	}{
		{"api.packycode.com", CategoryPublic},
		{"share-api.packycode.com", CategoryPrivate},
		{"SHARE-API-HK.example.com", CategoryPrivate},
		{"codex-api.packycode.com", CategoryCodex},
		{"codex-share.example.com", CategoryCodex},
		{"claude.ai", CategoryPublic},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := Classify(tt.host); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

func TestNewTarget_Valid(t *testing.T) {
	for _, host := range []string{"claude.ai", " api.example.com ", "127.0.0.1:8443", "[::1]:443"} {
		t.Run(host, func(t *testing.T) {
			target, err := NewTarget(host)
			if err != nil {
				t.Fatalf("NewTarget(%q) error = %v", host, err)
			}
			if target.Host() != strings.TrimSpace(host) {
				t.Errorf("Host() = %q, want %q", target.Host(), strings.TrimSpace(host))
			}
		})
	}
}

func TestNewTarget_Invalid(t *testing.T) {
	tests := []struct {
		host    string
		wantErr string
	}{
		{"", "cannot be empty"},
		{"   ", "cannot be empty"},
		{"https://claude.ai", "not a URL"},
		{"claude.ai/path", "must not contain a path"},
		{"claude ai", "must not contain a path or whitespace"},
		{":443", "invalid target"},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			_, err := NewTarget(tt.host)
			if err == nil {
				t.Fatalf("NewTarget(%q) expected error, got nil", tt.host)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("NewTarget(%q) error = %q, want it to contain %q", tt.host, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNewTarget_CategoryComputedOnce(t *testing.T) {
	target, err := NewTarget("codex-api-hk-cdn.packycode.com")
	if err != nil {
		t.Fatalf("NewTarget() error = %v", err)
	}
	if target.Category() != CategoryCodex {
		t.Errorf("Category() = %q, want %q", target.Category(), CategoryCodex)
	}
}

func TestParseTargets(t *testing.T) {
	targets, err := ParseTargets(DefaultTargets)
	if err != nil {
		t.Fatalf("ParseTargets() error = %v", err)
	}
	if len(targets) != 6 {
		t.Fatalf("ParseTargets() returned %d targets, want 6", len(targets))
	}
	if targets[0].Host() != "claude.ai" || targets[5].Host() != "vercel.com" {
		t.Errorf("ParseTargets() order not preserved: %q ... %q", targets[0].Host(), targets[5].Host())
	}

	targets, err = ParseTargets(" a.example.com, ,b.example.com,")
	if err != nil {
		t.Fatalf("ParseTargets() error = %v", err)
	}
	if len(targets) != 2 {
		t.Errorf("ParseTargets() returned %d targets, want 2", len(targets))
	}

	if _, err := ParseTargets("ok.example.com,https://bad"); err == nil {
		t.Error("ParseTargets() expected error for URL entry")
	}
}

func TestParseCategory(t *testing.T) {
	for _, s := range []string{"public", "Private", " codex "} {
		if _, err := ParseCategory(s); err != nil {
			t.Errorf("ParseCategory(%q) error = %v", s, err)
		}
	}
	if _, err := ParseCategory("bus"); err == nil {
		t.Error("ParseCategory(\"bus\") expected error")
	}
}

func TestNewRegistry(t *testing.T) {
	a, _ := NewTarget("a.example.com")
	b, _ := NewTarget("b.example.com")

	reg, err := NewRegistry(a, b)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if reg.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reg.Len())
	}
	hosts := reg.Hosts()
	if hosts[0] != "a.example.com" || hosts[1] != "b.example.com" {
		t.Errorf("Hosts() = %v", hosts)
	}

	// returned slice is a copy
	targets := reg.Targets()
	targets[0] = b
	if reg.Targets()[0].Host() != "a.example.com" {
		t.Error("Targets() exposed internal slice")
	}
}

func TestNewRegistry_Errors(t *testing.T) {
	a, _ := NewTarget("a.example.com")

	if _, err := NewRegistry(); err == nil {
		t.Error("NewRegistry() expected error for no targets")
	}
	if _, err := NewRegistry(a, a); err == nil || !strings.Contains(err.Error(), "duplicate target") {
		t.Errorf("NewRegistry() error = %v, want duplicate target", err)
	}
	if _, err := NewRegistry(Target{}); err == nil {
		t.Error("NewRegistry() expected error for zero Target")
	}
}
