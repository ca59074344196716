package rules

import (
	"testing"

	"github.com/ItsNotGoodName/x-compd/internal/config"
	"github.com/ItsNotGoodName/x-compd/internal/window"
)

func boolp(v bool) *bool         { return &v }
func floatp(v float64) *float64  { return &v }
func target(class string) Target { return Target{Class: class, Type: window.TypeNormal} }

func TestCompileRejectsBadPattern(t *testing.T) {
	var cfg config.Config
	cfg.Rules = []config.Rule{{Class: "(unclosed"}}
	if _, err := Compile(cfg); err == nil {
		t.Fatal("want compile error for invalid pattern")
	}

	cfg.Rules = []config.Rule{{Type: "spaceship"}}
	if _, err := Compile(cfg); err == nil {
		t.Fatal("want compile error for unknown type")
	}
}

func TestMatchDefaults(t *testing.T) {
	var cfg config.Config
	cfg.Animations.Enabled = true
	cfg.Opacity.Active = 0.95

	m, err := Compile(cfg)
	if err != nil {
		t.Fatal(err)
	}
	out := m.Match(target("Firefox"))
	if !out.Paint || !out.Fade || out.Opacity != 0.95 || out.Shadow {
		t.Fatalf("defaults = %+v", out)
	}
}

func TestMatchOrdering(t *testing.T) {
	var cfg config.Config
	cfg.Opacity.Active = 1.0
	cfg.Rules = []config.Rule{
		{Class: "mpv|Firefox", Opacity: floatp(0.8), Shadow: boolp(true)},
		{Class: "Firefox", Opacity: floatp(0.5)},
	}

	m, err := Compile(cfg)
	if err != nil {
		t.Fatal(err)
	}

	// Later rule overrides opacity but leaves shadow from the earlier one.
	out := m.Match(target("Firefox"))
	if out.Opacity != 0.5 || !out.Shadow {
		t.Fatalf("Firefox = %+v", out)
	}
	if out := m.Match(target("mpv")); out.Opacity != 0.8 {
		t.Fatalf("mpv = %+v", out)
	}
	if out := m.Match(target("xterm")); out.Opacity != 1.0 || out.Shadow {
		t.Fatalf("xterm = %+v", out)
	}
}

func TestMatchAnchoredAndConditions(t *testing.T) {
	var cfg config.Config
	cfg.Rules = []config.Rule{
		{Class: "term", Paint: boolp(false)},
		{Type: "tooltip", Fullscreen: boolp(false), Shadow: boolp(true)},
	}
	m, err := Compile(cfg)
	if err != nil {
		t.Fatal(err)
	}

	// Patterns are anchored: "term" must not match "xterm".
	if out := m.Match(target("xterm")); !out.Paint {
		t.Fatalf("xterm = %+v", out)
	}
	if out := m.Match(target("term")); out.Paint {
		t.Fatalf("term = %+v", out)
	}

	tip := Target{Type: window.TypeTooltip}
	if out := m.Match(tip); !out.Shadow {
		t.Fatalf("tooltip = %+v", out)
	}
	tip.Fullscreen = true
	if out := m.Match(tip); out.Shadow {
		t.Fatalf("fullscreen tooltip should fail the rule, got %+v", out)
	}
}
