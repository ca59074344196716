// Package rules evaluates window policy: which effects apply to which
// windows, driven by the rules list in the config.
package rules

import (
	"fmt"
	"regexp"

	"github.com/ItsNotGoodName/x-compd/internal/config"
	"github.com/ItsNotGoodName/x-compd/internal/window"
)

// Target is everything a rule may match against, assembled by the
// reconciliation pass from the window's resolved properties.
type Target struct {
	Name       string
	Class      string
	Instance   string
	Role       string
	Type       window.Type
	Fullscreen bool
	Focused    bool
}

// Matcher resolves a window's effect set. Rules apply in order, later rules
// overriding earlier ones.
type Matcher interface {
	Match(t Target) window.Policy
}

type compiledRule struct {
	name, class, instance, role *regexp.Regexp
	typ                         window.Type
	hasType                     bool
	fullscreen, focused         *bool

	shadow, fade, paint *bool
	opacity             *float64
}

// Rules is the config-driven Matcher.
type Rules struct {
	defaults window.Policy
	rules    []compiledRule
}

// Compile builds a Matcher from the config. Match strings are anchored
// regular expressions; an invalid pattern fails the whole compile so a
// broken config is caught at startup, not per window.
func Compile(cfg config.Config) (*Rules, error) {
	r := &Rules{
		defaults: window.Policy{
			Shadow:  false,
			Fade:    cfg.Animations.Enabled,
			Opacity: cfg.Opacity.Active,
			Paint:   true,
		},
	}
	for i, rule := range cfg.Rules {
		c, err := compileRule(rule)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		r.rules = append(r.rules, c)
	}
	return r, nil
}

func compileRule(rule config.Rule) (compiledRule, error) {
	c := compiledRule{
		fullscreen: rule.Fullscreen,
		focused:    rule.Focused,
		shadow:     rule.Shadow,
		fade:       rule.Fade,
		paint:      rule.Paint,
		opacity:    rule.Opacity,
	}

	var err error
	if c.name, err = compilePattern(rule.Name); err != nil {
		return c, fmt.Errorf("name: %w", err)
	}
	if c.class, err = compilePattern(rule.Class); err != nil {
		return c, fmt.Errorf("class: %w", err)
	}
	if c.instance, err = compilePattern(rule.Instance); err != nil {
		return c, fmt.Errorf("instance: %w", err)
	}
	if c.role, err = compilePattern(rule.Role); err != nil {
		return c, fmt.Errorf("role: %w", err)
	}

	if rule.Type != "" {
		c.typ, err = parseType(rule.Type)
		if err != nil {
			return c, err
		}
		c.hasType = true
	}
	return c, nil
}

func compilePattern(p string) (*regexp.Regexp, error) {
	if p == "" {
		return nil, nil
	}
	return regexp.Compile("^(?:" + p + ")$")
}

func parseType(s string) (window.Type, error) {
	for t := window.TypeDesktop; t <= window.TypeDND; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return window.TypeUnknown, fmt.Errorf("unknown window type %q", s)
}

func (c *compiledRule) matches(t Target) bool {
	if c.name != nil && !c.name.MatchString(t.Name) {
		return false
	}
	if c.class != nil && !c.class.MatchString(t.Class) {
		return false
	}
	if c.instance != nil && !c.instance.MatchString(t.Instance) {
		return false
	}
	if c.role != nil && !c.role.MatchString(t.Role) {
		return false
	}
	if c.hasType && c.typ != t.Type {
		return false
	}
	if c.fullscreen != nil && *c.fullscreen != t.Fullscreen {
		return false
	}
	if c.focused != nil && *c.focused != t.Focused {
		return false
	}
	return true
}

// Match implements Matcher. Rules apply in order, so later rules win on
// conflict.
func (r *Rules) Match(t Target) window.Policy {
	out := r.defaults
	for i := range r.rules {
		c := &r.rules[i]
		if !c.matches(t) {
			continue
		}
		if c.shadow != nil {
			out.Shadow = *c.shadow
		}
		if c.fade != nil {
			out.Fade = *c.fade
		}
		if c.opacity != nil {
			out.Opacity = *c.opacity
		}
		if c.paint != nil {
			out.Paint = *c.paint
		}
	}
	return out
}
