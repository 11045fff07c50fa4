package domain

import (
	"maps"
	"regexp"
	"slices"
)

// RuleAction is either allow or disallow.
type RuleAction string

const (
	// RuleAllow includes the owner when the rule matches.
	RuleAllow RuleAction = "allow"
	// RuleDisallow excludes the owner when the rule matches.
	RuleDisallow RuleAction = "disallow"
)

// OSRestriction narrows a rule to an operating system, version pattern and architecture.
type OSRestriction struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
	Arch    string `json:"arch,omitempty"`
}

// CompatibilityRule gates a library or argument on the running environment.
type CompatibilityRule struct {
	Action   RuleAction      `json:"action"`
	OS       *OSRestriction  `json:"os,omitempty"`
	Features map[string]bool `json:"features,omitempty"`
}

// Matches reports whether the rule's conditions hold on p.
func (r CompatibilityRule) Matches(p Platform) bool {
	if r.OS != nil {
		if r.OS.Name != "" && r.OS.Name != p.OS {
			return false
		}
		if r.OS.Arch != "" && r.OS.Arch != p.Arch {
			return false
		}
		if r.OS.Version != "" {
			re, err := regexp.Compile(r.OS.Version)
			if err != nil || !re.MatchString(p.Version) {
				return false
			}
		}
	}
	for feature, want := range r.Features {
		if p.Features[feature] != want {
			return false
		}
	}
	return true
}

// Equal reports structural equality.
func (r CompatibilityRule) Equal(o CompatibilityRule) bool {
	if r.Action != o.Action {
		return false
	}
	if (r.OS == nil) != (o.OS == nil) {
		return false
	}
	if r.OS != nil && *r.OS != *o.OS {
		return false
	}
	return maps.Equal(r.Features, o.Features)
}

// RulesAllow evaluates a rule list: no rules means allowed, otherwise the last matching rule decides
// and nothing matching means disallowed.
func RulesAllow(rules []CompatibilityRule, p Platform) bool {
	if len(rules) == 0 {
		return true
	}
	action := RuleDisallow
	for _, r := range rules {
		if r.Matches(p) {
			action = r.Action
		}
	}
	return action == RuleAllow
}

// RulesEqual compares two rule lists element by element.
func RulesEqual(a, b []CompatibilityRule) bool {
	return slices.EqualFunc(a, b, CompatibilityRule.Equal)
}
