// Package policy implements the rule assignment and permit/deny evaluation
// described in §4.4: for a given container and candidate change, decide
// whether the update is authorized and why.
package policy

import (
	"path/filepath"
	"time"

	"github.com/halvorsen/cuengine/internal/version"
)

// DefaultMinImageAge is used when a rule does not set minImageAge.
const DefaultMinImageAge = 30 * time.Minute

// Condition requires at least one of the listed categories to show a
// non-zero tuple component on the candidate version (the "non-zero
// component" reading of §9 OQ1).
type Condition struct {
	Require []version.Category
}

// Rule is the immutable, validated policy applied to one or more
// containers. Invariant: Allow's keys are a subset of the defined
// categories; Conditions.require entries reference defined categories.
type Rule struct {
	Name               string
	MinImageAge        time.Duration
	ProgressiveUpgrade bool
	Allow              map[version.Category]bool
	Conditions         map[version.Category]Condition
	LagPolicy          map[version.Category]int
}

// Tables holds the three ordered assignment mappings. Lookup precedence is
// by-name (exact) -> by-image (glob on repository path) -> by-id (glob) ->
// "default".
type Tables struct {
	ByName  map[string]string
	ByImage []GlobAssignment
	ByID    []GlobAssignment
}

// GlobAssignment pairs a shell glob pattern with the rule name to use when
// it matches.
type GlobAssignment struct {
	Pattern  string
	RuleName string
}

// ResolveRule implements §4.4's resolveRule: exact name match, then image
// glob, then id glob, falling back to "default" with a warning carrying
// the originally-resolved (but missing) rule name.
func ResolveRule(tables Tables, rules map[string]Rule, containerName, imageRepo, containerID string) (rule Rule, ruleName string, warning string) {
	candidate := ""
	if name, ok := tables.ByName[containerName]; ok {
		candidate = name
	} else if name, ok := matchGlobs(tables.ByImage, imageRepo); ok {
		candidate = name
	} else if name, ok := matchGlobs(tables.ByID, containerID); ok {
		candidate = name
	}

	if candidate == "" {
		candidate = "default"
	}

	if r, ok := rules[candidate]; ok {
		return r, candidate, ""
	}

	if r, ok := rules["default"]; ok {
		return r, "default", "rule " + candidate + " not found, falling back to default"
	}

	return Rule{Name: "default", MinImageAge: DefaultMinImageAge}, "default",
		"rule " + candidate + " not found and no default rule is configured"
}

func matchGlobs(assignments []GlobAssignment, subject string) (string, bool) {
	for _, a := range assignments {
		if ok, _ := filepath.Match(a.Pattern, subject); ok {
			return a.RuleName, true
		}
	}
	return "", false
}
