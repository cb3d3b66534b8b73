package policy

import (
	"fmt"
	"time"

	"github.com/halvorsen/cuengine/internal/version"
)

// Reason identifies which evaluation step produced a deny. An allowed
// Permit always carries ReasonNone.
type Reason string

const (
	ReasonGeneral     Reason = "General"
	ReasonConditions  Reason = "Conditions"
	ReasonLagPolicy   Reason = "LagPolicy"
	ReasonMinImageAge Reason = "MinImageAge"
	ReasonNone        Reason = ""
)

// Permit is the outcome of Evaluate. NewRef is always populated (for
// reporting) regardless of Allowed.
type Permit struct {
	Allowed bool
	Reason  Reason
	NewRef  string
	Warning string
}

// Input bundles everything Evaluate needs for one candidate.
type Input struct {
	Rule        Rule
	Category    version.Category
	Registry    string
	Repository  string
	NewTag      string
	OldVersion  version.Version
	NewVersion  version.Version
	LatestVersion version.Version
	HasLatest   bool
	CreatedAt   time.Time
	HasCreatedAt bool
	Now         time.Time
}

// categoryIndex maps a tuple-bearing category to its position in the
// 4-tuple, for conditions and lag-policy arithmetic.
func categoryIndex(c version.Category) (int, bool) {
	switch c {
	case version.CategoryMajor:
		return 0, true
	case version.CategoryMinor:
		return 1, true
	case version.CategoryPatch:
		return 2, true
	case version.CategoryBuild:
		return 3, true
	default:
		return 0, false
	}
}

// Evaluate implements §4.4's decision order, short-circuiting on the first
// negative step.
func Evaluate(in Input) Permit {
	newRef := fmt.Sprintf("%s/%s:%s", in.Registry, in.Repository, in.NewTag)

	if !in.Rule.Allow[in.Category] {
		return Permit{Allowed: false, Reason: ReasonGeneral, NewRef: newRef}
	}

	if cond, ok := in.Rule.Conditions[in.Category]; ok && len(cond.Require) > 0 {
		if !satisfiesCondition(cond, in.NewVersion) {
			return Permit{Allowed: false, Reason: ReasonConditions, NewRef: newRef}
		}
	}

	if lag, ok := in.Rule.LagPolicy[in.Category]; ok {
		if in.HasLatest {
			if !satisfiesLag(in.Category, lag, in.LatestVersion, in.NewVersion) {
				return Permit{Allowed: false, Reason: ReasonLagPolicy, NewRef: newRef}
			}
		}
	}

	minAge := in.Rule.MinImageAge
	if minAge <= 0 {
		minAge = DefaultMinImageAge
	}
	if !in.HasCreatedAt {
		return Permit{Allowed: true, Reason: ReasonNone, NewRef: newRef,
			Warning: "candidate has no createdAt; minImageAge check skipped"}
	}
	age := in.Now.Sub(in.CreatedAt)
	if age < minAge {
		return Permit{Allowed: false, Reason: ReasonMinImageAge, NewRef: newRef}
	}

	return Permit{Allowed: true, Reason: ReasonNone, NewRef: newRef}
}

// satisfiesCondition implements the non-zero-component reading (§9 OQ1): a
// boolean OR across the required categories, true if the new version has a
// non-zero tuple value at any of their positions.
func satisfiesCondition(cond Condition, newV version.Version) bool {
	for _, required := range cond.Require {
		idx, ok := categoryIndex(required)
		if !ok {
			continue
		}
		if newV.Tuple[idx] != 0 {
			return true
		}
	}
	return false
}

// satisfiesLag requires (latest_component - new_component) + 1 > L.
func satisfiesLag(category version.Category, lag int, latestV, newV version.Version) bool {
	idx, ok := categoryIndex(category)
	if !ok {
		return true
	}
	delta := (latestV.Tuple[idx] - newV.Tuple[idx]) + 1
	return delta > lag
}
