package version

import (
	"fmt"
	"time"
)

// Compare classifies the change from old to new per the scheme-aware rules:
// differing schemes are never auto-classified as an upgrade, semantic tags
// compare component-by-component, and date/numeric tags compare by delta
// thresholds. The explanation is a short human-readable reason, useful in
// logs and diagnostic dumps.
func Compare(old, new Version) (Category, string) {
	if !old.Tuple.IsValid() || !new.Tuple.IsValid() {
		return CategoryUnknown, "one or both tuples are invalid"
	}

	if old.Scheme != new.Scheme {
		return CategorySchemeChange, fmt.Sprintf("scheme changed from %s to %s", old.Scheme, new.Scheme)
	}

	switch old.Scheme {
	case SchemeSemantic:
		return compareSemantic(old.Tuple, new.Tuple)
	case SchemeDate:
		return compareDate(old.Tuple, new.Tuple)
	case SchemeNumeric:
		return compareNumeric(old.Tuple, new.Tuple)
	default:
		return CategoryUnknown, "scheme is unknown"
	}
}

func compareSemantic(old, new Tuple) (Category, string) {
	for i := 0; i < 4; i++ {
		if old[i] != new[i] {
			return semanticCategory(i), fmt.Sprintf("component %d differs (%d -> %d)", i, old[i], new[i])
		}
	}
	return CategoryDigest, "tuples are identical"
}

func semanticCategory(index int) Category {
	switch index {
	case 0:
		return CategoryMajor
	case 1:
		return CategoryMinor
	case 2:
		return CategoryPatch
	default:
		return CategoryBuild
	}
}

func compareDate(old, new Tuple) (Category, string) {
	oldDate := tupleToDate(old)
	newDate := tupleToDate(new)
	delta := int(newDate.Sub(oldDate).Hours() / 24)

	switch {
	case delta >= 365:
		return CategoryMajor, fmt.Sprintf("day delta %d >= 365", delta)
	case delta > 30:
		return CategoryMinor, fmt.Sprintf("day delta %d > 30", delta)
	case delta > 0:
		return CategoryPatch, fmt.Sprintf("day delta %d > 0", delta)
	case delta == 0:
		return CategoryDigest, "same calendar date"
	default:
		return CategoryUnknown, fmt.Sprintf("day delta %d is negative", delta)
	}
}

func compareNumeric(old, new Tuple) (Category, string) {
	delta := new[0] - old[0]
	switch {
	case delta > 10:
		return CategoryMajor, fmt.Sprintf("numeric delta %d > 10", delta)
	case delta > 1:
		return CategoryMinor, fmt.Sprintf("numeric delta %d > 1", delta)
	case delta == 1:
		return CategoryPatch, "numeric delta == 1"
	case delta == 0:
		return CategoryDigest, "numeric delta == 0"
	default:
		return CategoryUnknown, fmt.Sprintf("numeric delta %d is negative", delta)
	}
}

func tupleToDate(t Tuple) time.Time {
	return time.Date(t[0], time.Month(t[1]), t[2], 0, 0, 0, 0, time.UTC)
}
