// Package tagpipeline filters and orders raw registry tags into the
// candidate window the orchestrator iterates over for a single container.
package tagpipeline

import (
	"regexp"
	"sort"
	"strings"

	"github.com/halvorsen/cuengine/internal/registry"
	"github.com/halvorsen/cuengine/internal/version"
)

var digitRun = regexp.MustCompile(`[0-9]+`)

// ShapePattern derives a regular expression from the current tag by
// replacing each maximal digit run with `[0-9]+` and escaping everything
// else. This keeps candidates matching the current tag's "shape" — e.g. it
// prevents offering `1.2-debian` as an upgrade for `1.2-alpine`.
func ShapePattern(currentTag string) *regexp.Regexp {
	var b strings.Builder
	last := 0
	for _, loc := range digitRun.FindAllStringIndex(currentTag, -1) {
		b.WriteString(regexp.QuoteMeta(currentTag[last:loc[0]]))
		b.WriteString(`[0-9]+`)
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(currentTag[last:]))
	return regexp.MustCompile("^" + b.String() + "$")
}

// Build runs the three-stage pipeline described in §4.3: shape filter,
// descending version sort, then truncation to the contiguous prefix from
// the newest candidate down to and including the current tag. The result
// is returned newest-first; the orchestrator iterates it in reverse
// (oldest-to-newest) to support progressive upgrade.
func Build(currentTag string, candidates []registry.TagCandidate) []registry.TagCandidate {
	shape := ShapePattern(currentTag)

	filtered := make([]registry.TagCandidate, 0, len(candidates))
	for _, c := range candidates {
		if shape.MatchString(c.Name) {
			filtered = append(filtered, c)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return lessDescending(filtered[i].Name, filtered[j].Name)
	})

	return truncateToCurrentAndNewer(filtered, currentTag)
}

// lessDescending reports whether a should sort before b in a descending
// ordering: higher normalized tuples first; invalid tuples sort after all
// valid ones, ordered lexicographically by name among themselves.
func lessDescending(a, b string) bool {
	va, vb := version.Normalize(a), version.Normalize(b)
	if va.Tuple.IsValid() && !vb.Tuple.IsValid() {
		return true
	}
	if !va.Tuple.IsValid() && vb.Tuple.IsValid() {
		return false
	}
	if !va.Tuple.IsValid() && !vb.Tuple.IsValid() {
		return a < b
	}
	for i := 0; i < 4; i++ {
		if va.Tuple[i] != vb.Tuple[i] {
			return va.Tuple[i] > vb.Tuple[i]
		}
	}
	return a < b
}

// truncateToCurrentAndNewer keeps the contiguous prefix of the
// (already-sorted-descending) candidate list down to and including the
// entry equal to currentTag. If currentTag is absent from the list, all
// candidates are considered newer-or-equal (nothing to truncate) since the
// driver cannot prove any of them is older.
func truncateToCurrentAndNewer(sorted []registry.TagCandidate, currentTag string) []registry.TagCandidate {
	for i, c := range sorted {
		if c.Name == currentTag {
			return sorted[:i+1]
		}
	}
	return sorted
}
