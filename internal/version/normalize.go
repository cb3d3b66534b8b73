package version

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	digitRun     = regexp.MustCompile(`[0-9]+`)
	separatorRun = regexp.MustCompile(`[-_+]`)
)

// Normalize derives the scheme and tuple of a tag. It is total and
// deterministic: every input, however malformed, produces a Version.
//
// The tuple is built from the first four maximal digit runs in the tag
// (after stripping a leading "v"), with the missing trailing components
// set to zero when fewer than four runs are present. A tag with no digit runs at all normalizes to the
// invalid sentinel tuple.
func Normalize(tag string) Version {
	v := Version{Original: tag}
	v.Tuple = extractTuple(tag)
	v.Scheme = detectScheme(tag, v.Tuple)
	return v
}

func extractTuple(tag string) Tuple {
	runs := digitRun.FindAllString(tag, -1)
	if len(runs) == 0 {
		return Invalid
	}
	var t Tuple
	for i := 0; i < 4; i++ {
		if i >= len(runs) {
			t[i] = 0
			continue
		}
		n, err := strconv.Atoi(runs[i])
		if err != nil {
			return Invalid
		}
		t[i] = n
	}
	return t
}

func detectScheme(tag string, t Tuple) Scheme {
	if !t.IsValid() {
		return SchemeUnknown
	}

	cleaned := strings.TrimPrefix(strings.ToLower(tag), "v")
	cleaned = separatorRun.ReplaceAllString(cleaned, ".")
	parts := strings.Split(cleaned, ".")

	if len(parts) >= 3 && allDigits(parts[0]) && allDigits(parts[1]) && allDigits(parts[2]) {
		if looksLikeDate(parts[0], parts[1], parts[2]) {
			if calendarValid(parts[0], parts[1], parts[2]) {
				return SchemeDate
			}
			return SchemeUnknown
		}
		return SchemeSemantic
	}

	if len(parts) == 1 && allDigits(parts[0]) {
		return SchemeNumeric
	}

	return SchemeUnknown
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// looksLikeDate checks the shape (4-digit year starting "20", 1-2 digit
// month in range, 1-2 digit day in range) without validating the actual
// calendar day.
func looksLikeDate(year, month, day string) bool {
	if len(year) != 4 || !strings.HasPrefix(year, "20") {
		return false
	}
	if len(month) > 2 || len(day) > 2 {
		return false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return false
	}
	return true
}

// calendarValid confirms the (year, month, day) triple is a real calendar
// date, catching cases such as 2023-02-29 (not a leap year) that pass the
// shape check in looksLikeDate but are not valid dates.
func calendarValid(year, month, day string) bool {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return t.Year() == y && int(t.Month()) == m && t.Day() == d
}
