package main

import (
	"fmt"
	"strings"

	"github.com/halvorsen/cuengine/internal/container"
)

// parseFilters turns the repeatable --filter key=value flags into a
// container.ListFilters. name= entries accumulate (OR match); status=
// is last-write-wins since the driver only supports one status value.
// Malformed or unrecognized entries are reported back as warnings
// rather than failing the whole invocation.
func parseFilters(raw []string) (container.ListFilters, []string) {
	var f container.ListFilters
	var warnings []string

	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			warnings = append(warnings, fmt.Sprintf("ignoring malformed --filter %q (want key=value)", kv))
			continue
		}
		switch key {
		case "name":
			f.NameGlobs = append(f.NameGlobs, value)
		case "status":
			f.Status = value
		default:
			warnings = append(warnings, fmt.Sprintf("ignoring unknown filter key %q", key))
		}
	}

	return f, warnings
}
