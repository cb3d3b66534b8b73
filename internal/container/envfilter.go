package container

import (
	"fmt"
	"path/filepath"
	"strings"
)

// EnvFilterConfig is the exclude/preserve pattern DSL read from
// [envFiltering] in the INI config: glob patterns matched against the
// ENV key, plus a per-container override list that replaces the global
// preserve patterns for a single container name (the global exclude
// patterns still apply).
type EnvFilterConfig struct {
	Enabled                bool
	ExcludePatterns        []string
	PreservePatterns       []string
	ContainerSpecificRules map[string][]string // containerName -> preserve-pattern overrides
}

func envKey(kv string) string {
	if i := strings.IndexByte(kv, '='); i >= 0 {
		return kv[:i]
	}
	return kv
}

func matchesAny(patterns []string, key string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, key); ok {
			return true
		}
	}
	return false
}

// ReconcileEnv computes the ENV that the recreated container should
// start with, per §4.5:
//
//	keep = containerEnv \ {v in imageEnv : same key=value}
//
// then applies the exclude/preserve pattern DSL on top, with
// preserve-patterns always winning over exclude-patterns. If
// newImageEnv is nil (the new image's ENV could not be inspected), all
// of containerEnv is preserved and a warning string is returned.
func ReconcileEnv(containerEnv, newImageEnv []string, cfg EnvFilterConfig, containerName string) (kept []string, warning string) {
	if newImageEnv == nil {
		return append([]string(nil), containerEnv...), "new image ENV unavailable; preserving all container ENV"
	}

	imageSet := make(map[string]bool, len(newImageEnv))
	for _, v := range newImageEnv {
		imageSet[v] = true
	}

	base := make([]string, 0, len(containerEnv))
	for _, v := range containerEnv {
		if !imageSet[v] {
			base = append(base, v)
		}
	}

	if !cfg.Enabled {
		return base, ""
	}

	preserve := cfg.PreservePatterns
	if override, ok := cfg.ContainerSpecificRules[containerName]; ok {
		preserve = override
	}

	kept = make([]string, 0, len(base))
	for _, v := range base {
		key := envKey(v)
		if matchesAny(preserve, key) {
			kept = append(kept, v)
			continue
		}
		if matchesAny(cfg.ExcludePatterns, key) {
			continue
		}
		kept = append(kept, v)
	}
	return kept, ""
}

// DescribeEnvFilter renders a short human-readable summary of which
// patterns would fire for a given key, used in verbose/debug logging.
func DescribeEnvFilter(cfg EnvFilterConfig, key string) string {
	if matchesAny(cfg.PreservePatterns, key) {
		return fmt.Sprintf("%s: preserved", key)
	}
	if matchesAny(cfg.ExcludePatterns, key) {
		return fmt.Sprintf("%s: excluded", key)
	}
	return fmt.Sprintf("%s: kept", key)
}
