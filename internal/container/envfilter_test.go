package container

import "testing"

func TestReconcileEnvDropsIdenticalImageValues(t *testing.T) {
	containerEnv := []string{"PATH=/usr/bin", "FOO=bar", "BAZ=qux"}
	imageEnv := []string{"PATH=/usr/bin", "FOO=other"}

	kept, warning := ReconcileEnv(containerEnv, imageEnv, EnvFilterConfig{}, "c")
	if warning != "" {
		t.Fatalf("unexpected warning: %s", warning)
	}
	want := map[string]bool{"FOO=bar": true, "BAZ=qux": true}
	if len(kept) != len(want) {
		t.Fatalf("kept = %v, want keys %v", kept, want)
	}
	for _, v := range kept {
		if !want[v] {
			t.Errorf("unexpected kept value %q", v)
		}
	}
}

func TestReconcileEnvNilImageEnvPreservesAllWithWarning(t *testing.T) {
	containerEnv := []string{"A=1", "B=2"}
	kept, warning := ReconcileEnv(containerEnv, nil, EnvFilterConfig{Enabled: true}, "c")
	if warning == "" {
		t.Fatal("expected a warning when new image ENV is unavailable")
	}
	if len(kept) != 2 {
		t.Fatalf("kept = %v, want all of containerEnv", kept)
	}
}

func TestReconcileEnvPreservePatternWinsOverExclude(t *testing.T) {
	containerEnv := []string{"SECRET_TOKEN=abc", "DEBUG=1"}
	cfg := EnvFilterConfig{
		Enabled:          true,
		ExcludePatterns:  []string{"SECRET_*"},
		PreservePatterns: []string{"SECRET_TOKEN"},
	}
	kept, _ := ReconcileEnv(containerEnv, []string{}, cfg, "c")
	found := false
	for _, v := range kept {
		if v == "SECRET_TOKEN=abc" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected SECRET_TOKEN to be preserved despite matching an exclude pattern, got %v", kept)
	}
}

func TestReconcileEnvContainerSpecificOverride(t *testing.T) {
	containerEnv := []string{"DEBUG=1"}
	cfg := EnvFilterConfig{
		Enabled:          true,
		ExcludePatterns:  []string{"DEBUG"},
		PreservePatterns: []string{},
		ContainerSpecificRules: map[string][]string{
			"special": {"DEBUG"},
		},
	}
	kept, _ := ReconcileEnv(containerEnv, []string{}, cfg, "special")
	if len(kept) != 1 {
		t.Fatalf("expected container-specific override to preserve DEBUG, got %v", kept)
	}

	kept, _ = ReconcileEnv(containerEnv, []string{}, cfg, "other")
	if len(kept) != 0 {
		t.Fatalf("expected global exclude to apply for non-overridden container, got %v", kept)
	}
}
