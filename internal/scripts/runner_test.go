package scripts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeScript(t *testing.T, dir, hook, name, body string) {
	t.Helper()
	hookDir := filepath.Join(dir, hook)
	if err := os.MkdirAll(hookDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(hookDir, name+".sh")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestRunMissingScriptIsNotAnError(t *testing.T) {
	cfg := Config{Enabled: true, ScriptsDirectory: t.TempDir(), Timeout: time.Second}
	if err := Run(context.Background(), cfg, HookPre, "nope", nil); err != nil {
		t.Fatalf("expected no error for a missing hook script, got %v", err)
	}
}

func TestRunDisabledSkipsEntirely(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "pre", "app", "#!/bin/sh\nexit 1\n")
	cfg := Config{Enabled: false, ScriptsDirectory: dir}
	if err := Run(context.Background(), cfg, HookPre, "app", nil); err != nil {
		t.Fatalf("expected disabled hooks to no-op, got %v", err)
	}
}

func TestRunSucceedsOnZeroExit(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "post", "app", "#!/bin/sh\nexit 0\n")
	cfg := Config{Enabled: true, ScriptsDirectory: dir, Timeout: 2 * time.Second}
	if err := Run(context.Background(), cfg, HookPost, "app", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunFailsOnNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "post", "app", "#!/bin/sh\nexit 3\n")
	cfg := Config{Enabled: true, ScriptsDirectory: dir, Timeout: 2 * time.Second}
	if err := Run(context.Background(), cfg, HookPost, "app", nil); err == nil {
		t.Fatal("expected an error for non-zero exit")
	}
}

func TestRunTimesOutLongRunningScript(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "pre", "app", "#!/bin/sh\nsleep 10\n")
	cfg := Config{Enabled: true, ScriptsDirectory: dir, Timeout: 100 * time.Millisecond}
	start := time.Now()
	err := Run(context.Background(), cfg, HookPre, "app", nil)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if time.Since(start) > killGrace+2*time.Second {
		t.Fatalf("escalation took too long: %v", time.Since(start))
	}
}
