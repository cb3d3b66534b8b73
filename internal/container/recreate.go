package container

import (
	"context"
	"fmt"
	"time"
)

const backupTimeLayout = "20060102-150405"

// BackupName derives the `_bak_cu_<ts>` name a container is renamed to
// during recreate, per the BackupMarker format in the data model.
func BackupName(original string, at time.Time) string {
	return fmt.Sprintf("%s_bak_cu_%s", original, at.Format(backupTimeLayout))
}

// PostHookFunc runs after the replacement container is verified
// healthy; it is the caller's hook into script execution (A5) and
// receives the new container's ID.
type PostHookFunc func(ctx context.Context, newID string) error

// RecreateResult reports what happened to a single container recreate,
// independent of the orchestrator's higher-level UpdateOutcome.
type RecreateResult struct {
	NewID      string
	BackupName string
	RolledBack bool
}

// Recreate implements the protocol in §4.5: rename-to-backup, disable
// restart, stop backup, build spec, create, start, verify, and roll
// back to the original on any failure. now is injected by the caller
// so the backup timestamp is deterministic in tests.
func Recreate(ctx context.Context, d Driver, old ContainerSnapshot, newImageRef string, envCfg EnvFilterConfig, verifyPolicy VerifyPolicy, stopTimeout int, postHook PostHookFunc, rollbackOnPostHookFailure bool, now time.Time) (RecreateResult, error) {
	backupName := BackupName(old.Name, now)

	if err := d.Rename(ctx, old.ID, backupName); err != nil {
		return RecreateResult{}, fmt.Errorf("renaming %s to backup: %w", old.Name, err)
	}
	if err := d.SetRestartPolicy(ctx, old.ID, RestartPolicy{Name: "no"}); err != nil {
		return RecreateResult{}, fmt.Errorf("disabling restart policy on backup %s: %w", backupName, err)
	}
	if err := d.Stop(ctx, old.ID, stopTimeout); err != nil {
		return RecreateResult{}, fmt.Errorf("stopping backup %s: %w", backupName, err)
	}

	newImage, err := d.InspectImage(ctx, newImageRef)
	if err != nil {
		return rollback(ctx, d, old, backupName, "", fmt.Errorf("inspecting new image %s: %w", newImageRef, err))
	}

	spec := BuildRecreateSpec(old, newImageRef, newImage, envCfg)

	newID, err := d.Create(ctx, spec)
	if err != nil {
		return rollback(ctx, d, old, backupName, newID, fmt.Errorf("creating replacement for %s: %w", old.Name, err))
	}

	if err := d.Start(ctx, newID); err != nil {
		return rollback(ctx, d, old, backupName, newID, fmt.Errorf("starting replacement for %s: %w", old.Name, err))
	}

	baseline, err := d.Inspect(ctx, newID)
	if err != nil {
		return rollback(ctx, d, old, backupName, newID, fmt.Errorf("inspecting replacement for %s: %w", old.Name, err))
	}

	if ok, err := VerifyStart(ctx, d, newID, baseline, verifyPolicy); !ok {
		return rollback(ctx, d, old, backupName, newID, err)
	}

	if postHook != nil {
		if err := postHook(ctx, newID); err != nil && rollbackOnPostHookFailure {
			return rollback(ctx, d, old, backupName, newID, fmt.Errorf("post-hook for %s: %w", old.Name, err))
		}
	}

	return RecreateResult{NewID: newID, BackupName: backupName}, nil
}

// rollback best-effort removes the partially-created replacement,
// restores the original container's name and restart policy, and
// starts it again. If any rollback step fails, the returned error is
// wrapped to signal it is a CRITICAL condition requiring operator
// intervention — the system is left with neither a working original
// nor a working replacement.
func rollback(ctx context.Context, d Driver, old ContainerSnapshot, backupName, newID string, cause error) (RecreateResult, error) {
	if newID != "" {
		_ = d.Remove(ctx, newID, true)
	}
	if err := d.Rename(ctx, old.ID, old.Name); err != nil {
		return RecreateResult{}, fmt.Errorf("CRITICAL: rollback failed renaming backup %s back to %s after %v: %w", backupName, old.Name, cause, err)
	}
	if err := d.SetRestartPolicy(ctx, old.ID, old.RestartPolicy); err != nil {
		return RecreateResult{}, fmt.Errorf("CRITICAL: rollback failed restoring restart policy on %s after %v: %w", old.Name, cause, err)
	}
	if err := d.Start(ctx, old.ID); err != nil {
		return RecreateResult{}, fmt.Errorf("CRITICAL: rollback failed restarting %s after %v: %w", old.Name, cause, err)
	}
	return RecreateResult{RolledBack: true}, fmt.Errorf("recreate failed, rolled back %s: %w", old.Name, cause)
}
