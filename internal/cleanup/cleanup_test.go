package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/halvorsen/cuengine/internal/container"
)

type fakeDriver struct {
	snapshots []container.ContainerSnapshot
	removed   []string
}

func (f *fakeDriver) List(ctx context.Context, filters container.ListFilters) ([]container.ContainerSnapshot, error) {
	return f.snapshots, nil
}
func (f *fakeDriver) Inspect(ctx context.Context, id string) (container.ContainerSnapshot, error) {
	return container.ContainerSnapshot{}, nil
}
func (f *fakeDriver) InspectImage(ctx context.Context, ref string) (container.ImageSnapshot, error) {
	return container.ImageSnapshot{}, nil
}
func (f *fakeDriver) Pull(ctx context.Context, ref string, creds *container.RegistryCreds) error {
	return nil
}
func (f *fakeDriver) Create(ctx context.Context, spec container.RecreateSpec) (string, error) {
	return "", nil
}
func (f *fakeDriver) Start(ctx context.Context, id string) error { return nil }
func (f *fakeDriver) Stop(ctx context.Context, id string, timeout int) error { return nil }
func (f *fakeDriver) Rename(ctx context.Context, id string, newName string) error { return nil }
func (f *fakeDriver) Remove(ctx context.Context, id string, force bool) error {
	f.removed = append(f.removed, id)
	return nil
}
func (f *fakeDriver) SetRestartPolicy(ctx context.Context, id string, policy container.RestartPolicy) error {
	return nil
}
func (f *fakeDriver) PruneContainers(ctx context.Context, olderThan int) ([]string, error) {
	return nil, nil
}
func (f *fakeDriver) PruneImages(ctx context.Context) ([]string, error) { return []string{"img1"}, nil }

func backupSnapshot(id, original string, ts time.Time) container.ContainerSnapshot {
	return container.ContainerSnapshot{
		ID:     id,
		Name:   original + "_bak_cu_" + ts.Format(backupTimeLayout),
		Status: "exited",
	}
}

func TestPruneBackupsKeepsMinimumPerOriginal(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	d := &fakeDriver{snapshots: []container.ContainerSnapshot{
		backupSnapshot("b1", "app", now.Add(-100*24*time.Hour)),
		backupSnapshot("b2", "app", now.Add(-50*24*time.Hour)),
		backupSnapshot("b3", "app", now.Add(-10*24*time.Hour)),
	}}
	cfg := Config{RemoveOldContainers: true, MinBackupAge: 48 * time.Hour, MinBackupsToKeep: 2}

	result, err := Run(context.Background(), d, cfg, now, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.RemovedBackups) != 1 {
		t.Fatalf("expected exactly 1 backup removed (oldest beyond the keep-2 floor), got %v", result.RemovedBackups)
	}
}

func TestPruneBackupsSkippedWhenSelfUpdatePending(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	d := &fakeDriver{snapshots: []container.ContainerSnapshot{
		backupSnapshot("b1", "app", now.Add(-100*24*time.Hour)),
	}}
	cfg := Config{RemoveOldContainers: true, RemoveUnusedImages: true, MinBackupAge: 48 * time.Hour, MinBackupsToKeep: 0}

	result, err := Run(context.Background(), d, cfg, now, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.RemovedBackups) != 0 || len(result.RemovedImages) != 0 {
		t.Fatalf("expected no-op when self-update is pending, got %+v", result)
	}
}

func TestPruneBackupsRespectsMinAgeEvenBeyondKeepFloor(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	d := &fakeDriver{snapshots: []container.ContainerSnapshot{
		backupSnapshot("b1", "app", now.Add(-10*time.Hour)),
		backupSnapshot("b2", "app", now.Add(-5*time.Hour)),
	}}
	cfg := Config{RemoveOldContainers: true, MinBackupAge: 48 * time.Hour, MinBackupsToKeep: 0}

	result, err := Run(context.Background(), d, cfg, now, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.RemovedBackups) != 0 {
		t.Fatalf("expected nothing removed since both backups are younger than minBackupAge, got %v", result.RemovedBackups)
	}
}
