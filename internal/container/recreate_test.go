package container

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeDriver is a minimal in-memory Driver used to exercise the
// recreate protocol's happy path and rollback path without a daemon.
type fakeDriver struct {
	containers map[string]ContainerSnapshot
	images     map[string]ImageSnapshot
	nextID     int

	failCreate bool
	failStart  bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{containers: map[string]ContainerSnapshot{}, images: map[string]ImageSnapshot{}}
}

func (f *fakeDriver) List(ctx context.Context, filters ListFilters) ([]ContainerSnapshot, error) {
	return nil, nil
}

func (f *fakeDriver) Inspect(ctx context.Context, id string) (ContainerSnapshot, error) {
	c, ok := f.containers[id]
	if !ok {
		return ContainerSnapshot{}, errors.New("not found")
	}
	return c, nil
}

func (f *fakeDriver) InspectImage(ctx context.Context, ref string) (ImageSnapshot, error) {
	if img, ok := f.images[ref]; ok {
		return img, nil
	}
	return ImageSnapshot{Ref: ref}, nil
}

func (f *fakeDriver) Pull(ctx context.Context, ref string, creds *RegistryCreds) error { return nil }

func (f *fakeDriver) Create(ctx context.Context, spec RecreateSpec) (string, error) {
	if f.failCreate {
		return "", errors.New("create failed")
	}
	f.nextID++
	id := "new-" + spec.Name
	f.containers[id] = ContainerSnapshot{
		ID:     id,
		Name:   spec.Name,
		Status: "created",
	}
	return id, nil
}

func (f *fakeDriver) Start(ctx context.Context, id string) error {
	if f.failStart {
		return errors.New("start failed")
	}
	c := f.containers[id]
	c.Status = "running"
	c.StartedAt = time.Unix(1000, 0)
	f.containers[id] = c
	return nil
}

func (f *fakeDriver) Stop(ctx context.Context, id string, timeout int) error {
	c := f.containers[id]
	c.Status = "exited"
	f.containers[id] = c
	return nil
}

func (f *fakeDriver) Rename(ctx context.Context, id string, newName string) error {
	c, ok := f.containers[id]
	if !ok {
		return errors.New("not found")
	}
	delete(f.containers, id)
	c.Name = newName
	f.containers[id] = c
	return nil
}

func (f *fakeDriver) Remove(ctx context.Context, id string, force bool) error {
	delete(f.containers, id)
	return nil
}

func (f *fakeDriver) SetRestartPolicy(ctx context.Context, id string, policy RestartPolicy) error {
	c, ok := f.containers[id]
	if !ok {
		return errors.New("not found")
	}
	c.RestartPolicy = policy
	f.containers[id] = c
	return nil
}

func (f *fakeDriver) PruneContainers(ctx context.Context, olderThan int) ([]string, error) {
	return nil, nil
}

func (f *fakeDriver) PruneImages(ctx context.Context) ([]string, error) { return nil, nil }

func TestRecreateHappyPath(t *testing.T) {
	d := newFakeDriver()
	old := ContainerSnapshot{ID: "orig", Name: "app", RestartPolicy: RestartPolicy{Name: "unless-stopped"}}
	d.containers["orig"] = old

	now := time.Unix(2000, 0)
	policy := VerifyPolicy{Grace: 0, Interval: time.Millisecond, StableTime: 0, MaxWait: time.Second}

	result, err := Recreate(context.Background(), d, old, "app:2", EnvFilterConfig{}, policy, 5, nil, false, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NewID == "" {
		t.Fatal("expected a new container id")
	}
	if _, ok := d.containers[result.NewID]; !ok {
		t.Fatal("expected new container to exist")
	}
}

func TestRecreateRollsBackOnCreateFailure(t *testing.T) {
	d := newFakeDriver()
	d.failCreate = true
	old := ContainerSnapshot{ID: "orig", Name: "app", RestartPolicy: RestartPolicy{Name: "unless-stopped"}}
	d.containers["orig"] = old

	now := time.Unix(2000, 0)
	policy := VerifyPolicy{Grace: 0, Interval: time.Millisecond, StableTime: 0, MaxWait: time.Second}

	_, err := Recreate(context.Background(), d, old, "app:2", EnvFilterConfig{}, policy, 5, nil, false, now)
	if err == nil {
		t.Fatal("expected an error")
	}
	restored, ok := d.containers["orig"]
	if !ok || restored.Name != "app" {
		t.Fatalf("expected original renamed back to app, got %+v ok=%v", restored, ok)
	}
}

func TestRecreateRollsBackOnStartFailure(t *testing.T) {
	d := newFakeDriver()
	d.failStart = true
	old := ContainerSnapshot{ID: "orig", Name: "app", RestartPolicy: RestartPolicy{Name: "unless-stopped"}}
	d.containers["orig"] = old

	now := time.Unix(2000, 0)
	policy := VerifyPolicy{Grace: 0, Interval: time.Millisecond, StableTime: 0, MaxWait: time.Second}

	_, err := Recreate(context.Background(), d, old, "app:2", EnvFilterConfig{}, policy, 5, nil, false, now)
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := d.containers["new-app"]; ok {
		t.Fatal("expected partially-created replacement to be removed on rollback")
	}
	restored, ok := d.containers["orig"]
	if !ok || restored.Name != "app" {
		t.Fatalf("expected original restored, got %+v ok=%v", restored, ok)
	}
}
