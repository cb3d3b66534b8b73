package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/halvorsen/cuengine/internal/config"
	"github.com/halvorsen/cuengine/internal/container"
	"github.com/halvorsen/cuengine/internal/creds"
	"github.com/halvorsen/cuengine/internal/logging"
	"github.com/halvorsen/cuengine/internal/policy"
	"github.com/halvorsen/cuengine/internal/registry"
	"github.com/halvorsen/cuengine/internal/report"
	"github.com/halvorsen/cuengine/internal/selfupdate"
	"github.com/halvorsen/cuengine/internal/version"
)

type fakeDriver struct {
	snapshots   []container.ContainerSnapshot
	pulled      []string
	created     []container.RecreateSpec
	startedIDs  []string
	nextID      int
	failCreate  bool
	failStart   bool
}

func (f *fakeDriver) List(ctx context.Context, filters container.ListFilters) ([]container.ContainerSnapshot, error) {
	return f.snapshots, nil
}
func (f *fakeDriver) Inspect(ctx context.Context, id string) (container.ContainerSnapshot, error) {
	for _, s := range f.snapshots {
		if s.ID == id {
			return s, nil
		}
	}
	return container.ContainerSnapshot{ID: id, Status: "running"}, nil
}
func (f *fakeDriver) InspectImage(ctx context.Context, ref string) (container.ImageSnapshot, error) {
	return container.ImageSnapshot{ID: "img-" + ref, Ref: ref}, nil
}
func (f *fakeDriver) Pull(ctx context.Context, ref string, c *container.RegistryCreds) error {
	f.pulled = append(f.pulled, ref)
	return nil
}
func (f *fakeDriver) Create(ctx context.Context, spec container.RecreateSpec) (string, error) {
	if f.failCreate {
		return "", errTest("create failed")
	}
	f.created = append(f.created, spec)
	f.nextID++
	return spec.Name + "-new", nil
}
func (f *fakeDriver) Start(ctx context.Context, id string) error {
	if f.failStart {
		return errTest("start failed")
	}
	f.startedIDs = append(f.startedIDs, id)
	return nil
}
func (f *fakeDriver) Stop(ctx context.Context, id string, timeout int) error { return nil }
func (f *fakeDriver) Rename(ctx context.Context, id string, newName string) error { return nil }
func (f *fakeDriver) Remove(ctx context.Context, id string, force bool) error      { return nil }
func (f *fakeDriver) SetRestartPolicy(ctx context.Context, id string, p container.RestartPolicy) error {
	return nil
}
func (f *fakeDriver) PruneContainers(ctx context.Context, olderThan int) ([]string, error) {
	return nil, nil
}
func (f *fakeDriver) PruneImages(ctx context.Context) ([]string, error) { return nil, nil }

type errTest string

func (e errTest) Error() string { return string(e) }

type fakeClient struct {
	candidates []registry.TagCandidate
}

func (c *fakeClient) ListTags(ctx context.Context, ref registry.ImageReference, creds *registry.Credentials) ([]registry.TagCandidate, error) {
	return c.candidates, nil
}
func (c *fakeClient) DescribeTag(ctx context.Context, ref registry.ImageReference, tagName string, creds *registry.Credentials) (registry.TagCandidate, error) {
	for _, cand := range c.candidates {
		if cand.Name == tagName {
			return cand, nil
		}
	}
	return registry.TagCandidate{}, errTest("not found")
}

func baseConfig() *config.Config {
	return &config.Config{
		Update:             config.Update{DelayBetweenUpdates: 0},
		UpdateVerification: config.UpdateVerification{MaxWait: time.Second, StableTime: 0, CheckInterval: time.Millisecond, GracePeriod: 0},
		PreScripts:         config.ScriptConfig{Enabled: false},
		PostScripts:        config.ScriptConfig{Enabled: false},
		Assignments:        policy.Tables{},
		Rules: map[string]policy.Rule{
			"default": {
				Name:  "default",
				Allow: map[version.Category]bool{version.CategoryMinor: true, version.CategoryPatch: true},
			},
		},
	}
}

func newOrchestrator(d *fakeDriver, client *fakeClient, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		Driver:    d,
		Config:    cfg,
		Creds:     &creds.Set{},
		Collector: report.New(),
		Logger:    logging.New("error"),
		Identity:  selfupdate.Identity{},
		NewClient: func(host string) registry.Client { return client },
		DryRun:    true,
	}
}

func TestRunCycleSkipsContainerWithNoAllowedCategories(t *testing.T) {
	cfg := baseConfig()
	cfg.Rules["default"] = policy.Rule{Name: "default"}
	d := &fakeDriver{snapshots: []container.ContainerSnapshot{
		{ID: "c1", Name: "app", ImageRef: "nginx:1.25.0", ImageDigest: "sha256:aaa"},
	}}
	client := &fakeClient{candidates: []registry.TagCandidate{{Name: "1.26.0", Digest: "sha256:bbb"}}}
	o := newOrchestrator(d, client, cfg)

	req, err := o.RunCycle(context.Background(), container.ListFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if req != nil {
		t.Fatal("expected no self-update request")
	}
	if o.Collector.Build().ContainersSkipped != 1 {
		t.Fatalf("expected container to be skipped, got report %+v", o.Collector.Build())
	}
}

func TestRunCycleDryRunRecordsSucceededOutcome(t *testing.T) {
	cfg := baseConfig()
	d := &fakeDriver{snapshots: []container.ContainerSnapshot{
		{ID: "c1", Name: "app", ImageRef: "nginx:1.25.0", ImageDigest: "sha256:aaa"},
	}}
	client := &fakeClient{candidates: []registry.TagCandidate{{Name: "1.25.1", Digest: "sha256:bbb"}}}
	o := newOrchestrator(d, client, cfg)

	req, err := o.RunCycle(context.Background(), container.ListFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if req != nil {
		t.Fatal("expected no self-update request")
	}
	rep := o.Collector.Build()
	if len(rep.Updates) != 1 || rep.Updates[0].Status != "succeeded" {
		t.Fatalf("expected one succeeded outcome, got %+v", rep.Updates)
	}
	if rep.Updates[0].To != "1.25.1" {
		t.Fatalf("expected update to 1.25.1, got %q", rep.Updates[0].To)
	}
}

func TestRunCycleReturnsSelfUpdateRequestForOwnContainer(t *testing.T) {
	cfg := baseConfig()
	d := &fakeDriver{snapshots: []container.ContainerSnapshot{
		{ID: "self-id", Name: "cuengine", ImageRef: "halvorsen/cuengine:1.0.0", ImageDigest: "sha256:aaa"},
	}}
	client := &fakeClient{candidates: []registry.TagCandidate{{Name: "1.0.1", Digest: "sha256:bbb"}}}
	o := newOrchestrator(d, client, cfg)
	o.Identity = selfupdate.Identity{Hostname: "self-id"}

	req, err := o.RunCycle(context.Background(), container.ListFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if req == nil {
		t.Fatal("expected a self-update request")
	}
	if req.ContainerName != "cuengine" {
		t.Fatalf("expected request for cuengine, got %q", req.ContainerName)
	}
}

func TestRunCycleAuthorizesDigestOnlyUpdate(t *testing.T) {
	cfg := baseConfig()
	cfg.Rules["default"] = policy.Rule{
		Name:  "default",
		Allow: map[version.Category]bool{version.CategoryDigest: true},
	}
	d := &fakeDriver{snapshots: []container.ContainerSnapshot{
		{ID: "c1", Name: "app", ImageRef: "nginx:1.25.3", ImageDigest: "sha256:aaa"},
	}}
	// Same tag as running, but the registry now serves a different
	// digest under it: a digest-only update, not a no-op.
	client := &fakeClient{candidates: []registry.TagCandidate{{Name: "1.25.3", Digest: "sha256:bbb"}}}
	o := newOrchestrator(d, client, cfg)

	req, err := o.RunCycle(context.Background(), container.ListFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if req != nil {
		t.Fatal("expected no self-update request")
	}
	rep := o.Collector.Build()
	if len(rep.Updates) != 1 || rep.Updates[0].Status != "succeeded" {
		t.Fatalf("expected one succeeded digest update, got %+v", rep.Updates)
	}
	if rep.Updates[0].Category != string(version.CategoryDigest) {
		t.Fatalf("expected digest category, got %q", rep.Updates[0].Category)
	}
}

func TestRunCycleDropsGenuineNoOpSameTagSameDigest(t *testing.T) {
	cfg := baseConfig()
	cfg.Rules["default"] = policy.Rule{
		Name:  "default",
		Allow: map[version.Category]bool{version.CategoryDigest: true},
	}
	d := &fakeDriver{snapshots: []container.ContainerSnapshot{
		{ID: "c1", Name: "app", ImageRef: "nginx:1.25.3", ImageDigest: "sha256:aaa"},
	}}
	client := &fakeClient{candidates: []registry.TagCandidate{{Name: "1.25.3", Digest: "sha256:aaa"}}}
	o := newOrchestrator(d, client, cfg)

	req, err := o.RunCycle(context.Background(), container.ListFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if req != nil {
		t.Fatal("expected no self-update request")
	}
	rep := o.Collector.Build()
	if len(rep.Updates) != 0 {
		t.Fatalf("expected no outcomes for a true no-op, got %+v", rep.Updates)
	}
}

func TestRunCycleSkipsCandidateDeniedByPolicy(t *testing.T) {
	cfg := baseConfig()
	cfg.Rules["default"] = policy.Rule{
		Name:  "default",
		Allow: map[version.Category]bool{version.CategoryMajor: true},
	}
	d := &fakeDriver{snapshots: []container.ContainerSnapshot{
		{ID: "c1", Name: "app", ImageRef: "nginx:1.25.0", ImageDigest: "sha256:aaa"},
	}}
	client := &fakeClient{candidates: []registry.TagCandidate{{Name: "1.26.0", Digest: "sha256:bbb"}}}
	o := newOrchestrator(d, client, cfg)

	req, err := o.RunCycle(context.Background(), container.ListFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if req != nil {
		t.Fatal("expected no self-update request")
	}
	rep := o.Collector.Build()
	if len(rep.Updates) != 1 || rep.Updates[0].Status != "skipped" {
		t.Fatalf("expected one skipped outcome (minor not allowed), got %+v", rep.Updates)
	}
}
