package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/halvorsen/cuengine/internal/cleanup"
	"github.com/halvorsen/cuengine/internal/config"
	"github.com/halvorsen/cuengine/internal/container"
	"github.com/halvorsen/cuengine/internal/creds"
	"github.com/halvorsen/cuengine/internal/logging"
	"github.com/halvorsen/cuengine/internal/orchestrator"
	"github.com/halvorsen/cuengine/internal/registry"
	"github.com/halvorsen/cuengine/internal/report"
	"github.com/halvorsen/cuengine/internal/selfupdate"
	"github.com/halvorsen/cuengine/internal/storage"
)

// registryClientFactory adapts the per-registry page-crawl limits from
// config into the registry package's own Config shape.
//
// cfg.Docker.APIURL, cfg.GHCR.APIURL, and cfg.Docker/GHCR.PageSize have
// no sink here: both drivers talk to their canonical hosts directly
// (see internal/registry/dockerhub.go, oci.go) and paginate at
// DefaultPageSize, so pointing at a registry mirror or tuning the
// per-page count isn't wired. Only the page-crawl cap, which bounds
// how many pages ListTags will walk, has a home.
func registryClientFactory(cfg *config.Config) orchestrator.RegistryClientFactory {
	return func(host string) registry.Client {
		rc := registry.Config{}
		switch host {
		case "", "docker.io", "index.docker.io", "registry-1.docker.io", "registry.hub.docker.com":
			rc.PageCap = cfg.Docker.PageCrawlLimit
		default:
			rc.PageCap = cfg.GHCR.PageCrawlLimit
		}
		return registry.NewClient(host, rc)
	}
}

// runOnce executes a single producer-side orchestration cycle: list,
// classify, authorize, and update every matching container, spawn a
// self-update helper if the engine's own container was a candidate,
// prune backups/images, then emit and persist the run report.
func runOnce(ctx context.Context, cfg *config.Config, filters container.ListFilters, dryRun bool, log logging.Logger) error {
	driver, err := container.NewDockerDriver()
	if err != nil {
		return fmt.Errorf("initializing container driver: %w", err)
	}

	credSet, err := creds.Load(cfg.RegistryAuth.CredentialsFile)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		log.Error("opening diagnostics store, run history and diagnostic dumps will not be persisted", "err", err)
		store = nil
	} else {
		defer store.Close()
	}

	collector := report.New()
	collector.MarkStart()

	orch := &orchestrator.Orchestrator{
		Driver:    driver,
		Config:    cfg,
		Creds:     credSet,
		Collector: collector,
		Logger:    log,
		Identity:  selfupdate.Detect(),
		NewClient: registryClientFactory(cfg),
		DryRun:    dryRun,
		Store:     store,
	}

	selfReq, cycleErr := orch.RunCycle(ctx, filters)
	collector.MarkEnd()
	if cycleErr != nil {
		log.Error("cycle failed", "err", cycleErr)
	}

	if selfReq != nil {
		if dryRun {
			log.Info("dry-run: would spawn self-update helper", "container", selfReq.ContainerName, "image", selfReq.NewImageRef)
		} else if helperID, spawnErr := selfupdate.SpawnHelper(ctx, driver, selfReq.ContainerName, selfReq.NewImageRef); spawnErr != nil {
			collector.AddError(fmt.Sprintf("spawning self-update helper for %s: %v", selfReq.ContainerName, spawnErr))
		} else {
			log.Info("spawned self-update helper", "id", helperID, "target", selfReq.ContainerName, "image", selfReq.NewImageRef)
		}
	}

	// Cleanup is skipped in dry-run (nothing was actually removed to
	// prune around) and whenever a self-update is pending, per §4.8.
	if !dryRun {
		cleanupCfg := cleanup.Config{
			RemoveOldContainers: cfg.Prune.RemoveOldContainers,
			RemoveUnusedImages:  cfg.Prune.RemoveUnusedImages,
			MinBackupAge:        cfg.Prune.MinBackupAge,
			MinBackupsToKeep:    cfg.Prune.MinBackupsToKeep,
		}
		if _, err := cleanup.Run(ctx, driver, cleanupCfg, time.Now(), selfReq != nil); err != nil {
			collector.AddError(fmt.Sprintf("cleanup: %v", err))
		}
	}

	resp := collector.ToResponse(cycleErr)
	if err := report.WriteJSON(os.Stdout, resp); err != nil {
		log.Error("writing run report", "err", err)
	}

	if store != nil {
		if err := store.SaveRunReport(ctx, resp.Data); err != nil {
			log.Error("saving run report", "err", err)
		}
	}

	return cycleErr
}

// runHelperCycle is the entry point when ROLE=SELFUPDATEHELPER: the
// engine is running as the disposable trampoline container spawned by
// a producer that wants to replace itself. It never enters daemon
// mode. Unlike the producer's normal cycle it does not consult the
// registry at all — the image it should install is simply the image
// it is already running, so it performs exactly one recreate against
// the producer container named by TARGET_CONTAINER, then removes
// itself when selfUpdate.removeHelperContainer is enabled.
func runHelperCycle(ctx context.Context, cfg *config.Config, identity selfupdate.Identity, log logging.Logger) error {
	if identity.TargetName == "" {
		return fmt.Errorf("self-update helper: %s is not set", selfupdate.TargetContainerEnvVar)
	}

	driver, err := container.NewDockerDriver()
	if err != nil {
		return fmt.Errorf("initializing container driver: %w", err)
	}

	selfID := identity.CgroupID
	if selfID == "" {
		selfID = identity.Hostname
	}
	self, err := driver.Inspect(ctx, selfID)
	if err != nil {
		return fmt.Errorf("self-update helper: inspecting own container: %w", err)
	}

	targets, err := driver.List(ctx, container.ListFilters{NameGlobs: []string{identity.TargetName}})
	if err != nil {
		return fmt.Errorf("self-update helper: listing target container %s: %w", identity.TargetName, err)
	}
	var target *container.ContainerSnapshot
	for i := range targets {
		if targets[i].Name == identity.TargetName {
			target = &targets[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("self-update helper: target container %q not found", identity.TargetName)
	}

	store, storeErr := storage.Open(cfg.Storage.DBPath)
	if storeErr != nil {
		log.Error("self-update helper: opening diagnostics store, run history and diagnostic dumps will not be persisted", "err", storeErr)
		store = nil
	} else {
		defer store.Close()
	}

	collector := report.New()
	collector.MarkStart()
	collector.IncProcessed()

	envCfg := container.EnvFilterConfig{
		Enabled:                cfg.EnvFiltering.Enabled,
		ExcludePatterns:        cfg.EnvFiltering.ExcludePatterns,
		PreservePatterns:       cfg.EnvFiltering.PreservePatterns,
		ContainerSpecificRules: cfg.EnvFiltering.ContainerSpecificRules,
	}
	verifyPolicy := container.VerifyPolicy{
		Grace:      cfg.UpdateVerification.GracePeriod,
		Interval:   cfg.UpdateVerification.CheckInterval,
		StableTime: cfg.UpdateVerification.StableTime,
		MaxWait:    cfg.UpdateVerification.MaxWait,
	}

	started := time.Now()
	_, recreateErr := container.Recreate(ctx, driver, *target, self.ImageRef, envCfg, verifyPolicy, 10, nil, false, started)

	status := "succeeded"
	if recreateErr != nil {
		status = "failed"
		log.Error("self-update helper: recreate failed", "target", target.Name, "err", recreateErr)
		recordHelperDiagnostic(ctx, store, *target, self.ImageRef, envCfg, recreateErr, started)
	} else {
		log.Info("self-update helper: recreated producer", "target", target.Name, "image", self.ImageRef)
	}
	collector.AddUpdate(report.Outcome{
		Container: target.Name,
		From:      target.ImageRef,
		To:        self.ImageRef,
		Category:  "self-update",
		StartedAt: started,
		Duration:  time.Since(started),
		Status:    status,
	})
	collector.MarkEnd()

	resp := collector.ToResponse(recreateErr)
	if err := report.WriteJSON(os.Stdout, resp); err != nil {
		log.Error("writing run report", "err", err)
	}
	if store != nil {
		if err := store.SaveRunReport(ctx, resp.Data); err != nil {
			log.Error("self-update helper: saving run report", "err", err)
		}
	}

	// The helper is disposable: when removeHelperContainer is enabled,
	// remove it once its one job is done, win or lose, so a failed
	// self-update doesn't leave a dead trampoline container behind for
	// the next cycle to trip over.
	if err := selfupdate.Cleanup(ctx, driver, self.ID, cfg.SelfUpdate.RemoveHelperContainer); err != nil {
		log.Error("self-update helper: removing self", "err", err)
	}

	return recreateErr
}

// helperDiagnosticDump mirrors internal/orchestrator's own diagnostic
// dump shape for the one recreate path that doesn't run through the
// orchestrator: the self-update helper's direct call to
// container.Recreate.
type helperDiagnosticDump struct {
	Container     string                      `json:"container"`
	NewImageRef   string                      `json:"new_image_ref"`
	Error         string                      `json:"error"`
	OldSnapshot   container.ContainerSnapshot `json:"old_snapshot"`
	AttemptedSpec container.RecreateSpec      `json:"attempted_spec"`
}

// recordHelperDiagnostic best-effort persists a diagnostic dump for a
// failed self-update recreate. store may be nil if it failed to open.
func recordHelperDiagnostic(ctx context.Context, store *storage.Store, old container.ContainerSnapshot, newImageRef string, envCfg container.EnvFilterConfig, cause error, capturedAt time.Time) {
	if store == nil {
		return
	}

	spec := container.BuildRecreateSpec(old, newImageRef, container.ImageSnapshot{}, envCfg)
	dump := helperDiagnosticDump{
		Container:     old.Name,
		NewImageRef:   newImageRef,
		Error:         cause.Error(),
		OldSnapshot:   old,
		AttemptedSpec: spec,
	}
	payload, err := json.Marshal(dump)
	if err != nil {
		return
	}
	_ = store.SaveDiagnosticDump(ctx, old.Name, payload, capturedAt)
}
