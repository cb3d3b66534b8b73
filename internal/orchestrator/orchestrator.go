// Package orchestrator implements C6: the single-threaded, per-container
// update state machine (preflight/classify/authorize/pull/pre-hook/
// recreate/verify/post-hook/delay). Unlike the teacher's concurrent
// checker, this package processes exactly one container at a time,
// end to end, per §5's concurrency model.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/halvorsen/cuengine/internal/config"
	"github.com/halvorsen/cuengine/internal/container"
	"github.com/halvorsen/cuengine/internal/creds"
	"github.com/halvorsen/cuengine/internal/logging"
	"github.com/halvorsen/cuengine/internal/policy"
	"github.com/halvorsen/cuengine/internal/registry"
	"github.com/halvorsen/cuengine/internal/report"
	"github.com/halvorsen/cuengine/internal/scripts"
	"github.com/halvorsen/cuengine/internal/selfupdate"
	"github.com/halvorsen/cuengine/internal/storage"
	"github.com/halvorsen/cuengine/internal/tagpipeline"
	"github.com/halvorsen/cuengine/internal/version"
)

// RegistryClientFactory resolves a registry.Client for a given
// registry host, injected so tests can substitute a fake client
// without a network.
type RegistryClientFactory func(registryHost string) registry.Client

// SelfUpdateRequest is parked by RunCycle when the container being
// processed is the engine's own container; the caller is expected to
// hand this to internal/selfupdate after the cycle ends.
type SelfUpdateRequest struct {
	ContainerName string
	NewImageRef   string
}

// Orchestrator wires the engine's components together to run one
// cycle across a filtered container list.
type Orchestrator struct {
	Driver       container.Driver
	Config       *config.Config
	Creds        *creds.Set
	Collector    *report.Collector
	Logger       logging.Logger
	Identity     selfupdate.Identity
	NewClient    RegistryClientFactory
	DryRun       bool
	Now          func() time.Time
	// Store, when set, receives a diagnostic dump of the old container
	// snapshot and attempted recreate spec whenever applyUpdate fails.
	// Nil is valid: a cycle run without persistence just logs failures.
	Store *storage.Store
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// RunCycle processes every container matching filter, in list order,
// one at a time. It returns a non-nil SelfUpdateRequest when the
// engine's own container was a candidate for update; self-updates are
// always deferred to after the cycle, per §4.6.
func (o *Orchestrator) RunCycle(ctx context.Context, filter container.ListFilters) (*SelfUpdateRequest, error) {
	snapshots, err := o.Driver.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}

	var selfReq *SelfUpdateRequest

	for _, snap := range snapshots {
		o.Collector.IncProcessed()

		ref := registry.ParseImageReference(snap.ImageRef)
		rule, _, warning := policy.ResolveRule(o.Config.Assignments, o.Config.Rules, snap.Name, ref.Repository, snap.ID)
		if warning != "" {
			o.Collector.AddWarning(fmt.Sprintf("container %s: %s", snap.Name, warning))
		}
		if !anyAllowed(rule) {
			o.Collector.IncSkipped()
			continue
		}

		req, err := o.processContainer(ctx, snap, ref, rule)
		if err != nil {
			o.Collector.AddError(fmt.Sprintf("container %s: %v", snap.Name, err))
			continue
		}
		if req != nil {
			selfReq = req
		}
	}

	return selfReq, nil
}

func anyAllowed(r policy.Rule) bool {
	for _, v := range r.Allow {
		if v {
			return true
		}
	}
	return false
}

// processContainer runs the candidate loop for a single container:
// fetch tags, build the pipeline, then walk candidates oldest to
// newest, classifying and authorizing each.
func (o *Orchestrator) processContainer(ctx context.Context, snap container.ContainerSnapshot, ref registry.ImageReference, rule policy.Rule) (*SelfUpdateRequest, error) {
	client := o.NewClient(ref.Registry)
	creds := o.Creds.Resolve(ref)

	rawCandidates, err := client.ListTags(ctx, ref, creds)
	if err != nil && len(rawCandidates) == 0 {
		return nil, fmt.Errorf("listing tags: %w", err)
	}

	sorted := tagpipeline.Build(ref.Tag, rawCandidates)
	ascending := reverseCandidates(sorted)
	// The current tag itself is only dropped when it's a genuine no-op,
	// i.e. the remote digest matches what's already running. A same-tag
	// candidate whose digest has moved is the sole carrier of a digest
	// update (§8.4) and must survive into the candidate loop so
	// version.Compare/DigestOverride can classify it as "digest".
	if len(ascending) > 0 && ascending[0].Name == ref.Tag && ascending[0].Digest == snap.ImageDigest {
		ascending = ascending[1:]
	}
	if len(ascending) == 0 {
		return nil, nil
	}

	latestV := version.Normalize(ascending[len(ascending)-1].Name)
	currentTag := ref.Tag
	knownDigests := []string{snap.ImageDigest}

	for i, cand := range ascending {
		oldV := version.Normalize(currentTag)
		newV := version.Normalize(cand.Name)
		category, _ := version.Compare(oldV, newV)
		category, advance := version.DigestOverride(category, cand.Digest, knownDigests)
		if !advance {
			continue
		}

		permit := policy.Evaluate(policy.Input{
			Rule:          rule,
			Category:      category,
			Registry:      ref.Registry,
			Repository:    ref.Repository,
			NewTag:        cand.Name,
			OldVersion:    oldV,
			NewVersion:    newV,
			LatestVersion: latestV,
			HasLatest:     true,
			CreatedAt:     cand.CreatedAt,
			HasCreatedAt:  !cand.CreatedAt.IsZero(),
			Now:           o.now(),
		})

		if !permit.Allowed {
			o.Collector.AddUpdate(report.Outcome{
				Container:    snap.Name,
				From:         currentTag,
				To:           cand.Name,
				Category:     string(category),
				StartedAt:    o.now(),
				Status:       "skipped",
				RejectReason: string(permit.Reason),
			})
			continue
		}

		// Only an authorized candidate can trigger a self-update: an
		// update this engine's own policy would reject is never worth
		// spawning a helper for.
		if o.Identity.Matches(snap.Name, snap.ID) {
			return &SelfUpdateRequest{
				ContainerName: snap.Name,
				NewImageRef:   permit.NewRef,
			}, nil
		}

		started := o.now()
		if err := o.applyUpdate(ctx, snap, ref, cand, category, permit); err != nil {
			o.Collector.AddUpdate(report.Outcome{
				Container: snap.Name,
				From:      currentTag,
				To:        cand.Name,
				Category:  string(category),
				StartedAt: started,
				Duration:  o.now().Sub(started),
				Status:    "failed",
			})
			o.recordDiagnostic(ctx, snap, permit.NewRef, err)
			return nil, err
		}

		o.Collector.AddUpdate(report.Outcome{
			Container: snap.Name,
			From:      currentTag,
			To:        cand.Name,
			Category:  string(category),
			StartedAt: started,
			Duration:  o.now().Sub(started),
			Status:    "succeeded",
		})

		currentTag = cand.Name
		knownDigests = append(knownDigests, cand.Digest)

		if !rule.ProgressiveUpgrade {
			break
		}
		if i < len(ascending)-1 {
			o.sleep(o.Config.Update.DelayBetweenUpdates)
		}
	}

	return nil, nil
}

// applyUpdate performs pull, pre-hook, recreate, verify, post-hook for
// one authorized candidate. In dry-run mode every mutating step is a
// log-only no-op; the caller still advances its virtual current tag so
// later candidates in the same cycle see the hypothetical state.
func (o *Orchestrator) applyUpdate(ctx context.Context, snap container.ContainerSnapshot, ref registry.ImageReference, cand registry.TagCandidate, category version.Category, permit policy.Permit) error {
	newRef := permit.NewRef

	if o.DryRun {
		o.Logger.Info("dry-run: would update", "container", snap.Name, "to", newRef, "category", category)
		return nil
	}

	creds := o.Creds.Resolve(ref)
	if err := o.Driver.Pull(ctx, newRef, toDriverCreds(creds)); err != nil {
		return fmt.Errorf("pulling %s: %w", newRef, err)
	}

	hookEnv := []string{
		"CONTAINER_NAME=" + snap.Name,
		"CONTAINER_ID=" + snap.ID,
		"OLD_VERSION=" + ref.Tag,
		"NEW_VERSION=" + cand.Name,
	}
	scriptCfg := scripts.Config{
		Enabled:           o.Config.PreScripts.Enabled,
		ScriptsDirectory:  o.Config.PreScripts.ScriptsDirectory,
		Timeout:           o.Config.PreScripts.Timeout,
		ContinueOnFailure: o.Config.PreScripts.ContinueOnFailure,
	}
	if err := scripts.Run(ctx, scriptCfg, scripts.HookPre, snap.Name, hookEnv); err != nil && !scriptCfg.ContinueOnFailure {
		return fmt.Errorf("pre-hook for %s: %w", snap.Name, err)
	}

	envCfg := container.EnvFilterConfig{
		Enabled:                o.Config.EnvFiltering.Enabled,
		ExcludePatterns:        o.Config.EnvFiltering.ExcludePatterns,
		PreservePatterns:       o.Config.EnvFiltering.PreservePatterns,
		ContainerSpecificRules: o.Config.EnvFiltering.ContainerSpecificRules,
	}
	verifyPolicy := container.VerifyPolicy{
		Grace:      o.Config.UpdateVerification.GracePeriod,
		Interval:   o.Config.UpdateVerification.CheckInterval,
		StableTime: o.Config.UpdateVerification.StableTime,
		MaxWait:    o.Config.UpdateVerification.MaxWait,
	}

	postCfg := scripts.Config{
		Enabled:           o.Config.PostScripts.Enabled,
		ScriptsDirectory:  o.Config.PostScripts.ScriptsDirectory,
		Timeout:           o.Config.PostScripts.Timeout,
		ContinueOnFailure: o.Config.PostScripts.ContinueOnFailure,
		RollbackOnFailure: o.Config.PostScripts.RollbackOnFailure,
	}
	postHook := func(hookCtx context.Context, newID string) error {
		return scripts.Run(hookCtx, postCfg, scripts.HookPost, snap.Name, hookEnv)
	}

	_, err := container.Recreate(ctx, o.Driver, snap, newRef, envCfg, verifyPolicy, 10, postHook, postCfg.RollbackOnFailure, o.now())
	return err
}

// diagnosticDump is the JSON shape persisted to the diagnostics store
// on a failed recreate: the container's pre-update state, the spec
// that would have replaced it, and why the attempt failed, per §6/§7.
type diagnosticDump struct {
	Container     string                      `json:"container"`
	NewImageRef   string                      `json:"new_image_ref"`
	Error         string                      `json:"error"`
	OldSnapshot   container.ContainerSnapshot `json:"old_snapshot"`
	AttemptedSpec container.RecreateSpec      `json:"attempted_spec"`
}

// recordDiagnostic best-effort persists a diagnostic dump for a failed
// recreate. It never returns an error to the caller: a diagnostics
// store failure shouldn't mask the original recreate failure, and is
// only logged if a Logger is available.
func (o *Orchestrator) recordDiagnostic(ctx context.Context, snap container.ContainerSnapshot, newImageRef string, cause error) {
	if o.Store == nil {
		return
	}

	envCfg := container.EnvFilterConfig{
		Enabled:                o.Config.EnvFiltering.Enabled,
		ExcludePatterns:        o.Config.EnvFiltering.ExcludePatterns,
		PreservePatterns:       o.Config.EnvFiltering.PreservePatterns,
		ContainerSpecificRules: o.Config.EnvFiltering.ContainerSpecificRules,
	}
	spec := container.BuildRecreateSpec(snap, newImageRef, container.ImageSnapshot{}, envCfg)

	dump := diagnosticDump{
		Container:     snap.Name,
		NewImageRef:   newImageRef,
		Error:         cause.Error(),
		OldSnapshot:   snap,
		AttemptedSpec: spec,
	}
	payload, err := json.Marshal(dump)
	if err != nil {
		if o.Logger != nil {
			o.Logger.Error("marshaling diagnostic dump", "container", snap.Name, "err", err)
		}
		return
	}

	if err := o.Store.SaveDiagnosticDump(ctx, snap.Name, payload, o.now()); err != nil && o.Logger != nil {
		o.Logger.Error("saving diagnostic dump", "container", snap.Name, "err", err)
	}
}

func (o *Orchestrator) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	time.Sleep(d)
}

func toDriverCreds(c *registry.Credentials) *container.RegistryCreds {
	if c == nil {
		return nil
	}
	return &container.RegistryCreds{Username: c.Username, Password: c.Password, Token: c.Token}
}

// reverseCandidates returns candidates in ascending (oldest-first)
// order, the reverse of tagpipeline.Build's descending sort, to
// support progressive upgrade per §4.3.
func reverseCandidates(in []registry.TagCandidate) []registry.TagCandidate {
	out := make([]registry.TagCandidate, len(in))
	for i, c := range in {
		out[len(in)-1-i] = c
	}
	return out
}
