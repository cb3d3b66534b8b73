package container

import "sort"

// BuildRecreateSpec derives the spec for the replacement container from
// the old snapshot, the new image reference, and the new image's own
// snapshot (used only for its ENV, to drive reconciliation). It is a
// pure function so the invariants in §4.5 can be tested without a
// daemon.
func BuildRecreateSpec(old ContainerSnapshot, newImageRef string, newImage ImageSnapshot, envCfg EnvFilterConfig) RecreateSpec {
	spec := RecreateSpec{
		Name:          old.Name,
		Image:         newImageRef,
		RestartPolicy: old.RestartPolicy,
		Healthcheck:   old.Healthcheck,
		Labels:        old.Labels,
		NetworkMode:   old.NetworkMode,
		Command:       old.Command,
		Entrypoint:    old.Entrypoint,
		User:          old.User,
		WorkingDir:    old.WorkingDir,
		Hostname:      old.Hostname,
		StdinOpen:     old.StdinOpen,
		TTY:           old.TTY,
		Mounts:        dedupMounts(old.Mounts),
		Networks:      old.Networks,
	}

	if old.NetworkMode != "host" && old.NetworkMode != "none" {
		spec.Ports = old.Ports
	}

	kept, warning := ReconcileEnv(old.Env, newImage.Env, envCfg, old.Name)
	spec.Env = kept
	spec.EnvWarning = warning

	return spec
}

// dedupMounts drops auto-generated anonymous volumes (a 64-hex source
// name) and orders the rest by destination for deterministic output,
// since Docker rejects a create with duplicate mount targets if the
// same destination appears twice across mounts/binds/volumes.
func dedupMounts(mounts []Mount) []Mount {
	seen := make(map[string]bool, len(mounts))
	out := make([]Mount, 0, len(mounts))
	for _, m := range mounts {
		if m.Type == "volume" && anonymousVolumeName.MatchString(m.Source) {
			continue
		}
		if seen[m.Destination] {
			continue
		}
		seen[m.Destination] = true
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Destination < out[j].Destination })
	return out
}
