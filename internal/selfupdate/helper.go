package selfupdate

import (
	"context"
	"fmt"

	"github.com/halvorsen/cuengine/internal/container"
)

const dockerSocketPath = "/var/run/docker.sock"

// SpawnHelper creates and starts the one-shot helper container that
// performs the producer's own update: it runs the *new* image, mounts
// only the engine's control socket, and is told which container to
// target via ROLE/TARGET_CONTAINER. The producer is expected to exit
// its own cycle immediately after this call succeeds.
func SpawnHelper(ctx context.Context, d container.Driver, producerName, newImageRef string) (string, error) {
	helperName := producerName + "_self_update_helper"

	spec := container.RecreateSpec{
		Name:  helperName,
		Image: newImageRef,
		Env: []string{
			RoleEnvVar + "=" + HelperRole,
			TargetContainerEnvVar + "=" + producerName,
		},
		Mounts: []container.Mount{
			{Type: "bind", Source: dockerSocketPath, Destination: dockerSocketPath},
		},
		RestartPolicy: container.RestartPolicy{Name: "no"},
		NetworkMode:   "bridge",
	}

	id, err := d.Create(ctx, spec)
	if err != nil {
		return "", fmt.Errorf("creating self-update helper for %s: %w", producerName, err)
	}
	if err := d.Start(ctx, id); err != nil {
		return "", fmt.Errorf("starting self-update helper for %s: %w", producerName, err)
	}
	return id, nil
}

// Cleanup removes the helper container once its one-shot step has
// completed, when removeHelperContainer is enabled in config.
func Cleanup(ctx context.Context, d container.Driver, helperID string, remove bool) error {
	if !remove {
		return nil
	}
	return d.Remove(ctx, helperID, true)
}
