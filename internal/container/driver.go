package container

import "context"

// Driver is the required capability set a container engine must
// expose. Every recreate, verify, and cleanup operation is written
// against this interface so the Docker SDK binding in docker_driver.go
// is the only place that imports the SDK.
type Driver interface {
	List(ctx context.Context, filters ListFilters) ([]ContainerSnapshot, error)
	Inspect(ctx context.Context, id string) (ContainerSnapshot, error)
	InspectImage(ctx context.Context, ref string) (ImageSnapshot, error)
	Pull(ctx context.Context, ref string, creds *RegistryCreds) error

	Create(ctx context.Context, spec RecreateSpec) (id string, err error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string, timeout int) error
	Rename(ctx context.Context, id string, newName string) error
	Remove(ctx context.Context, id string, force bool) error
	SetRestartPolicy(ctx context.Context, id string, policy RestartPolicy) error

	PruneContainers(ctx context.Context, olderThan int) (deleted []string, err error)
	PruneImages(ctx context.Context) (deleted []string, err error)
}

// RegistryCreds is the minimal credential shape the driver needs to
// authenticate an image pull. It mirrors registry.Credentials without
// creating an import cycle between internal/container and
// internal/registry.
type RegistryCreds struct {
	Username string
	Password string
	Token    string
}
