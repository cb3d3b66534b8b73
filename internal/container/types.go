// Package container defines an engine-neutral view of a running
// container and the recreate/verify machinery built on top of it. The
// only implementation today talks to the Docker SDK, but callers never
// depend on SDK types directly.
package container

import "time"

// RestartPolicy mirrors the subset of Docker's restart policy that
// round-trips through a recreate.
type RestartPolicy struct {
	Name              string
	MaximumRetryCount int
}

// Mount is a single bind, named volume, or tmpfs mount.
type Mount struct {
	Type        string // bind, volume, tmpfs
	Source      string
	Destination string
	ReadOnly    bool
}

// PortBinding is a single container port published to the host.
type PortBinding struct {
	ContainerPort string // e.g. "8080/tcp"
	HostIP        string
	HostPort      string
}

// NetworkAttachment is a single network a container is joined to.
type NetworkAttachment struct {
	NetworkName string
	Aliases     []string
	Links       []string
	DriverOpts  map[string]string
	IPv4Address string
	IPv6Address string
	MACAddress  string
}

// HealthCheckSpec mirrors a container's configured healthcheck, if any.
type HealthCheckSpec struct {
	Test        []string
	Interval    time.Duration
	Timeout     time.Duration
	StartPeriod time.Duration
	Retries     int
}

// ContainerSnapshot is the engine-agnostic view of a running container
// that the recreate pipeline reads from and writes back through. Every
// field here round-trips through recreate except where a scheme_change
// of the image deliberately discards image-originated ENV.
type ContainerSnapshot struct {
	ID            string
	Name          string
	Status        string // running, exited, restarting, ...
	Health        string // healthy, unhealthy, starting, none
	RestartCount  int
	StartedAt     time.Time
	ImageDigest   string // sha256:... as resolved at container creation
	ImageRef      string // image reference as supplied when the container was started
	Env           []string
	Mounts        []Mount
	Ports         []PortBinding
	RestartPolicy RestartPolicy
	Healthcheck   *HealthCheckSpec
	Networks      []NetworkAttachment
	Labels        map[string]string
	NetworkMode   string // host, none, bridge, container:<id>, ...
	Command       []string
	Entrypoint    []string
	User          string
	WorkingDir    string
	Hostname      string
	StdinOpen     bool
	TTY           bool
}

// ImageSnapshot is the subset of image state needed to reconcile ENV
// and labels during a recreate.
type ImageSnapshot struct {
	ID     string
	Ref    string
	Env    []string
	Labels map[string]string
}

// ListFilters narrows List's result set. NameGlobs are additive (OR):
// a container matching any one of them passes. An empty NameGlobs
// matches every name. Status, when set, is passed through to the
// engine's own status filter.
type ListFilters struct {
	NameGlobs []string
	Status    string
}

// RecreateSpec is the fully-resolved configuration handed to Create
// when replacing a container. It is built by BuildRecreateSpec from an
// old ContainerSnapshot, a new image reference, and the new image's
// own ImageSnapshot.
type RecreateSpec struct {
	Name          string
	Image         string
	Env           []string
	Mounts        []Mount
	Ports         []PortBinding
	RestartPolicy RestartPolicy
	Healthcheck   *HealthCheckSpec
	Networks      []NetworkAttachment
	Labels        map[string]string
	NetworkMode   string
	Command       []string
	Entrypoint    []string
	User          string
	WorkingDir    string
	Hostname      string
	StdinOpen     bool
	TTY           bool
	EnvWarning    string // set when ENV reconciliation had to fall back to "preserve all"
}

// VerifyPolicy parameterizes the verify state machine.
type VerifyPolicy struct {
	Grace       time.Duration
	Interval    time.Duration
	StableTime  time.Duration
	MaxWait     time.Duration
}
