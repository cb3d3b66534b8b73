package container

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	containertypes "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

// anonymousVolumeName matches a Docker-generated anonymous volume name
// (a bare 64-character hex string), used by BuildRecreateSpec to drop
// auto-generated volumes per §4.5.
var anonymousVolumeName = regexp.MustCompile(`^[0-9a-f]{64}$`)

// DockerDriver implements Driver against a live Docker daemon over the
// SDK client, the same dependency the teacher binds directly.
type DockerDriver struct {
	cli *client.Client
}

// NewDockerDriver connects using the standard DOCKER_HOST environment
// conventions, negotiating the API version with the daemon.
func NewDockerDriver() (*DockerDriver, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &DockerDriver{cli: cli}, nil
}

func (d *DockerDriver) List(ctx context.Context, f ListFilters) ([]ContainerSnapshot, error) {
	listOpts := containertypes.ListOptions{All: true}
	if f.Status != "" {
		args := filters.NewArgs()
		args.Add("status", f.Status)
		listOpts.Filters = args
	}
	summaries, err := d.cli.ContainerList(ctx, listOpts)
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}

	out := make([]ContainerSnapshot, 0, len(summaries))
	for _, c := range summaries {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		if len(f.NameGlobs) > 0 && !matchesAnyGlob(f.NameGlobs, name) {
			continue
		}
		snap, err := d.Inspect(ctx, c.ID)
		if err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

func matchesAnyGlob(globs []string, name string) bool {
	for _, g := range globs {
		if ok, _ := filepath.Match(g, name); ok {
			return true
		}
	}
	return false
}

func (d *DockerDriver) Inspect(ctx context.Context, id string) (ContainerSnapshot, error) {
	inspect, err := d.cli.ContainerInspect(ctx, id)
	if err != nil {
		return ContainerSnapshot{}, fmt.Errorf("inspecting container %s: %w", id, err)
	}

	name := strings.TrimPrefix(inspect.Name, "/")

	snap := ContainerSnapshot{
		ID:          inspect.ID,
		Name:        name,
		Status:      inspect.State.Status,
		ImageRef:    inspect.Config.Image,
		Labels:      inspect.Config.Labels,
		Command:     inspect.Config.Cmd,
		Entrypoint:  inspect.Config.Entrypoint,
		User:        inspect.Config.User,
		WorkingDir:  inspect.Config.WorkingDir,
		Hostname:    inspect.Config.Hostname,
		StdinOpen:   inspect.Config.OpenStdin,
		TTY:         inspect.Config.Tty,
		Env:         inspect.Config.Env,
		NetworkMode: string(inspect.HostConfig.NetworkMode),
		RestartPolicy: RestartPolicy{
			Name:              string(inspect.HostConfig.RestartPolicy.Name),
			MaximumRetryCount: inspect.HostConfig.RestartPolicy.MaximumRetryCount,
		},
	}

	if inspect.State.Health != nil {
		snap.Health = inspect.State.Health.Status
	} else {
		snap.Health = "none"
	}
	if t, err := time.Parse(time.RFC3339Nano, inspect.State.StartedAt); err == nil {
		snap.StartedAt = t
	}
	snap.RestartCount = inspect.RestartCount

	imgInspect, err := d.cli.ImageInspect(ctx, inspect.Image)
	if err == nil && len(imgInspect.RepoDigests) > 0 {
		if idx := strings.Index(imgInspect.RepoDigests[0], "@"); idx > 0 {
			snap.ImageDigest = imgInspect.RepoDigests[0][idx+1:]
		}
	}

	for _, mp := range inspect.Mounts {
		snap.Mounts = append(snap.Mounts, Mount{
			Type:        string(mp.Type),
			Source:      mp.Source,
			Destination: mp.Destination,
			ReadOnly:    !mp.RW,
		})
	}

	for containerPort, bindings := range inspect.HostConfig.PortBindings { // nat.PortMap
		for _, b := range bindings {
			snap.Ports = append(snap.Ports, PortBinding{
				ContainerPort: string(containerPort),
				HostIP:        b.HostIP,
				HostPort:      b.HostPort,
			})
		}
	}

	if inspect.Config.Healthcheck != nil {
		hc := inspect.Config.Healthcheck
		snap.Healthcheck = &HealthCheckSpec{
			Test:        hc.Test,
			Interval:    hc.Interval,
			Timeout:     hc.Timeout,
			StartPeriod: hc.StartPeriod,
			Retries:     hc.Retries,
		}
	}

	if inspect.NetworkSettings != nil {
		for netName, ep := range inspect.NetworkSettings.Networks {
			att := NetworkAttachment{
				NetworkName: netName,
				Aliases:     ep.Aliases,
				Links:       ep.Links,
				DriverOpts:  ep.DriverOpts,
				MACAddress:  ep.MacAddress,
			}
			if ep.IPAMConfig != nil {
				att.IPv4Address = ep.IPAMConfig.IPv4Address
				att.IPv6Address = ep.IPAMConfig.IPv6Address
			}
			snap.Networks = append(snap.Networks, att)
		}
	}

	return snap, nil
}

func (d *DockerDriver) InspectImage(ctx context.Context, ref string) (ImageSnapshot, error) {
	inspect, err := d.cli.ImageInspect(ctx, ref)
	if err != nil {
		return ImageSnapshot{}, fmt.Errorf("inspecting image %s: %w", ref, err)
	}
	snap := ImageSnapshot{ID: inspect.ID, Ref: ref}
	if inspect.Config != nil {
		snap.Env = inspect.Config.Env
		snap.Labels = inspect.Config.Labels
	}
	return snap, nil
}

func (d *DockerDriver) Pull(ctx context.Context, ref string, creds *RegistryCreds) error {
	opts := image.PullOptions{}
	if creds != nil {
		authCfg := registry.AuthConfig{
			Username:      creds.Username,
			Password:      creds.Password,
			IdentityToken: creds.Token,
		}
		encoded, err := registry.EncodeAuthConfig(authCfg)
		if err == nil {
			opts.RegistryAuth = encoded
		}
	}
	rc, err := d.cli.ImagePull(ctx, ref, opts)
	if err != nil {
		return fmt.Errorf("pulling %s: %w", ref, err)
	}
	defer rc.Close()
	// Draining the stream is required for the pull to actually
	// complete; we do not surface per-layer progress.
	buf := make([]byte, 32*1024)
	for {
		if _, err := rc.Read(buf); err != nil {
			break
		}
	}
	return nil
}

func (d *DockerDriver) Create(ctx context.Context, spec RecreateSpec) (string, error) {
	config := &containertypes.Config{
		Image:        spec.Image,
		Env:          spec.Env,
		Labels:       spec.Labels,
		Cmd:          spec.Command,
		Entrypoint:   spec.Entrypoint,
		User:         spec.User,
		WorkingDir:   spec.WorkingDir,
		Hostname:     spec.Hostname,
		OpenStdin:    spec.StdinOpen,
		Tty:          spec.TTY,
	}
	if spec.Healthcheck != nil {
		config.Healthcheck = &containertypes.HealthConfig{
			Test:        spec.Healthcheck.Test,
			Interval:    spec.Healthcheck.Interval,
			Timeout:     spec.Healthcheck.Timeout,
			StartPeriod: spec.Healthcheck.StartPeriod,
			Retries:     spec.Healthcheck.Retries,
		}
	}

	hostConfig := &containertypes.HostConfig{
		RestartPolicy: containertypes.RestartPolicy{
			Name:              containertypes.RestartPolicyMode(spec.RestartPolicy.Name),
			MaximumRetryCount: spec.RestartPolicy.MaximumRetryCount,
		},
		NetworkMode: containertypes.NetworkMode(spec.NetworkMode),
	}

	for _, m := range spec.Mounts {
		hostConfig.Mounts = append(hostConfig.Mounts, mount.Mount{
			Type:     mount.Type(m.Type),
			Source:   m.Source,
			Target:   m.Destination,
			ReadOnly: m.ReadOnly,
		})
	}

	if spec.NetworkMode != "host" && spec.NetworkMode != "none" {
		portBindings := nat.PortMap{}
		for _, p := range spec.Ports {
			port := nat.Port(p.ContainerPort)
			portBindings[port] = append(portBindings[port], nat.PortBinding{
				HostIP:   p.HostIP,
				HostPort: p.HostPort,
			})
		}
		hostConfig.PortBindings = portBindings
	}

	var networkingConfig *network.NetworkingConfig
	var additionalNetworks map[string]*network.EndpointSettings
	for i, att := range spec.Networks {
		epSettings := &network.EndpointSettings{
			Aliases:    att.Aliases,
			Links:      att.Links,
			DriverOpts: att.DriverOpts,
			MacAddress: att.MACAddress,
		}
		if att.IPv4Address != "" || att.IPv6Address != "" {
			epSettings.IPAMConfig = &network.EndpointIPAMConfig{
				IPv4Address: att.IPv4Address,
				IPv6Address: att.IPv6Address,
			}
		}
		if i == 0 {
			networkingConfig = &network.NetworkingConfig{
				EndpointsConfig: map[string]*network.EndpointSettings{att.NetworkName: epSettings},
			}
		} else {
			if additionalNetworks == nil {
				additionalNetworks = map[string]*network.EndpointSettings{}
			}
			additionalNetworks[att.NetworkName] = epSettings
		}
	}

	resp, err := d.cli.ContainerCreate(ctx, config, hostConfig, networkingConfig, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("creating container %s: %w", spec.Name, err)
	}

	for netName, epSettings := range additionalNetworks {
		if err := d.cli.NetworkConnect(ctx, netName, resp.ID, epSettings); err != nil {
			return resp.ID, fmt.Errorf("connecting %s to network %s: %w", spec.Name, netName, err)
		}
	}

	return resp.ID, nil
}

func (d *DockerDriver) Start(ctx context.Context, id string) error {
	return d.cli.ContainerStart(ctx, id, containertypes.StartOptions{})
}

func (d *DockerDriver) Stop(ctx context.Context, id string, timeout int) error {
	return d.cli.ContainerStop(ctx, id, containertypes.StopOptions{Timeout: &timeout})
}

func (d *DockerDriver) Rename(ctx context.Context, id string, newName string) error {
	return d.cli.ContainerRename(ctx, id, newName)
}

func (d *DockerDriver) Remove(ctx context.Context, id string, force bool) error {
	return d.cli.ContainerRemove(ctx, id, containertypes.RemoveOptions{Force: force})
}

func (d *DockerDriver) SetRestartPolicy(ctx context.Context, id string, policy RestartPolicy) error {
	_, err := d.cli.ContainerUpdate(ctx, id, containertypes.UpdateConfig{
		RestartPolicy: containertypes.RestartPolicy{
			Name:              containertypes.RestartPolicyMode(policy.Name),
			MaximumRetryCount: policy.MaximumRetryCount,
		},
	})
	return err
}

func (d *DockerDriver) PruneContainers(ctx context.Context, olderThan int) ([]string, error) {
	args := filters.NewArgs()
	if olderThan > 0 {
		args.Add("until", fmt.Sprintf("%dh", olderThan))
	}
	report, err := d.cli.ContainersPrune(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("pruning containers: %w", err)
	}
	return report.ContainersDeleted, nil
}

func (d *DockerDriver) PruneImages(ctx context.Context) ([]string, error) {
	args := filters.NewArgs()
	args.Add("dangling", "false")
	args.Add("until", "24h")
	report, err := d.cli.ImagesPrune(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("pruning images: %w", err)
	}
	deleted := make([]string, 0, len(report.ImagesDeleted))
	for _, img := range report.ImagesDeleted {
		if img.Deleted != "" {
			deleted = append(deleted, img.Deleted)
		} else if img.Untagged != "" {
			deleted = append(deleted, img.Untagged)
		}
	}
	return deleted, nil
}
