package registry

// NewClient picks a driver for ref.Registry. Docker Hub's canonical hosts
// route to DockerHubClient; everything else is assumed to speak the OCI
// distribution v2 API.
func NewClient(registryHost string, cfg Config) Client {
	switch registryHost {
	case "", "docker.io", "index.docker.io", "registry-1.docker.io", "registry.hub.docker.com":
		return NewDockerHubClient(cfg)
	default:
		return NewOCIClient(cfg)
	}
}
