package registry

import "strings"

// DockerHubHost is the canonical host used for bare/docker.io image
// references that carry no explicit registry host.
const DockerHubHost = "registry-1.docker.io"

// ParseImageReference splits an image-as-started string (e.g.
// "nginx:1.25", "ghcr.io/org/app:v2", "registry.example.com:5000/app@sha256:...")
// into registry host, repository path, and tag. A reference with no
// registry-looking first segment is assumed to be a Docker Hub image.
func ParseImageReference(ref string) ImageReference {
	digest := ""
	if idx := strings.Index(ref, "@"); idx >= 0 {
		digest = ref[idx+1:]
		ref = ref[:idx]
	}

	tag := "latest"
	repoPart := ref
	// A colon after the last slash (or anywhere, when there is no
	// slash) is a tag separator; a colon before the last slash belongs
	// to the host's port.
	lastSlash := strings.LastIndex(ref, "/")
	if lastColon := strings.LastIndex(ref, ":"); lastColon > lastSlash {
		tag = ref[lastColon+1:]
		repoPart = ref[:lastColon]
	}

	host := DockerHubHost
	repo := repoPart
	firstSegment := repoPart
	if idx := strings.Index(repoPart, "/"); idx >= 0 {
		firstSegment = repoPart[:idx]
	}
	if looksLikeHost(firstSegment) {
		host = firstSegment
		repo = strings.TrimPrefix(repoPart, firstSegment+"/")
	}

	if digest != "" {
		tag = ""
	}

	return ImageReference{Registry: host, Repository: repo, Tag: tag}
}

// looksLikeHost distinguishes a registry host segment ("ghcr.io",
// "localhost:5000") from a Docker Hub namespace segment ("library",
// "linuxserver") by requiring a dot, a colon (port), or the literal
// "localhost".
func looksLikeHost(segment string) bool {
	return segment == "localhost" || strings.ContainsAny(segment, ".:")
}
