// Package registry implements the two tag-discovery drivers described in
// §4.2: a Docker Hub-style driver and an OCI distribution-v2 driver (used
// for GHCR and other registries that speak the distribution API).
package registry

import (
	"context"
	"time"
)

// ImageReference identifies a repository in a specific registry, and
// optionally the tag currently in use.
type ImageReference struct {
	Registry   string
	Repository string
	Tag        string
}

// TagCandidate is a tag observed in a registry, with whatever metadata the
// driver could recover. CreatedAt may be zero; callers must treat a zero
// value as "unknown" and skip age-based policy with a warning rather than
// treating it as epoch.
type TagCandidate struct {
	Name      string
	Digest    string
	CreatedAt time.Time
	MediaType string
}

// Credentials authenticates against a single registry or repository.
// Token, when set, takes precedence over Username/Password.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// Client is the shape shared by both drivers: paginated tag listing and
// per-tag metadata lookup.
type Client interface {
	// ListTags enumerates candidate tags for ref, terminating when the
	// page link is absent or the configured page cap is reached. It fails
	// soft: on a transport error it returns whatever it already
	// accumulated plus the error, never losing partial results.
	ListTags(ctx context.Context, ref ImageReference, creds *Credentials) ([]TagCandidate, error)

	// DescribeTag fetches the digest (and created time when available)
	// for a single tag. The digest must come from the
	// Docker-Content-Digest response header, never parsed out of the
	// manifest body.
	DescribeTag(ctx context.Context, ref ImageReference, tagName string, creds *Credentials) (TagCandidate, error)
}

// Config tunes timeouts, rate limiting, and page caps. Zero values fall
// back to the package defaults.
type Config struct {
	HTTPTimeout  time.Duration
	PageCap      int
	RateInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.PageCap <= 0 {
		c.PageCap = DefaultPageCap
	}
	if c.RateInterval <= 0 {
		c.RateInterval = DefaultRateInterval
	}
	return c
}
