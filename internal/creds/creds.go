// Package creds loads the registry credentials JSON file and resolves
// per-repository/per-registry credentials with repository precedence, per
// §6.
package creds

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/halvorsen/cuengine/internal/registry"
)

type entry struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Token    string `json:"token"`
}

// Set is the parsed form of the credentials file:
//
//	{
//	  "registries":   { "<registryApiUrl>": {...} },
//	  "repositories": { "<repoPath>":       {...} }
//	}
type Set struct {
	Registries   map[string]entry `json:"registries"`
	Repositories map[string]entry `json:"repositories"`
}

// Load reads and parses the credentials file at path. A missing file is
// not an error — it yields an empty Set, meaning no registry gets
// credentials beyond anonymous access.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Set{}, nil
	}
	if err != nil {
		return nil, err
	}
	var s Set
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Resolve returns credentials for ref, preferring an exact repository
// match over a registry match. Returns nil when nothing matches (the
// caller should then attempt anonymous access).
func (s *Set) Resolve(ref registry.ImageReference) *registry.Credentials {
	if s == nil {
		return nil
	}
	if e, ok := lookup(s.Repositories, ref.Repository); ok {
		return toCredentials(e)
	}
	if e, ok := lookupRegistry(s.Registries, ref.Registry); ok {
		return toCredentials(e)
	}
	return nil
}

func lookup(m map[string]entry, key string) (entry, bool) {
	e, ok := m[key]
	return e, ok
}

// lookupRegistry normalizes both sides (scheme+host+path, trailing slash
// stripped) before comparing, then falls back to a subdomain-suffix match
// so "hub.docker.com" configuration also matches "registry.hub.docker.com".
func lookupRegistry(m map[string]entry, host string) (entry, bool) {
	normalizedHost := normalize(host)
	for key, e := range m {
		if normalize(key) == normalizedHost {
			return e, true
		}
	}
	for key, e := range m {
		nk := normalize(key)
		if strings.HasSuffix(normalizedHost, "."+nk) || strings.HasSuffix(nk, "."+normalizedHost) {
			return e, true
		}
	}
	return entry{}, false
}

func normalize(s string) string {
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimSuffix(s, "/")
	return strings.ToLower(s)
}

func toCredentials(e entry) *registry.Credentials {
	return &registry.Credentials{Username: e.Username, Password: e.Password, Token: e.Token}
}
