package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DockerHubClient talks to the Docker Hub v2 registry API
// (hub.docker.com/v2 for tag listing, registry-1.docker.io for digests).
type DockerHubClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        Config
}

func NewDockerHubClient(cfg Config) *DockerHubClient {
	cfg = cfg.withDefaults()
	return &DockerHubClient{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		limiter:    rate.NewLimiter(rate.Every(cfg.RateInterval), 1),
		cfg:        cfg,
	}
}

type dockerHubTagsResponse struct {
	Next    string         `json:"next"`
	Results []dockerHubTag `json:"results"`
}

type dockerHubTag struct {
	Name        string    `json:"name"`
	Digest      string    `json:"digest"`
	LastUpdated time.Time `json:"last_updated"`
}

// ListTags paginates hub.docker.com/v2/repositories/<repo>/tags until the
// next link is empty or the page cap is reached. Any transport error
// returns the tags gathered so far alongside the error (soft failure).
func (c *DockerHubClient) ListTags(ctx context.Context, ref ImageReference, creds *Credentials) ([]TagCandidate, error) {
	repo := normalizeHubRepo(ref.Repository)
	url := fmt.Sprintf("https://hub.docker.com/v2/repositories/%s/tags?page_size=%d", repo, DefaultPageSize)

	var out []TagCandidate
	pages := 0
	for url != "" && pages < c.cfg.PageCap {
		if err := c.limiter.Wait(ctx); err != nil {
			return out, err
		}
		var page dockerHubTagsResponse
		if err := c.getJSON(ctx, url, creds, &page); err != nil {
			return out, fmt.Errorf("docker hub list tags (%s): %w", repo, err)
		}
		for _, t := range page.Results {
			out = append(out, TagCandidate{Name: t.Name, Digest: t.Digest, CreatedAt: t.LastUpdated})
		}
		url = page.Next
		pages++
	}
	return out, nil
}

// DescribeTag fetches the content digest via a HEAD request to the
// registry-1.docker.io manifest endpoint, reading Docker-Content-Digest
// from the response header rather than trusting the manifest body.
func (c *DockerHubClient) DescribeTag(ctx context.Context, ref ImageReference, tagName string, creds *Credentials) (TagCandidate, error) {
	repo := normalizeHubRepo(ref.Repository)
	token, err := c.anonymousToken(ctx, repo)
	if err != nil {
		return TagCandidate{}, fmt.Errorf("docker hub token exchange (%s): %w", repo, err)
	}

	manifestURL := fmt.Sprintf("https://registry-1.docker.io/v2/%s/manifests/%s", repo, tagName)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, manifestURL, nil)
	if err != nil {
		return TagCandidate{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", manifestAcceptHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TagCandidate{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return TagCandidate{}, fmt.Errorf("docker hub manifest HEAD %s: status %d", manifestURL, resp.StatusCode)
	}

	digest := resp.Header.Get("Docker-Content-Digest")
	if digest == "" {
		return TagCandidate{}, fmt.Errorf("docker hub manifest HEAD %s: missing Docker-Content-Digest header", manifestURL)
	}
	return TagCandidate{Name: tagName, Digest: digest}, nil
}

type dockerHubTokenResponse struct {
	Token string `json:"token"`
}

func (c *DockerHubClient) anonymousToken(ctx context.Context, repo string) (string, error) {
	url := fmt.Sprintf("https://auth.docker.io/token?service=registry.docker.io&scope=repository:%s:pull", repo)
	var tr dockerHubTokenResponse
	if err := c.getJSON(ctx, url, nil, &tr); err != nil {
		return "", err
	}
	return tr.Token, nil
}

func (c *DockerHubClient) getJSON(ctx context.Context, url string, creds *Credentials, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	applyCredentials(req, creds)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func normalizeHubRepo(repo string) string {
	for i := 0; i < len(repo); i++ {
		if repo[i] == '/' {
			return repo
		}
	}
	return "library/" + repo
}
