package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// OCIClient talks to any registry implementing the OCI distribution v2
// API (ghcr.io, quay.io, self-hosted registries, ...). It implements the
// anonymous bearer-token fallback required by §4.2: on a 401 it parses the
// WWW-Authenticate challenge and exchanges it for a token scoped to
// repository:<name>:pull. The token request carries the supplied
// username/password as Basic auth when given and is anonymous otherwise;
// a Token credential is not sent by this driver.
type OCIClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        Config

	tokenMu sync.Mutex
	tokens  map[string]cachedToken
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

func NewOCIClient(cfg Config) *OCIClient {
	cfg = cfg.withDefaults()
	return &OCIClient{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		limiter:    rate.NewLimiter(rate.Every(cfg.RateInterval), 1),
		cfg:        cfg,
		tokens:     make(map[string]cachedToken),
	}
}

type ociTagList struct {
	Tags []string `json:"tags"`
}

// ListTags pages through GET /v2/<repo>/tags/list?n=<pageSize>&last=<tag>.
// The distribution spec has no "next" link; pagination ends when a page
// returns fewer than the requested page size or the page cap is hit.
func (c *OCIClient) ListTags(ctx context.Context, ref ImageReference, creds *Credentials) ([]TagCandidate, error) {
	var out []TagCandidate
	last := ""
	pages := 0
	for pages < c.cfg.PageCap {
		if err := c.limiter.Wait(ctx); err != nil {
			return out, err
		}
		url := fmt.Sprintf("https://%s/v2/%s/tags/list?n=%d", ref.Registry, ref.Repository, DefaultPageSize)
		if last != "" {
			url += "&last=" + last
		}

		var page ociTagList
		if err := c.getAuthed(ctx, ref, url, creds, &page); err != nil {
			return out, fmt.Errorf("oci list tags (%s/%s): %w", ref.Registry, ref.Repository, err)
		}
		for _, t := range page.Tags {
			out = append(out, TagCandidate{Name: t})
		}
		pages++
		if len(page.Tags) < DefaultPageSize {
			break
		}
		last = page.Tags[len(page.Tags)-1]
	}
	return out, nil
}

// DescribeTag HEADs the manifest endpoint and trusts only the
// Docker-Content-Digest response header for the digest, per §4.2.
func (c *OCIClient) DescribeTag(ctx context.Context, ref ImageReference, tagName string, creds *Credentials) (TagCandidate, error) {
	url := fmt.Sprintf("https://%s/v2/%s/manifests/%s", ref.Registry, ref.Repository, tagName)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return TagCandidate{}, err
	}
	req.Header.Set("Accept", manifestAcceptHeader)

	resp, err := c.doAuthed(ctx, ref, req, creds)
	if err != nil {
		return TagCandidate{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return TagCandidate{}, fmt.Errorf("oci manifest HEAD %s: status %d", url, resp.StatusCode)
	}

	digest := resp.Header.Get("Docker-Content-Digest")
	if digest == "" {
		return TagCandidate{}, fmt.Errorf("oci manifest HEAD %s: missing Docker-Content-Digest header", url)
	}
	return TagCandidate{Name: tagName, Digest: digest}, nil
}

func (c *OCIClient) getAuthed(ctx context.Context, ref ImageReference, url string, creds *Credentials, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.doAuthed(ctx, ref, req, creds)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// doAuthed performs the request, retrying once with a bearer token if the
// first attempt is challenged with a 401.
func (c *OCIClient) doAuthed(ctx context.Context, ref ImageReference, req *http.Request, creds *Credentials) (*http.Response, error) {
	clone := req.Clone(ctx)
	resp, err := c.httpClient.Do(clone)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	challenge := resp.Header.Get("Www-Authenticate")
	resp.Body.Close()

	token, err := c.exchangeToken(ctx, ref, challenge, creds)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	retry := req.Clone(ctx)
	retry.Header.Set("Authorization", "Bearer "+token)
	return c.httpClient.Do(retry)
}

func (c *OCIClient) exchangeToken(ctx context.Context, ref ImageReference, challenge string, creds *Credentials) (string, error) {
	cacheKey := ref.Registry + "/" + ref.Repository

	c.tokenMu.Lock()
	if cached, ok := c.tokens[cacheKey]; ok && time.Now().Before(cached.expiresAt) {
		c.tokenMu.Unlock()
		return cached.token, nil
	}
	c.tokenMu.Unlock()

	params := parseBearerChallenge(challenge)
	realm := params["realm"]
	if realm == "" {
		realm = fmt.Sprintf("https://%s/token", ref.Registry)
	}
	scope := params["scope"]
	if scope == "" {
		scope = fmt.Sprintf("repository:%s:pull", ref.Repository)
	}

	url := realm + "?scope=" + scope
	if svc := params["service"]; svc != "" {
		url += "&service=" + svc
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	if creds != nil && creds.Token == "" && creds.Username != "" {
		req.SetBasicAuth(creds.Username, creds.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint %s: status %d", realm, resp.StatusCode)
	}

	var tr struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", err
	}
	token := tr.Token
	if token == "" {
		token = tr.AccessToken
	}
	expiresIn := tr.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 300
	}

	c.tokenMu.Lock()
	c.tokens[cacheKey] = cachedToken{token: token, expiresAt: time.Now().Add(time.Duration(expiresIn) * time.Second)}
	c.tokenMu.Unlock()

	return token, nil
}

// IsMetaTag reports whether a tag name is a moving/meta reference (not a
// real version) that should be excluded from "latest stable" selection.
func IsMetaTag(tag string) bool {
	switch strings.ToLower(tag) {
	case "latest", "main", "master", "develop", "edge", "nightly":
		return true
	default:
		return false
	}
}
