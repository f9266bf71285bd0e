// Package registry talks to npm-compatible package registries.
//
// The [Client] fetches package documents with caching, retries, and
// observability hooks wired in. The [CoverageChecker] uses it to verify that
// every dependency locked in a lockfile still exists upstream.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/lockset/pkg/buildinfo"
	"github.com/matzehuels/lockset/pkg/cache"
	apperrors "github.com/matzehuels/lockset/pkg/errors"
	"github.com/matzehuels/lockset/pkg/httputil"
	"github.com/matzehuels/lockset/pkg/observability"
)

const (
	// DefaultRegistry is the public npm registry endpoint.
	DefaultRegistry = "https://registry.npmjs.org"

	// DefaultTTL is how long fetched package documents stay cached.
	DefaultTTL = 24 * time.Hour

	httpTimeout = 10 * time.Second
)

var (
	// ErrNotFound is returned when a package doesn't exist in the registry.
	ErrNotFound = errors.New("package not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// IsNotFound reports whether err means the package is absent from the registry.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// PackageInfo is the distilled registry document for one package.
type PackageInfo struct {
	Name        string   `json:"name"`
	Latest      string   `json:"latest,omitempty"`
	Description string   `json:"description,omitempty"`
	License     string   `json:"license,omitempty"`
	Repository  string   `json:"repository,omitempty"`
	Homepage    string   `json:"homepage,omitempty"`
	Versions    []string `json:"versions"`
}

// HasVersion reports whether the registry publishes the exact version.
func (p *PackageInfo) HasVersion(version string) bool {
	return slices.Contains(p.Versions, version)
}

// Client fetches package documents from an npm-compatible registry.
// It handles caching, retry logic, and common request headers.
type Client struct {
	http    *http.Client
	cache   cache.Cache
	keyer   cache.Keyer
	baseURL string
	ttl     time.Duration
}

// Options configure a Client. The zero value targets the public npm registry
// with caching disabled.
type Options struct {
	// BaseURL is the registry endpoint; empty selects DefaultRegistry.
	BaseURL string

	// Cache stores fetched documents; nil disables caching.
	Cache cache.Cache

	// TTL bounds how long cached documents are reused; zero selects DefaultTTL.
	TTL time.Duration
}

// NewClient creates a registry client. Entries fetched from a non-default
// registry are cached under a scoped key so they never shadow entries from
// the public registry.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultRegistry
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	store := opts.Cache
	if store == nil {
		store = cache.NewNullCache()
	}
	keyer := cache.NewDefaultKeyer()
	if baseURL != DefaultRegistry {
		keyer = cache.NewScopedKeyer(keyer, "registry:"+cache.Hash([]byte(baseURL))[:12]+":")
	}
	return &Client{
		http:    &http.Client{Timeout: httpTimeout},
		cache:   store,
		keyer:   keyer,
		baseURL: baseURL,
		ttl:     ttl,
	}
}

// Registry returns the endpoint this client talks to.
func (c *Client) Registry() string { return c.baseURL }

// FetchPackage retrieves the registry document for pkg, using the cache
// unless refresh is set. Scoped names like @babel/core are accepted.
func (c *Client) FetchPackage(ctx context.Context, pkg string, refresh bool) (*PackageInfo, error) {
	pkg = strings.ToLower(strings.TrimSpace(pkg))
	key := c.keyer.PackageKey(pkg)

	var info PackageInfo
	err := c.cached(ctx, key, refresh, &info, func() error {
		return c.fetch(ctx, pkg, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// cached retrieves a value from cache or executes fetch and caches the result.
// If refresh is true, the cache is bypassed and fetch is always called.
func (c *Client) cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	if !refresh {
		if data, ok, _ := c.cache.Get(ctx, key); ok {
			if err := json.Unmarshal(data, v); err == nil {
				observability.Cache().OnCacheHit(ctx, "pkg")
				return nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "pkg")
	}
	if err := httputil.RetryWithBackoff(ctx, fetch); err != nil {
		return err
	}
	if data, err := json.Marshal(v); err == nil {
		observability.Cache().OnCacheSet(ctx, "pkg", len(data))
		_ = c.cache.Set(ctx, key, data, c.ttl)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, pkg string, info *PackageInfo) error {
	var data registryResponse
	if err := c.get(ctx, c.packageURL(pkg), &data); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, pkg)
		}
		return err
	}

	// Latest may be absent from odd documents; existence checks still work
	// off the version list alone.
	latest := data.DistTags.Latest
	details := data.Versions[latest]

	*info = PackageInfo{
		Name:        data.Name,
		Latest:      latest,
		Description: details.Description,
		License:     extractField(details.License, "type"),
		Repository:  normalizeRepoURL(extractField(details.Repository, "url")),
		Homepage:    details.Homepage,
		Versions:    slices.Sorted(maps.Keys(data.Versions)),
	}
	if info.Name == "" {
		info.Name = pkg
	}
	return nil
}

// packageURL builds the document URL for a package. Scoped names keep the
// literal @ but encode the slash, matching what the npm CLI sends.
func (c *Client) packageURL(pkg string) string {
	return c.baseURL + "/" + strings.Replace(pkg, "/", "%2f", 1)
}

// get performs an HTTP GET and JSON-decodes the response into v.
func (c *Client) get(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "lockset/"+buildinfo.Version)

	host, path := req.URL.Host, req.URL.Path
	observability.HTTP().OnRequest(ctx, http.MethodGet, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		observability.HTTP().OnError(ctx, http.MethodGet, host, path, err)
		return httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	defer resp.Body.Close()
	observability.HTTP().OnResponse(ctx, http.MethodGet, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return httputil.Retryable(&apperrors.RateLimitedError{})
	case code >= 500:
		return httputil.Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

// extractField pulls a string out of registry fields that are either a bare
// string or an object ({"type": "MIT"}, {"url": "git+https://..."}).
func extractField(v any, field string) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		if s, ok := val[field].(string); ok {
			return s
		}
	}
	return ""
}

var repoURLReplacer = strings.NewReplacer(
	"git@github.com:", "https://github.com/",
	"git://github.com/", "https://github.com/",
)

// normalizeRepoURL converts the URL formats seen in registry documents to
// canonical HTTPS form. Handles git@, git://, and git+ prefixes, and removes
// .git suffixes.
func normalizeRepoURL(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "git+")
	s = repoURLReplacer.Replace(s)
	return strings.TrimSuffix(s, ".git")
}

type registryResponse struct {
	Name     string                    `json:"name"`
	DistTags distTags                  `json:"dist-tags"`
	Versions map[string]versionDetails `json:"versions"`
}

type distTags struct {
	Latest string `json:"latest"`
}

type versionDetails struct {
	Description string `json:"description"`
	License     any    `json:"license"`
	Repository  any    `json:"repository"`
	Homepage    string `json:"homepage"`
}
