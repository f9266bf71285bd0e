package fixtures

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/lockset/pkg/buildinfo"
	"github.com/matzehuels/lockset/pkg/cache"
	"github.com/matzehuels/lockset/pkg/errors"
	"github.com/matzehuels/lockset/pkg/httputil"
)

const (
	// DefaultTTL bounds how long downloaded fixture bodies stay cached.
	DefaultTTL = 7 * 24 * time.Hour

	httpTimeout = 30 * time.Second

	// fetchConcurrency bounds parallel downloads in FetchAll.
	fetchConcurrency = 4
)

// Fetcher downloads fixture lockfiles with retry and optional caching.
type Fetcher struct {
	http  *http.Client
	cache cache.Cache
	keyer cache.Keyer
	ttl   time.Duration
}

// FetcherOptions configures a Fetcher. The zero value uses a 30s-timeout
// HTTP client and no download cache.
type FetcherOptions struct {
	Client *http.Client
	Cache  cache.Cache
	TTL    time.Duration
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts FetcherOptions) *Fetcher {
	f := &Fetcher{
		http:  opts.Client,
		cache: opts.Cache,
		keyer: cache.NewDefaultKeyer(),
		ttl:   opts.TTL,
	}
	if f.http == nil {
		f.http = &http.Client{Timeout: httpTimeout}
	}
	if f.cache == nil {
		f.cache = cache.NewNullCache()
	}
	if f.ttl == 0 {
		f.ttl = DefaultTTL
	}
	return f
}

// Fetch downloads one fixture into dir. The body lands at fixture.Path(dir)
// via a temp file and rename, so a failed download never leaves a partial
// lockfile behind. With refresh the cached body is ignored.
func (f *Fetcher) Fetch(ctx context.Context, fx Fixture, dir string, refresh bool) error {
	key := f.keyer.HTTPKey("fixtures", fx.URL)

	var body []byte
	if !refresh {
		if data, ok, err := f.cache.Get(ctx, key); err == nil && ok {
			body = data
		}
	}

	if body == nil {
		var err error
		body, err = f.download(ctx, fx.URL)
		if err != nil {
			return errors.Wrap(errors.ErrCodeNetwork, err, "fetch fixture %q", fx.Name)
		}
		if err := f.verifyChecksum(fx, body); err != nil {
			return err
		}
		_ = f.cache.Set(ctx, key, body, f.ttl)
	} else if err := f.verifyChecksum(fx, body); err != nil {
		return err
	}

	path := fx.Path(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// FetchAll downloads every fixture in the manifest, a few at a time.
// The first failure cancels the remaining downloads.
func (f *Fetcher) FetchAll(ctx context.Context, m *Manifest, dir string, refresh bool) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, fx := range m.Fixtures {
		g.Go(func() error {
			return f.Fetch(gctx, fx, dir, refresh)
		})
	}
	return g.Wait()
}

func (f *Fetcher) verifyChecksum(fx Fixture, body []byte) error {
	if fx.SHA256 == "" {
		return nil
	}
	if got := cache.Hash(body); got != fx.SHA256 {
		return errors.New(errors.ErrCodeInvalidInput,
			"checksum mismatch for fixture %q: got %s, want %s", fx.Name, got, fx.SHA256)
	}
	return nil
}

func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte
	err := httputil.RetryWithBackoff(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", "lockset/"+buildinfo.Version)

		resp, err := f.http.Do(req)
		if err != nil {
			return httputil.Retryable(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return httputil.Retryable(fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL))
		default:
			return fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return httputil.Retryable(err)
		}
		return nil
	})
	return body, err
}
