package registry

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/lockset/pkg/errors"
	"github.com/matzehuels/lockset/pkg/lockfile"
)

// DefaultConcurrency bounds parallel registry lookups during a coverage run.
const DefaultConcurrency = 8

// CheckStatus classifies one locked dependency against the registry.
type CheckStatus string

const (
	// StatusOK means the name and exact version exist in the registry.
	StatusOK CheckStatus = "ok"

	// StatusVersionMissing means the name exists but the locked version is gone.
	StatusVersionMissing CheckStatus = "version_missing"

	// StatusNotFound means the registry has no package under the name.
	StatusNotFound CheckStatus = "not_found"

	// StatusInvalid means the name is not a valid npm package name.
	StatusInvalid CheckStatus = "invalid"

	// StatusError means the lookup failed, typically a network problem.
	StatusError CheckStatus = "error"
)

// CheckResult is the verdict for one locked dependency.
type CheckResult struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Status  CheckStatus `json:"status"`
	Error   string      `json:"error,omitempty"`
}

// Report summarizes registry coverage for a whole lockfile.
type Report struct {
	ID          uuid.UUID     `json:"id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Registry    string        `json:"registry"`
	Format      string        `json:"format"`
	Total       int           `json:"total"`
	Covered     int           `json:"covered"`
	Results     []CheckResult `json:"results"`
}

// Missing returns the results that are anything other than StatusOK.
func (r *Report) Missing() []CheckResult {
	var out []CheckResult
	for _, res := range r.Results {
		if res.Status != StatusOK {
			out = append(out, res)
		}
	}
	return out
}

// CoverageChecker verifies that every dependency in a lockfile still exists
// upstream. Lookups are fanned out across a bounded worker group, one fetch
// per distinct package name.
type CoverageChecker struct {
	client      *Client
	concurrency int
}

// NewCoverageChecker creates a checker over client. A concurrency of zero or
// less selects DefaultConcurrency.
func NewCoverageChecker(client *Client, concurrency int) *CoverageChecker {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &CoverageChecker{client: client, concurrency: concurrency}
}

// CheckOptions control a coverage run.
type CheckOptions struct {
	// LockHash enables report caching when non-empty. Compute it with
	// cache.Hash over the raw lockfile bytes.
	LockHash string

	// Refresh bypasses both the report cache and the package cache.
	Refresh bool

	// Progress, when non-nil, is called after each package lookup with
	// the number of finished lookups and the total. Calls come from the
	// worker goroutines. A run answered from the report cache performs
	// no lookups and reports no progress.
	Progress func(done, total int)
}

// Check fetches each distinct package name in the set and classifies every
// locked dependency against the fetched documents. Results are ordered by
// name@version so reports are stable across runs.
func (cc *CoverageChecker) Check(ctx context.Context, set *lockfile.Set, opts CheckOptions) (*Report, error) {
	var reportKey string
	if opts.LockHash != "" {
		reportKey = cc.client.keyer.ReportKey(opts.LockHash, cc.client.baseURL)
		if !opts.Refresh {
			if data, ok, _ := cc.client.cache.Get(ctx, reportKey); ok {
				var cached Report
				if err := json.Unmarshal(data, &cached); err == nil {
					return &cached, nil
				}
			}
		}
	}

	deps := slices.SortedFunc(set.All(), func(a, b lockfile.Dependency) int {
		return strings.Compare(a.Key(), b.Key())
	})

	// One fetch per distinct name; versions are checked against the document.
	var names []string
	seen := make(map[string]bool, len(deps))
	for _, d := range deps {
		if !seen[d.Name] {
			seen[d.Name] = true
			names = append(names, d.Name)
		}
	}

	var (
		mu    sync.Mutex
		done  int
		infos = make(map[string]*PackageInfo, len(names))
		fails = make(map[string]error)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cc.concurrency)
	for _, name := range names {
		g.Go(func() error {
			var (
				info    *PackageInfo
				lookErr error
			)
			if lookErr = errors.ValidateNpmPackageName(name); lookErr == nil {
				info, lookErr = cc.client.FetchPackage(gctx, name, opts.Refresh)
			}

			mu.Lock()
			if lookErr != nil {
				fails[name] = lookErr
			} else {
				infos[name] = info
			}
			done++
			finished := done
			mu.Unlock()

			if opts.Progress != nil {
				opts.Progress(finished, len(names))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{
		ID:          uuid.New(),
		GeneratedAt: time.Now().UTC(),
		Registry:    cc.client.baseURL,
		Format:      set.Format().String(),
		Total:       len(deps),
		Results:     make([]CheckResult, 0, len(deps)),
	}
	for _, d := range deps {
		res := CheckResult{Name: d.Name, Version: d.Version}
		switch err := fails[d.Name]; {
		case err != nil:
			switch {
			case IsNotFound(err):
				res.Status = StatusNotFound
			case errors.Is(err, errors.ErrCodeInvalidPackage):
				res.Status = StatusInvalid
			default:
				res.Status = StatusError
				res.Error = err.Error()
			}
		case infos[d.Name].HasVersion(d.Version):
			res.Status = StatusOK
			report.Covered++
		default:
			res.Status = StatusVersionMissing
		}
		report.Results = append(report.Results, res)
	}

	if reportKey != "" {
		if data, err := json.Marshal(report); err == nil {
			_ = cc.client.cache.Set(ctx, reportKey, data, cc.client.ttl)
		}
	}
	return report, nil
}
