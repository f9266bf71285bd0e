package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/matzehuels/lockset/pkg/cache"
	"github.com/matzehuels/lockset/pkg/lockfile"
)

const coverageLock = `{
  "name": "app",
  "lockfileVersion": 3,
  "packages": {
    "": {"name": "app", "version": "1.0.0"},
    "node_modules/lodash": {"version": "4.17.21"},
    "node_modules/express": {"version": "9.9.9"},
    "node_modules/ghost-package": {"version": "1.0.0"},
    "node_modules/Badname": {"version": "1.0.0"}
  }
}`

func coverageSet(t *testing.T) *lockfile.Set {
	t.Helper()
	set, err := lockfile.FromContent([]byte(coverageLock), lockfile.ParseOptions{})
	if err != nil {
		t.Fatalf("FromContent() error: %v", err)
	}
	return set
}

func TestCoverageCheck(t *testing.T) {
	server, _ := testRegistry(t, map[string]registryResponse{
		"lodash": lodashDoc(),
		"express": {
			Name:     "express",
			DistTags: distTags{Latest: "4.18.2"},
			Versions: map[string]versionDetails{"4.18.2": {}},
		},
	})
	client := NewClient(Options{BaseURL: server.URL})
	checker := NewCoverageChecker(client, 4)

	report, err := checker.Check(context.Background(), coverageSet(t), CheckOptions{})
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}

	if report.Total != 4 {
		t.Errorf("Total = %d, want 4", report.Total)
	}
	if report.Covered != 1 {
		t.Errorf("Covered = %d, want 1", report.Covered)
	}
	if report.Format != "npm" {
		t.Errorf("Format = %q, want %q", report.Format, "npm")
	}
	if report.Registry != server.URL {
		t.Errorf("Registry = %q, want %q", report.Registry, server.URL)
	}

	// Results are sorted by name@version
	want := map[string]CheckStatus{
		"Badname":       StatusInvalid,
		"express":       StatusVersionMissing,
		"ghost-package": StatusNotFound,
		"lodash":        StatusOK,
	}
	if len(report.Results) != len(want) {
		t.Fatalf("Results count = %d, want %d", len(report.Results), len(want))
	}
	prev := ""
	for _, res := range report.Results {
		if status, ok := want[res.Name]; !ok || res.Status != status {
			t.Errorf("result %s@%s status = %q, want %q", res.Name, res.Version, res.Status, status)
		}
		if res.Name < prev {
			t.Errorf("results out of order: %q after %q", res.Name, prev)
		}
		prev = res.Name
	}

	if missing := report.Missing(); len(missing) != 3 {
		t.Errorf("Missing() count = %d, want 3", len(missing))
	}
}

func TestCoverageCheckReportCached(t *testing.T) {
	server, hits := testRegistry(t, map[string]registryResponse{
		"lodash":        lodashDoc(),
		"express":       {Name: "express", Versions: map[string]versionDetails{"9.9.9": {}}},
		"ghost-package": {Name: "ghost-package", Versions: map[string]versionDetails{"1.0.0": {}}},
	})
	store, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	client := NewClient(Options{BaseURL: server.URL, Cache: store})
	checker := NewCoverageChecker(client, 2)

	ctx := context.Background()
	opts := CheckOptions{LockHash: cache.Hash([]byte(coverageLock))}

	first, err := checker.Check(ctx, coverageSet(t), opts)
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	hitsAfterFirst := hits.Load()

	second, err := checker.Check(ctx, coverageSet(t), opts)
	if err != nil {
		t.Fatalf("Check() second run error: %v", err)
	}
	if hits.Load() != hitsAfterFirst {
		t.Errorf("second run hit the registry %d more times, want 0", hits.Load()-hitsAfterFirst)
	}
	if second.ID != first.ID {
		t.Error("second run should return the cached report")
	}

	// Refresh ignores the cached report
	third, err := checker.Check(ctx, coverageSet(t), CheckOptions{LockHash: opts.LockHash, Refresh: true})
	if err != nil {
		t.Fatalf("Check() refresh error: %v", err)
	}
	if third.ID == first.ID {
		t.Error("refresh should generate a new report")
	}
	if hits.Load() == hitsAfterFirst {
		t.Error("refresh should hit the registry again")
	}
}

func TestCoverageCheckProgress(t *testing.T) {
	server, _ := testRegistry(t, map[string]registryResponse{
		"lodash": lodashDoc(),
	})
	client := NewClient(Options{BaseURL: server.URL})
	checker := NewCoverageChecker(client, 2)

	var (
		mu      sync.Mutex
		calls   int
		highest int
	)
	_, err := checker.Check(context.Background(), coverageSet(t), CheckOptions{
		Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if total != 4 {
				t.Errorf("total = %d, want 4 distinct names", total)
			}
			if done > highest {
				highest = done
			}
		},
	})
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 4 {
		t.Errorf("progress called %d times, want 4", calls)
	}
	if highest != 4 {
		t.Errorf("highest done = %d, want 4", highest)
	}
}

func TestCoverageCheckerDefaults(t *testing.T) {
	checker := NewCoverageChecker(NewClient(Options{}), 0)
	if checker.concurrency != DefaultConcurrency {
		t.Errorf("concurrency = %d, want %d", checker.concurrency, DefaultConcurrency)
	}
}
