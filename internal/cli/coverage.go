package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/lockset/pkg/cache"
	"github.com/matzehuels/lockset/pkg/errors"
	"github.com/matzehuels/lockset/pkg/lockfile"
	"github.com/matzehuels/lockset/pkg/registry"
)

// coverageOptions bundle the coverage command's flags.
type coverageOptions struct {
	registryURL string
	concurrency int
	noCache     bool
	redisURL    string
	cacheTTL    time.Duration
	refresh     bool
	jsonOut     bool
	outPath     string
}

// registryEndpoint returns the registry to check against. LOCKSET_REGISTRY
// overrides the default.
func registryEndpoint() string {
	if url := os.Getenv("LOCKSET_REGISTRY"); url != "" {
		return url
	}
	return registry.DefaultRegistry
}

// coverageCommand creates the coverage command for registry verification.
func (c *CLI) coverageCommand() *cobra.Command {
	var opts coverageOptions

	cmd := &cobra.Command{
		Use:   "coverage [lockfile]",
		Short: "Check that locked dependencies still exist in the registry",
		Long: `Check that locked dependencies still exist in the registry.

Fetches the registry document for every distinct package name in the
lockfile and verifies that each locked version is still published.
Vanished packages and unpublished versions are the gaps a clean
reinstall would hit.

Package documents and finished reports are cached, so repeated runs
against an unchanged lockfile are fast. Use --refresh to force new
lookups.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return c.runCoverage(cmd.Context(), path, opts)
		},
	}

	cmd.Flags().StringVar(&opts.registryURL, "registry", registryEndpoint(), "registry endpoint")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", registry.DefaultConcurrency, "parallel registry lookups")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVar(&opts.redisURL, "redis", "", "redis URL for a shared cache")
	cmd.Flags().DurationVar(&opts.cacheTTL, "cache-ttl", registry.DefaultTTL, "how long fetched documents stay cached")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached documents and reports")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the report as JSON")
	cmd.Flags().StringVar(&opts.outPath, "out", "", "write the JSON report to a file")

	return cmd
}

// runCoverage checks the lockfile against the registry and reports gaps.
func (c *CLI) runCoverage(ctx context.Context, path string, opts coverageOptions) error {
	path, ok, err := c.resolveLockfilePath(path)
	if err != nil {
		return err
	}
	if !ok {
		printDetail("No lockfile selected")
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	set, err := lockfile.FromContent(content, lockfile.ParseOptions{PathHint: path})
	if err != nil {
		return err
	}

	store, err := newCache(ctx, opts.noCache, opts.redisURL)
	if err != nil {
		return err
	}
	defer store.Close()

	client := registry.NewClient(registry.Options{BaseURL: opts.registryURL, Cache: store, TTL: opts.cacheTTL})
	checker := registry.NewCoverageChecker(client, opts.concurrency)

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Checking %d dependencies...", set.Len()))
	spinner.Start()

	report, err := checker.Check(ctx, set, registry.CheckOptions{
		LockHash: cache.Hash(content),
		Refresh:  opts.refresh,
		Progress: func(done, total int) {
			spinner.UpdateMessage(fmt.Sprintf("Checking packages... %d/%d", done, total))
		},
	})
	if err != nil {
		if spinner.Cancelled() {
			spinner.Stop()
			return err
		}
		spinner.StopWithError("Coverage check failed")
		return err
	}
	spinner.Stop()

	if opts.jsonOut || opts.outPath != "" {
		if err := writeCoverageJSON(report, opts.outPath); err != nil {
			return err
		}
	} else {
		printCoverage(report)
	}

	if missing := len(report.Missing()); missing > 0 {
		return errors.New(errors.ErrCodePackageNotFound, "%d of %d locked dependencies not covered by %s", missing, report.Total, report.Registry)
	}
	return nil
}

// printCoverage renders the report for the terminal.
func printCoverage(report *registry.Report) {
	missing := report.Missing()
	if len(missing) == 0 {
		printSuccess("All %d dependencies covered by %s", report.Total, report.Registry)
		return
	}

	rows := [][]string{}
	for _, res := range missing {
		rows = append(rows, []string{res.Name, res.Version, string(res.Status), trimCell(res.Error, 40)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		Headers("Name", "Version", "Status", "Detail").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			if col == 2 {
				return StyleWarning
			}
			return StyleValue
		})
	fmt.Println(t.Render())

	printWarning("%d of %d dependencies missing upstream", len(missing), report.Total)
	printDetail("report %s generated %s", report.ID, report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
}

// writeCoverageJSON writes the full report as indented JSON.
func writeCoverageJSON(report *registry.Report, outPath string) error {
	out, err := openOutput(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if outPath != "" {
		printSuccess("Coverage report written")
		printFile(outPath)
	}
	return nil
}
