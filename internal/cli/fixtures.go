package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/lockset/pkg/errors"
	"github.com/matzehuels/lockset/pkg/fixtures"
)

// fixturesCommand creates the fixtures command group for managing real-world
// lockfile corpora.
func (c *CLI) fixturesCommand() *cobra.Command {
	var (
		manifestPath string
		dir          string
	)

	cmd := &cobra.Command{
		Use:   "fixtures",
		Short: "Fetch and verify real-world lockfile fixtures",
		Long: `Fetch and verify real-world lockfile fixtures.

A fixtures.toml manifest pins public lockfiles by URL and SHA-256.
'fetch' downloads them into the fixture directory and 'verify' checks
that each one still parses to the pinned format with at least the
expected number of dependencies.`,
	}

	cmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", "fixtures.toml", "fixture manifest")
	cmd.PersistentFlags().StringVar(&dir, "dir", "testdata/fixtures", "fixture directory")

	cmd.AddCommand(c.fixturesFetchCommand(&manifestPath, &dir))
	cmd.AddCommand(c.fixturesVerifyCommand(&manifestPath, &dir))

	return cmd
}

// fixturesFetchCommand creates the fetch subcommand.
func (c *CLI) fixturesFetchCommand(manifestPath, dir *string) *cobra.Command {
	var (
		refresh  bool
		noCache  bool
		redisURL string
		cacheTTL time.Duration
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the fixtures pinned in the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runFixturesFetch(cmd.Context(), *manifestPath, *dir, refresh, noCache, redisURL, cacheTTL)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "re-download even when cached")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVar(&redisURL, "redis", "", "redis URL for a shared cache")
	cmd.Flags().DurationVar(&cacheTTL, "cache-ttl", fixtures.DefaultTTL, "how long downloaded bodies stay cached")

	return cmd
}

// fixturesVerifyCommand creates the verify subcommand.
func (c *CLI) fixturesVerifyCommand(manifestPath, dir *string) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check fetched fixtures against their pins",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runFixturesVerify(*manifestPath, *dir, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the results as JSON")

	return cmd
}

// runFixturesFetch downloads every fixture in the manifest.
func (c *CLI) runFixturesFetch(ctx context.Context, manifestPath, dir string, refresh, noCache bool, redisURL string, cacheTTL time.Duration) error {
	m, err := fixtures.Load(manifestPath)
	if err != nil {
		return err
	}

	store, err := newCache(ctx, noCache, redisURL)
	if err != nil {
		return err
	}
	defer store.Close()

	fetcher := fixtures.NewFetcher(fixtures.FetcherOptions{Cache: store, TTL: cacheTTL})

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Fetching %d fixtures...", len(m.Fixtures)))
	spinner.Start()

	if err := fetcher.FetchAll(ctx, m, dir, refresh); err != nil {
		if spinner.Cancelled() {
			spinner.Stop()
			return err
		}
		spinner.StopWithError("Fetch failed")
		return err
	}
	spinner.StopWithSuccess(fmt.Sprintf("Fetched %d fixtures", len(m.Fixtures)))
	printFile(dir)
	return nil
}

// runFixturesVerify checks the fetched files against the manifest pins.
func (c *CLI) runFixturesVerify(manifestPath, dir string, jsonOut bool) error {
	m, err := fixtures.Load(manifestPath)
	if err != nil {
		return err
	}

	results := fixtures.Verify(dir, m)

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
	} else {
		printVerifyResults(results)
	}

	if !fixtures.Passed(results) {
		return errors.New(errors.ErrCodeInvalidInput, "fixture verification failed")
	}
	return nil
}

// printVerifyResults renders one line per fixture.
func printVerifyResults(results []fixtures.VerifyResult) {
	passed := 0
	for _, res := range results {
		switch res.Status {
		case fixtures.StatusOK:
			passed++
			printSuccess("%s (%s, %d deps)", res.Name, res.Format, res.Deps)
		case fixtures.StatusMissing:
			printWarning("%s: %s", res.Name, res.Detail)
		default:
			printError("%s: %s", res.Name, res.Detail)
		}
	}
	fmt.Println()
	printDetail("%d/%d fixtures ok", passed, len(results))
}
