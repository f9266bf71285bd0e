// Package cli implements the lockset command-line interface.
//
// This package provides commands for extracting dependencies from
// JavaScript lockfiles, resolving transitive closures, diffing lockfiles,
// rendering dependency graphs, checking registry coverage, and managing
// the response cache. The CLI is built using cobra and supports verbose
// logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - extract: Parse a lockfile and list its pinned dependencies
//   - resolve: Compute the transitive closure a manifest installs
//   - diff: Compare two lockfiles as sets
//   - graph: Render the dependency graph as DOT, SVG, or PNG
//   - detect: Print the detected lockfile format
//   - coverage: Check which pinned packages a registry still serves
//   - fixtures: Fetch and verify reference lockfiles
//   - cache: Manage the response cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. With
// verbose on, parse, cache, and HTTP events are traced through the
// observability hooks.
package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/lockset/pkg/buildinfo"
	"github.com/matzehuels/lockset/pkg/cache"
	"github.com/matzehuels/lockset/pkg/export"
	"github.com/matzehuels/lockset/pkg/lockfile"
	"github.com/matzehuels/lockset/pkg/observability"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "lockset"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
	}
}

// SetLogLevel updates the logger's level. At debug level the
// observability hooks start tracing parse, cache, and HTTP events.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	if level <= log.DebugLevel {
		installDebugHooks(c.Logger)
	}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Lockset parses JavaScript lockfiles into dependency sets",
		Long:         `Lockset is a CLI tool for working with JavaScript lockfiles (npm, pnpm, yarn classic, yarn berry): extracting pinned dependencies, resolving transitive closures, diffing installs, and rendering dependency graphs.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.extractCommand())
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.diffCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.detectCommand())
	root.AddCommand(c.coverageCommand())
	root.AddCommand(c.fixturesCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Cache Factory
// =============================================================================

// newCache builds the cache backend the flags select: --no-cache wins,
// --redis picks the shared Redis backend, and the default is the local
// file cache. A file cache that cannot determine its directory degrades
// to no caching; an unreachable Redis is an error since the user asked
// for it explicitly.
func newCache(ctx context.Context, noCache bool, redisURL string) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if redisURL != "" {
		return cache.NewRedisCache(ctx, redisURL)
	}
	dir, err := cache.DefaultDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Set Output
// =============================================================================

// outputModes lists the accepted values of the --output flag.
const outputModes = "table, json, ndjson, csv"

// writeSet writes the set in the selected output mode, to outPath or
// stdout. Table mode renders with lipgloss; the rest delegate to the
// export encodings.
func writeSet(ctx context.Context, set *lockfile.Set, mode, outPath string) error {
	out, err := openOutput(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	if mode == "table" {
		return writeDepsTable(set, out)
	}

	enc, err := export.ParseEncoding(mode)
	if err != nil {
		return err
	}

	hooks := observability.Lockfile()
	hooks.OnExportStart(ctx, string(enc))
	start := time.Now()
	err = export.Write(set, out, enc)
	hooks.OnExportComplete(ctx, string(enc), time.Since(start), err)
	return err
}

// nopCloser wraps an io.Writer with a no-op Close method.
// It is used to make os.Stdout compatible with io.WriteCloser.
type nopCloser struct{ io.Writer }

// Close implements io.Closer with a no-op.
func (nopCloser) Close() error { return nil }

// openOutput returns a WriteCloser for the given path.
// If path is empty, it returns os.Stdout wrapped in nopCloser.
// Otherwise, it creates the file at path, overwriting if it exists.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}
