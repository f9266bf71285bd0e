package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/lockset/pkg/errors"
	"github.com/matzehuels/lockset/pkg/lockfile"
	"github.com/matzehuels/lockset/pkg/observability"
)

// extractCommand creates the extract command for listing a lockfile's records.
func (c *CLI) extractCommand() *cobra.Command {
	var (
		outputMode string
		outPath    string
		formatStr  string
		showStats  bool
	)

	cmd := &cobra.Command{
		Use:   "extract [lockfile]",
		Short: "Extract the flat dependency list from a lockfile",
		Long: `Extract the flat dependency list from a lockfile.

Reads a package-lock.json, npm-shrinkwrap.json, pnpm-lock.yaml, or
yarn.lock (classic or berry) and lists every name@version it records,
with integrity and resolution metadata where the format carries them.

The format is detected from the content. Pass --format to skip
detection, for example when the file has an unconventional name.

With no argument the current directory is scanned for known lockfile
names; a directory argument is scanned the same way. If several are
present an interactive picker opens.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return c.runExtract(cmd.Context(), path, formatStr, outputMode, outPath, showStats)
		},
	}

	cmd.Flags().StringVarP(&outputMode, "output", "o", "table", "output mode: "+outputModes)
	cmd.Flags().StringVar(&outPath, "out", "", "write to file instead of stdout")
	cmd.Flags().StringVarP(&formatStr, "format", "f", "", "lockfile format: npm, pnpm, yarn, yarn-berry (skips detection)")
	cmd.Flags().BoolVar(&showStats, "stats", false, "print a summary line after the output")

	return cmd
}

// runExtract parses the lockfile and writes its records.
func (c *CLI) runExtract(ctx context.Context, path, formatStr, outputMode, outPath string, showStats bool) error {
	path, ok, err := c.resolveLockfilePath(path)
	if err != nil {
		return err
	}
	if !ok {
		printDetail("No lockfile selected")
		return nil
	}

	set, elapsed, err := c.loadSet(ctx, path, formatStr)
	if err != nil {
		return err
	}

	if err := writeSet(ctx, set, outputMode, outPath); err != nil {
		return err
	}

	if outPath != "" {
		printSuccess("Extracted %d dependencies", set.Len())
		printFile(outPath)
	}
	if showStats {
		printSetStats(set, elapsed)
	}
	return nil
}

// =============================================================================
// Shared Lockfile Loading
// =============================================================================

// resolveLockfilePath fills in a missing path argument by scanning the
// current directory, and expands a directory argument by scanning it.
// ok is false when the user quit the picker.
func (c *CLI) resolveLockfilePath(path string) (string, bool, error) {
	dir := "."
	if path != "" {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			return path, true, nil
		}
		dir = path
	}

	entries, err := discoverLockfiles(dir)
	if err != nil {
		return "", false, err
	}

	switch len(entries) {
	case 0:
		where := dir
		if where == "." {
			where = "current directory"
		}
		return "", false, errors.New(errors.ErrCodeFileNotFound,
			"no lockfile in %s (looked for %s)", where,
			strings.Join(lockfile.LockfileNames(), ", "))
	case 1:
		printInfo("Found %s", entries[0].Path)
		return entries[0].Path, true, nil
	default:
		printInfo("Found %d lockfiles", len(entries))
		fmt.Println()
		return pickLockfile(entries)
	}
}

// loadSet reads and parses a lockfile, emitting parse events around the
// work. An empty formatStr means content detection.
func (c *CLI) loadSet(ctx context.Context, path, formatStr string) (*lockfile.Set, time.Duration, error) {
	var pinned lockfile.Format
	if formatStr != "" {
		f, err := lockfile.ParseFormat(formatStr)
		if err != nil {
			return nil, 0, err
		}
		pinned = f
	}

	observability.Lockfile().OnParseStart(ctx, string(pinned), path)
	start := time.Now()

	var (
		set *lockfile.Set
		err error
	)
	if pinned == "" {
		set, err = lockfile.FromFile(path)
	} else {
		content, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, 0, fmt.Errorf("read %s: %w", path, rerr)
		}
		set, err = lockfile.FromContent(content, lockfile.ParseOptions{Format: pinned, PathHint: path})
	}

	elapsed := time.Since(start)
	if err != nil {
		observability.Lockfile().OnParseComplete(ctx, string(pinned), path, 0, elapsed, err)
		return nil, elapsed, err
	}
	observability.Lockfile().OnParseComplete(ctx, set.Format().String(), path, set.Len(), elapsed, nil)
	return set, elapsed, nil
}
