package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/lockset/pkg/lockfile"
	"github.com/matzehuels/lockset/pkg/observability"
)

// resolveCommand creates the resolve command for transitive closures.
func (c *CLI) resolveCommand() *cobra.Command {
	var (
		manifestPath string
		outputMode   string
		outPath      string
		formatStr    string
		showStats    bool
	)
	var opts lockfile.ResolveOptions

	cmd := &cobra.Command{
		Use:   "resolve [lockfile]",
		Short: "Resolve the transitive dependencies of a project",
		Long: `Resolve the transitive dependencies of a project.

Walks the lockfile from the dependencies declared in package.json and
lists only the packages the project actually installs, rather than
everything the lockfile records. Each package name resolves to a single
version, mirroring what the package manager would place on disk.

By default the walk seeds from dependencies and optionalDependencies.
Use --dev and --peer to widen the seed set and --no-optional to narrow
it. In a workspace repo, --workspace selects which project's manifest
section seeds the walk.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return c.runResolve(cmd.Context(), path, manifestPath, formatStr, opts, outputMode, outPath, showStats)
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "package.json", "package.json to seed the walk from")
	cmd.Flags().StringVar(&opts.WorkspacePath, "workspace", "", "workspace path (pnpm importer or npm workspace directory)")
	cmd.Flags().BoolVar(&opts.Dev, "dev", false, "include devDependencies")
	cmd.Flags().BoolVar(&opts.Peer, "peer", false, "include peerDependencies")
	cmd.Flags().BoolVar(&opts.NoOptional, "no-optional", false, "exclude optionalDependencies")
	cmd.Flags().StringVarP(&outputMode, "output", "o", "table", "output mode: "+outputModes)
	cmd.Flags().StringVar(&outPath, "out", "", "write to file instead of stdout")
	cmd.Flags().StringVarP(&formatStr, "format", "f", "", "lockfile format (skips detection)")
	cmd.Flags().BoolVar(&showStats, "stats", false, "print a summary line after the output")

	return cmd
}

// runResolve computes the closure and writes it.
func (c *CLI) runResolve(ctx context.Context, path, manifestPath, formatStr string, opts lockfile.ResolveOptions, outputMode, outPath string, showStats bool) error {
	path, ok, err := c.resolveLockfilePath(path)
	if err != nil {
		return err
	}
	if !ok {
		printDetail("No lockfile selected")
		return nil
	}

	set, parseElapsed, err := c.loadSet(ctx, path, formatStr)
	if err != nil {
		return err
	}

	manifest, err := lockfile.ReadManifest(manifestPath)
	if err != nil {
		return err
	}

	resolved, resolveElapsed, err := c.resolveSet(ctx, set, manifest, opts)
	if err != nil {
		return err
	}

	if err := writeSet(ctx, resolved, outputMode, outPath); err != nil {
		return err
	}

	if outPath != "" {
		printSuccess("Resolved %d of %d dependencies", resolved.Len(), set.Len())
		printFile(outPath)
	}
	if showStats {
		printSetStats(resolved, parseElapsed+resolveElapsed)
	}
	return nil
}

// resolveSet runs DependenciesOf with resolve events around it.
func (c *CLI) resolveSet(ctx context.Context, set *lockfile.Set, manifest *lockfile.Manifest, opts lockfile.ResolveOptions) (*lockfile.Set, time.Duration, error) {
	root := manifest.Name
	if root == "" {
		root = "."
	}

	observability.Lockfile().OnResolveStart(ctx, set.Format().String(), root)
	start := time.Now()

	resolved, err := set.DependenciesOf(manifest, opts)

	elapsed := time.Since(start)
	if err != nil {
		observability.Lockfile().OnResolveComplete(ctx, set.Format().String(), root, 0, elapsed, err)
		return nil, elapsed, err
	}
	observability.Lockfile().OnResolveComplete(ctx, set.Format().String(), root, resolved.Len(), elapsed, nil)
	return resolved, elapsed, nil
}
