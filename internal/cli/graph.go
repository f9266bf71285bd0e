package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/lockset/pkg/depgraph"
	"github.com/matzehuels/lockset/pkg/errors"
	"github.com/matzehuels/lockset/pkg/export"
	"github.com/matzehuels/lockset/pkg/lockfile"
)

// graphCommand creates the graph command for rendering dependency graphs.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		manifestPath string
		formatStr    string
		outPath      string
		detailed     bool
	)
	var opts lockfile.ResolveOptions

	cmd := &cobra.Command{
		Use:   "graph [lockfile]",
		Short: "Render the dependency graph of a project",
		Long: `Render the dependency graph of a project.

Builds the graph of who-depends-on-whom from the lockfile, rooted at
the project in package.json, and emits it as Graphviz DOT text or a
rendered SVG or PNG image. Diamond dependencies converge on a single
node per package.

DOT output goes to stdout unless --out is set. Image output defaults
to deps.svg or deps.png in the current directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return c.runGraph(cmd.Context(), path, manifestPath, formatStr, outPath, detailed, opts)
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "package.json", "package.json naming the graph root")
	cmd.Flags().StringVarP(&formatStr, "format", "f", "dot", "output format: dot, svg, png")
	cmd.Flags().StringVar(&outPath, "out", "", "output file")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include integrity and resolution URLs in node labels")
	cmd.Flags().StringVar(&opts.WorkspacePath, "workspace", "", "workspace path (pnpm importer or npm workspace directory)")
	cmd.Flags().BoolVar(&opts.Dev, "dev", false, "include devDependencies")
	cmd.Flags().BoolVar(&opts.Peer, "peer", false, "include peerDependencies")
	cmd.Flags().BoolVar(&opts.NoOptional, "no-optional", false, "exclude optionalDependencies")

	return cmd
}

// runGraph builds the graph and writes it in the selected format.
func (c *CLI) runGraph(ctx context.Context, path, manifestPath, formatStr, outPath string, detailed bool, opts lockfile.ResolveOptions) error {
	formatStr = strings.ToLower(formatStr)
	switch formatStr {
	case "dot", "svg", "png":
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "unknown graph format %q (supported: dot, svg, png)", formatStr)
	}

	path, ok, err := c.resolveLockfilePath(path)
	if err != nil {
		return err
	}
	if !ok {
		printDetail("No lockfile selected")
		return nil
	}

	set, _, err := c.loadSet(ctx, path, "")
	if err != nil {
		return err
	}
	manifest, err := lockfile.ReadManifest(manifestPath)
	if err != nil {
		return err
	}

	g, err := depgraph.Build(set, manifest, opts)
	if err != nil {
		return err
	}
	c.Logger.Debug("built graph", "nodes", g.NodeCount(), "edges", g.EdgeCount())

	dot := export.ToDOT(g, export.DOTOptions{Detailed: detailed})

	if formatStr == "dot" {
		out, err := openOutput(outPath)
		if err != nil {
			return err
		}
		defer out.Close()
		if _, err := fmt.Fprint(out, dot); err != nil {
			return fmt.Errorf("write dot: %w", err)
		}
		if outPath != "" {
			printSuccess("Graphed %d nodes, %d edges", g.NodeCount(), g.EdgeCount())
			printFile(outPath)
		}
		return nil
	}

	if outPath == "" {
		outPath = "deps." + formatStr
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s...", formatStr))
	spinner.Start()

	var data []byte
	switch formatStr {
	case "svg":
		data, err = export.RenderSVG(dot)
	case "png":
		data, err = export.RenderPNG(dot)
	}
	if err != nil {
		spinner.StopWithError("Rendering failed")
		return err
	}
	spinner.Stop()

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	printSuccess("Graphed %d nodes, %d edges", g.NodeCount(), g.EdgeCount())
	printFile(outPath)
	return nil
}
