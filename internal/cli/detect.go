package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// detectCommand creates the detect command for identifying a lockfile.
func (c *CLI) detectCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "detect [lockfile]",
		Short: "Identify a lockfile's format",
		Long: `Identify a lockfile's format.

Detection reads the content, not the file name: a yarn.lock is split
into classic or berry by its structure, and pnpm files additionally
report which era of the format they use (shrinkwrap through v9).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return c.runDetect(cmd.Context(), path, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the result as JSON")

	return cmd
}

// detectResult is the JSON wire format of a detection.
type detectResult struct {
	Path         string `json:"path"`
	Format       string `json:"format"`
	Era          string `json:"era,omitempty"`
	EraVersion   string `json:"eraVersion,omitempty"`
	Dependencies int    `json:"dependencies"`
}

// runDetect parses the file and reports what it is.
func (c *CLI) runDetect(ctx context.Context, path string, jsonOut bool) error {
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

	res := detectResult{
		Path:         path,
		Format:       set.Format().String(),
		Dependencies: set.Len(),
	}
	if era, found := set.PnpmEra(); found {
		res.Era = era.Kind.String()
		res.EraVersion = era.Version
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	printKeyValue("Path", res.Path)
	printKeyValue("Format", res.Format)
	if res.Era != "" {
		printKeyValue("Era", fmt.Sprintf("%s (lockfileVersion %s)", res.Era, res.EraVersion))
	}
	printKeyValue("Packages", fmt.Sprintf("%d", res.Dependencies))
	return nil
}
