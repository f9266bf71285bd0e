package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/lockset/pkg/errors"
	"github.com/matzehuels/lockset/pkg/lockfile"
)

var (
	diffAddStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	diffRemoveStyle = lipgloss.NewStyle().Foreground(colorRed)
)

// diffCommand creates the diff command for comparing two lockfiles.
func (c *CLI) diffCommand() *cobra.Command {
	var (
		outputMode string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "diff <old-lockfile> <new-lockfile>",
		Short: "Compare two lockfiles",
		Long: `Compare two lockfiles.

Lists the name@version records present in only one of the two files.
A version bump shows up as one removal plus one addition. The files may
use different formats, so a migration from npm to pnpm diffs cleanly.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDiff(cmd.Context(), args[0], args[1], outputMode, outPath)
		},
	}

	cmd.Flags().StringVarP(&outputMode, "output", "o", "table", "output mode: table, json")
	cmd.Flags().StringVar(&outPath, "out", "", "write to file instead of stdout")

	return cmd
}

// runDiff parses both files and reports the set differences.
func (c *CLI) runDiff(ctx context.Context, oldPath, newPath, outputMode, outPath string) error {
	prog := newProgress(c.Logger)

	oldSet, _, err := c.loadSet(ctx, oldPath, "")
	if err != nil {
		return err
	}
	newSet, _, err := c.loadSet(ctx, newPath, "")
	if err != nil {
		return err
	}

	added := newSet.Difference(oldSet)
	removed := oldSet.Difference(newSet)
	unchanged := newSet.Intersect(oldSet)
	prog.done(fmt.Sprintf("Compared %d and %d records", oldSet.Len(), newSet.Len()))

	switch outputMode {
	case "table":
		printDiff(added, removed, unchanged.Len())
		return nil
	case "json":
		return writeDiffJSON(oldPath, newPath, oldSet, newSet, added, removed, unchanged.Len(), outPath)
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "unknown output mode %q (supported: table, json)", outputMode)
	}
}

// printDiff renders the comparison as colored +/- lines.
func printDiff(added, removed *lockfile.Set, unchanged int) {
	if added.Len() == 0 && removed.Len() == 0 {
		printSuccess("Lockfiles record the same %d dependencies", unchanged)
		return
	}

	for _, d := range sortDeps(removed) {
		fmt.Println(diffRemoveStyle.Render("- " + d.Key()))
	}
	for _, d := range sortDeps(added) {
		fmt.Println(diffAddStyle.Render("+ " + d.Key()))
	}

	fmt.Println()
	printDetail("%d added, %d removed, %d unchanged", added.Len(), removed.Len(), unchanged)
}

// diffSide describes one input file in the JSON document.
type diffSide struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Count  int    `json:"count"`
}

// diffDocument is the JSON wire format of a comparison.
type diffDocument struct {
	Old       diffSide              `json:"old"`
	New       diffSide              `json:"new"`
	Added     []lockfile.Dependency `json:"added"`
	Removed   []lockfile.Dependency `json:"removed"`
	Unchanged int                   `json:"unchanged"`
}

func writeDiffJSON(oldPath, newPath string, oldSet, newSet, added, removed *lockfile.Set, unchanged int, outPath string) error {
	out, err := openOutput(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	doc := diffDocument{
		Old:       diffSide{Path: oldPath, Format: oldSet.Format().String(), Count: oldSet.Len()},
		New:       diffSide{Path: newPath, Format: newSet.Format().String(), Count: newSet.Len()},
		Added:     sortDeps(added),
		Removed:   sortDeps(removed),
		Unchanged: unchanged,
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode diff: %w", err)
	}
	if outPath != "" {
		printSuccess("Compared %s and %s", oldPath, newPath)
		printFile(outPath)
	}
	return nil
}
