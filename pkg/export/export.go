// Package export serializes lockfile sets and dependency graphs for
// consumption outside the tool.
//
// Sets can be written as a JSON document, newline-delimited JSON, or CSV;
// dependency graphs additionally render to Graphviz DOT, SVG, and PNG (see
// [ToDOT], [RenderSVG], and [RenderPNG]). All writers emit dependencies
// sorted by their name@version key so output is stable across runs.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/matzehuels/lockset/pkg/errors"
	"github.com/matzehuels/lockset/pkg/lockfile"
)

// Encoding selects the output serialization for a set.
type Encoding string

// Supported set encodings.
const (
	EncodingJSON   Encoding = "json"
	EncodingNDJSON Encoding = "ndjson"
	EncodingCSV    Encoding = "csv"
)

// ParseEncoding converts a user-supplied encoding name to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "json":
		return EncodingJSON, nil
	case "ndjson":
		return EncodingNDJSON, nil
	case "csv":
		return EncodingCSV, nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat,
		"unknown output encoding %q (supported: json, ndjson, csv)", s)
}

// document is the wire shape of the JSON encoding.
type document struct {
	Format       string                `json:"format"`
	Count        int                   `json:"count"`
	Dependencies []lockfile.Dependency `json:"dependencies"`
}

// sortedDeps returns the set's records ordered by name@version key.
func sortedDeps(set *lockfile.Set) []lockfile.Dependency {
	return slices.SortedFunc(set.All(), func(a, b lockfile.Dependency) int {
		return strings.Compare(a.Key(), b.Key())
	})
}

// WriteJSON encodes a set as a single indented JSON document and writes it
// to w. The document carries the source format and record count alongside
// the dependency list.
func WriteJSON(set *lockfile.Set, w io.Writer) error {
	out := document{
		Format:       set.Format().String(),
		Count:        set.Len(),
		Dependencies: sortedDeps(set),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteNDJSON writes one JSON object per dependency, newline-delimited.
// The stream form suits piping into jq or loading into log tooling.
func WriteNDJSON(set *lockfile.Set, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, d := range sortedDeps(set) {
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("encode %s: %w", d.Key(), err)
		}
	}
	return nil
}

// WriteCSV writes the set as CSV with a header row.
// Columns are name, version, integrity, resolved; the last two are empty
// when the lockfile did not record them.
func WriteCSV(set *lockfile.Set, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "version", "integrity", "resolved"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, d := range sortedDeps(set) {
		if err := cw.Write([]string{d.Name, d.Version, d.Integrity, d.Resolved}); err != nil {
			return fmt.Errorf("write %s: %w", d.Key(), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write serializes the set to w using the given encoding.
func Write(set *lockfile.Set, w io.Writer, enc Encoding) error {
	switch enc {
	case EncodingJSON:
		return WriteJSON(set, w)
	case EncodingNDJSON:
		return WriteNDJSON(set, w)
	case EncodingCSV:
		return WriteCSV(set, w)
	}
	return errors.New(errors.ErrCodeInvalidFormat, "unknown output encoding %q", string(enc))
}

// WriteFile writes the set to a file at path using the given encoding.
// This is a convenience wrapper around [Write] for file-based output.
func WriteFile(set *lockfile.Set, path string, enc Encoding) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return Write(set, f, enc)
}
