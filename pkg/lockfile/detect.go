package lockfile

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/lockset/pkg/errors"
)

// lockfileNames maps well-known lockfile basenames to their format.
// yarn.lock is deliberately absent: classic and berry share the name and
// only content can tell them apart.
var lockfileNames = map[string]Format{
	"package-lock.json":   FormatNpm,
	"npm-shrinkwrap.json": FormatNpm,
	"pnpm-lock.yaml":      FormatPnpm,
	"pnpm-lock.yml":       FormatPnpm,
	"shrinkwrap.yaml":     FormatPnpm,
}

// LockfileNames returns the well-known lockfile basenames, sorted.
// yarn.lock covers both yarn formats; content decides between them.
func LockfileNames() []string {
	names := make([]string, 0, len(lockfileNames)+1)
	for name := range lockfileNames {
		names = append(names, name)
	}
	names = append(names, "yarn.lock")
	slices.Sort(names)
	return names
}

// DetectFormat classifies lockfile content. Content structure is
// authoritative; pathHint is consulted only when content is empty and for
// error messages. The probes run in a fixed order:
//
//  1. JSON object with a lockfileVersion or packages field -> npm.
//     JSON is checked before YAML because every JSON document is also
//     valid YAML and would otherwise be misclassified.
//  2. YAML mapping with a top-level __metadata field -> yarn berry.
//  3. YAML mapping with lockfileVersion or shrinkwrapVersion -> pnpm.
//  4. Content that parses under the yarn v1 grammar -> yarn classic.
//
// Each probe inspects decoded structure, never raw substrings, so a
// package name embedding a format marker cannot spoof detection.
func DetectFormat(content []byte, pathHint string) (Format, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		if f, ok := lockfileNames[filepath.Base(pathHint)]; ok {
			return f, nil
		}
		return "", errors.New(errors.ErrCodeDetection,
			"cannot detect lockfile format%s: no content to inspect", forHint(pathHint))
	}

	if probeNpm(content) {
		return FormatNpm, nil
	}
	if f, ok := probeYAML(content); ok {
		return f, nil
	}
	if probeYarnClassic(content) {
		return FormatYarnClassic, nil
	}

	return "", errors.New(errors.ErrCodeDetection,
		"cannot detect lockfile format%s: content matches none of npm, pnpm, yarn-classic, yarn-berry",
		forHint(pathHint))
}

func forHint(pathHint string) string {
	if pathHint == "" {
		return ""
	}
	return " for " + pathHint
}

// probeNpm reports whether content is a JSON object shaped like an npm
// lockfile. Decoding errors mean "not npm", never a parse failure: the
// detector only classifies, the parser validates.
func probeNpm(content []byte) bool {
	var doc struct {
		LockfileVersion json.RawMessage `json:"lockfileVersion"`
		Packages        json.RawMessage `json:"packages"`
	}
	if err := json.Unmarshal(content, &doc); err != nil {
		return false
	}
	return doc.LockfileVersion != nil || doc.Packages != nil
}

// probeYAML distinguishes the two YAML formats by their structural
// markers: a top-level __metadata mapping is unique to yarn berry, a
// lockfileVersion/shrinkwrapVersion field to pnpm.
func probeYAML(content []byte) (Format, bool) {
	var doc struct {
		LockfileVersion   *yaml.Node `yaml:"lockfileVersion"`
		ShrinkwrapVersion *yaml.Node `yaml:"shrinkwrapVersion"`
		Metadata          *yaml.Node `yaml:"__metadata"`
	}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return "", false
	}
	switch {
	case doc.Metadata != nil:
		return FormatYarnBerry, true
	case doc.LockfileVersion != nil || doc.ShrinkwrapVersion != nil:
		return FormatPnpm, true
	}
	return "", false
}

// probeYarnClassic reports whether content parses under the yarn v1
// grammar. An empty file counts only when the parser saw the v1 marker
// in a leading comment.
func probeYarnClassic(content []byte) bool {
	lock, err := parseYarnClassic(content)
	if err != nil {
		return false
	}
	return len(lock.Entries) > 0 || lock.headerSeen
}
