package lockfile

import (
	"encoding/json"
	"iter"
	"strings"

	"github.com/matzehuels/lockset/pkg/errors"
)

// npmLock holds the packages table of a parsed package-lock.json,
// keyed by filesystem-style path ("", "node_modules/lodash",
// "packages/app/node_modules/@babel/core", ...).
type npmLock struct {
	Packages map[string]npmPackage
}

// parseNpmLock decodes a package-lock.json or npm-shrinkwrap.json.
// Only lockfileVersion >= 2 files carry the flat packages table this
// package works with; v1 files fail with a parse error rather than
// silently yielding nothing.
func parseNpmLock(content []byte) (*npmLock, error) {
	var doc npmLockfile
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "invalid npm lockfile")
	}
	if doc.Packages == nil {
		return nil, errors.New(errors.ErrCodeParse,
			"npm lockfile has no packages table (lockfileVersion %v predates v2)", doc.LockfileVersion)
	}
	return &npmLock{Packages: doc.Packages}, nil
}

// parseNpmKey extracts the package name from a packages-table path.
// The name is the last path segment, or the last two joined when the
// second-to-last is an @scope. Paths without a node_modules component
// (the "" root entry and bare workspace definitions) return "".
//
//	parseNpmKey("node_modules/@babel/core")                  -> "@babel/core"
//	parseNpmKey("packages/app/node_modules/lodash")          -> "lodash"
//	parseNpmKey("node_modules/a/node_modules/b")             -> "b"
//	parseNpmKey("packages/app")                              -> ""
func parseNpmKey(path string) string {
	if !strings.Contains(path, "node_modules/") {
		return ""
	}
	segs := strings.Split(path, "/")
	last := segs[len(segs)-1]
	if prev := segs[len(segs)-2]; strings.HasPrefix(prev, "@") {
		return prev + "/" + last
	}
	return last
}

// dependencies yields every installed package entry once per path.
// Link entries and entries without a version (workspace symlinks) are
// skipped.
func (l *npmLock) dependencies() iter.Seq[Dependency] {
	return func(yield func(Dependency) bool) {
		for path, pkg := range l.Packages {
			if pkg.Link || pkg.Version == "" {
				continue
			}
			name := parseNpmKey(path)
			if name == "" {
				continue
			}
			d := Dependency{
				Name:      name,
				Version:   pkg.Version,
				Integrity: pkg.Integrity,
				Resolved:  pkg.Resolved,
			}
			if !yield(d) {
				return
			}
		}
	}
}

// lookup finds the record for name following npm's hoisting rules:
// the workspace-local node_modules path first, then the root-hoisted
// path, then any path at all that parses to the name.
func (l *npmLock) lookup(name, workspacePath string) (npmPackage, bool) {
	if workspacePath != "" {
		if pkg, ok := l.at(workspacePath + "/node_modules/" + name); ok {
			return pkg, true
		}
	}
	if pkg, ok := l.at("node_modules/" + name); ok {
		return pkg, true
	}
	for path, pkg := range l.Packages {
		if pkg.Link || pkg.Version == "" {
			continue
		}
		if parseNpmKey(path) == name {
			return pkg, true
		}
	}
	return npmPackage{}, false
}

func (l *npmLock) at(path string) (npmPackage, bool) {
	pkg, ok := l.Packages[path]
	if !ok || pkg.Link || pkg.Version == "" {
		return npmPackage{}, false
	}
	return pkg, true
}

// npmLockfile mirrors the package-lock.json wire format (v2/v3).
type npmLockfile struct {
	Name            string                `json:"name"`
	LockfileVersion any                   `json:"lockfileVersion"`
	Packages        map[string]npmPackage `json:"packages"`
}

// npmPackage is one packages-table entry.
type npmPackage struct {
	Version              string            `json:"version"`
	Resolved             string            `json:"resolved"`
	Integrity            string            `json:"integrity"`
	Link                 bool              `json:"link"`
	Dependencies         map[string]string `json:"dependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
}
