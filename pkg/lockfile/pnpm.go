package lockfile

import (
	"fmt"
	"iter"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/lockset/pkg/errors"
)

// PnpmEraKind enumerates the historical pnpm-lock.yaml layouts.
type PnpmEraKind int

// Pnpm lockfile eras, oldest first.
const (
	PnpmEraUnknown PnpmEraKind = iota
	PnpmEraShrinkwrap
	PnpmEraV5
	PnpmEraV5Inline
	PnpmEraV6
	PnpmEraV9
)

// String returns a short era label.
func (k PnpmEraKind) String() string {
	switch k {
	case PnpmEraShrinkwrap:
		return "shrinkwrap"
	case PnpmEraV5:
		return "v5"
	case PnpmEraV5Inline:
		return "v5-inline"
	case PnpmEraV6:
		return "v6"
	case PnpmEraV9:
		return "v9"
	}
	return "unknown"
}

// PnpmEra is the detected lockfile era together with the raw version
// value it was derived from.
type PnpmEra struct {
	Kind    PnpmEraKind
	Version string
}

// IsShrinkwrap reports whether the file predates the pnpm-lock.yaml name.
func (e PnpmEra) IsShrinkwrap() bool { return e.Kind == PnpmEraShrinkwrap }

// AtSeparator reports whether package keys separate name and version
// with "@" instead of "/".
func (e PnpmEra) AtSeparator() bool { return e.Kind == PnpmEraV6 || e.Kind == PnpmEraV9 }

// SplitSnapshots reports whether dependency edges live in a separate
// snapshots table.
func (e PnpmEra) SplitSnapshots() bool { return e.Kind == PnpmEraV9 }

// InlineSpecifiers reports whether importer entries carry
// {specifier, version} objects instead of plain version strings.
func (e PnpmEra) InlineSpecifiers() bool {
	return e.Kind == PnpmEraV5Inline || e.Kind == PnpmEraV6 || e.Kind == PnpmEraV9
}

// LeadingSlash reports whether package keys start with "/".
func (e PnpmEra) LeadingSlash() bool { return e.Kind != PnpmEraV9 }

// detectPnpmEra classifies the lockfile era. The checks are ordered and
// the first match wins: a shrinkwrapVersion field marks the pre-v5
// layout, a numeric lockfileVersion is v5, and string versions are told
// apart by their markers. Anything else, including an absent version,
// is Unknown and treated like v5 for key parsing.
func detectPnpmEra(lockfileVersion, shrinkwrapVersion any) PnpmEra {
	if shrinkwrapVersion != nil {
		return PnpmEra{Kind: PnpmEraShrinkwrap, Version: fmt.Sprint(shrinkwrapVersion)}
	}
	switch v := lockfileVersion.(type) {
	case int, int64, float64:
		return PnpmEra{Kind: PnpmEraV5, Version: fmt.Sprint(v)}
	case string:
		switch {
		case strings.Contains(v, "inlineSpecifiers"):
			return PnpmEra{Kind: PnpmEraV5Inline, Version: v}
		case strings.HasPrefix(v, "9"):
			return PnpmEra{Kind: PnpmEraV9, Version: v}
		case strings.HasPrefix(v, "6"):
			return PnpmEra{Kind: PnpmEraV6, Version: v}
		}
		return PnpmEra{Kind: PnpmEraUnknown, Version: v}
	}
	return PnpmEra{Kind: PnpmEraUnknown}
}

// pnpmLock holds the parsed tables of a pnpm-lock.yaml.
type pnpmLock struct {
	Era       PnpmEra
	Packages  map[string]pnpmPackage
	Snapshots map[string]pnpmSnapshot
	Importers map[string]pnpmImporter
}

// parsePnpmLock decodes a pnpm-lock.yaml (or shrinkwrap.yaml) of any era.
// Single-project v5 and shrinkwrap files record the root project's
// dependencies at the top level instead of an importers table; those are
// folded in as the "." importer so resolution treats every era alike.
func parsePnpmLock(content []byte) (*pnpmLock, error) {
	var doc pnpmDocument
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "invalid pnpm lockfile")
	}

	lock := &pnpmLock{
		Era:       detectPnpmEra(doc.LockfileVersion, doc.ShrinkwrapVersion),
		Packages:  doc.Packages,
		Snapshots: doc.Snapshots,
		Importers: doc.Importers,
	}
	if len(lock.Importers) == 0 &&
		(doc.Dependencies != nil || doc.DevDependencies != nil || doc.OptionalDependencies != nil) {
		lock.Importers = map[string]pnpmImporter{".": {
			Dependencies:         doc.Dependencies,
			DevDependencies:      doc.DevDependencies,
			OptionalDependencies: doc.OptionalDependencies,
		}}
	}
	return lock, nil
}

// parsePnpmSpec decodes a packages-table key into name and version.
//
// Keys look like "/@babel/core@7.23.0" (v6), "/@babel/core/7.23.0"
// (v5 and older), or "@babel/core@7.23.0" (v9, no leading slash), all
// optionally followed by a peer annotation in parentheses; v5 appends
// peer suffixes with "_" instead. The last separator wins so scoped
// names parse correctly. link: and file: specs describe local packages
// and report ok == false, whether the marker leads the key or sits in
// its version half.
func parsePnpmSpec(spec string, era PnpmEra) (name, version string, ok bool) {
	if strings.HasPrefix(spec, "link:") || strings.HasPrefix(spec, "file:") {
		return "", "", false
	}
	s := strings.TrimPrefix(spec, "/")
	if i := strings.Index(s, "("); i >= 0 {
		s = s[:i]
	}

	var idx int
	if era.AtSeparator() {
		idx = strings.LastIndex(s, "@")
	} else {
		idx = strings.LastIndex(s, "/")
		if strings.HasPrefix(s, "@") && strings.Count(s, "/") < 2 {
			// A scoped name needs its own slash plus the separator.
			return "", "", false
		}
	}
	if idx <= 0 || idx == len(s)-1 {
		return "", "", false
	}

	name, version = s[:idx], s[idx+1:]
	if !era.AtSeparator() {
		if i := strings.Index(version, "_"); i >= 0 {
			version = version[:i]
		}
	}
	if name == "" || version == "" || isLocalSpec(version) {
		return "", "", false
	}
	return name, version, true
}

// dependencies yields one record per packages-table entry. Importers are
// not packages and never appear here; link:/file: keys are dropped by
// parsePnpmSpec.
func (l *pnpmLock) dependencies() iter.Seq[Dependency] {
	return func(yield func(Dependency) bool) {
		for spec, pkg := range l.Packages {
			name, version, ok := parsePnpmSpec(spec, l.Era)
			if !ok {
				continue
			}
			d := Dependency{
				Name:      name,
				Version:   version,
				Integrity: pkg.Resolution.Integrity,
				Resolved:  pkg.Resolution.Tarball,
			}
			if !yield(d) {
				return
			}
		}
	}
}

// packageKey rebuilds the packages-table key for name@version under the
// lockfile's era.
func (l *pnpmLock) packageKey(name, version string) string {
	switch {
	case !l.Era.AtSeparator():
		return "/" + name + "/" + version
	case l.Era.LeadingSlash():
		return "/" + name + "@" + version
	default:
		return name + "@" + version
	}
}

// entryDeps returns the dependency maps recorded for name at version.
// rawVersion may still carry a peer suffix; both the suffixed and the
// cleaned key are tried, against snapshots first in v9 lockfiles where
// the edges live there.
func (l *pnpmLock) entryDeps(name, rawVersion, version string) (deps, optional map[string]string, ok bool) {
	keys := []string{l.packageKey(name, rawVersion)}
	if version != rawVersion {
		keys = append(keys, l.packageKey(name, version))
	}
	for _, key := range keys {
		if l.Era.SplitSnapshots() {
			if snap, found := l.Snapshots[key]; found {
				return snap.Dependencies, snap.OptionalDependencies, true
			}
		}
		if pkg, found := l.Packages[key]; found {
			return pkg.Dependencies, pkg.OptionalDependencies, true
		}
	}
	return nil, nil, false
}

// cleanVersion strips the peer-dependency annotation from a recorded
// version: "1.2.3(react@18.2.0)" everywhere, plus "1.2.3_react@18.2.0"
// in the slash-separated eras.
func (l *pnpmLock) cleanVersion(v string) string {
	if i := strings.Index(v, "("); i >= 0 {
		v = v[:i]
	}
	if !l.Era.AtSeparator() {
		if i := strings.Index(v, "_"); i >= 0 {
			v = v[:i]
		}
	}
	return v
}

// pinnedVersion returns the exact version the importer records for name,
// regardless of which dependency section it sits in. Seeding decides
// which sections contribute names; the pin lookup is section-blind.
func (imp pnpmImporter) pinnedVersion(name string) string {
	for _, m := range []map[string]pnpmImporterDep{
		imp.Dependencies, imp.OptionalDependencies, imp.DevDependencies, imp.PeerDependencies,
	} {
		if d, ok := m[name]; ok && d.Version != "" {
			return d.Version
		}
	}
	return ""
}

// isLocalSpec reports whether a recorded version points at a local
// directory rather than a registry package.
func isLocalSpec(v string) bool {
	return strings.HasPrefix(v, "link:") ||
		strings.HasPrefix(v, "file:") ||
		strings.HasPrefix(v, "workspace:")
}

// pnpmDocument mirrors the pnpm-lock.yaml wire format across eras.
// The top-level dependency maps only occur in single-project files
// before v6.
type pnpmDocument struct {
	LockfileVersion   any                     `yaml:"lockfileVersion"`
	ShrinkwrapVersion any                     `yaml:"shrinkwrapVersion"`
	Importers         map[string]pnpmImporter `yaml:"importers"`
	Packages          map[string]pnpmPackage  `yaml:"packages"`
	Snapshots         map[string]pnpmSnapshot `yaml:"snapshots"`

	Dependencies         map[string]pnpmImporterDep `yaml:"dependencies"`
	DevDependencies      map[string]pnpmImporterDep `yaml:"devDependencies"`
	OptionalDependencies map[string]pnpmImporterDep `yaml:"optionalDependencies"`
}

// pnpmPackage is one packages-table entry.
type pnpmPackage struct {
	Resolution           pnpmResolution    `yaml:"resolution"`
	Dependencies         map[string]string `yaml:"dependencies"`
	OptionalDependencies map[string]string `yaml:"optionalDependencies"`
}

// pnpmResolution carries the artifact coordinates of a package entry.
type pnpmResolution struct {
	Integrity string `yaml:"integrity"`
	Tarball   string `yaml:"tarball"`
}

// pnpmSnapshot is one snapshots-table entry (v9).
type pnpmSnapshot struct {
	Dependencies         map[string]string `yaml:"dependencies"`
	OptionalDependencies map[string]string `yaml:"optionalDependencies"`
}

// pnpmImporter is one workspace project's resolved dependency record.
type pnpmImporter struct {
	Dependencies         map[string]pnpmImporterDep `yaml:"dependencies"`
	DevDependencies      map[string]pnpmImporterDep `yaml:"devDependencies"`
	OptionalDependencies map[string]pnpmImporterDep `yaml:"optionalDependencies"`
	PeerDependencies     map[string]pnpmImporterDep `yaml:"peerDependencies"`
}

// pnpmImporterDep is an importer entry value. Before the inline-specifier
// eras it is a plain version scalar; later eras write a
// {specifier, version} mapping. Both decode into the same struct.
type pnpmImporterDep struct {
	Specifier string
	Version   string
}

func (d *pnpmImporterDep) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return value.Decode(&d.Version)
	case yaml.MappingNode:
		var spec struct {
			Specifier string `yaml:"specifier"`
			Version   string `yaml:"version"`
		}
		if err := value.Decode(&spec); err != nil {
			return err
		}
		d.Specifier, d.Version = spec.Specifier, spec.Version
		return nil
	}
	return fmt.Errorf("line %d: unsupported importer dependency node", value.Line)
}
