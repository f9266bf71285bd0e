package lockfile

import (
	"iter"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/lockset/pkg/errors"
)

// berryLock holds the entries of a yarn berry (v2+) lockfile, keyed by
// the raw descriptor list.
type berryLock struct {
	Entries map[string]berryEntry
}

// berryEntry is one resolved package block.
type berryEntry struct {
	Version              string            `yaml:"version"`
	Resolution           string            `yaml:"resolution"`
	Checksum             string            `yaml:"checksum"`
	Dependencies         map[string]string `yaml:"dependencies"`
	OptionalDependencies map[string]string `yaml:"optionalDependencies"`
}

// parseBerryLock parses a berry lockfile. The document is YAML with one
// mapping per descriptor plus a __metadata block; the block's shape
// differs from package entries, so it is skipped before decoding.
func parseBerryLock(content []byte) (*berryLock, error) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "invalid yarn berry lockfile")
	}

	lock := &berryLock{Entries: make(map[string]berryEntry, len(doc))}
	for key, node := range doc {
		if key == "__metadata" {
			continue
		}
		var e berryEntry
		if err := node.Decode(&e); err != nil {
			return nil, errors.Wrap(errors.ErrCodeParse, err, "invalid yarn berry entry %q", key)
		}
		lock.Entries[normalizeYarnKey(key)] = e
	}
	return lock, nil
}

// berryProtocols are the resolution protocols a descriptor can carry.
var berryProtocols = []string{"npm", "workspace", "portal", "link", "patch", "file"}

// localBerryProtocols mark entries that live in the repository itself
// rather than coming from a registry.
var localBerryProtocols = map[string]bool{
	"workspace": true,
	"portal":    true,
	"link":      true,
}

// parseBerryIdent splits a single berry descriptor or resolution into
// package name and protocol. The earliest protocol marker wins: patch
// descriptors embed a nested @npm: marker further along the string, and
// naming must follow the outer protocol.
//
//	parseBerryIdent("string-width@npm:4.2.3")                        -> ("string-width", "npm")
//	parseBerryIdent("@babel/core@npm:^7.0.0")                        -> ("@babel/core", "npm")
//	parseBerryIdent("typescript@patch:typescript@npm%3A5.3.3#~/...") -> ("typescript", "patch")
//
// Descriptors without any marker fall back to the v1 name grammar with
// an empty protocol.
func parseBerryIdent(ref string) (name, protocol string) {
	best := -1
	for _, p := range berryProtocols {
		marker := "@" + p + ":"
		if i := strings.Index(ref, marker); i > 0 && (best < 0 || i < best) {
			best = i
			protocol = p
		}
	}
	if best < 0 {
		return parseYarnKey(ref), ""
	}
	return ref[:best], protocol
}

// parseBerryKey extracts name and protocol from an entry key, using
// only the first comma-separated descriptor.
func parseBerryKey(key string) (name, protocol string) {
	first := key
	if i := strings.IndexByte(first, ','); i >= 0 {
		first = first[:i]
	}
	return parseBerryIdent(strings.Trim(strings.TrimSpace(first), `"`))
}

// canonicalName returns the real package name and protocol of an entry.
// The resolution field wins when present: an aliased key names the
// alias, while the resolution always names the actual package.
func (e berryEntry) canonicalName(key string) (name, protocol string) {
	if e.Resolution != "" {
		return parseBerryIdent(e.Resolution)
	}
	return parseBerryKey(key)
}

// dependencies yields one record per registry-backed entry. Workspace,
// portal and link entries point at local directories and are dropped.
func (l *berryLock) dependencies() iter.Seq[Dependency] {
	return func(yield func(Dependency) bool) {
		for key, e := range l.Entries {
			if e.Version == "" {
				continue
			}
			name, protocol := e.canonicalName(key)
			if name == "" || localBerryProtocols[protocol] {
				continue
			}
			d := Dependency{
				Name:      name,
				Version:   e.Version,
				Integrity: e.Checksum,
			}
			if !yield(d) {
				return
			}
		}
	}
}

// lookup returns the first registry-backed entry whose canonical name
// matches.
func (l *berryLock) lookup(name string) (berryEntry, bool) {
	for key, e := range l.Entries {
		if e.Version == "" {
			continue
		}
		n, protocol := e.canonicalName(key)
		if localBerryProtocols[protocol] {
			continue
		}
		if n == name {
			return e, true
		}
	}
	return berryEntry{}, false
}
