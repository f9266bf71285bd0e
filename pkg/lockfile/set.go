package lockfile

import (
	"iter"
	"maps"
	"os"

	"github.com/matzehuels/lockset/pkg/errors"
)

// lockData bundles the format-specific raw tables a traversable set
// retains. Exactly one field is non-nil.
type lockData struct {
	npm   *npmLock
	pnpm  *pnpmLock
	yarn  *yarnLock
	berry *berryLock
}

func (d *lockData) dependencies() iter.Seq[Dependency] {
	switch {
	case d.npm != nil:
		return d.npm.dependencies()
	case d.pnpm != nil:
		return d.pnpm.dependencies()
	case d.yarn != nil:
		return d.yarn.dependencies()
	case d.berry != nil:
		return d.berry.dependencies()
	}
	return func(func(Dependency) bool) {}
}

// parseLock parses content whose format is already known.
func parseLock(content []byte, format Format) (*lockData, error) {
	switch format {
	case FormatNpm:
		lock, err := parseNpmLock(content)
		if err != nil {
			return nil, err
		}
		return &lockData{npm: lock}, nil
	case FormatPnpm:
		lock, err := parsePnpmLock(content)
		if err != nil {
			return nil, err
		}
		return &lockData{pnpm: lock}, nil
	case FormatYarnClassic:
		lock, err := parseYarnClassic(content)
		if err != nil {
			return nil, err
		}
		return &lockData{yarn: lock}, nil
	case FormatYarnBerry:
		lock, err := parseBerryLock(content)
		if err != nil {
			return nil, err
		}
		return &lockData{berry: lock}, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown lockfile format %q", format)
}

// Set is an immutable collection of the dependencies recorded in one
// lockfile, keyed by "name@version". Sets built by FromContent or
// FromFile additionally retain the raw lockfile tables and can answer
// DependenciesOf; sets derived through algebra or resolution cannot
// (see CanTraverse).
//
// A Set is never mutated after construction and is safe for concurrent
// reads.
type Set struct {
	format      Format
	deps        map[string]Dependency
	data        *lockData
	traversable bool
}

// ParseOptions controls lockfile parsing.
type ParseOptions struct {
	// Format skips content detection when set.
	Format Format

	// PathHint is the lockfile's path or name. Detection stays
	// content-driven; the hint only resolves empty files and improves
	// error messages.
	PathHint string
}

// FromContent parses lockfile content into a traversable Set. The
// format is detected from the content unless opts.Format pins it.
// Parsing is all-or-nothing: structurally invalid content yields a
// PARSE_FAILED error and no partial set.
func FromContent(content []byte, opts ParseOptions) (*Set, error) {
	format := opts.Format
	if format == "" {
		detected, err := DetectFormat(content, opts.PathHint)
		if err != nil {
			return nil, err
		}
		format = detected
	}

	data, err := parseLock(content, format)
	if err != nil {
		return nil, err
	}

	deps := make(map[string]Dependency)
	for d := range data.dependencies() {
		if _, ok := deps[d.Key()]; !ok {
			deps[d.Key()] = d
		}
	}
	return &Set{format: format, deps: deps, data: data, traversable: true}, nil
}

// FromFile reads path and parses it, with the filename as detection
// hint.
func FromFile(path string) (*Set, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "lockfile not found: %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "reading lockfile %s", path)
	}
	return FromContent(content, ParseOptions{PathHint: path})
}

// Extract parses content and returns a lazy stream of its dependency
// records without building a Set. An empty format triggers content
// detection. The sequence walks the tables of this one parse; call
// Extract again for a fresh pass.
func Extract(content []byte, format Format) (iter.Seq[Dependency], error) {
	if format == "" {
		detected, err := DetectFormat(content, "")
		if err != nil {
			return nil, err
		}
		format = detected
	}
	data, err := parseLock(content, format)
	if err != nil {
		return nil, err
	}
	return data.dependencies(), nil
}

// Len returns the number of distinct name@version records.
func (s *Set) Len() int { return len(s.deps) }

// Format returns the lockfile format the set was parsed from. Derived
// sets keep the left operand's format.
func (s *Set) Format() Format { return s.format }

// CanTraverse reports whether DependenciesOf can run on this set. Only
// sets parsed directly from a lockfile keep the raw tables resolution
// needs.
func (s *Set) CanTraverse() bool { return s.traversable }

// Has reports whether a "name@version" key is present.
func (s *Set) Has(key string) bool {
	_, ok := s.deps[key]
	return ok
}

// Get returns the record stored under a "name@version" key.
func (s *Set) Get(key string) (Dependency, bool) {
	d, ok := s.deps[key]
	return d, ok
}

// Keys yields the "name@version" keys in unspecified order.
func (s *Set) Keys() iter.Seq[string] { return maps.Keys(s.deps) }

// All yields the dependency records in unspecified order.
func (s *Set) All() iter.Seq[Dependency] { return maps.Values(s.deps) }

// PnpmEra returns the lockfile era for sets parsed from a pnpm
// lockfile, and false for every other set.
func (s *Set) PnpmEra() (PnpmEra, bool) {
	if s.data == nil || s.data.pnpm == nil {
		return PnpmEra{}, false
	}
	return s.data.pnpm.Era, true
}

// Union returns a new set holding every record from both sets. When the
// same key carries different metadata the receiver's record wins. The
// result is not traversable.
func (s *Set) Union(other *Set) *Set {
	deps := make(map[string]Dependency, len(s.deps)+other.Len())
	maps.Copy(deps, other.deps)
	maps.Copy(deps, s.deps)
	return &Set{format: s.format, deps: deps}
}

// Intersect returns the records whose keys appear in both sets, taking
// the receiver's copy. The result is not traversable.
func (s *Set) Intersect(other *Set) *Set {
	deps := make(map[string]Dependency)
	for key, d := range s.deps {
		if other.Has(key) {
			deps[key] = d
		}
	}
	return &Set{format: s.format, deps: deps}
}

// Difference returns the receiver's records whose keys are absent from
// other. The result is not traversable.
func (s *Set) Difference(other *Set) *Set {
	deps := make(map[string]Dependency)
	for key, d := range s.deps {
		if !other.Has(key) {
			deps[key] = d
		}
	}
	return &Set{format: s.format, deps: deps}
}

// IsSubsetOf reports whether every key of s is present in other.
func (s *Set) IsSubsetOf(other *Set) bool {
	if s.Len() > other.Len() {
		return false
	}
	for key := range s.deps {
		if !other.Has(key) {
			return false
		}
	}
	return true
}

// IsSupersetOf reports whether every key of other is present in s.
func (s *Set) IsSupersetOf(other *Set) bool { return other.IsSubsetOf(s) }

// IsDisjointFrom reports whether the sets share no key.
func (s *Set) IsDisjointFrom(other *Set) bool {
	small, large := s, other
	if small.Len() > large.Len() {
		small, large = large, small
	}
	for key := range small.deps {
		if large.Has(key) {
			return false
		}
	}
	return true
}
