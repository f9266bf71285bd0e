package lockfile

import (
	"iter"
	"slices"
	"strings"

	"github.com/matzehuels/lockset/pkg/errors"
)

// ResolveOptions controls DependenciesOf. The zero value resolves
// production dependencies plus optional ones, matching the package
// managers' default install behavior.
type ResolveOptions struct {
	// WorkspacePath selects the workspace whose declared dependencies
	// seed the walk: a pnpm importer path or an npm workspace
	// directory. Empty means the root project.
	WorkspacePath string

	// Dev also seeds devDependencies.
	Dev bool

	// Peer also seeds peerDependencies.
	Peer bool

	// NoOptional leaves optionalDependencies out, both when seeding
	// from the manifest and when expanding transitive entries.
	NoOptional bool
}

// DependenciesOf computes the transitive closure of the manifest's
// declared dependencies within this lockfile. The walk visits each
// package name at most once, so diamond dependencies collapse to a
// single version per name. Names the lockfile cannot resolve are
// dropped silently; a partial install state is not an error.
//
// pnpm sets resolve through the selected importer's exact version pins.
// npm and yarn sets emulate hoisting: the resolved version for a name
// is whatever lookup order finds first, starting from the workspace's
// own node_modules for npm.
//
// Only sets parsed directly from a lockfile can be traversed; calling
// this on an algebra result or a previous closure fails with a
// TRAVERSAL_FAILED error. The returned set is itself not traversable.
func (s *Set) DependenciesOf(manifest *Manifest, opts ResolveOptions) (*Set, error) {
	res, err := s.resolve(manifest, opts)
	if err != nil {
		return nil, err
	}
	return &Set{format: s.format, deps: res.deps}, nil
}

// ResolveEdges reports the dependency edges discovered by the same walk
// [Set.DependenciesOf] runs, as (dependent, dependency) pairs. The
// manifest project itself appears as the dependent of its declared
// seeds, carrying the manifest's name and version. Since each name
// resolves to a single record, diamond dependencies show up as several
// edges into one record. Pairs are ordered by dependent then dependency
// key, so output built from them is stable across runs.
func (s *Set) ResolveEdges(manifest *Manifest, opts ResolveOptions) (iter.Seq2[Dependency, Dependency], error) {
	res, err := s.resolve(manifest, opts)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	edges := make([]resolvedEdge, 0, len(res.claims))
	for _, cl := range res.claims {
		to, ok := res.byName[cl.name]
		if !ok {
			continue
		}
		key := cl.from.Key() + "\x00" + to.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		edges = append(edges, resolvedEdge{from: cl.from, to: to})
	}
	slices.SortFunc(edges, func(a, b resolvedEdge) int {
		if c := strings.Compare(a.from.Key(), b.from.Key()); c != 0 {
			return c
		}
		return strings.Compare(a.to.Key(), b.to.Key())
	})

	return func(yield func(Dependency, Dependency) bool) {
		for _, e := range edges {
			if !yield(e.from, e.to) {
				return
			}
		}
	}, nil
}

// resolution carries everything one closure walk discovers.
type resolution struct {
	deps   map[string]Dependency // resolved records keyed name@version
	byName map[string]Dependency // the record each visited name resolved to
	claims []claim               // declared child names per dependent
}

type claim struct {
	from Dependency
	name string
}

type resolvedEdge struct {
	from, to Dependency
}

func (s *Set) resolve(manifest *Manifest, opts ResolveOptions) (resolution, error) {
	if !s.traversable {
		return resolution{}, errors.New(errors.ErrCodeTraversal,
			"set is not traversable: only sets parsed directly from a lockfile retain the tables resolution needs")
	}
	if manifest == nil {
		return resolution{}, errors.New(errors.ErrCodeTraversal, "manifest must not be nil")
	}

	root := Dependency{Name: manifest.Name, Version: manifest.Version}
	seeds := manifest.declared(opts)
	if s.format == FormatPnpm {
		return s.resolveImporterPinned(root, seeds, opts), nil
	}
	return s.resolveHoisted(root, seeds, opts), nil
}

// resolveImporterPinned walks the closure using a pnpm importer's exact
// version pins. Importer entries that pin a local path (link:, file:,
// workspace:) are skipped; names without a pin fall back to any record
// in the set with that name.
func (s *Set) resolveImporterPinned(root Dependency, seeds []string, opts ResolveOptions) resolution {
	lock := s.data.pnpm
	importerPath := opts.WorkspacePath
	if importerPath == "" {
		importerPath = "."
	}
	// A missing importer leaves every pin lookup empty and the walk
	// falls back to by-name matches.
	importer := lock.Importers[importerPath]

	res := resolution{
		deps:   make(map[string]Dependency),
		byName: make(map[string]Dependency),
	}
	visited := make(map[string]bool)
	queue := append([]string(nil), seeds...)
	for _, n := range seeds {
		res.claims = append(res.claims, claim{from: root, name: n})
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if visited[name] {
			continue
		}
		visited[name] = true

		rawVersion := importer.pinnedVersion(name)
		if isLocalSpec(rawVersion) {
			continue
		}
		version := lock.cleanVersion(rawVersion)

		var dep Dependency
		if version == "" {
			d, ok := s.firstByName(name)
			if !ok {
				continue
			}
			dep = d
			rawVersion, version = d.Version, d.Version
		} else if d, ok := s.deps[name+"@"+version]; ok {
			dep = d
		} else {
			dep = Dependency{Name: name, Version: version}
		}
		res.deps[dep.Key()] = dep
		res.byName[name] = dep

		depsMap, optMap, ok := lock.entryDeps(dep.Name, rawVersion, version)
		if !ok {
			continue
		}
		for n := range depsMap {
			queue = append(queue, n)
			res.claims = append(res.claims, claim{from: dep, name: n})
		}
		if !opts.NoOptional {
			for n := range optMap {
				queue = append(queue, n)
				res.claims = append(res.claims, claim{from: dep, name: n})
			}
		}
	}
	return res
}

// resolveHoisted walks the closure with hoisting lookups. npm tries the
// workspace-local node_modules path, then the root path, then any entry
// matching by name; the yarn formats only match by name. Expansion
// reads the located entry's own dependency fields.
func (s *Set) resolveHoisted(root Dependency, seeds []string, opts ResolveOptions) resolution {
	res := resolution{
		deps:   make(map[string]Dependency),
		byName: make(map[string]Dependency),
	}
	visited := make(map[string]bool)
	queue := append([]string(nil), seeds...)
	for _, n := range seeds {
		res.claims = append(res.claims, claim{from: root, name: n})
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if visited[name] {
			continue
		}
		visited[name] = true

		version, depsMap, optMap, ok := s.locate(name, opts.WorkspacePath)
		if !ok {
			continue
		}

		dep, ok := s.deps[name+"@"+version]
		if !ok {
			dep = Dependency{Name: name, Version: version}
		}
		res.deps[dep.Key()] = dep
		res.byName[name] = dep

		for n := range depsMap {
			queue = append(queue, n)
			res.claims = append(res.claims, claim{from: dep, name: n})
		}
		if !opts.NoOptional {
			for n := range optMap {
				queue = append(queue, n)
				res.claims = append(res.claims, claim{from: dep, name: n})
			}
		}
	}
	return res
}

// locate finds the resolved entry for a name in the raw tables.
func (s *Set) locate(name, workspacePath string) (version string, deps, optional map[string]string, ok bool) {
	switch {
	case s.data.npm != nil:
		pkg, found := s.data.npm.lookup(name, workspacePath)
		if !found {
			return "", nil, nil, false
		}
		return pkg.Version, pkg.Dependencies, pkg.OptionalDependencies, true
	case s.data.yarn != nil:
		e, found := s.data.yarn.lookup(name)
		if !found {
			return "", nil, nil, false
		}
		return e.Version, e.Dependencies, e.OptionalDependencies, true
	case s.data.berry != nil:
		e, found := s.data.berry.lookup(name)
		if !found {
			return "", nil, nil, false
		}
		return e.Version, e.Dependencies, e.OptionalDependencies, true
	}
	return "", nil, nil, false
}

// firstByName returns any record with the given name. Map iteration
// order decides between versions; callers treat the pick as arbitrary.
func (s *Set) firstByName(name string) (Dependency, bool) {
	for _, d := range s.deps {
		if d.Name == name {
			return d, true
		}
	}
	return Dependency{}, false
}
