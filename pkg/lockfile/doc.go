// Package lockfile parses JavaScript package-manager lockfiles and exposes
// their contents as immutable dependency sets.
//
// # Overview
//
// Four lockfile formats are supported:
//
//   - npm: package-lock.json / npm-shrinkwrap.json (JSON, lockfileVersion >= 2)
//   - pnpm: pnpm-lock.yaml across its historical eras (shrinkwrap, v5,
//     v5 with inline specifiers, v6, v9)
//   - yarn classic: yarn.lock v1 (custom key/value syntax)
//   - yarn berry: yarn.lock v2+ (YAML with a __metadata header)
//
// The package answers "what packages are present" for SBOM, vulnerability
// scanning, and license compliance. It does not build an installable
// dependency graph, evaluate semver ranges, or verify integrity hashes.
//
// # Parsing
//
// [FromFile] and [FromContent] detect the format (content structure is
// authoritative, the file name is only a hint), parse once, and return a
// [Set]:
//
//	set, err := lockfile.FromFile("pnpm-lock.yaml")
//	if err != nil {
//	    return err
//	}
//	for dep := range set.All() {
//	    fmt.Println(dep.Key())
//	}
//
// [Extract] is the streaming alternative when no Set is needed: it parses
// once and yields each [Dependency] lazily.
//
// Local entries never surface: workspace definitions, symlinked packages,
// and link:/portal:/file: specs are filtered during extraction, so every
// yielded record has a non-empty name and version.
//
// # Set algebra
//
// Sets combine by "name@version" identity via [Set.Union], [Set.Intersect],
// and [Set.Difference], with [Set.IsSubsetOf], [Set.IsSupersetOf], and
// [Set.IsDisjointFrom] as predicates. Combined sets lose the raw lockfile
// tables and therefore report CanTraverse() == false.
//
// # Transitive resolution
//
// [Set.DependenciesOf] computes the transitive closure of one workspace's
// declared dependencies, walking the retained raw tables with the same
// semantics as the originating package manager: importer-pinned versions
// for pnpm, hoisted node_modules lookups for npm, and name matching for
// the yarn formats. Only sets built directly from a lockfile can resolve;
// derived sets fail with a TRAVERSAL_FAILED error.
//
// # Errors
//
// All failures carry pkg/errors codes: DETECTION_FAILED when no format
// matches the content, PARSE_FAILED when content is structurally invalid
// for the detected format (all-or-nothing, never a partial result), and
// TRAVERSAL_FAILED for resolution misuse. Names that cannot be resolved
// during traversal are silently omitted rather than failing the closure.
//
// Everything in this package is pure, synchronous computation; a Set is
// immutable after construction and safe for concurrent reads.
package lockfile
