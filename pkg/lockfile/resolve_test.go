package lockfile

import (
	"slices"
	"testing"

	"github.com/matzehuels/lockset/pkg/errors"
)

const npmWorkspaceLock = `{
	"name": "monorepo",
	"lockfileVersion": 3,
	"requires": true,
	"packages": {
		"": {"name": "monorepo", "workspaces": ["packages/*"]},
		"packages/foo": {"name": "foo", "version": "1.0.0"},
		"node_modules/foo": {"resolved": "packages/foo", "link": true},
		"node_modules/lodash": {
			"version": "4.17.21",
			"resolved": "https://registry.npmjs.org/lodash/-/lodash-4.17.21.tgz",
			"integrity": "sha512-lodash"
		},
		"node_modules/semver": {"version": "6.3.1"},
		"packages/foo/node_modules/semver": {"version": "7.5.4"}
	}
}`

const pnpmWorkspaceLock = `lockfileVersion: '6.0'

importers:

  .:
    dependencies:
      react:
        specifier: ^18.2.0
        version: 18.2.0

  packages/bar:
    dependencies:
      leftpad:
        specifier: 1.0.0
        version: 1.0.0
      mylib:
        specifier: workspace:*
        version: link:../mylib

packages:

  /leftpad@1.0.0:
    resolution: {integrity: sha512-leftpad}

  /loose-envify@1.4.0:
    resolution: {integrity: sha512-loose}

  /react@18.2.0:
    resolution: {integrity: sha512-react}
    dependencies:
      loose-envify: 1.4.0
`

func TestDependenciesOfNpmHoisting(t *testing.T) {
	set := mustSet(t, npmWorkspaceLock)
	manifest := &Manifest{
		Name:         "foo",
		Dependencies: map[string]string{"lodash": "^4.17.21"},
	}

	closure, err := set.DependenciesOf(manifest, ResolveOptions{WorkspacePath: "packages/foo"})
	if err != nil {
		t.Fatalf("DependenciesOf() error = %v", err)
	}

	// lodash is not installed under packages/foo/node_modules; the
	// hoisted root copy resolves it.
	if got := sortedKeys(closure); !slices.Equal(got, []string{"lodash@4.17.21"}) {
		t.Fatalf("closure keys = %v, want [lodash@4.17.21]", got)
	}
	if d, _ := closure.Get("lodash@4.17.21"); d.Integrity != "sha512-lodash" {
		t.Errorf("closure record integrity = %q, want the canonical record's", d.Integrity)
	}
	if closure.CanTraverse() {
		t.Error("closure reports CanTraverse() = true")
	}
	if closure.Format() != FormatNpm {
		t.Errorf("closure format = %q, want %q", closure.Format(), FormatNpm)
	}
}

func TestDependenciesOfNpmWorkspaceShadowing(t *testing.T) {
	set := mustSet(t, npmWorkspaceLock)
	manifest := &Manifest{Dependencies: map[string]string{"semver": "^7.0.0"}}

	inWorkspace, err := set.DependenciesOf(manifest, ResolveOptions{WorkspacePath: "packages/foo"})
	if err != nil {
		t.Fatalf("DependenciesOf(workspace) error = %v", err)
	}
	if !inWorkspace.Has("semver@7.5.4") {
		t.Errorf("workspace closure = %v, want the workspace-local semver@7.5.4", sortedKeys(inWorkspace))
	}

	atRoot, err := set.DependenciesOf(manifest, ResolveOptions{})
	if err != nil {
		t.Fatalf("DependenciesOf(root) error = %v", err)
	}
	if !atRoot.Has("semver@6.3.1") {
		t.Errorf("root closure = %v, want the hoisted semver@6.3.1", sortedKeys(atRoot))
	}
}

func TestDependenciesOfPnpmImporter(t *testing.T) {
	set := mustSet(t, pnpmWorkspaceLock)
	manifest := &Manifest{
		Name: "bar",
		Dependencies: map[string]string{
			"leftpad": "1.0.0",
			"mylib":   "workspace:*",
		},
	}

	closure, err := set.DependenciesOf(manifest, ResolveOptions{WorkspacePath: "packages/bar"})
	if err != nil {
		t.Fatalf("DependenciesOf() error = %v", err)
	}

	// Exactly the importer's own pin: react belongs to the root
	// importer and the workspace-linked mylib never surfaces.
	if got := sortedKeys(closure); !slices.Equal(got, []string{"leftpad@1.0.0"}) {
		t.Errorf("closure keys = %v, want [leftpad@1.0.0]", got)
	}
}

func TestDependenciesOfPnpmRootFallback(t *testing.T) {
	set := mustSet(t, pnpmWorkspaceLock)
	manifest := &Manifest{Dependencies: map[string]string{"react": "^18.2.0"}}

	closure, err := set.DependenciesOf(manifest, ResolveOptions{})
	if err != nil {
		t.Fatalf("DependenciesOf() error = %v", err)
	}

	// loose-envify is transitive and has no importer pin; it resolves
	// through the by-name fallback.
	want := []string{"loose-envify@1.4.0", "react@18.2.0"}
	if got := sortedKeys(closure); !slices.Equal(got, want) {
		t.Errorf("closure keys = %v, want %v", got, want)
	}
}

func TestDependenciesOfPnpmPeerSuffix(t *testing.T) {
	content := `lockfileVersion: 5.4

dependencies:
  debug: 4.3.4_supports-color@5.5.0

packages:

  /debug/4.3.4_supports-color@5.5.0:
    resolution: {integrity: sha512-debug}
    dependencies:
      ms: 2.1.2
      supports-color: 5.5.0

  /ms/2.1.2:
    resolution: {integrity: sha512-ms}

  /supports-color/5.5.0:
    resolution: {integrity: sha512-sc}
    dependencies:
      has-flag: 3.0.0

  /has-flag/3.0.0:
    resolution: {integrity: sha512-hf}
`
	set := mustSet(t, content)
	manifest := &Manifest{Dependencies: map[string]string{"debug": "^4.3.0"}}

	closure, err := set.DependenciesOf(manifest, ResolveOptions{})
	if err != nil {
		t.Fatalf("DependenciesOf() error = %v", err)
	}

	want := []string{"debug@4.3.4", "has-flag@3.0.0", "ms@2.1.2", "supports-color@5.5.0"}
	if got := sortedKeys(closure); !slices.Equal(got, want) {
		t.Errorf("closure keys = %v, want %v", got, want)
	}
}

func TestDependenciesOfPnpmSnapshots(t *testing.T) {
	content := `lockfileVersion: '9.0'

importers:
  .:
    dependencies:
      vite:
        specifier: ^5.0.0
        version: 5.0.0(sass@1.69.5)

packages:

  vite@5.0.0:
    resolution: {integrity: sha512-vite}

  sass@1.69.5:
    resolution: {integrity: sha512-sass}

snapshots:

  vite@5.0.0(sass@1.69.5):
    dependencies:
      sass: 1.69.5

  sass@1.69.5: {}
`
	set := mustSet(t, content)
	manifest := &Manifest{Dependencies: map[string]string{"vite": "^5.0.0"}}

	closure, err := set.DependenciesOf(manifest, ResolveOptions{})
	if err != nil {
		t.Fatalf("DependenciesOf() error = %v", err)
	}

	want := []string{"sass@1.69.5", "vite@5.0.0"}
	if got := sortedKeys(closure); !slices.Equal(got, want) {
		t.Errorf("closure keys = %v, want %v", got, want)
	}
}

func TestDependenciesOfDiamond(t *testing.T) {
	content := `{"lockfileVersion": 3, "packages": {
		"": {"name": "app"},
		"node_modules/a": {"version": "1.0.0", "dependencies": {"c": "^1.0.0"}},
		"node_modules/b": {"version": "1.0.0", "dependencies": {"c": "^2.0.0"}},
		"node_modules/c": {"version": "2.0.3"}
	}}`
	set := mustSet(t, content)
	manifest := &Manifest{Dependencies: map[string]string{"a": "^1.0.0", "b": "^1.0.0"}}

	closure, err := set.DependenciesOf(manifest, ResolveOptions{})
	if err != nil {
		t.Fatalf("DependenciesOf() error = %v", err)
	}

	// Both a and b want c; the closure carries one version per name.
	want := []string{"a@1.0.0", "b@1.0.0", "c@2.0.3"}
	if got := sortedKeys(closure); !slices.Equal(got, want) {
		t.Errorf("closure keys = %v, want %v", got, want)
	}
}

func TestDependenciesOfOptions(t *testing.T) {
	content := `{"lockfileVersion": 3, "packages": {
		"": {"name": "app"},
		"node_modules/express": {"version": "4.18.2"},
		"node_modules/typescript": {"version": "5.3.3"},
		"node_modules/react": {"version": "18.2.0"},
		"node_modules/fsevents": {"version": "2.3.3"},
		"node_modules/chokidar": {"version": "3.5.3", "optionalDependencies": {"fsevents": "~2.3.2"}}
	}}`
	set := mustSet(t, content)
	manifest := &Manifest{
		Dependencies:     map[string]string{"express": "^4.18.0", "chokidar": "^3.5.0"},
		DevDependencies:  map[string]string{"typescript": "^5.0.0"},
		PeerDependencies: map[string]string{"react": ">=18"},
	}

	tests := []struct {
		name string
		opts ResolveOptions
		want []string
	}{
		{
			name: "defaults include optional",
			opts: ResolveOptions{},
			want: []string{"chokidar@3.5.3", "express@4.18.2", "fsevents@2.3.3"},
		},
		{
			name: "dev seeds devDependencies",
			opts: ResolveOptions{Dev: true},
			want: []string{"chokidar@3.5.3", "express@4.18.2", "fsevents@2.3.3", "typescript@5.3.3"},
		},
		{
			name: "peer seeds peerDependencies",
			opts: ResolveOptions{Peer: true},
			want: []string{"chokidar@3.5.3", "express@4.18.2", "fsevents@2.3.3", "react@18.2.0"},
		},
		{
			name: "no-optional prunes transitive optionals",
			opts: ResolveOptions{NoOptional: true},
			want: []string{"chokidar@3.5.3", "express@4.18.2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			closure, err := set.DependenciesOf(manifest, tt.opts)
			if err != nil {
				t.Fatalf("DependenciesOf() error = %v", err)
			}
			if got := sortedKeys(closure); !slices.Equal(got, tt.want) {
				t.Errorf("closure keys = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDependenciesOfSilentDrop(t *testing.T) {
	content := `{"lockfileVersion": 3, "packages": {
		"node_modules/express": {"version": "4.18.2"}
	}}`
	set := mustSet(t, content)
	manifest := &Manifest{Dependencies: map[string]string{
		"express":       "^4.18.0",
		"ghost-package": "^1.0.0",
	}}

	closure, err := set.DependenciesOf(manifest, ResolveOptions{})
	if err != nil {
		t.Fatalf("DependenciesOf() error = %v", err)
	}
	if got := sortedKeys(closure); !slices.Equal(got, []string{"express@4.18.2"}) {
		t.Errorf("closure keys = %v: unresolvable names must drop without error", got)
	}
}

func TestDependenciesOfYarnClassic(t *testing.T) {
	content := `# yarn lockfile v1

a@^1.0.0:
  version "1.0.5"
  dependencies:
    b "^2.0.0"

b@^2.0.0:
  version "2.0.3"
`
	set := mustSet(t, content)
	manifest := &Manifest{Dependencies: map[string]string{"a": "^1.0.0"}}

	closure, err := set.DependenciesOf(manifest, ResolveOptions{})
	if err != nil {
		t.Fatalf("DependenciesOf() error = %v", err)
	}
	want := []string{"a@1.0.5", "b@2.0.3"}
	if got := sortedKeys(closure); !slices.Equal(got, want) {
		t.Errorf("closure keys = %v, want %v", got, want)
	}
}

func TestDependenciesOfYarnBerry(t *testing.T) {
	content := `__metadata:
  version: 8

"a@npm:^1.0.0":
  version: 1.0.5
  resolution: "a@npm:1.0.5"
  dependencies:
    b: "npm:^2.0.0"

"b@npm:^2.0.0":
  version: 2.0.3
  resolution: "b@npm:2.0.3"

"root-app@workspace:.":
  version: 0.0.0-use.local
  resolution: "root-app@workspace:."
  dependencies:
    a: "npm:^1.0.0"
`
	set := mustSet(t, content)
	manifest := &Manifest{Dependencies: map[string]string{"a": "^1.0.0"}}

	closure, err := set.DependenciesOf(manifest, ResolveOptions{})
	if err != nil {
		t.Fatalf("DependenciesOf() error = %v", err)
	}
	want := []string{"a@1.0.5", "b@2.0.3"}
	if got := sortedKeys(closure); !slices.Equal(got, want) {
		t.Errorf("closure keys = %v, want %v", got, want)
	}
}

func TestDependenciesOfErrors(t *testing.T) {
	set := mustSet(t, npmWorkspaceLock)
	manifest := &Manifest{Dependencies: map[string]string{"lodash": "^4.17.21"}}

	t.Run("derived set", func(t *testing.T) {
		derived := set.Union(set)
		_, err := derived.DependenciesOf(manifest, ResolveOptions{})
		if err == nil {
			t.Fatal("DependenciesOf() on a derived set expected error, got nil")
		}
		if code := errors.GetCode(err); code != errors.ErrCodeTraversal {
			t.Errorf("GetCode() = %q, want %q", code, errors.ErrCodeTraversal)
		}
	})

	t.Run("closure of a closure", func(t *testing.T) {
		closure, err := set.DependenciesOf(manifest, ResolveOptions{})
		if err != nil {
			t.Fatalf("DependenciesOf() error = %v", err)
		}
		if _, err := closure.DependenciesOf(manifest, ResolveOptions{}); err == nil {
			t.Fatal("DependenciesOf() on a closure expected error, got nil")
		}
	})

	t.Run("nil manifest", func(t *testing.T) {
		_, err := set.DependenciesOf(nil, ResolveOptions{})
		if err == nil {
			t.Fatal("DependenciesOf(nil) expected error, got nil")
		}
		if code := errors.GetCode(err); code != errors.ErrCodeTraversal {
			t.Errorf("GetCode() = %q, want %q", code, errors.ErrCodeTraversal)
		}
	})
}

func TestResolveEdges(t *testing.T) {
	set := mustSet(t, pnpmWorkspaceLock)
	manifest := &Manifest{
		Name:         "app",
		Version:      "1.0.0",
		Dependencies: map[string]string{"react": "^18.2.0"},
	}

	seq, err := set.ResolveEdges(manifest, ResolveOptions{})
	if err != nil {
		t.Fatalf("ResolveEdges() error = %v", err)
	}

	var got [][2]string
	for from, to := range seq {
		got = append(got, [2]string{from.Key(), to.Key()})
	}
	want := [][2]string{
		{"app@1.0.0", "react@18.2.0"},
		{"react@18.2.0", "loose-envify@1.4.0"},
	}
	if !slices.Equal(got, want) {
		t.Errorf("edges = %v, want %v", got, want)
	}
}

func TestResolveEdgesDiamond(t *testing.T) {
	content := `{"lockfileVersion": 3, "packages": {
		"": {"name": "app"},
		"node_modules/a": {"version": "1.0.0", "dependencies": {"c": "^1.0.0"}},
		"node_modules/b": {"version": "1.0.0", "dependencies": {"c": "^2.0.0"}},
		"node_modules/c": {"version": "2.0.3"}
	}}`
	set := mustSet(t, content)
	manifest := &Manifest{
		Name:         "app",
		Version:      "1.0.0",
		Dependencies: map[string]string{"a": "^1.0.0", "b": "^1.0.0"},
	}

	seq, err := set.ResolveEdges(manifest, ResolveOptions{})
	if err != nil {
		t.Fatalf("ResolveEdges() error = %v", err)
	}

	var got [][2]string
	for from, to := range seq {
		got = append(got, [2]string{from.Key(), to.Key()})
	}

	// Both a and b keep their edge into the single resolved c.
	want := [][2]string{
		{"a@1.0.0", "c@2.0.3"},
		{"app@1.0.0", "a@1.0.0"},
		{"app@1.0.0", "b@1.0.0"},
		{"b@1.0.0", "c@2.0.3"},
	}
	if !slices.Equal(got, want) {
		t.Errorf("edges = %v, want %v", got, want)
	}
}

func TestResolveEdgesErrors(t *testing.T) {
	set := mustSet(t, npmWorkspaceLock)
	manifest := &Manifest{Dependencies: map[string]string{"lodash": "^4.17.21"}}

	derived := set.Union(set)
	if _, err := derived.ResolveEdges(manifest, ResolveOptions{}); err == nil {
		t.Fatal("ResolveEdges() on a derived set expected error, got nil")
	}
	if _, err := set.ResolveEdges(nil, ResolveOptions{}); err == nil {
		t.Fatal("ResolveEdges(nil) expected error, got nil")
	}
}
