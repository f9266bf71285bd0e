package lockfile

import (
	"slices"
	"testing"

	"github.com/matzehuels/lockset/pkg/errors"
)

func TestDetectPnpmEra(t *testing.T) {
	tests := []struct {
		name              string
		lockfileVersion   any
		shrinkwrapVersion any
		want              PnpmEraKind
	}{
		{"shrinkwrap", nil, 3, PnpmEraShrinkwrap},
		{"shrinkwrap wins over lockfileVersion", "6.0", 3, PnpmEraShrinkwrap},
		{"v5 int", 5, nil, PnpmEraV5},
		{"v5 float", 5.4, nil, PnpmEraV5},
		{"v5 inline specifiers", "5.4-inlineSpecifiers", nil, PnpmEraV5Inline},
		{"v6", "6.0", nil, PnpmEraV6},
		{"v6 minor", "6.1", nil, PnpmEraV6},
		{"v9", "9.0", nil, PnpmEraV9},
		{"unrecognized string", "7.0", nil, PnpmEraUnknown},
		{"absent", nil, nil, PnpmEraUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectPnpmEra(tt.lockfileVersion, tt.shrinkwrapVersion)
			if got.Kind != tt.want {
				t.Errorf("detectPnpmEra(%v, %v) = %v, want %v",
					tt.lockfileVersion, tt.shrinkwrapVersion, got.Kind, tt.want)
			}
		})
	}
}

func TestPnpmEraPredicates(t *testing.T) {
	tests := []struct {
		kind         PnpmEraKind
		atSep        bool
		split        bool
		inline       bool
		leadingSlash bool
	}{
		{PnpmEraShrinkwrap, false, false, false, true},
		{PnpmEraV5, false, false, false, true},
		{PnpmEraV5Inline, false, false, true, true},
		{PnpmEraV6, true, false, true, true},
		{PnpmEraV9, true, true, true, false},
		{PnpmEraUnknown, false, false, false, true},
	}
	for _, tt := range tests {
		era := PnpmEra{Kind: tt.kind}
		if got := era.AtSeparator(); got != tt.atSep {
			t.Errorf("%v.AtSeparator() = %v, want %v", tt.kind, got, tt.atSep)
		}
		if got := era.SplitSnapshots(); got != tt.split {
			t.Errorf("%v.SplitSnapshots() = %v, want %v", tt.kind, got, tt.split)
		}
		if got := era.InlineSpecifiers(); got != tt.inline {
			t.Errorf("%v.InlineSpecifiers() = %v, want %v", tt.kind, got, tt.inline)
		}
		if got := era.LeadingSlash(); got != tt.leadingSlash {
			t.Errorf("%v.LeadingSlash() = %v, want %v", tt.kind, got, tt.leadingSlash)
		}
	}
}

func TestParsePnpmSpec(t *testing.T) {
	v5 := PnpmEra{Kind: PnpmEraV5}
	v6 := PnpmEra{Kind: PnpmEraV6}
	v9 := PnpmEra{Kind: PnpmEraV9}

	tests := []struct {
		spec        string
		era         PnpmEra
		wantName    string
		wantVersion string
		wantOK      bool
	}{
		{"/@babel/core@7.23.0", v6, "@babel/core", "7.23.0", true},
		{"/lodash@4.17.21", v6, "lodash", "4.17.21", true},
		{"/@babel/core/7.23.0", v5, "@babel/core", "7.23.0", true},
		{"/lodash/4.17.21", v5, "lodash", "4.17.21", true},
		{"@babel/core@7.23.0", v9, "@babel/core", "7.23.0", true},
		{"lodash@4.17.21", v9, "lodash", "4.17.21", true},

		// Peer annotations: parentheses in the newer eras, an
		// underscore suffix in v5.
		{"/vite@5.0.0(sass@1.69.5)", v6, "vite", "5.0.0", true},
		{"vite@5.0.0(sass@1.69.5)(terser@5.26.0)", v9, "vite", "5.0.0", true},
		{"/debug/4.3.4_supports-color@5.5.0", v5, "debug", "4.3.4", true},
		{"/@vue/shared/3.3.4_typescript@5.0.0", v5, "@vue/shared", "3.3.4", true},

		// Local packages never parse.
		{"link:../shared", v6, "", "", false},
		{"file:packages/local", v5, "", "", false},
		{"/local-pkg@file:packages/local", v6, "", "", false},
		{"/local-pkg@link:../local", v6, "", "", false},

		// Malformed keys.
		{"/lodash", v5, "", "", false},
		{"/@babel/core", v5, "", "", false},
		{"/lodash@", v6, "", "", false},
		{"", v6, "", "", false},
	}
	for _, tt := range tests {
		name, version, ok := parsePnpmSpec(tt.spec, tt.era)
		if ok != tt.wantOK {
			t.Errorf("parsePnpmSpec(%q, %v) ok = %v, want %v", tt.spec, tt.era.Kind, ok, tt.wantOK)
			continue
		}
		if name != tt.wantName || version != tt.wantVersion {
			t.Errorf("parsePnpmSpec(%q, %v) = (%q, %q), want (%q, %q)",
				tt.spec, tt.era.Kind, name, version, tt.wantName, tt.wantVersion)
		}
	}
}

func TestParsePnpmLock(t *testing.T) {
	content := `lockfileVersion: '6.0'

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

packages:

  /leftpad@1.0.0:
    resolution: {integrity: sha512-leftpad}

  /react@18.2.0:
    resolution: {integrity: sha512-react}
    dependencies:
      loose-envify: 1.4.0
`
	lock, err := parsePnpmLock([]byte(content))
	if err != nil {
		t.Fatalf("parsePnpmLock() error = %v", err)
	}
	if lock.Era.Kind != PnpmEraV6 {
		t.Errorf("Era.Kind = %v, want %v", lock.Era.Kind, PnpmEraV6)
	}
	if len(lock.Importers) != 2 {
		t.Fatalf("len(Importers) = %d, want 2", len(lock.Importers))
	}
	pin := lock.Importers["packages/bar"].pinnedVersion("leftpad")
	if pin != "1.0.0" {
		t.Errorf("pinnedVersion(leftpad) = %q, want %q", pin, "1.0.0")
	}
	if spec := lock.Importers["."].Dependencies["react"].Specifier; spec != "^18.2.0" {
		t.Errorf("react specifier = %q, want %q", spec, "^18.2.0")
	}
}

func TestParsePnpmLockSingleProject(t *testing.T) {
	// v5 and shrinkwrap files without importers record the root
	// project's pins at the top level; they fold into the "." importer.
	content := `lockfileVersion: 5.4

dependencies:
  lodash: 4.17.21

devDependencies:
  typescript: 5.3.3

packages:

  /lodash/4.17.21:
    resolution: {integrity: sha512-lodash}

  /typescript/5.3.3:
    resolution: {integrity: sha512-ts}
`
	lock, err := parsePnpmLock([]byte(content))
	if err != nil {
		t.Fatalf("parsePnpmLock() error = %v", err)
	}
	if lock.Era.Kind != PnpmEraV5 {
		t.Errorf("Era.Kind = %v, want %v", lock.Era.Kind, PnpmEraV5)
	}
	root, ok := lock.Importers["."]
	if !ok {
		t.Fatal(`top-level dependency maps were not folded into the "." importer`)
	}
	if got := root.pinnedVersion("lodash"); got != "4.17.21" {
		t.Errorf("pinnedVersion(lodash) = %q, want %q", got, "4.17.21")
	}
	if got := root.pinnedVersion("typescript"); got != "5.3.3" {
		t.Errorf("pinnedVersion(typescript) = %q, want %q", got, "5.3.3")
	}
}

func TestParsePnpmLockInvalid(t *testing.T) {
	_, err := parsePnpmLock([]byte("packages:\n  broken\n - indentation"))
	if err == nil {
		t.Fatal("parsePnpmLock() expected error, got nil")
	}
	if code := errors.GetCode(err); code != errors.ErrCodeParse {
		t.Errorf("GetCode() = %q, want %q", code, errors.ErrCodeParse)
	}
}

func TestPnpmDependencies(t *testing.T) {
	content := `lockfileVersion: '6.0'

importers:
  .: {}

packages:

  /@babel/core@7.23.0:
    resolution: {integrity: sha512-babel}

  /lodash@4.17.21:
    resolution: {integrity: sha512-lodash, tarball: https://registry.npmjs.org/lodash/-/lodash-4.17.21.tgz}

  /local-pkg@file:packages/local:
    resolution: {directory: packages/local, type: directory}
`
	lock, err := parsePnpmLock([]byte(content))
	if err != nil {
		t.Fatalf("parsePnpmLock() error = %v", err)
	}

	byKey := make(map[string]Dependency)
	for d := range lock.dependencies() {
		byKey[d.Key()] = d
	}

	var got []string
	for key := range byKey {
		got = append(got, key)
	}
	slices.Sort(got)
	want := []string{"@babel/core@7.23.0", "lodash@4.17.21"}
	if !slices.Equal(got, want) {
		t.Fatalf("dependencies() keys = %v, want %v", got, want)
	}
	lodash := byKey["lodash@4.17.21"]
	if lodash.Integrity != "sha512-lodash" {
		t.Errorf("lodash integrity = %q, want %q", lodash.Integrity, "sha512-lodash")
	}
	if lodash.Resolved == "" {
		t.Error("lodash resolved tarball missing")
	}
}

func TestPnpmEntryDeps(t *testing.T) {
	// v9 keeps dependency edges in the snapshots table, keyed with the
	// peer annotation the importer pin still carries.
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
	lock, err := parsePnpmLock([]byte(content))
	if err != nil {
		t.Fatalf("parsePnpmLock() error = %v", err)
	}
	if lock.Era.Kind != PnpmEraV9 {
		t.Fatalf("Era.Kind = %v, want %v", lock.Era.Kind, PnpmEraV9)
	}

	deps, _, ok := lock.entryDeps("vite", "5.0.0(sass@1.69.5)", "5.0.0")
	if !ok {
		t.Fatal("entryDeps(vite) not found")
	}
	if deps["sass"] != "1.69.5" {
		t.Errorf("vite deps = %v, want sass pinned to 1.69.5", deps)
	}

	// The clean version alone must still find the snapshot-less entry.
	if _, _, ok := lock.entryDeps("sass", "1.69.5", "1.69.5"); !ok {
		t.Error("entryDeps(sass) not found")
	}
}

func TestPnpmCleanVersion(t *testing.T) {
	v5 := &pnpmLock{Era: PnpmEra{Kind: PnpmEraV5}}
	v9 := &pnpmLock{Era: PnpmEra{Kind: PnpmEraV9}}

	tests := []struct {
		lock *pnpmLock
		in   string
		want string
	}{
		{v9, "5.0.0(sass@1.69.5)", "5.0.0"},
		{v9, "4.17.21", "4.17.21"},
		{v5, "4.3.4_supports-color@5.5.0", "4.3.4"},
		{v5, "1.2.3(react@18.2.0)", "1.2.3"},
		{v9, "7.0.0_lodash@4.17.21", "7.0.0_lodash@4.17.21"},
	}
	for _, tt := range tests {
		if got := tt.lock.cleanVersion(tt.in); got != tt.want {
			t.Errorf("cleanVersion(%q) under %v = %q, want %q", tt.in, tt.lock.Era.Kind, got, tt.want)
		}
	}
}
