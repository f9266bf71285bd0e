package lockfile

import (
	"slices"
	"testing"

	"github.com/matzehuels/lockset/pkg/errors"
)

func TestParseNpmKey(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"node_modules/lodash", "lodash"},
		{"node_modules/@babel/core", "@babel/core"},
		{"packages/app/node_modules/lodash", "lodash"},
		{"packages/app/node_modules/@scope/pkg", "@scope/pkg"},
		{"node_modules/a/node_modules/b", "b"},
		{"node_modules/a/node_modules/@scope/b", "@scope/b"},
		{"", ""},
		{"packages/app", ""},
		{"apps/web", ""},
	}
	for _, tt := range tests {
		if got := parseNpmKey(tt.path); got != tt.want {
			t.Errorf("parseNpmKey(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestParseNpmLockErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"lockfileVersion": 3, "packages": `},
		{"v1 without packages table", `{"lockfileVersion": 1, "dependencies": {"lodash": {"version": "4.17.21"}}}`},
		{"no packages field at all", `{"name": "app"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseNpmLock([]byte(tt.content))
			if err == nil {
				t.Fatal("parseNpmLock() expected error, got nil")
			}
			if code := errors.GetCode(err); code != errors.ErrCodeParse {
				t.Errorf("GetCode() = %q, want %q", code, errors.ErrCodeParse)
			}
		})
	}
}

func TestNpmDependencies(t *testing.T) {
	content := `{
		"name": "monorepo",
		"lockfileVersion": 3,
		"packages": {
			"": {"name": "monorepo"},
			"packages/app": {"name": "app", "version": "1.0.0"},
			"node_modules/app": {"resolved": "packages/app", "link": true},
			"node_modules/lodash": {
				"version": "4.17.21",
				"resolved": "https://registry.npmjs.org/lodash/-/lodash-4.17.21.tgz",
				"integrity": "sha512-lodash"
			},
			"node_modules/@babel/core": {"version": "7.23.5", "integrity": "sha512-babel"}
		}
	}`
	lock, err := parseNpmLock([]byte(content))
	if err != nil {
		t.Fatalf("parseNpmLock() error = %v", err)
	}

	var got []string
	for d := range lock.dependencies() {
		got = append(got, d.Key())
	}
	slices.Sort(got)

	want := []string{"@babel/core@7.23.5", "lodash@4.17.21"}
	if !slices.Equal(got, want) {
		t.Errorf("dependencies() = %v, want %v", got, want)
	}
}

func TestNpmLookup(t *testing.T) {
	content := `{
		"lockfileVersion": 3,
		"packages": {
			"": {"name": "monorepo"},
			"packages/app": {"name": "app", "version": "1.0.0"},
			"node_modules/app": {"resolved": "packages/app", "link": true},
			"node_modules/semver": {"version": "6.3.1"},
			"packages/app/node_modules/semver": {"version": "7.5.4"},
			"node_modules/a/node_modules/deep": {"version": "1.0.0"}
		}
	}`
	lock, err := parseNpmLock([]byte(content))
	if err != nil {
		t.Fatalf("parseNpmLock() error = %v", err)
	}

	tests := []struct {
		name          string
		pkg           string
		workspacePath string
		wantVersion   string
		wantOK        bool
	}{
		{"workspace shadows root", "semver", "packages/app", "7.5.4", true},
		{"root hoisted", "semver", "", "6.3.1", true},
		{"unknown workspace falls back to root", "semver", "packages/other", "6.3.1", true},
		{"nested entry found by scan", "deep", "", "1.0.0", true},
		{"link entries never resolve", "app", "", "", false},
		{"absent name", "ghost", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, ok := lock.lookup(tt.pkg, tt.workspacePath)
			if ok != tt.wantOK {
				t.Fatalf("lookup(%q, %q) ok = %v, want %v", tt.pkg, tt.workspacePath, ok, tt.wantOK)
			}
			if pkg.Version != tt.wantVersion {
				t.Errorf("lookup(%q, %q) version = %q, want %q", tt.pkg, tt.workspacePath, pkg.Version, tt.wantVersion)
			}
		})
	}
}
