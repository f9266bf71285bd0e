package lockfile

import (
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/lockset/pkg/errors"
)

const classicFixture = `# THIS IS AN AUTOGENERATED FILE. DO NOT EDIT THIS FILE DIRECTLY.
# yarn lockfile v1


"@babel/code-frame@^7.22.13":
  version "7.23.5"
  resolved "https://registry.yarnpkg.com/@babel/code-frame/-/code-frame-7.23.5.tgz#9009b69a8c602293476ad598ff53e4562e15c244"
  integrity sha512-CgH3s1a96LipHCmSUmYFPwY7MNx8C3avkq7i4Wl3cfa662ldtUe4VM1TPXX70pfmrlWTb6jLqTYrZyT2ZTJBgA==
  dependencies:
    "@babel/highlight" "^7.23.4"
    chalk "^2.4.2"

chokidar@^3.5.3:
  version "3.5.3"
  resolved "https://registry.yarnpkg.com/chokidar/-/chokidar-3.5.3.tgz"
  integrity sha512-Dr3sfKRP6oTcjf2JmUmFJfeVMvXBdegxB0iVQ5eb2V10uFJUCAS8OByZdVAyVb8xXNz3GjjTgj9kLWsZTqE6kw==
  dependencies:
    anymatch "~3.1.2"
  optionalDependencies:
    fsevents "~2.3.2"

lodash@^4.17.21, lodash@^4.0.0:
  version "4.17.21"
  resolved "https://registry.yarnpkg.com/lodash/-/lodash-4.17.21.tgz"
  integrity sha512-v2kDEe57lecTulaDIuNTPy3Ry4gLGJ6Z1O3vE1krgXZNrsQ+LFTGHVxVjcXPs17LhbZVGedAJv8XZ1tvj5FvSg==

my-lodash@npm:lodash@^4.17.0:
  version "4.17.21"
  resolved "https://registry.yarnpkg.com/lodash/-/lodash-4.17.21.tgz"
`

func TestParseYarnKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"lodash@^4.17.21, lodash@^4.0.0", "lodash"},
		{"lodash@^4.17.21", "lodash"},
		{"@babel/core@^7.0.0", "@babel/core"},
		{`"@scope/pkg@^1.0.0", "@scope/pkg@^1.2.0"`, "@scope/pkg"},
		{"react@>=16.0.0 <19.0.0", "react"},

		// Aliased entries keep the alias: a v1 lockfile records no
		// canonical name for them.
		{"custom-lodash@npm:lodash@^4.17.21", "custom-lodash"},
		{"@my/alias@npm:lodash@^4.0.0", "@my/alias"},

		{"@babel/core", "@babel/core"},
		{"lodash", "lodash"},
	}
	for _, tt := range tests {
		if got := parseYarnKey(tt.key); got != tt.want {
			t.Errorf("parseYarnKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestParseYarnClassic(t *testing.T) {
	lock, err := parseYarnClassic([]byte(classicFixture))
	if err != nil {
		t.Fatalf("parseYarnClassic() error = %v", err)
	}
	if !lock.headerSeen {
		t.Error("headerSeen = false, want true")
	}
	if len(lock.Entries) != 4 {
		t.Fatalf("len(Entries) = %d, want 4", len(lock.Entries))
	}

	frame, ok := lock.Entries["@babel/code-frame@^7.22.13"]
	if !ok {
		t.Fatal("quoted key was not normalized")
	}
	if frame.Version != "7.23.5" {
		t.Errorf("code-frame version = %q, want %q", frame.Version, "7.23.5")
	}
	if !strings.HasPrefix(frame.Integrity, "sha512-") {
		t.Errorf("code-frame integrity = %q, want a sha512 hash", frame.Integrity)
	}
	if frame.Dependencies["@babel/highlight"] != "^7.23.4" {
		t.Errorf("code-frame dependencies = %v", frame.Dependencies)
	}

	chokidar := lock.Entries["chokidar@^3.5.3"]
	if chokidar.Dependencies["anymatch"] != "~3.1.2" {
		t.Errorf("chokidar dependencies = %v", chokidar.Dependencies)
	}
	if chokidar.OptionalDependencies["fsevents"] != "~2.3.2" {
		t.Errorf("chokidar optionalDependencies = %v", chokidar.OptionalDependencies)
	}

	if _, ok := lock.Entries["lodash@^4.17.21, lodash@^4.0.0"]; !ok {
		t.Error("comma-joined key missing from entries")
	}
}

func TestParseYarnClassicCRLF(t *testing.T) {
	content := "# yarn lockfile v1\r\n\r\nlodash@^4.17.21:\r\n  version \"4.17.21\"\r\n"
	lock, err := parseYarnClassic([]byte(content))
	if err != nil {
		t.Fatalf("parseYarnClassic() error = %v", err)
	}
	if got := lock.Entries["lodash@^4.17.21"].Version; got != "4.17.21" {
		t.Errorf("version = %q, want %q", got, "4.17.21")
	}
}

func TestParseYarnClassicErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"field before any key", "  version \"1.0.0\"\n"},
		{"key without colon", "lodash@^4.17.21\n  version \"1.0.0\"\n"},
		{"field without value", "lodash@^4.17.21:\n  version\n"},
		{"unexpected indentation", "lodash@^4.17.21:\n   version \"1.0.0\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseYarnClassic([]byte(tt.content))
			if err == nil {
				t.Fatal("parseYarnClassic() expected error, got nil")
			}
			if code := errors.GetCode(err); code != errors.ErrCodeParse {
				t.Errorf("GetCode() = %q, want %q", code, errors.ErrCodeParse)
			}
		})
	}
}

func TestYarnDependencies(t *testing.T) {
	lock, err := parseYarnClassic([]byte(classicFixture))
	if err != nil {
		t.Fatalf("parseYarnClassic() error = %v", err)
	}

	var got []string
	for d := range lock.dependencies() {
		got = append(got, d.Key())
	}
	slices.Sort(got)

	// The aliased entry surfaces under its alias.
	want := []string{
		"@babel/code-frame@7.23.5",
		"chokidar@3.5.3",
		"lodash@4.17.21",
		"my-lodash@4.17.21",
	}
	if !slices.Equal(got, want) {
		t.Errorf("dependencies() = %v, want %v", got, want)
	}
}

func TestYarnLookup(t *testing.T) {
	lock, err := parseYarnClassic([]byte(classicFixture))
	if err != nil {
		t.Fatalf("parseYarnClassic() error = %v", err)
	}

	e, ok := lock.lookup("chokidar")
	if !ok {
		t.Fatal("lookup(chokidar) not found")
	}
	if e.Version != "3.5.3" {
		t.Errorf("chokidar version = %q, want %q", e.Version, "3.5.3")
	}
	if _, ok := lock.lookup("ghost"); ok {
		t.Error("lookup(ghost) found an entry, want none")
	}
}
