// Package fixtures manages reference lockfiles for exercising the parsing
// engine against real-world files.
//
// A TOML manifest lists sample lockfiles by URL:
//
//	[[fixture]]
//	name = "npm-express"
//	format = "npm"
//	url = "https://example.com/package-lock.json"
//	sha256 = "9f86d081..."  # optional content pin
//	min_deps = 50           # optional extraction floor
//
// [Load] reads and validates the manifest, a [Fetcher] downloads the files
// into a local directory, and [Verify] re-parses each one with the engine
// to check that detection and extraction behave as the manifest expects.
package fixtures

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/lockset/pkg/errors"
	"github.com/matzehuels/lockset/pkg/lockfile"
)

// Fixture is one reference lockfile listed in the manifest.
type Fixture struct {
	Name    string `toml:"name"`     // unique identifier, used as the on-disk directory
	Format  string `toml:"format"`   // expected lockfile format
	URL     string `toml:"url"`      // download location
	SHA256  string `toml:"sha256"`   // optional hex digest pin for the content
	MinDeps int    `toml:"min_deps"` // optional minimum extracted record count
}

// Path returns where the fixture lives below dir. Each fixture gets its
// own directory holding the format's conventional file name, so path-based
// detection hints keep working on fetched files.
func (f Fixture) Path(dir string) string {
	return filepath.Join(dir, f.Name, lockfile.Format(f.Format).Lockfile())
}

// Manifest is a parsed fixture manifest.
type Manifest struct {
	Fixtures []Fixture `toml:"fixture"`
}

// Load reads and validates a fixture manifest.
// Format aliases are normalized to canonical names, so entries may say
// "yarn" or "berry".
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "fixture manifest not found: %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "cannot read fixture manifest %s", path)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid fixture manifest %s", path)
	}

	seen := make(map[string]bool, len(m.Fixtures))
	for i, f := range m.Fixtures {
		if f.Name == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "fixture %d has no name", i)
		}
		// The name becomes an on-disk directory component, so it must not
		// escape the fixture root.
		if err := errors.ValidatePath(f.Name); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "fixture name %q", f.Name)
		}
		if seen[f.Name] {
			return nil, errors.New(errors.ErrCodeInvalidInput, "duplicate fixture name %q", f.Name)
		}
		seen[f.Name] = true
		if f.URL == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "fixture %q has no url", f.Name)
		}
		if err := errors.ValidateURL(f.URL); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "fixture %q", f.Name)
		}
		format, err := lockfile.ParseFormat(f.Format)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "fixture %q", f.Name)
		}
		m.Fixtures[i].Format = format.String()
	}
	return &m, nil
}

// Verify re-parses each fetched fixture below dir and reports one result
// per manifest entry, in manifest order.
func Verify(dir string, m *Manifest) []VerifyResult {
	results := make([]VerifyResult, 0, len(m.Fixtures))
	for _, f := range m.Fixtures {
		results = append(results, verifyOne(dir, f))
	}
	return results
}

// VerifyStatus classifies a single fixture verification.
type VerifyStatus string

// Verification outcomes.
const (
	StatusOK      VerifyStatus = "ok"      // parsed with the expected format and count
	StatusMissing VerifyStatus = "missing" // file not fetched yet
	StatusFailed  VerifyStatus = "failed"  // parse error or expectation mismatch
)

// VerifyResult is the outcome for one fixture.
type VerifyResult struct {
	Name   string       `json:"name"`
	Status VerifyStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
	Format string       `json:"format,omitempty"` // detected format when parsing succeeded
	Deps   int          `json:"deps,omitempty"`   // extracted record count
}

func verifyOne(dir string, f Fixture) VerifyResult {
	path := f.Path(dir)
	if _, err := os.Stat(path); err != nil {
		return VerifyResult{Name: f.Name, Status: StatusMissing, Detail: "not fetched"}
	}

	set, err := lockfile.FromFile(path)
	if err != nil {
		return VerifyResult{Name: f.Name, Status: StatusFailed, Detail: errors.UserMessage(err)}
	}
	result := VerifyResult{Name: f.Name, Format: set.Format().String(), Deps: set.Len()}
	if got := set.Format().String(); got != f.Format {
		result.Status = StatusFailed
		result.Detail = fmt.Sprintf("detected %s, want %s", got, f.Format)
		return result
	}
	if set.Len() < f.MinDeps {
		result.Status = StatusFailed
		result.Detail = fmt.Sprintf("extracted %d dependencies, want at least %d", set.Len(), f.MinDeps)
		return result
	}
	result.Status = StatusOK
	return result
}

// Passed reports whether every result verified clean.
func Passed(results []VerifyResult) bool {
	for _, r := range results {
		if r.Status != StatusOK {
			return false
		}
	}
	return true
}
