package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/lockset/pkg/lockfile"
)

const testLockUpgraded = `{
  "name": "app",
  "version": "1.1.0",
  "lockfileVersion": 3,
  "packages": {
    "": {"name": "app", "version": "1.1.0", "dependencies": {"lodash": "^4.17.0", "semver": "^7.6.0"}},
    "node_modules/lodash": {"version": "4.17.21", "integrity": "sha512-v2kDEe57lecTulaDIuNTPy3Ry4gLGJ6Z1O3vE1krgXZNrsQ+LFTGHVxVjcXPs17LhbZVGedAJv8XZ1tvj5FvSg=="},
    "node_modules/semver": {"version": "7.6.0"}
  }
}`

func TestWriteDiffJSON(t *testing.T) {
	oldSet := testSet(t)
	newSet, err := lockfile.FromContent([]byte(testLockUpgraded), lockfile.ParseOptions{})
	if err != nil {
		t.Fatal(err)
	}

	added := newSet.Difference(oldSet)
	removed := oldSet.Difference(newSet)
	unchanged := newSet.Intersect(oldSet)

	path := filepath.Join(t.TempDir(), "diff.json")
	if err := writeDiffJSON("old.json", "new.json", oldSet, newSet, added, removed, unchanged.Len(), path); err != nil {
		t.Fatalf("writeDiffJSON() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc diffDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if doc.Old.Path != "old.json" || doc.Old.Count != 2 {
		t.Errorf("old side = %+v, want old.json with 2 records", doc.Old)
	}
	if doc.New.Format != "npm" || doc.New.Count != 2 {
		t.Errorf("new side = %+v, want npm with 2 records", doc.New)
	}
	if len(doc.Added) != 1 || doc.Added[0].Name != "semver" {
		t.Errorf("added = %+v, want [semver]", doc.Added)
	}
	if len(doc.Removed) != 1 || doc.Removed[0].Name != "@babel/core" {
		t.Errorf("removed = %+v, want [@babel/core]", doc.Removed)
	}
	if doc.Unchanged != 1 {
		t.Errorf("unchanged = %d, want 1", doc.Unchanged)
	}
}
