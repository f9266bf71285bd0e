package lockfile

import (
	"encoding/json"
	"os"

	"github.com/matzehuels/lockset/pkg/errors"
)

// Manifest is the slice of package.json that resolution needs. Only the
// dependency map keys matter; range strings are carried through but
// never evaluated.
type Manifest struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
}

// ParseManifest decodes a package.json document.
func ParseManifest(content []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(content, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "invalid package.json")
	}
	return &m, nil
}

// ReadManifest loads and parses a package.json file.
func ReadManifest(path string) (*Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "manifest not found: %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "reading manifest %s", path)
	}
	return ParseManifest(content)
}

// declared collects the dependency names from the sections the options
// enable, section by section with duplicates removed.
func (m *Manifest) declared(opts ResolveOptions) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(deps map[string]string) {
		for name := range deps {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}

	add(m.Dependencies)
	if opts.Dev {
		add(m.DevDependencies)
	}
	if !opts.NoOptional {
		add(m.OptionalDependencies)
	}
	if opts.Peer {
		add(m.PeerDependencies)
	}
	return names
}
