package lockfile

import (
	"github.com/matzehuels/lockset/pkg/errors"
)

// Format identifies a supported lockfile format.
type Format string

// Supported lockfile formats.
const (
	FormatNpm         Format = "npm"
	FormatPnpm        Format = "pnpm"
	FormatYarnClassic Format = "yarn-classic"
	FormatYarnBerry   Format = "yarn-berry"
)

// Formats lists all supported formats in detection order.
func Formats() []Format {
	return []Format{FormatNpm, FormatPnpm, FormatYarnClassic, FormatYarnBerry}
}

// ParseFormat converts a user-supplied format name to a Format.
// Accepts the canonical names plus the common aliases "yarn" (classic)
// and "berry".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "npm":
		return FormatNpm, nil
	case "pnpm":
		return FormatPnpm, nil
	case "yarn", "yarn-classic":
		return FormatYarnClassic, nil
	case "berry", "yarn-berry":
		return FormatYarnBerry, nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat,
		"unknown lockfile format %q (supported: npm, pnpm, yarn-classic, yarn-berry)", s)
}

// String returns the canonical format name.
func (f Format) String() string { return string(f) }

// Lockfile returns the conventional file name for the format.
func (f Format) Lockfile() string {
	switch f {
	case FormatNpm:
		return "package-lock.json"
	case FormatPnpm:
		return "pnpm-lock.yaml"
	case FormatYarnClassic, FormatYarnBerry:
		return "yarn.lock"
	}
	return ""
}

// Dependency is one external package pinned by a lockfile.
// Name may be scope-qualified (@scope/name). Extractors only emit records
// with non-empty Name and Version; Integrity and Resolved are carried when
// the source entry provides them.
type Dependency struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Integrity string `json:"integrity,omitempty"`
	Resolved  string `json:"resolved,omitempty"`
}

// Key returns the canonical "name@version" identity used for set membership.
func (d Dependency) Key() string {
	return d.Name + "@" + d.Version
}
