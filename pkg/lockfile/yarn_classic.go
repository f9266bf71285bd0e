package lockfile

import (
	"bufio"
	"bytes"
	"iter"
	"strings"

	"github.com/matzehuels/lockset/pkg/errors"
)

// yarnLock holds the entries of a yarn v1 lockfile, keyed by the raw
// comma-joined range list with per-part quoting removed.
type yarnLock struct {
	Entries    map[string]yarnEntry
	headerSeen bool
}

// yarnEntry is one resolved package block.
type yarnEntry struct {
	Version              string
	Resolved             string
	Integrity            string
	Dependencies         map[string]string
	OptionalDependencies map[string]string
}

// parseYarnClassic parses the yarn v1 key/value syntax:
//
//	# yarn lockfile v1
//
//	lodash@^4.17.21, lodash@^4.0.0:
//	  version "4.17.21"
//	  resolved "https://registry.yarnpkg.com/lodash/-/lodash-4.17.21.tgz#..."
//	  integrity sha512-v2kDEe...
//	  dependencies:
//	    other-pkg "^1.0.0"
//
// Entry keys sit at column zero and end with ":". Fields are indented
// two spaces, sub-block items four. Anything that breaks this shape
// fails the whole parse; there is no partial result.
func parseYarnClassic(content []byte) (*yarnLock, error) {
	lock := &yarnLock{Entries: make(map[string]yarnEntry)}

	var (
		key      string
		entry    yarnEntry
		subBlock string
		lineNo   int
	)
	flush := func() {
		if key != "" {
			lock.Entries[key] = entry
		}
		key, entry, subBlock = "", yarnEntry{}, ""
	}

	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			// The format marker only counts inside a comment; package
			// data can never put one here.
			if strings.Contains(trimmed, "yarn lockfile v1") {
				lock.headerSeen = true
			}
			continue
		}

		indent := len(line) - len(strings.TrimLeft(line, " "))
		switch {
		case indent == 0:
			flush()
			if !strings.HasSuffix(trimmed, ":") {
				return nil, errors.New(errors.ErrCodeParse,
					"yarn.lock line %d: expected an entry key ending in ':'", lineNo)
			}
			key = normalizeYarnKey(strings.TrimSuffix(trimmed, ":"))
			entry = yarnEntry{}

		case key == "":
			return nil, errors.New(errors.ErrCodeParse,
				"yarn.lock line %d: indented line before any entry key", lineNo)

		case indent == 2:
			if strings.HasSuffix(trimmed, ":") {
				subBlock = strings.TrimSuffix(trimmed, ":")
				continue
			}
			subBlock = ""
			field, value, ok := splitYarnField(trimmed)
			if !ok {
				return nil, errors.New(errors.ErrCodeParse,
					"yarn.lock line %d: malformed field %q", lineNo, trimmed)
			}
			switch field {
			case "version":
				entry.Version = value
			case "resolved":
				entry.Resolved = value
			case "integrity":
				entry.Integrity = value
			}

		case indent >= 4 && subBlock != "":
			name, value, ok := splitYarnField(trimmed)
			if !ok {
				return nil, errors.New(errors.ErrCodeParse,
					"yarn.lock line %d: malformed %s item %q", lineNo, subBlock, trimmed)
			}
			switch subBlock {
			case "dependencies":
				if entry.Dependencies == nil {
					entry.Dependencies = make(map[string]string)
				}
				entry.Dependencies[name] = value
			case "optionalDependencies":
				if entry.OptionalDependencies == nil {
					entry.OptionalDependencies = make(map[string]string)
				}
				entry.OptionalDependencies[name] = value
			}

		default:
			return nil, errors.New(errors.ErrCodeParse,
				"yarn.lock line %d: unexpected indentation", lineNo)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "reading yarn.lock")
	}
	flush()
	return lock, nil
}

// normalizeYarnKey strips per-part quoting from a comma-joined key:
// `"@babel/core@^7.0.0", lodash@^4` -> `@babel/core@^7.0.0, lodash@^4`.
func normalizeYarnKey(key string) string {
	parts := strings.Split(key, ",")
	for i, p := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(p), `"`)
	}
	return strings.Join(parts, ", ")
}

// splitYarnField splits a field line into name and unquoted value.
// The name may itself be quoted (scoped packages in dependency blocks);
// unquoted values with spaces, like multi-hash integrity lines, stay
// whole.
func splitYarnField(s string) (field, value string, ok bool) {
	var rest string
	if strings.HasPrefix(s, `"`) {
		end := strings.Index(s[1:], `"`)
		if end < 0 {
			return "", "", false
		}
		field = s[1 : end+1]
		rest = s[end+2:]
	} else {
		i := strings.IndexByte(s, ' ')
		if i < 0 {
			return "", "", false
		}
		field = s[:i]
		rest = s[i:]
	}
	value = strings.Trim(strings.TrimSpace(rest), `"`)
	if field == "" || value == "" {
		return "", "", false
	}
	return field, value, true
}

// parseYarnKey extracts the package name from a yarn v1 entry key.
// The key is a comma-separated list of name@range specs and the first
// entry decides. Aliased specs ("alias@npm:real@range") keep the alias:
// a v1 lockfile records no canonical name, so the alias is the only
// name the entry carries.
//
//	parseYarnKey("lodash@^4.17.21, lodash@^4.0.0") -> "lodash"
//	parseYarnKey("@babel/core@^7.0.0")             -> "@babel/core"
//	parseYarnKey("custom-lodash@npm:lodash@^4")    -> "custom-lodash"
func parseYarnKey(key string) string {
	first := key
	if i := strings.IndexByte(first, ','); i >= 0 {
		first = first[:i]
	}
	first = strings.Trim(strings.TrimSpace(first), `"`)

	if i := strings.Index(first, "@npm:"); i >= 0 {
		return first[:i]
	}
	if strings.HasPrefix(first, "@") {
		if slash := strings.IndexByte(first, '/'); slash >= 0 {
			if at := strings.IndexByte(first[slash:], '@'); at >= 0 {
				return first[:slash+at]
			}
		}
		if at := strings.LastIndexByte(first, '@'); at > 0 {
			return first[:at]
		}
		return first
	}
	if at := strings.IndexByte(first, '@'); at > 0 {
		return first[:at]
	}
	return first
}

// dependencies yields one record per entry. Keys carry ranges rather
// than versions, so the version comes from the entry body.
func (l *yarnLock) dependencies() iter.Seq[Dependency] {
	return func(yield func(Dependency) bool) {
		for key, e := range l.Entries {
			if e.Version == "" {
				continue
			}
			name := parseYarnKey(key)
			if name == "" {
				continue
			}
			d := Dependency{
				Name:      name,
				Version:   e.Version,
				Integrity: e.Integrity,
				Resolved:  e.Resolved,
			}
			if !yield(d) {
				return
			}
		}
	}
}

// lookup returns the first entry whose key parses to name. When a
// lockfile pins several versions of one name the map's iteration order
// picks one; the closure collapses to a single version per name anyway.
func (l *yarnLock) lookup(name string) (yarnEntry, bool) {
	for key, e := range l.Entries {
		if e.Version == "" {
			continue
		}
		if parseYarnKey(key) == name {
			return e, true
		}
	}
	return yarnEntry{}, false
}
