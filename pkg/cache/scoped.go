package cache

// ScopedKeyer wraps a Keyer with a prefix so separate contexts get separate
// cache namespaces. The registry client uses it to keep entries fetched from
// a custom registry apart from entries fetched from the public npm registry.
//
// Example usage:
//
//	// Keys scoped to a private registry
//	keyer := cache.NewScopedKeyer(nil, "registry:9f86d081:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer that prepends prefix to every generated key.
// A nil inner keyer falls back to the default keyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// HTTPKey generates a prefixed key for a raw HTTP response.
func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}

// PackageKey generates a prefixed key for registry package metadata.
func (k *ScopedKeyer) PackageKey(name string) string {
	return k.prefix + k.inner.PackageKey(name)
}

// ReportKey generates a prefixed key for a coverage report.
func (k *ScopedKeyer) ReportKey(lockHash, registry string) string {
	return k.prefix + k.inner.ReportKey(lockHash, registry)
}
