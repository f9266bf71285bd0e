// Package cache provides pluggable storage for registry metadata, raw HTTP
// responses, and coverage reports.
//
// Three backends are available:
//   - FileCache: directory-backed storage for CLI usage
//   - RedisCache: Redis-backed storage for shared deployments
//   - NullCache: disables caching entirely
//
// Keys are produced by a Keyer so callers never hand-build key strings, and
// backends can be swapped without touching call sites.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Cache stores raw bytes under string keys with optional expiration.
type Cache interface {
	// Get retrieves a value. The bool reports whether the key was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of zero means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// Keyer generates cache keys for the things lockset caches.
type Keyer interface {
	// HTTPKey generates a key for a raw HTTP response.
	HTTPKey(namespace, key string) string

	// PackageKey generates a key for registry package metadata.
	PackageKey(name string) string

	// ReportKey generates a key for a coverage report over a lockfile.
	ReportKey(lockHash, registry string) string
}

// DefaultKeyer is the standard Keyer implementation.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// HTTPKey generates a key for a raw HTTP response.
func (k *DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

// PackageKey generates a key for registry package metadata.
// Callers normalize the name first; scoped npm names pass through unchanged.
func (k *DefaultKeyer) PackageKey(name string) string {
	return "pkg:" + name
}

// ReportKey generates a key for a coverage report. Reports depend on both the
// lockfile contents and the registry they were checked against, so both go
// into the hash.
func (k *DefaultKeyer) ReportKey(lockHash, registry string) string {
	return hashKey("report", lockHash, registry)
}

// hashKey generates a cache key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	// Full SHA-256 (64 hex chars) to prevent collisions
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// Hash computes the SHA-256 hash of data as a 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// NullCache is a no-op cache that never stores anything.
// Used when caching is disabled via --no-cache.
type NullCache struct{}

// NewNullCache creates a cache that drops every write.
func NewNullCache() Cache {
	return &NullCache{}
}

// Get always returns a cache miss.
func (c *NullCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

// Set does nothing.
func (c *NullCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return nil
}

// Delete does nothing.
func (c *NullCache) Delete(ctx context.Context, key string) error {
	return nil
}

// Close does nothing.
func (c *NullCache) Close() error {
	return nil
}

var _ Cache = (*NullCache)(nil)
