// Package cache stores repository metadata documents between runs.
//
// Resolving a version range requires every configured repository's
// maven-metadata.xml. The [Cache] interface keeps those documents so that a
// repository with update policy "never" is only asked once, and so that
// offline runs can still resolve ranges. Three backends are provided:
//
//   - [FileCache]: JSON entries under the user's cache directory (CLI default)
//   - [RedisCache]: a shared Redis instance, for build farms and the mirror server
//   - [NullCache]: stores nothing (--no-cache)
//
// A [MemoryCache] bounded by an LRU can front any of them.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with per-entry expiry. Implementations must be safe
// for concurrent use.
type Cache interface {
	// Get returns the entry for key. hit is false when the key is absent or
	// expired.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// Keyer builds cache keys.
type Keyer interface {
	// MetadataKey is the key of a repository metadata document. version is
	// empty for artifact-level metadata and set for snapshot metadata.
	MetadataKey(repoURL, groupID, artifactID, version string) string
}

// DefaultKeyer hashes key components so keys stay short and filesystem safe.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default key scheme.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// MetadataKey returns "metadata:<sha256>".
func (DefaultKeyer) MetadataKey(repoURL, groupID, artifactID, version string) string {
	return hashKey("metadata", repoURL, groupID, artifactID, version)
}
