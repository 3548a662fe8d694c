package cache

// ScopedKeyer wraps a Keyer with a prefix, so several tools or tenants can
// share one Redis instance without colliding.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "classpath:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// MetadataKey generates a prefixed metadata key.
func (k *ScopedKeyer) MetadataKey(repoURL, groupID, artifactID, version string) string {
	return k.prefix + k.inner.MetadataKey(repoURL, groupID, artifactID, version)
}
