package refmap

// ============================================================================
// Configuration
// ============================================================================

// MapConfig defines configurable options shared by HandleMap, CountedMap
// and Map initialization.
type MapConfig[K comparable] struct {
	// hasher specifies a custom hash/equality strategy for keys.
	// If nil, a per-map seeded strategy built on hash/maphash is used.
	// Custom strategies can improve performance for specific key types or
	// provide deterministic hashing (see StringHasher).
	hasher Hasher[K]

	// capacity provides an estimate of the expected number of entries.
	// It pre-allocates the index and the slot storage, reducing resizes
	// during initial population. If zero or negative, the value is
	// ignored. The index capacity is rounded up to the next power of 2.
	capacity int
}

// Option mutates a MapConfig.
type Option[K comparable] func(*MapConfig[K])

// WithHasher overrides the built-in hash strategy for keys.
func WithHasher[K comparable](h Hasher[K]) Option[K] {
	return func(c *MapConfig[K]) {
		c.hasher = h
	}
}

// WithCapacity configures a new map instance with capacity enough to hold
// n entries without resizing. If n is zero or negative, the value is
// ignored.
func WithCapacity[K comparable](n int) Option[K] {
	return func(c *MapConfig[K]) {
		c.capacity = n
	}
}
