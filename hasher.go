package refmap

import (
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
)

// Hasher supplies the hashing strategy for a map's keys: a stable hash and
// the equality used to resolve collisions.
//
// Requirements on implementations:
//   - Equal(a, b) implies Hash(a) == Hash(b).
//   - Hash and Equal must not call back into the map they serve; doing so
//     panics while opt.Debug is on.
//
// The hash is computed once per key at insertion and cached with the
// entry, so index growth never re-invokes Hash.
type Hasher[K comparable] interface {
	Hash(key K) uint64
	Equal(a, b K) bool
}

// defaultHasher hashes any comparable key with a per-map maphash seed.
type defaultHasher[K comparable] struct {
	seed maphash.Seed
}

func (h defaultHasher[K]) Hash(key K) uint64 {
	return maphash.Comparable(h.seed, key)
}

func (h defaultHasher[K]) Equal(a, b K) bool {
	return a == b
}

// StringHasher hashes string keys with xxHash. Unlike the built-in seeded
// strategy it is deterministic across map instances and processes, which
// also makes hash values reproducible in tests.
type StringHasher struct{}

// Hash implements Hasher.
func (StringHasher) Hash(key string) uint64 {
	return xxhash.Sum64String(key)
}

// Equal implements Hasher.
func (StringHasher) Equal(a, b string) bool {
	return a == b
}

type funcHasher[K comparable] struct {
	hash  func(K) uint64
	equal func(a, b K) bool
}

func (h funcHasher[K]) Hash(key K) uint64 {
	return h.hash(key)
}

func (h funcHasher[K]) Equal(a, b K) bool {
	return h.equal(a, b)
}

// HasherFunc builds a Hasher from a hash and an equality function.
func HasherFunc[K comparable](hash func(K) uint64, equal func(a, b K) bool) Hasher[K] {
	return funcHasher[K]{hash: hash, equal: equal}
}
