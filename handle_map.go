package refmap

import "hash/maphash"

// Handle is a stable generational identifier for one entry of a map.
// Handles are comparable and cheap to copy. A handle minted for a removed
// entry never resolves again, even after its physical slot is reused: the
// slot's generation has moved on. The zero Handle is never valid.
type Handle struct {
	idx uint32
	gen uint32
}

type entry[K comparable, V any] struct {
	key   K
	value V
	hash  uint64 // cached at insert; growth never re-invokes user hash code
}

// HandleMap is the structural layer: a generational slot arena plus an
// open-addressing index from cached key hash to slot. It stores entries
// behind stable handles and carries no ownership semantics; removal is an
// explicit operation.
//
// User-supplied hash/equality code runs only while the index is being
// probed, and the map is fully self-consistent at that point. That code
// must not re-enter the same map instance; a debug-only guard enforces
// this.
type HandleMap[K comparable, V any] struct {
	hasher Hasher[K]
	index  indexTable
	slots  slotStore[entry[K, V]]
	guard  reentrancyGuard
}

// NewHandleMap creates an empty structural map.
func NewHandleMap[K comparable, V any](opts ...Option[K]) *HandleMap[K, V] {
	cfg := loadConfig(opts)
	m := &HandleMap[K, V]{hasher: cfg.hasher}
	if cfg.capacity > 0 {
		m.index.reserve(cfg.capacity)
		m.slots.grow(cfg.capacity)
	}
	return m
}

func loadConfig[K comparable](opts []Option[K]) *MapConfig[K] {
	cfg := &MapConfig[K]{}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.hasher == nil {
		cfg.hasher = defaultHasher[K]{seed: maphash.MakeSeed()}
	}
	return cfg
}

// Len reports the number of stored entries.
func (m *HandleMap[K, V]) Len() int {
	return m.slots.len()
}

// Find returns the handle of the entry stored under key.
func (m *HandleMap[K, V]) Find(key K) (Handle, bool) {
	m.guard.enter()
	defer m.guard.exit()
	hash := m.hasher.Hash(key)
	idx, ok := m.index.lookup(hash, m.keyMatcher(key))
	if !ok {
		return Handle{}, false
	}
	_, gen := m.slots.at(idx)
	return Handle{idx: idx, gen: gen}, true
}

// Contains reports whether key is present.
func (m *HandleMap[K, V]) Contains(key K) bool {
	m.guard.enter()
	defer m.guard.exit()
	_, ok := m.index.lookup(m.hasher.Hash(key), m.keyMatcher(key))
	return ok
}

func (m *HandleMap[K, V]) keyMatcher(key K) func(uint32) bool {
	return func(idx uint32) bool {
		e, _ := m.slots.at(idx)
		return e != nil && m.hasher.Equal(e.key, key)
	}
}

// Insert stores value under key and returns the new entry's handle. A
// present key fails with ErrDuplicateKey and leaves the map unchanged.
func (m *HandleMap[K, V]) Insert(key K, value V) (Handle, error) {
	return m.insert(key, func() V { return value })
}

// InsertWith is Insert with a lazily built value: build runs only after
// the duplicate check has passed.
func (m *HandleMap[K, V]) InsertWith(key K, build func() V) (Handle, error) {
	return m.insert(key, build)
}

// insert is two-phase: probe and reject duplicates, reserve capacity in
// index and storage, then commit by storing the entry and linking it. A
// duplicate is detected before any mutation.
func (m *HandleMap[K, V]) insert(key K, build func() V) (Handle, error) {
	m.guard.enter()
	defer m.guard.exit()
	hash := m.hasher.Hash(key)
	if _, dup := m.index.lookup(hash, m.keyMatcher(key)); dup {
		return Handle{}, ErrDuplicateKey
	}
	m.index.reserve(1)
	idx, gen := m.slots.put(entry[K, V]{key: key, value: build(), hash: hash})
	m.index.add(hash, idx)
	return Handle{idx: idx, gen: gen}, nil
}

// Remove deletes the entry behind h and returns the owned pair. The index
// cell is unlinked first and the slot freed second, so the map is
// consistent before the key and value are handed back to the caller.
func (m *HandleMap[K, V]) Remove(h Handle) (K, V, bool) {
	m.guard.enter()
	defer m.guard.exit()
	e := m.slots.get(h.idx, h.gen)
	if e == nil {
		var zk K
		var zv V
		return zk, zv, false
	}
	m.index.unlink(e.hash, h.idx)
	ent, _ := m.slots.delete(h.idx, h.gen)
	return ent.key, ent.value, true
}

// Key returns the key of the entry behind h.
func (m *HandleMap[K, V]) Key(h Handle) (K, bool) {
	m.guard.enter()
	defer m.guard.exit()
	if e := m.slots.get(h.idx, h.gen); e != nil {
		return e.key, true
	}
	var zero K
	return zero, false
}

// Value returns a copy of the value behind h.
func (m *HandleMap[K, V]) Value(h Handle) (V, bool) {
	m.guard.enter()
	defer m.guard.exit()
	if e := m.slots.get(h.idx, h.gen); e != nil {
		return e.value, true
	}
	var zero V
	return zero, false
}

// Set replaces the value behind h.
func (m *HandleMap[K, V]) Set(h Handle, v V) bool {
	m.guard.enter()
	defer m.guard.exit()
	e := m.slots.get(h.idx, h.gen)
	if e == nil {
		return false
	}
	e.value = v
	return true
}

// Update applies fn to the value behind h in place.
func (m *HandleMap[K, V]) Update(h Handle, fn func(*V)) bool {
	m.guard.enter()
	defer m.guard.exit()
	e := m.slots.get(h.idx, h.gen)
	if e == nil {
		return false
	}
	fn(&e.value)
	return true
}

// valueRef resolves h to the stored value for in-package layering. The
// pointer is only valid until the next insert, which may grow storage.
func (m *HandleMap[K, V]) valueRef(h Handle) *V {
	if e := m.slots.get(h.idx, h.gen); e != nil {
		return &e.value
	}
	return nil
}

// Range calls yield for each entry until it returns false. The map must
// not be mutated from inside yield.
func (m *HandleMap[K, V]) Range(yield func(Handle, K, V) bool) {
	m.slots.each(func(idx, gen uint32, e *entry[K, V]) bool {
		return yield(Handle{idx: idx, gen: gen}, e.key, e.value)
	})
}
