package refmap

import "github.com/llxisdsh/refmap/internal/opt"

// counted pairs a stored value with its per-entry reference counter. The
// counter lives behind a pointer so slot growth never moves it while
// tokens minted from it are outstanding.
type counted[V any] struct {
	refs  *RefCount
	value V
}

// CountedMap attaches liveness counting to a HandleMap, independently of
// any public handle type. Every successful lookup or insert mints one
// token of the entry's counter, and returning the last token removes the
// entry from the store.
//
// The store is never observably inconsistent: removal fully detaches the
// entry from index and storage before the owned pair is handed back.
type CountedMap[K comparable, V any] struct {
	inner *HandleMap[K, counted[V]]
}

// CountedHandle couples a structural handle with one token of its entry's
// counter. It is consumed by Put, exactly once.
type CountedHandle struct {
	h   Handle
	tok *Token
}

// Handle returns the structural handle of the referenced entry.
func (ch CountedHandle) Handle() Handle {
	return ch.h
}

// NewCountedMap creates an empty counted map.
func NewCountedMap[K comparable, V any](opts ...Option[K]) *CountedMap[K, V] {
	return &CountedMap[K, V]{inner: NewHandleMap[K, counted[V]](opts...)}
}

// Len reports the number of live entries.
func (m *CountedMap[K, V]) Len() int {
	return m.inner.Len()
}

// Contains reports whether key is present.
func (m *CountedMap[K, V]) Contains(key K) bool {
	return m.inner.Contains(key)
}

// Find looks key up and, on a hit, acquires one more unit of the entry's
// counter. Fails with ErrNotFound or, at the counter limit,
// ErrRefOverflow.
func (m *CountedMap[K, V]) Find(key K) (CountedHandle, error) {
	h, ok := m.inner.Find(key)
	if !ok {
		return CountedHandle{}, ErrNotFound
	}
	c := m.inner.valueRef(h)
	tok, err := c.refs.Acquire()
	if err != nil {
		return CountedHandle{}, err
	}
	return CountedHandle{h: h, tok: tok}, nil
}

// Insert stores value under key with a fresh counter holding one unit. A
// duplicate key propagates ErrDuplicateKey with no counter created.
func (m *CountedMap[K, V]) Insert(key K, value V) (CountedHandle, error) {
	h, err := m.inner.InsertWith(key, func() counted[V] {
		return counted[V]{refs: NewRefCount(), value: value}
	})
	if err != nil {
		return CountedHandle{}, err
	}
	tok, _ := m.inner.valueRef(h).refs.Acquire() // fresh counter, cannot overflow
	return CountedHandle{h: h, tok: tok}, nil
}

// Get mints another token for the same entry; this is how an owning
// handle is cloned.
func (m *CountedMap[K, V]) Get(ch CountedHandle) (CountedHandle, error) {
	c := m.inner.valueRef(ch.h)
	if c == nil {
		return CountedHandle{}, ErrNotFound
	}
	tok, err := c.refs.Acquire()
	if err != nil {
		return CountedHandle{}, err
	}
	return CountedHandle{h: ch.h, tok: tok}, nil
}

// Put returns a token to its entry. When the count reaches zero the entry
// is removed and the owned key and value are handed back, strictly after
// index and slot are both detached; otherwise the entry stays live.
func (m *CountedMap[K, V]) Put(ch CountedHandle) (K, V, bool) {
	var zk K
	var zv V
	c := m.inner.valueRef(ch.h)
	if c == nil {
		// Unreachable under correct token discipline: a live token pins
		// its entry.
		if opt.Debug {
			panic("refmap: put of a counted handle for a dead entry")
		}
		return zk, zv, false
	}
	if !c.refs.Release(ch.tok) {
		return zk, zv, false
	}
	key, cv, _ := m.inner.Remove(ch.h)
	return key, cv.value, true
}

// Key returns the key of the referenced entry.
func (m *CountedMap[K, V]) Key(ch CountedHandle) (K, bool) {
	return m.inner.Key(ch.h)
}

// Value returns a copy of the referenced value.
func (m *CountedMap[K, V]) Value(ch CountedHandle) (V, bool) {
	c, ok := m.inner.Value(ch.h)
	if !ok {
		var zero V
		return zero, false
	}
	return c.value, true
}

// Update applies fn to the referenced value in place.
func (m *CountedMap[K, V]) Update(ch CountedHandle, fn func(*V)) bool {
	return m.inner.Update(ch.h, func(c *counted[V]) { fn(&c.value) })
}

// Range calls yield for each live entry until it returns false. No tokens
// are minted; the map must not be mutated from inside yield.
func (m *CountedMap[K, V]) Range(yield func(Handle, K, V) bool) {
	m.inner.Range(func(h Handle, k K, c counted[V]) bool {
		return yield(h, k, c.value)
	})
}

// refsOf exposes an entry's count for in-package tests.
func (m *CountedMap[K, V]) refsOf(h Handle) uint64 {
	if c := m.inner.valueRef(h); c != nil {
		return c.refs.n
	}
	return 0
}
