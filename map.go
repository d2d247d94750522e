// Package refmap implements a single-threaded, reference-counted
// associative container. Map hands out stable, cheap-to-clone owning
// handles (Ref) to its entries: an entry lives exactly as long as at least
// one Ref to it does, and the map's internal state lives until both its
// owner has called Close and every Ref to every entry has been released.
//
// The container is built in three layers. HandleMap is the structural
// layer: generational slot storage plus an open-addressing index from
// cached key hash to slot. CountedMap attaches a per-entry counter whose
// units flow as single-use tokens (Count/Token). Map adds the keepalive
// accounting and the public Ref surface.
//
// All types in this package are confined to a single goroutine; counters
// are non-atomic by design. This suits intra-goroutine ownership graphs
// such as interning tables and per-task caches.
package refmap

import "github.com/llxisdsh/refmap/internal/opt"

// pinned wraps a stored value with the entry's keepalive unit. The unit is
// minted at insert, lives with the value (one per entry, not per Ref), and
// is returned only after the entry's structural removal completes.
type pinned[V any] struct {
	value V
	keep  *Token
}

// state is the shared container state. It stays allocated while its
// strong count is nonzero: one unit held by the owning Map until Close,
// plus one unit per live entry.
type state[K comparable, V any] struct {
	entries *CountedMap[K, pinned[V]]
	strong  uint64
	freed   bool
}

// teardown releases internal state. Runs exactly once, when the owner and
// every entry have returned their keepalive units.
func (s *state[K, V]) teardown() {
	if opt.Debug && s.freed {
		panic("refmap: state torn down twice")
	}
	s.freed = true
	s.entries = nil
}

// keepCount forwards Acquire and Release directly onto the state's own
// strong count. There is no bookkeeping beyond the token itself, and
// unlike per-entry counters it cannot meaningfully overflow, so Acquire
// never fails.
type keepCount[K comparable, V any] struct {
	s *state[K, V]
}

// Acquire implements Count.
func (c keepCount[K, V]) Acquire() (*Token, error) {
	if opt.Debug && c.s.freed {
		panic("refmap: keepalive acquire after teardown")
	}
	c.s.strong++
	return mintToken(c), nil
}

// Release implements Count.
func (c keepCount[K, V]) Release(t *Token) bool {
	t.redeem(c)
	if opt.Debug && c.s.strong == 0 {
		panic("refmap: keepalive underflow")
	}
	c.s.strong--
	if c.s.strong == 0 {
		c.s.teardown()
		return true
	}
	return false
}

// Map is the public reference-counted handle map. Insert and Find mint
// owning Refs; there is no remove or clear operation, removal happens
// exclusively when the last Ref to an entry is released, so the reference
// count documents liveness everywhere.
//
// A Map must not be copied after first use.
type Map[K comparable, V any] struct {
	s     *state[K, V]
	owner *Token // the owner's keepalive unit, returned by Close
}

// New creates an empty Map.
func New[K comparable, V any](opts ...Option[K]) *Map[K, V] {
	s := &state[K, V]{entries: NewCountedMap[K, pinned[V]](opts...)}
	tok, _ := keepCount[K, V]{s}.Acquire()
	return &Map[K, V]{s: s, owner: tok}
}

func (m *Map[K, V]) keep() keepCount[K, V] {
	return keepCount[K, V]{m.s}
}

// Len reports the number of live entries, each of which has a reference
// count of at least one. Zero after Close.
func (m *Map[K, V]) Len() int {
	if m.owner == nil {
		return 0
	}
	return m.s.entries.Len()
}

// Contains reports whether key is live. False after Close.
func (m *Map[K, V]) Contains(key K) bool {
	if m.owner == nil {
		return false
	}
	return m.s.entries.Contains(key)
}

// Insert stores value under key and returns the first owning Ref for the
// new entry. One keepalive unit is acquired and pinned with the stored
// value; on a duplicate key the provisional unit is returned before the
// error is, so a failed insert leaks nothing.
func (m *Map[K, V]) Insert(key K, value V) (*Ref[K, V], error) {
	if m.owner == nil {
		return nil, ErrClosed
	}
	keepTok, _ := m.keep().Acquire()
	ch, err := m.s.entries.Insert(key, pinned[V]{value: value, keep: keepTok})
	if err != nil {
		m.keep().Release(keepTok) // owner unit still held, cannot tear down
		return nil, err
	}
	return &Ref[K, V]{s: m.s, ch: ch}, nil
}

// Find returns a new owning Ref for the entry under key, incrementing its
// reference count. No keepalive unit is minted here; the entry's unit
// already lives with the stored value.
func (m *Map[K, V]) Find(key K) (*Ref[K, V], error) {
	if m.owner == nil {
		return nil, ErrClosed
	}
	ch, err := m.s.entries.Find(key)
	if err != nil {
		return nil, err
	}
	return &Ref[K, V]{s: m.s, ch: ch}, nil
}

// Value returns a copy of the value behind r. The Ref must have been
// minted by this map (ErrWrongOwner otherwise) and must still be live.
func (m *Map[K, V]) Value(r *Ref[K, V]) (V, error) {
	var zero V
	if err := m.check(r); err != nil {
		return zero, err
	}
	pv, ok := m.s.entries.Value(r.ch)
	if !ok {
		return zero, ErrNotFound
	}
	return pv.value, nil
}

// Key returns the key of the entry behind r.
func (m *Map[K, V]) Key(r *Ref[K, V]) (K, error) {
	var zero K
	if err := m.check(r); err != nil {
		return zero, err
	}
	k, ok := m.s.entries.Key(r.ch)
	if !ok {
		return zero, ErrNotFound
	}
	return k, nil
}

// Update applies fn to the value behind r in place. All value access is
// mediated through the map, so reads and writes can never interleave with
// structural mutation.
func (m *Map[K, V]) Update(r *Ref[K, V], fn func(*V)) error {
	if err := m.check(r); err != nil {
		return err
	}
	if !m.s.entries.Update(r.ch, func(p *pinned[V]) { fn(&p.value) }) {
		return ErrNotFound
	}
	return nil
}

func (m *Map[K, V]) check(r *Ref[K, V]) error {
	switch {
	case m.owner == nil:
		return ErrClosed
	case r == nil || r.s == nil:
		return ErrNotFound
	case r.s != m.s:
		return ErrWrongOwner
	}
	return nil
}

// Close returns the owner's keepalive unit. Outstanding Refs keep the
// internal state alive past this point; the state is freed exactly once,
// at the last Release among them. Close is idempotent, and a closed Map
// rejects every other operation with ErrClosed.
func (m *Map[K, V]) Close() {
	if m.owner == nil {
		return
	}
	tok := m.owner
	m.owner = nil
	m.keep().Release(tok)
}

// Ref is an owning handle to one entry of a Map. Each Ref holds one unit
// of its entry's reference count; the entry lives until every Ref to it
// has been released. Refs are cheap to clone and compare and, like the
// Map, are confined to a single goroutine.
type Ref[K comparable, V any] struct {
	s  *state[K, V]
	ch CountedHandle
}

// Clone mints a new Ref to the same entry, incrementing its reference
// count. The keepalive count is untouched: it is per entry, not per Ref.
// At the counter limit Clone fails with ErrRefOverflow.
func (r *Ref[K, V]) Clone() (*Ref[K, V], error) {
	if r == nil || r.s == nil {
		return nil, ErrNotFound
	}
	ch, err := r.s.entries.Get(r.ch)
	if err != nil {
		return nil, err
	}
	return &Ref[K, V]{s: r.s, ch: ch}, nil
}

// Release returns this Ref's unit of the entry count. Releasing the last
// unit removes the entry, index first and slot second, and only after
// that removal completes is the entry's keepalive unit returned, which in
// turn frees the map state if the owner is already gone. This ordering
// keeps the state valid for the entire removal. Release is idempotent;
// extra calls do nothing.
func (r *Ref[K, V]) Release() {
	if r == nil || r.s == nil {
		return
	}
	s := r.s
	r.s = nil
	_, pv, removed := s.entries.Put(r.ch)
	if removed {
		keepCount[K, V]{s}.Release(pv.keep)
	}
}

// Same reports whether two Refs denote the same entry of the same map.
// Released Refs compare unequal to everything.
func (r *Ref[K, V]) Same(o *Ref[K, V]) bool {
	return r != nil && o != nil && r.s != nil && r.s == o.s && r.ch.h == o.ch.h
}

// Handle returns the entry's structural handle, usable as a comparable
// map key for grouping Refs by entry. The zero Handle after Release.
func (r *Ref[K, V]) Handle() Handle {
	if r == nil || r.s == nil {
		return Handle{}
	}
	return r.ch.h
}
