package refmap

import (
	"slices"

	"github.com/llxisdsh/refmap/internal/opt"
)

// slotStore is a generational slot arena. Each slot carries a generation
// that is odd while the slot is occupied and is bumped on every insert and
// delete, so a stale (index, generation) pair never resolves to a reused
// slot. Vacant slots form an intrusive free list; values are stored
// inline, and slots never relocate on delete.
//
// A generation is 32 bits, so a single slot stops invalidating stale pairs
// after 2^31 occupy/vacate cycles. Debug builds panic when a generation
// wraps instead of silently reusing old values.
type slotStore[T any] struct {
	slots    []slot[T]
	freeHead uint32 // 1-based index of the first free slot, 0 when none
	count    int
}

type slot[T any] struct {
	gen      uint32
	nextFree uint32 // 1-based free-list link, meaningful while vacant
	value    T
}

func (s *slotStore[T]) len() int {
	return s.count
}

// grow ensures capacity for n additional slots without reallocating later.
func (s *slotStore[T]) grow(n int) {
	if n > 0 {
		s.slots = slices.Grow(s.slots, n)
	}
}

// put stores v in a vacant slot, reusing the free list before appending,
// and returns the slot index with its new (odd) generation.
func (s *slotStore[T]) put(v T) (idx, gen uint32) {
	var i uint32
	if s.freeHead != 0 {
		i = s.freeHead - 1
		s.freeHead = s.slots[i].nextFree
	} else {
		s.slots = append(s.slots, slot[T]{})
		i = uint32(len(s.slots) - 1)
	}
	sl := &s.slots[i]
	sl.gen++ // even -> odd: occupied
	sl.value = v
	s.count++
	return i, sl.gen
}

// get resolves a generational pair to the stored value, or nil when the
// slot is vacant or the generation is stale.
func (s *slotStore[T]) get(idx, gen uint32) *T {
	if int(idx) >= len(s.slots) {
		return nil
	}
	sl := &s.slots[idx]
	if sl.gen != gen || gen&1 == 0 {
		return nil
	}
	return &sl.value
}

// at returns the value and current generation of an occupied slot. Used by
// the index, whose cells reference occupied slots by bare index.
func (s *slotStore[T]) at(idx uint32) (*T, uint32) {
	if int(idx) >= len(s.slots) {
		return nil, 0
	}
	sl := &s.slots[idx]
	if sl.gen&1 == 0 {
		return nil, 0
	}
	return &sl.value, sl.gen
}

// delete vacates the slot and returns the owned value. The generation bump
// invalidates every outstanding pair for the old occupant.
func (s *slotStore[T]) delete(idx, gen uint32) (T, bool) {
	var zero T
	if int(idx) >= len(s.slots) {
		return zero, false
	}
	sl := &s.slots[idx]
	if sl.gen != gen || gen&1 == 0 {
		return zero, false
	}
	v := sl.value
	sl.value = zero // drop references so the GC can reclaim them
	sl.gen++        // odd -> even: vacant
	if opt.Debug && sl.gen == 0 {
		panic("refmap: slot generation wrap")
	}
	sl.nextFree = s.freeHead
	s.freeHead = idx + 1
	s.count--
	return v, true
}

// each visits every occupied slot until yield returns false.
func (s *slotStore[T]) each(yield func(idx, gen uint32, v *T) bool) {
	for i := range s.slots {
		sl := &s.slots[i]
		if sl.gen&1 == 1 {
			if !yield(uint32(i), sl.gen, &sl.value) {
				return
			}
		}
	}
}
