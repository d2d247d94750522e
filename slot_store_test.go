package refmap

import (
	"math"
	"testing"

	"github.com/llxisdsh/refmap/internal/opt"
)

func TestSlotStorePutGetDelete(t *testing.T) {
	var s slotStore[string]
	i1, g1 := s.put("a")
	i2, g2 := s.put("b")
	if s.len() != 2 {
		t.Fatalf("len=%d want 2", s.len())
	}
	if v := s.get(i1, g1); v == nil || *v != "a" {
		t.Fatalf("get i1 = %v", v)
	}
	if v := s.get(i2, g2); v == nil || *v != "b" {
		t.Fatalf("get i2 = %v", v)
	}
	v, ok := s.delete(i1, g1)
	if !ok || v != "a" {
		t.Fatalf("delete = %q,%v", v, ok)
	}
	if s.get(i1, g1) != nil {
		t.Fatalf("deleted slot still resolves")
	}
	if s.len() != 1 {
		t.Fatalf("len=%d want 1", s.len())
	}
}

func TestSlotStoreGenerationInvalidatesReuse(t *testing.T) {
	var s slotStore[int]
	i1, g1 := s.put(1)
	s.delete(i1, g1)

	// The free list hands back the same physical slot.
	i2, g2 := s.put(2)
	if i2 != i1 {
		t.Fatalf("expected slot reuse, got %d then %d", i1, i2)
	}
	if g2 == g1 {
		t.Fatalf("generation did not advance on reuse")
	}
	if s.get(i1, g1) != nil {
		t.Fatalf("stale pair resolved to the new occupant")
	}
	if v := s.get(i2, g2); v == nil || *v != 2 {
		t.Fatalf("fresh pair did not resolve")
	}
}

func TestSlotStoreDoubleDelete(t *testing.T) {
	var s slotStore[int]
	i, g := s.put(7)
	if _, ok := s.delete(i, g); !ok {
		t.Fatalf("first delete failed")
	}
	if _, ok := s.delete(i, g); ok {
		t.Fatalf("second delete succeeded")
	}
	if s.len() != 0 {
		t.Fatalf("len=%d want 0", s.len())
	}
}

func TestSlotStoreGenerationWrapPanics(t *testing.T) {
	if !opt.Debug {
		t.Skip("misuse checks compiled out")
	}
	var s slotStore[int]
	i, _ := s.put(1)
	// Fast-forward the slot to the last odd generation; the vacating bump
	// would wrap to zero and start revalidating ancient pairs.
	s.slots[i].gen = math.MaxUint32
	mustPanic(t, "delete wrapping generation", func() {
		s.delete(i, math.MaxUint32)
	})
}

func TestSlotStoreOutOfRange(t *testing.T) {
	var s slotStore[int]
	if s.get(42, 1) != nil {
		t.Fatalf("out-of-range get resolved")
	}
	if _, ok := s.delete(42, 1); ok {
		t.Fatalf("out-of-range delete succeeded")
	}
}

func TestSlotStoreEachVisitsLiveSlots(t *testing.T) {
	var s slotStore[int]
	var handles [][2]uint32
	for i := 0; i < 5; i++ {
		idx, gen := s.put(i)
		handles = append(handles, [2]uint32{idx, gen})
	}
	s.delete(handles[1][0], handles[1][1])
	s.delete(handles[3][0], handles[3][1])

	seen := map[int]bool{}
	s.each(func(_, _ uint32, v *int) bool {
		seen[*v] = true
		return true
	})
	want := map[int]bool{0: true, 2: true, 4: true}
	if len(seen) != len(want) {
		t.Fatalf("seen=%v want %v", seen, want)
	}
	for k := range want {
		if !seen[k] {
			t.Fatalf("missing %d in %v", k, seen)
		}
	}
}
