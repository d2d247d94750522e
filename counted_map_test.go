package refmap

import (
	"errors"
	"testing"
)

func TestCountedMapInsertFindPut(t *testing.T) {
	m := NewCountedMap[string, int]()
	ch1, err := m.Insert("k", 42)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n := m.refsOf(ch1.Handle()); n != 1 {
		t.Fatalf("refs=%d want 1", n)
	}

	ch2, err := m.Find("k")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if n := m.refsOf(ch1.Handle()); n != 2 {
		t.Fatalf("refs=%d want 2", n)
	}

	if _, _, removed := m.Put(ch2); removed {
		t.Fatalf("entry removed with a unit outstanding")
	}
	if m.Len() != 1 {
		t.Fatalf("len=%d want 1", m.Len())
	}

	key, val, removed := m.Put(ch1)
	if !removed || key != "k" || val != 42 {
		t.Fatalf("put = %q,%d,%v", key, val, removed)
	}
	if m.Len() != 0 {
		t.Fatalf("len=%d want 0", m.Len())
	}
	if _, err := m.Find("k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

func TestCountedMapGetClonesUnit(t *testing.T) {
	m := NewCountedMap[string, int]()
	ch1, _ := m.Insert("k", 1)
	ch2, err := m.Get(ch1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ch2.Handle() != ch1.Handle() {
		t.Fatalf("clone refers to a different entry")
	}
	if n := m.refsOf(ch1.Handle()); n != 2 {
		t.Fatalf("refs=%d want 2", n)
	}
	m.Put(ch1)
	if m.Len() != 1 {
		t.Fatalf("entry removed while clone outstanding")
	}
	if _, _, removed := m.Put(ch2); !removed {
		t.Fatalf("last put did not remove the entry")
	}
}

func TestCountedMapDuplicateInsertNoCounter(t *testing.T) {
	m := NewCountedMap[string, int]()
	ch, _ := m.Insert("dup", 1)
	if _, err := m.Insert("dup", 2); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("err=%v want ErrDuplicateKey", err)
	}
	if n := m.refsOf(ch.Handle()); n != 1 {
		t.Fatalf("refs=%d, failed insert touched the counter", n)
	}
	if v, _ := m.Value(ch); v != 1 {
		t.Fatalf("value=%d, failed insert replaced the value", v)
	}
	m.Put(ch)
}

func TestCountedMapAccessors(t *testing.T) {
	m := NewCountedMap[string, int]()
	ch, _ := m.Insert("k", 10)
	if k, ok := m.Key(ch); !ok || k != "k" {
		t.Fatalf("key = %q,%v", k, ok)
	}
	if !m.Update(ch, func(v *int) { *v *= 3 }) {
		t.Fatalf("update failed")
	}
	if v, ok := m.Value(ch); !ok || v != 30 {
		t.Fatalf("value = %d,%v want 30", v, ok)
	}
	m.Put(ch)
}

func TestCountedMapRange(t *testing.T) {
	m := NewCountedMap[string, int]()
	ch1, _ := m.Insert("a", 1)
	ch2, _ := m.Insert("b", 2)

	seen := map[string]int{}
	m.Range(func(_ Handle, k string, v int) bool {
		seen[k] = v
		return true
	})
	if len(seen) != 2 || seen["a"] != 1 || seen["b"] != 2 {
		t.Fatalf("seen=%v", seen)
	}
	// Range mints no tokens.
	if m.refsOf(ch1.Handle()) != 1 || m.refsOf(ch2.Handle()) != 1 {
		t.Fatalf("range changed reference counts")
	}
	m.Put(ch1)
	m.Put(ch2)
}

func TestCountedMapRemovalDetachesBeforeReturn(t *testing.T) {
	m := NewCountedMap[string, int]()
	ch, _ := m.Insert("k", 5)
	key, _, removed := m.Put(ch)
	if !removed {
		t.Fatalf("put did not remove")
	}
	// By the time the owned pair is returned, the store no longer knows
	// the key: a fresh lookup must miss.
	if m.Contains(key) {
		t.Fatalf("key still indexed after removal returned")
	}
}
