package refmap

import "math/bits"

// Index cell states. A cell is empty until first used, full while it
// refers to a slot, and a tombstone after its slot is unlinked. Tombstones
// keep probe chains intact and are dropped on the next rebuild.
const (
	cellEmpty uint8 = iota
	cellFull
	cellTombstone
)

type indexCell struct {
	hash  uint64
	slot  uint32
	state uint8
}

// indexTable is an open-addressing table from cached key hash to slot
// index. Linear probing; capacity is a power of two kept at most 3/4 full
// (tombstones included), so at least one cell stays empty and every probe
// terminates. Cells carry the cached hash, which means growth rehashes
// without touching slot storage or user hash code.
type indexTable struct {
	cells []indexCell
	mask  uint64
	full  int
	dead  int
}

const minIndexCap = 8

// lookup probes for a full cell with the given hash whose slot satisfies
// match. match runs user equality code; the caller holds the reentrancy
// guard for the duration.
func (t *indexTable) lookup(hash uint64, match func(slot uint32) bool) (uint32, bool) {
	if len(t.cells) == 0 {
		return 0, false
	}
	for i := hash & t.mask; ; i = (i + 1) & t.mask {
		c := &t.cells[i]
		switch c.state {
		case cellEmpty:
			return 0, false
		case cellFull:
			if c.hash == hash && match(c.slot) {
				return c.slot, true
			}
		}
	}
}

// add links hash -> slot in the first reusable cell. The caller has
// already probed for duplicates and reserved capacity; no user code runs
// here.
func (t *indexTable) add(hash uint64, slot uint32) {
	i := hash & t.mask
	for t.cells[i].state == cellFull {
		i = (i + 1) & t.mask
	}
	if t.cells[i].state == cellTombstone {
		t.dead--
	}
	t.cells[i] = indexCell{hash: hash, slot: slot, state: cellFull}
	t.full++
}

// unlink turns the cell for hash -> slot into a tombstone. Matching is by
// slot index, so removal never invokes user code.
func (t *indexTable) unlink(hash uint64, slot uint32) bool {
	if len(t.cells) == 0 {
		return false
	}
	for i := hash & t.mask; ; i = (i + 1) & t.mask {
		c := &t.cells[i]
		switch c.state {
		case cellEmpty:
			return false
		case cellFull:
			if c.slot == slot {
				c.state = cellTombstone
				c.slot = 0
				t.full--
				t.dead++
				return true
			}
		}
	}
}

// reserve makes room for n more links, rebuilding (and dropping
// tombstones) when the load would pass 3/4. Rehashing reads only cached
// hashes.
func (t *indexTable) reserve(n int) {
	if len(t.cells) > 0 && (t.full+t.dead+n)*4 <= len(t.cells)*3 {
		return
	}
	newCap := max(nextPow2((t.full+n)*4/3+1), minIndexCap)
	old := t.cells
	t.cells = make([]indexCell, newCap)
	t.mask = uint64(newCap - 1)
	t.full = 0
	t.dead = 0
	for i := range old {
		if old[i].state == cellFull {
			t.add(old[i].hash, old[i].slot)
		}
	}
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
