package refmap

import (
	"math"

	"github.com/llxisdsh/refmap/internal/opt"
)

// Count mints and redeems single-use tokens, one token per held unit of
// whatever the counter tracks. The token flow makes every increment and
// decrement structurally paired: a unit can only be given back by handing
// its token to the counter that minted it.
//
// Counters have no knowledge of keys, values, or maps; the counted layer
// and the keepalive machinery both build on this interface.
type Count interface {
	// Acquire increments the count and mints the token for the new unit.
	Acquire() (*Token, error)

	// Release consumes a token previously minted by this counter and
	// decrements the count. It reports whether the count is now zero.
	Release(*Token) bool
}

// Token is a single-use permit for one counted unit. It carries no payload
// beyond its source counter and a spent flag, the runtime stand-in for a
// move-only linear type. Tokens never reach users of Map; repeated release,
// release to a foreign counter, or release of a nil token is a defect in
// this library and panics while opt.Debug is on.
type Token struct {
	src   Count
	spent bool
}

func mintToken(src Count) *Token {
	return &Token{src: src}
}

// redeem marks t spent after validating it against the redeeming counter.
func (t *Token) redeem(src Count) {
	if opt.Debug {
		switch {
		case t == nil:
			panic("refmap: release of nil token")
		case t.spent:
			panic("refmap: token released twice")
		case t.src != src:
			panic("refmap: token released to a foreign counter")
		}
	}
	t.spent = true
}

// RefCount is a plain single-threaded counter, one per entry. Acquire at
// the representable limit fails with ErrRefOverflow instead of wrapping,
// so the caller decides what to do with a hopelessly shared entry.
type RefCount struct {
	n uint64
}

// NewRefCount returns a counter holding zero units.
func NewRefCount() *RefCount {
	return &RefCount{}
}

// Acquire implements Count.
func (c *RefCount) Acquire() (*Token, error) {
	if c.n == math.MaxUint64 {
		return nil, ErrRefOverflow
	}
	c.n++
	return mintToken(c), nil
}

// Release implements Count.
func (c *RefCount) Release(t *Token) bool {
	t.redeem(c)
	if opt.Debug && c.n == 0 {
		panic("refmap: refcount underflow")
	}
	c.n--
	return c.n == 0
}
