package refmap

import "errors"

// Caller-facing failures. Every public operation reports problems through
// explicit return values matched with errors.Is; internal discipline
// violations (token misuse, reentrant probing, refcount underflow) are not
// recoverable and panic only while opt.Debug is on.
var (
	// ErrDuplicateKey reports an insert for a key that is already present.
	// The failed insert leaves the map unchanged.
	ErrDuplicateKey = errors.New("refmap: duplicate key")

	// ErrNotFound reports a lookup or access for an absent entry, or for a
	// handle that has already been released.
	ErrNotFound = errors.New("refmap: entry not found")

	// ErrWrongOwner reports an accessor call with a Ref minted by a
	// different Map instance.
	ErrWrongOwner = errors.New("refmap: ref belongs to a different map")

	// ErrRefOverflow reports that an entry's reference count reached the
	// representable limit.
	ErrRefOverflow = errors.New("refmap: entry refcount overflow")

	// ErrClosed reports an operation on a Map whose owner already called
	// Close.
	ErrClosed = errors.New("refmap: map closed")
)
