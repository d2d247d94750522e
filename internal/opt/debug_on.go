//go:build !refmap_release

package opt

// Debug enables the internal misuse checks: the per-map reentrancy guard
// and the token discipline assertions. The checks cost a branch per
// operation; build with the refmap_release tag to compile them out.
const Debug = true
