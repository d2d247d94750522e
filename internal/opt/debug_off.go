//go:build refmap_release

package opt

// Debug disabled: misuse checks compile to nothing. Token and guard
// discipline must hold by construction in this configuration.
const Debug = false
