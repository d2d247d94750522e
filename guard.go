package refmap

import "github.com/llxisdsh/refmap/internal/opt"

// reentrancyGuard detects nested entry into the same map instance from
// user hash or equality code, the one place such code runs while the index
// is being probed. Active only while opt.Debug is on; otherwise enter and
// exit compile to nothing.
type reentrancyGuard struct {
	depth uint32
}

func (g *reentrancyGuard) enter() {
	if opt.Debug {
		if g.depth != 0 {
			panic("refmap: reentrant call into the same map from hash/equality code")
		}
		g.depth++
	}
}

func (g *reentrancyGuard) exit() {
	if opt.Debug {
		g.depth--
	}
}
