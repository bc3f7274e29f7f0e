// Package pkgbuild drives the native build of the SCIP optimization suite and
// the GOBNILP solver that links against it. Each package moves through
// unpacked and built states, monotonically except for an explicit Clean. All
// work happens through blocking child processes (tar, make, configure.sh).
package pkgbuild

import (
	"fmt"
	"sync"
)

// Package is the mutable build state of one native package. Two instances
// exist per Machine: the SCIP dependency and the GOBNILP target. Transition
// methods on Machine are the only writers; the mutex serializes callers that
// share an instance.
type Package struct {
	Name     string // short name for logs and errors ("scip", "gobnilp")
	Archive  string // compressed source archive consumed by Unpack
	Dir      string // directory the archive extracts into
	BuildDir string // build tree root handed to make -C
	LinkPath string // path recorded in the target's tree by the link step (dependency only)

	mu       sync.Mutex
	unpacked bool
	built    bool
}

// Unpacked reports whether the package's archive has been extracted.
func (p *Package) Unpacked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unpacked
}

// Built reports whether the package's native build has completed.
func (p *Package) Built() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.built
}

func (p *Package) setUnpacked(v bool) {
	p.mu.Lock()
	p.unpacked = v
	if !v {
		p.built = false
	}
	p.mu.Unlock()
}

func (p *Package) setBuilt(v bool) {
	p.mu.Lock()
	if v && !p.unpacked {
		// built implies unpacked; refuse to skip a state
		p.mu.Unlock()
		panic(fmt.Sprintf("pkgbuild: %s marked built before unpacked", p.Name))
	}
	p.built = v
	p.mu.Unlock()
}

// reset returns the package to its initial state. Used by Clean.
func (p *Package) reset() {
	p.mu.Lock()
	p.unpacked = false
	p.built = false
	p.mu.Unlock()
}
