package engine

import (
	"sync"
)

// maxPooledSteps caps the arenas kept in latticePool (about 40 MB at 1000 steps).
// Larger lattices are allocated per call and left to the GC.
const maxPooledSteps = 1000

// lattice is the per-call arena for a recombining binomial tree.
// Every quantity lives in one flat slice of (steps+1)^2 slots addressed by idx;
// only slots with 0 <= j <= i <= steps are meaningful.
type lattice struct {
	width   int // steps + 1
	backing []float64

	price     []float64
	intrinsic []float64
	value     []float64
	durNum    []float64 // Macaulay duration numerator
	durDen    []float64 // Macaulay duration denominator
}

// latticePool recycles arenas between valuations to reduce GC pressure in batch runs.
var latticePool = sync.Pool{
	New: func() interface{} {
		return &lattice{}
	},
}

// newLattice allocates a zeroed arena for the given step count.
func newLattice(steps int) *lattice {
	l := &lattice{}
	l.reset(steps)
	return l
}

// acquireLattice gets an arena from the pool, sized for steps.
// Slot contents are unspecified; valueLattice writes every slot it reads.
func acquireLattice(steps int) *lattice {
	if steps > maxPooledSteps {
		return newLattice(steps)
	}
	l := latticePool.Get().(*lattice)
	l.reset(steps)
	return l
}

// releaseLattice returns an arena to the pool. The caller must not use it afterwards.
func releaseLattice(l *lattice) {
	if l == nil || l.width-1 > maxPooledSteps {
		return
	}
	latticePool.Put(l)
}

// reset resizes the arena, reusing the backing allocation when it is large enough.
// All five quantities share that single allocation.
func (l *lattice) reset(steps int) {
	width := steps + 1
	size := width * width
	if cap(l.backing) < 5*size {
		l.backing = make([]float64, 5*size)
	}
	b := l.backing[:5*size]

	l.width = width
	l.price = b[0*size : 1*size : 1*size]
	l.intrinsic = b[1*size : 2*size : 2*size]
	l.value = b[2*size : 3*size : 3*size]
	l.durNum = b[3*size : 4*size : 4*size]
	l.durDen = b[4*size : 5*size : 5*size]
}

// idx maps (time step i, up-move count j) to a slot offset.
func (l *lattice) idx(i, j int) int {
	return i*l.width + j
}
