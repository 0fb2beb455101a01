package handle

// ID encodes a 32-bit slot index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on release to invalidate stale
// copies of the same value, so an ID is safe to keep as a capability token:
// a holder must revalidate with Alive before trusting it.
//
// Generations start at 1. The zero ID is never issued and never alive,
// which makes it usable as a vacancy sentinel.
type ID uint64

func New(index uint32, generation uint32) ID {
	return ID(uint64(generation)<<32 | uint64(index))
}

func (id ID) Index() uint32      { return uint32(id) }
func (id ID) Generation() uint32 { return uint32(id >> 32) }
func (id ID) IsZero() bool       { return id == 0 }

// Pool allocates IDs with generational indices and a free list. Released
// slot indices are reused with a bumped generation.
type Pool struct {
	generations []uint32
	freeList    []uint32
	nextIndex   uint32
}

func NewPool() *Pool {
	return &Pool{
		generations: make([]uint32, 0, 64),
		freeList:    make([]uint32, 0, 16),
	}
}

func (p *Pool) Create() ID {
	if len(p.freeList) > 0 {
		idx := p.freeList[len(p.freeList)-1]
		p.freeList = p.freeList[:len(p.freeList)-1]
		return New(idx, p.generations[idx])
	}
	idx := p.nextIndex
	p.nextIndex++
	p.generations = append(p.generations, 1)
	return New(idx, 1)
}

func (p *Pool) Alive(id ID) bool {
	idx := id.Index()
	if idx >= p.nextIndex {
		return false
	}
	return p.generations[idx] == id.Generation() && id.Generation() != 0
}

// Release frees an ID. Stale or unknown IDs are ignored.
func (p *Pool) Release(id ID) {
	idx := id.Index()
	if idx >= p.nextIndex {
		return
	}
	if p.generations[idx] != id.Generation() {
		return // already released (stale reference)
	}
	p.generations[idx]++
	p.freeList = append(p.freeList, idx)
}

// Cap returns the number of slots ever allocated, live or free. Slot
// indices returned by Create are always below Cap.
func (p *Pool) Cap() int {
	return int(p.nextIndex)
}
