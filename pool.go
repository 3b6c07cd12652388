// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package anamnesis

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Config configures a Pool's fixed slot array.
type Config struct {
	// SlotSize is the number of payload bytes available through a validated
	// Handle returned by Get.
	SlotSize int
	// SlotCount is the fixed number of slots the pool can hand out. It does
	// not grow.
	SlotCount int
	// Alignment sets the slot stride: each slot's payload starts at a
	// multiple of Alignment bytes from the start of the pool's backing
	// array. The backing array's own start address is whatever the Go
	// allocator returns, so payload addresses are not guaranteed to be
	// Alignment-aligned in memory. Must be a power of two no smaller than 8.
	// Defaults to 8 when zero.
	Alignment int
	// ZeroOnAlloc clears a slot's payload before Alloc returns its handle.
	ZeroOnAlloc bool
	// ZeroOnRelease clears a slot's payload before Release returns it to the
	// free list.
	ZeroOnRelease bool
	// StrictBounds re-derives a handle's canonical encoding on every access
	// and rejects any handle that does not match bit for bit. Handle is a
	// plain uint64 and nothing stops a caller from constructing one by hand
	// instead of through Alloc, so this is a redundant self-consistency
	// check rather than a forgery detector: a hand-built handle that happens
	// to match a real slot's encoding is indistinguishable from a genuine
	// one either way. It costs one extra comparison per Get/Release/Validate
	// and is intended to catch a future internal bug (a bad mask constant, a
	// handle passed through the wrong encode path) rather than a hostile
	// caller.
	StrictBounds bool
}

// slotHeader is the out-of-line metadata for one slot. It never moves: a
// Handle's index always resolves to the same slotHeader for the pool's
// lifetime, only the generation and free-list link change.
type slotHeader struct {
	next       atomix.Uint64 // Handle of the next free slot, valid only while this slot is free
	generation atomix.Uint32 // low 16 bits hold the slot's current generation
}

// Pool is a lock-free, fixed-capacity object pool. Slots are handed out and
// reclaimed through a Treiber-stack free list; every handle the pool issues
// is self-authenticating against the slot's current generation, so a stale
// handle replayed after the slot has been reused is rejected rather than
// silently aliased.
//
// All methods are safe for concurrent use by any number of goroutines.
type Pool struct {
	_ noCopy

	slotSize      int
	slotStride    int
	slotCount     int
	alignment     int
	zeroOnAlloc   bool
	zeroOnRelease bool
	strictBounds  bool

	headers []slotHeader
	arena   []byte

	_        pad
	freeHead atomix.Uint64

	_         pad
	slotsFree atomix.Int64

	allocCount     atomix.Int64
	releaseCount   atomix.Int64
	anamnesisCount atomix.Int64
	generationMax  atomix.Uint32
}

// Stats is a point-in-time snapshot of a Pool's counters.
type Stats struct {
	SlotCount      int
	SlotsFree      int64
	SlotsLive      int64
	AllocCount     int64
	ReleaseCount   int64
	AnamnesisCount int64
	GenerationMax  uint16
}

// NewPool creates a Pool with the given configuration. It panics if cfg is
// invalid: SlotSize or SlotCount non-positive, or Alignment set to a value
// that is not a power of two or smaller than 8.
func NewPool(cfg Config) *Pool {
	if cfg.SlotSize <= 0 {
		panic("anamnesis: NewPool: SlotSize must be positive")
	}
	if cfg.SlotCount <= 0 {
		panic("anamnesis: NewPool: SlotCount must be positive")
	}
	alignment := cfg.Alignment
	if alignment == 0 {
		alignment = 8
	}
	if alignment < 8 || alignment&(alignment-1) != 0 {
		panic("anamnesis: NewPool: Alignment must be a power of two no smaller than 8")
	}

	p := &Pool{
		slotSize:      cfg.SlotSize,
		slotStride:    alignUp(cfg.SlotSize, alignment),
		slotCount:     cfg.SlotCount,
		alignment:     alignment,
		zeroOnAlloc:   cfg.ZeroOnAlloc,
		zeroOnRelease: cfg.ZeroOnRelease,
		strictBounds:  cfg.StrictBounds,
		headers:       make([]slotHeader, cfg.SlotCount),
	}
	p.arena = make([]byte, p.slotStride*p.slotCount)

	// Push every slot onto the free list in reverse order, so index 0 is
	// allocated first. Every header starts at generation 0.
	for i := p.slotCount - 1; i >= 0; i-- {
		next := Handle(0)
		if i < p.slotCount-1 {
			next = encodeHandle(0, i+1, StateFree)
		}
		p.headers[i].next.StoreRelaxed(uint64(next))
		p.headers[i].generation.StoreRelaxed(0)
	}
	if p.slotCount > 0 {
		p.freeHead.StoreRelaxed(uint64(encodeHandle(0, 0, StateFree)))
	}
	p.slotsFree.StoreRelaxed(int64(p.slotCount))
	return p
}

// Destroy releases the pool's backing storage. A Pool must not be used after
// Destroy returns.
func (p *Pool) Destroy() {
	p.headers = nil
	p.arena = nil
}

// slot returns the payload byte slice for idx. idx must already be known to
// be in [0, slotCount).
func (p *Pool) slot(idx int) []byte {
	off := idx * p.slotStride
	return p.arena[off : off+p.slotSize : off+p.slotStride]
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Alloc pops a slot from the free list and returns a live handle for it.
// It returns Handle(0) if the pool is exhausted. Alloc never blocks.
func (p *Pool) Alloc() Handle {
	var idx int
	sw := spin.Wait{}
	for {
		oldHead := Handle(p.freeHead.LoadAcquire())
		if oldHead.IsNull() {
			return 0
		}
		idx = oldHead.index()
		newHead := Handle(p.headers[idx].next.LoadRelaxed())
		if p.freeHead.CompareAndSwapAcqRel(uint64(oldHead), uint64(newHead)) {
			break
		}
		sw.Once()
	}

	hdr := &p.headers[idx]
	gen := uint16(hdr.generation.LoadAcquire())

	swGen := spin.Wait{}
	for {
		max := uint16(p.generationMax.LoadRelaxed())
		if gen <= max {
			break
		}
		if p.generationMax.CompareAndSwapRelaxed(uint32(max), uint32(gen)) {
			break
		}
		swGen.Once()
	}

	hdr.next.StoreRelaxed(0)
	if p.zeroOnAlloc {
		clearBytes(p.slot(idx))
	}
	p.slotsFree.AddAcqRel(-1)
	p.allocCount.AddAcqRel(1)
	return encodeHandle(gen, idx, StateLive)
}

// authenticate validates h against this pool: it must be non-null, claim
// StateLive, index an in-range slot, and (in StrictBounds mode) re-encode
// exactly to h. It does not check the generation; callers that need the
// generation to match the slot's current one do that separately, since
// Release also needs the pre-increment generation.
func (p *Pool) authenticate(h Handle) (idx int, ok bool) {
	if h.IsNull() || h.State() != StateLive {
		return 0, false
	}
	idx = h.index()
	if idx < 0 || idx >= p.slotCount {
		return 0, false
	}
	if p.strictBounds && h != encodeHandle(h.Generation(), idx, StateLive) {
		return 0, false
	}
	return idx, true
}

// Release returns a slot to the free list. It reports false, leaving the
// slot and the free list unchanged and only incrementing the pool's
// anamnesis counter, if h is not a currently-live handle for one of this
// pool's slots — including a handle whose generation no longer matches the
// slot (a stale or double-released handle).
func (p *Pool) Release(h Handle) bool {
	idx, ok := p.authenticate(h)
	if !ok {
		p.anamnesisCount.AddAcqRel(1)
		return false
	}
	hdr := &p.headers[idx]
	trueGen := uint16(hdr.generation.LoadAcquire())
	if h.Generation() != trueGen {
		p.anamnesisCount.AddAcqRel(1)
		return false
	}

	newGen := trueGen + 1
	hdr.generation.StoreRelease(uint32(newGen))
	if p.zeroOnRelease {
		clearBytes(p.slot(idx))
	}

	freed := encodeHandle(newGen, idx, StateFree)
	sw := spin.Wait{}
	for {
		oldHead := Handle(p.freeHead.LoadAcquire())
		hdr.next.StoreRelaxed(uint64(oldHead))
		if p.freeHead.CompareAndSwapAcqRel(uint64(oldHead), uint64(freed)) {
			break
		}
		sw.Once()
	}
	p.slotsFree.AddAcqRel(1)
	p.releaseCount.AddAcqRel(1)
	return true
}

// Get returns the validated payload slice for h. The slice aliases the
// pool's backing storage and is valid only until the matching Release; using
// it afterward is the caller's bug, not the pool's — Get only guarantees that
// h designated this exact slot incarnation at the moment Get ran.
func (p *Pool) Get(h Handle) ([]byte, bool) {
	idx, ok := p.authenticate(h)
	if !ok {
		p.anamnesisCount.AddAcqRel(1)
		return nil, false
	}
	trueGen := uint16(p.headers[idx].generation.LoadAcquire())
	if h.Generation() != trueGen {
		p.anamnesisCount.AddAcqRel(1)
		return nil, false
	}
	return p.slot(idx), true
}

// Validate reports whether h currently designates a live slot in this pool,
// without returning the slot's payload.
func (p *Pool) Validate(h Handle) bool {
	_, ok := p.Get(h)
	return ok
}

// Stats returns a point-in-time snapshot of the pool's counters. Counters
// are read independently and with relaxed ordering with respect to each
// other, so a snapshot taken under concurrent traffic is not atomic as a
// whole — only each field's own value is coherent.
func (p *Pool) Stats() Stats {
	free := p.slotsFree.LoadRelaxed()
	return Stats{
		SlotCount:      p.slotCount,
		SlotsFree:      free,
		SlotsLive:      int64(p.slotCount) - free,
		AllocCount:     p.allocCount.LoadRelaxed(),
		ReleaseCount:   p.releaseCount.LoadRelaxed(),
		AnamnesisCount: p.anamnesisCount.LoadRelaxed(),
		GenerationMax:  uint16(p.generationMax.LoadRelaxed()),
	}
}

// Foreach calls visit once for every slot currently allocated (StateLive),
// in index order, passing the slot's live handle and payload slice. It stops
// early if visit returns false.
//
// Foreach walks the free list once up front to build a free/live bitmap. A
// free list corrupted by a concurrent bug could cycle; the walk bounds
// itself to slotCount steps so Foreach always terminates instead of hanging.
func (p *Pool) Foreach(visit func(h Handle, slot []byte) bool) {
	free := make([]bool, p.slotCount)
	cur := Handle(p.freeHead.LoadAcquire())
	for steps := 0; !cur.IsNull() && steps < p.slotCount; steps++ {
		idx := cur.index()
		if idx < 0 || idx >= p.slotCount || free[idx] {
			break
		}
		free[idx] = true
		cur = Handle(p.headers[idx].next.LoadRelaxed())
	}

	for idx := 0; idx < p.slotCount; idx++ {
		if free[idx] {
			continue
		}
		gen := uint16(p.headers[idx].generation.LoadAcquire())
		h := encodeHandle(gen, idx, StateLive)
		if !visit(h, p.slot(idx)) {
			return
		}
	}
}

