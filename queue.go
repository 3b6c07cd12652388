// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package anamnesis

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// QueueConfig configures a Queue's backing node pool.
type QueueConfig struct {
	// ItemSize is the number of bytes Push copies out of its argument and
	// Pop/Peek copy into theirs.
	ItemSize int
	// Capacity is the maximum number of items the queue can hold at once.
	Capacity int
}

// QueueStats is a point-in-time snapshot of a Queue's counters.
type QueueStats struct {
	Capacity     int
	PushCount    int64
	PopCount     int64
	PushFails    int64
	PopFails     int64
	ABAPrevented int64
}

// Queue is a Michael-Scott lock-free MPMC FIFO. Its nodes are slots drawn
// from a private Pool, so every compare-and-swap in Push and Pop operates on
// a self-authenticating Handle rather than a raw pointer: a node recycled
// mid-traversal carries a new generation and is rejected instead of silently
// aliasing the node a stale handle still names.
//
// All methods are safe for concurrent use by any number of goroutines.
type Queue struct {
	_ noCopy

	nodes    *Pool
	itemSize int

	// next holds each node's forward link, indexed by slot index. It is
	// separate from the pool's own free-list link (which only matters while
	// a slot is free) the same way the original node layout keeps its own
	// next field apart from the pool's internal slot header.
	next []atomix.Uint64

	_    pad
	head atomix.Uint64 // Handle of the current dummy/front node
	_    pad
	tail atomix.Uint64 // Handle of the current back node (may lag)
	_    pad
	length atomix.Int64

	pushCount    atomix.Int64
	popCount     atomix.Int64
	pushFails    atomix.Int64
	popFails     atomix.Int64
	abaPrevented atomix.Int64
}

// NewQueue creates a Queue with the given configuration. It panics if
// ItemSize or Capacity is non-positive.
func NewQueue(cfg QueueConfig) *Queue {
	if cfg.ItemSize <= 0 {
		panic("anamnesis: NewQueue: ItemSize must be positive")
	}
	if cfg.Capacity <= 0 {
		panic("anamnesis: NewQueue: Capacity must be positive")
	}

	slotCount := cfg.Capacity + 1
	q := &Queue{
		itemSize: cfg.ItemSize,
		next:     make([]atomix.Uint64, slotCount),
		nodes: NewPool(Config{
			SlotSize:  cfg.ItemSize,
			SlotCount: slotCount,
		}),
	}

	dummy := q.nodes.Alloc()
	q.next[dummy.index()].StoreRelaxed(0)
	q.head.StoreRelaxed(uint64(dummy))
	q.tail.StoreRelaxed(uint64(dummy))
	return q
}

// Destroy drains the queue and releases its backing node pool. A Queue must
// not be used after Destroy returns.
func (q *Queue) Destroy() {
	buf := make([]byte, q.itemSize)
	for q.Pop(buf) {
	}
	dummy := Handle(q.head.LoadAcquire())
	q.nodes.Release(dummy)
	q.nodes.Destroy()
}

// Push appends item to the back of the queue and returns the handle of the
// node it was stored in. It returns false if the queue's node pool is
// exhausted (the queue is at Capacity).
func (q *Queue) Push(item []byte) (Handle, bool) {
	newNode := q.nodes.Alloc()
	if newNode.IsNull() {
		q.pushFails.AddAcqRel(1)
		return 0, false
	}
	slot, _ := q.nodes.Get(newNode)
	copy(slot, item)
	q.next[newNode.index()].StoreRelease(0)

	sw := spin.Wait{}
	for {
		tailH := Handle(q.tail.LoadAcquire())
		if _, ok := q.nodes.Get(tailH); !ok {
			q.abaPrevented.AddAcqRel(1)
			sw.Once()
			continue
		}
		nextH := Handle(q.next[tailH.index()].LoadAcquire())
		if Handle(q.tail.LoadAcquire()) != tailH {
			q.abaPrevented.AddAcqRel(1)
			sw.Once()
			continue
		}
		if nextH.IsNull() {
			if q.next[tailH.index()].CompareAndSwapAcqRel(0, uint64(newNode)) {
				q.tail.CompareAndSwapAcqRel(uint64(tailH), uint64(newNode))
				break
			}
		} else {
			// Another pusher linked its node but hasn't swung tail yet; help.
			q.tail.CompareAndSwapAcqRel(uint64(tailH), uint64(nextH))
		}
		sw.Once()
	}

	q.length.AddAcqRel(1)
	q.pushCount.AddAcqRel(1)
	return newNode, true
}

// Pop removes the item at the front of the queue into out and reports
// whether an item was removed. out must have room for at least the queue's
// configured ItemSize bytes. Pop reports false if the queue is empty. The
// front item is copied into out before the head swing is attempted, so when
// a concurrent Pop wins that swing and this Pop then finds the queue empty,
// out holds the bytes copied during the lost attempt.
func (q *Queue) Pop(out []byte) bool {
	sw := spin.Wait{}
	for {
		headH := Handle(q.head.LoadAcquire())
		tailH := Handle(q.tail.LoadAcquire())
		if _, ok := q.nodes.Get(headH); !ok {
			q.abaPrevented.AddAcqRel(1)
			sw.Once()
			continue
		}
		nextH := Handle(q.next[headH.index()].LoadAcquire())
		if Handle(q.head.LoadAcquire()) != headH {
			q.abaPrevented.AddAcqRel(1)
			sw.Once()
			continue
		}
		if headH == tailH {
			if nextH.IsNull() {
				q.popFails.AddAcqRel(1)
				return false
			}
			// tail lags one behind; help it catch up and retry.
			q.tail.CompareAndSwapAcqRel(uint64(tailH), uint64(nextH))
			sw.Once()
			continue
		}
		item, ok := q.nodes.Get(nextH)
		if !ok {
			q.abaPrevented.AddAcqRel(1)
			sw.Once()
			continue
		}
		// Copy the payload before swinging head: once head moves, another
		// goroutine may release and reallocate this node, in which case
		// reading item afterward would read someone else's data.
		copy(out, item)
		if Handle(q.head.LoadAcquire()) == headH && q.head.CompareAndSwapAcqRel(uint64(headH), uint64(nextH)) {
			q.nodes.Release(headH)
			q.length.AddAcqRel(-1)
			q.popCount.AddAcqRel(1)
			return true
		}
		sw.Once()
	}
}

// Peek copies the item at the front of the queue into out without removing
// it. It reports false if the queue is empty, if tail has not yet been
// swung forward past the dummy node, or if the front node is concurrently
// popped before Peek finishes reading it; in the last case out may already
// hold the copied bytes.
func (q *Queue) Peek(out []byte) bool {
	headH := Handle(q.head.LoadAcquire())
	tailH := Handle(q.tail.LoadAcquire())
	if _, ok := q.nodes.Get(headH); !ok {
		return false
	}
	nextH := Handle(q.next[headH.index()].LoadAcquire())
	if Handle(q.head.LoadAcquire()) != headH {
		return false
	}
	if headH == tailH {
		return false
	}
	item, ok := q.nodes.Get(nextH)
	if !ok {
		return false
	}
	copy(out, item)
	return Handle(q.head.LoadAcquire()) == headH
}

// Empty reports whether the queue currently has no items.
func (q *Queue) Empty() bool {
	return q.length.LoadRelaxed() == 0
}

// Length returns the queue's current item count.
func (q *Queue) Length() int {
	return int(q.length.LoadRelaxed())
}

// Stats returns a point-in-time snapshot of the queue's counters.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Capacity:     q.nodes.slotCount - 1,
		PushCount:    q.pushCount.LoadRelaxed(),
		PopCount:     q.popCount.LoadRelaxed(),
		PushFails:    q.pushFails.LoadRelaxed(),
		PopFails:     q.popFails.LoadRelaxed(),
		ABAPrevented: q.abaPrevented.LoadRelaxed(),
	}
}
