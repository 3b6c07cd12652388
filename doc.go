// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package anamnesis provides a lock-free, fixed-capacity object pool whose
// handles are self-authenticating, plus a Michael-Scott lock-free MPMC queue
// built on top of it.
//
// # Handles
//
// A Handle is an opaque 64-bit value packing a slot's generation, index, and
// lifecycle state. It is the only identity that should cross goroutine or
// package boundaries; the pool decides, on every access, whether a handle
// still designates the slot its caller originally received or whether the
// slot has since been reused:
//
//	pool := anamnesis.NewPool(anamnesis.Config{SlotSize: 64, SlotCount: 1024})
//	h := pool.Alloc()
//	if h.IsNull() {
//	    // pool exhausted
//	}
//	buf, ok := pool.Get(h) // authenticates h against the slot's true generation
//	pool.Release(h)        // generation increments; h is now counterfeit
//	_, ok = pool.Get(h)     // ok == false: the counterfeit is exposed
//
// # Generations and ABA
//
// Every slot carries a 16-bit generation counter. Release increments it
// (modulo 2^16) before the slot returns to the free list. A handle captured
// before a release, then replayed after the slot is reallocated, carries the
// old generation and fails to authenticate — this is what keeps compare-and-
// swap loops in both the pool's free list and the Queue immune to the ABA
// problem without a separate version counter.
//
// # Pool
//
// Pool is a lock-free Treiber-stack free list over a fixed array of slots.
// Allocation, release, and validated access are all wait-free or lock-free;
// none of them block, sleep, or perform I/O. An optional BlockingPool wraps
// Pool with iox.ErrWouldBlock/iox.Backoff semantics for callers that want a
// blocking Alloc when the pool is temporarily exhausted.
//
// # Queue
//
// Queue is a Michael-Scott FIFO whose nodes are slots drawn from a private
// Pool sized to the queue's capacity plus one (for the permanent dummy
// node). Every CAS in Push/Pop operates on handles, not raw pointers, so
// the queue inherits the pool's ABA immunity for free:
//
//	q := anamnesis.NewQueue(anamnesis.QueueConfig{ItemSize: 8, Capacity: 1024})
//	q.Push(itemBytes)
//	ok := q.Pop(outBytes)
//
// # Thread Safety
//
// All Pool and Queue operations are safe for concurrent use by any number of
// goroutines without external synchronization.
//
// # Architecture Requirements
//
// This package requires a 64-bit CPU architecture (amd64, arm64, riscv64,
// loong64, and other 64-bit targets via the generic cache-line fallback).
// 32-bit architectures are not supported: a Handle's address field assumes a
// 45-bit index space backed by 64-bit atomic compare-and-swap.
//
// # Dependencies
//
// anamnesis depends on:
//   - atomix: explicit-memory-order atomic wrappers (LoadAcquire, StoreRelease, ...)
//   - iox: semantic error types (ErrWouldBlock) and adaptive backoff
//   - spin: spin-wait primitives for internal CAS retry loops
package anamnesis
