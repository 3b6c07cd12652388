// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package anamnesis

import "code.hybscloud.com/iox"

// BlockingPool wraps a Pool to give Alloc adaptive-wait blocking semantics
// when the pool is temporarily exhausted, instead of returning the null
// handle immediately.
//
// Release, Get, and Validate never block on capacity in this design — only
// Alloc can be starved by exhaustion — so BlockingPool only wraps Alloc and
// otherwise defers straight through to the underlying Pool.
type BlockingPool struct {
	*Pool
	nonblocking bool
}

// NewBlockingPool creates a BlockingPool over a Pool built from cfg.
func NewBlockingPool(cfg Config) *BlockingPool {
	return &BlockingPool{Pool: NewPool(cfg)}
}

// SetNonblock switches BlockingAlloc between blocking and nonblocking mode.
// Nonblocking mode makes BlockingAlloc return the null handle together with
// iox.ErrWouldBlock immediately instead of waiting.
func (p *BlockingPool) SetNonblock(nonblocking bool) {
	p.nonblocking = nonblocking
}

// BlockingAlloc allocates a slot, waiting for one to become available if the
// pool is currently exhausted. It returns iox.ErrWouldBlock immediately
// instead of waiting if the pool is in nonblocking mode.
//
// Exhaustion here is assumed to be resolved by another goroutine calling
// Release — an external, unbounded-latency event — so BlockingAlloc uses
// adaptive waiting (iox.Backoff) rather than a hardware spin loop.
func (p *BlockingPool) BlockingAlloc() (Handle, error) {
	var aw iox.Backoff
	for {
		h := p.Pool.Alloc()
		if !h.IsNull() {
			return h, nil
		}
		if p.nonblocking {
			return 0, iox.ErrWouldBlock
		}
		aw.Wait()
	}
}
