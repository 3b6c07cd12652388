// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build amd64

package internal

// CacheLineSize is the L1 cache line size for x86-64 architectures, used to
// size the padding between a Pool's and a Queue's hot atomic fields so that
// concurrent CAS loops on free_head, head, and tail don't false-share a line.
// All modern Intel and AMD processors use 64-byte cache lines.
const CacheLineSize = 64
