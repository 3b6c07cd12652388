// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build arm64

package internal

// CacheLineSize sizes the padding inserted between a Pool's and a Queue's
// hot atomic fields on ARM64. Apple Silicon (M1/M2/M3) uses 128-byte L2
// cache lines, but L1 is 64 bytes. Most ARM Cortex-A series use 64-byte L1
// cache lines. 128 bytes is used as a conservative value covering both.
const CacheLineSize = 128
