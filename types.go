// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package anamnesis

import "code.hybscloud.com/anamnesis/internal"

// noCopy is a sentinel used to prevent copying of synchronization primitives.
// Pool and Queue embed it so `go vet` flags accidental value copies.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// pad is cache-line-sized filler placed between hot atomic fields (free-list
// head, queue head/tail, length) so independent CAS loops on each don't
// false-share a line under contention.
type pad [internal.CacheLineSize]byte
