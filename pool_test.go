// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package anamnesis_test

import (
	"sync"
	"testing"

	"code.hybscloud.com/anamnesis"
)

func TestPool_AllocRelease(t *testing.T) {
	pool := anamnesis.NewPool(anamnesis.Config{SlotSize: 32, SlotCount: 10})

	handles := make([]anamnesis.Handle, 10)
	for i := range handles {
		h := pool.Alloc()
		if h.IsNull() {
			t.Fatalf("Alloc() %d returned null handle", i)
		}
		handles[i] = h
	}

	if h := pool.Alloc(); !h.IsNull() {
		t.Fatalf("Alloc() on exhausted pool returned non-null handle %v", h)
	}

	for _, h := range handles {
		if !pool.Release(h) {
			t.Fatalf("Release(%v) failed on a live handle", h)
		}
	}

	stats := pool.Stats()
	if stats.SlotsFree != 10 {
		t.Fatalf("SlotsFree = %d, want 10", stats.SlotsFree)
	}

	h := pool.Alloc()
	if h.IsNull() {
		t.Fatal("Alloc() after drain-and-release returned null handle")
	}
	if h.Generation() == 0 {
		t.Fatal("Generation() is 0 after a release, want nonzero")
	}
}

func TestPool_StaleHandleRejected(t *testing.T) {
	pool := anamnesis.NewPool(anamnesis.Config{SlotSize: 8, SlotCount: 1})

	h1 := pool.Alloc()
	if h1.IsNull() {
		t.Fatal("Alloc() returned null handle")
	}
	if !pool.Release(h1) {
		t.Fatal("Release() of a live handle failed")
	}
	if pool.Validate(h1) {
		t.Fatal("Validate() accepted a handle after its slot was released")
	}
	if _, ok := pool.Get(h1); ok {
		t.Fatal("Get() returned ok for a released handle")
	}
	if pool.Release(h1) {
		t.Fatal("Release() accepted a double release")
	}
}

func TestPool_ABAPrevention(t *testing.T) {
	pool := anamnesis.NewPool(anamnesis.Config{SlotSize: 8, SlotCount: 1})

	h1 := pool.Alloc()
	pool.Release(h1)
	h2 := pool.Alloc()

	if h2.Generation() == h1.Generation() {
		t.Fatal("a reallocated slot reused the previous generation")
	}
	if pool.Validate(h1) {
		t.Fatal("the stale first-incarnation handle still validates against the reused slot")
	}
	if !pool.Validate(h2) {
		t.Fatal("the current handle fails to validate")
	}
}

func TestPool_GenerationCycling(t *testing.T) {
	pool := anamnesis.NewPool(anamnesis.Config{SlotSize: 8, SlotCount: 1})

	var prev anamnesis.Handle
	for i := 0; i < 100; i++ {
		h := pool.Alloc()
		if h.IsNull() {
			t.Fatalf("Alloc() iteration %d returned null handle", i)
		}
		if int(h.Generation()) != i {
			t.Fatalf("iteration %d: Generation() = %d, want %d", i, h.Generation(), i)
		}
		if !prev.IsNull() && pool.Validate(prev) {
			t.Fatalf("iteration %d: previous generation's handle still validates", i)
		}
		prev = h
		if !pool.Release(h) {
			t.Fatalf("iteration %d: Release() failed", i)
		}
	}
	if pool.Stats().GenerationMax != 99 {
		t.Fatalf("GenerationMax = %d, want 99", pool.Stats().GenerationMax)
	}
}

func TestPool_DataIntegrity(t *testing.T) {
	pool := anamnesis.NewPool(anamnesis.Config{SlotSize: 8, SlotCount: 4})

	h := pool.Alloc()
	buf, ok := pool.Get(h)
	if !ok {
		t.Fatal("Get() failed on a freshly allocated handle")
	}
	copy(buf, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	buf2, ok := pool.Get(h)
	if !ok {
		t.Fatal("second Get() failed")
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	for i, b := range want {
		if buf2[i] != b {
			t.Fatalf("byte %d = %d, want %d", i, buf2[i], b)
		}
	}
}

func TestPool_ZeroOnAllocAndRelease(t *testing.T) {
	pool := anamnesis.NewPool(anamnesis.Config{
		SlotSize:      8,
		SlotCount:     1,
		ZeroOnAlloc:   true,
		ZeroOnRelease: true,
	})

	h := pool.Alloc()
	buf, _ := pool.Get(h)
	for _, b := range buf {
		if b != 0 {
			t.Fatal("slot not zeroed on alloc")
		}
	}
	copy(buf, []byte{9, 9, 9, 9, 9, 9, 9, 9})
	pool.Release(h)

	h2 := pool.Alloc()
	buf2, _ := pool.Get(h2)
	for _, b := range buf2 {
		if b != 0 {
			t.Fatal("slot not zeroed on release before reallocation")
		}
	}
}

func TestPool_StrictBounds(t *testing.T) {
	pool := anamnesis.NewPool(anamnesis.Config{SlotSize: 8, SlotCount: 4, StrictBounds: true})

	h := pool.Alloc()
	if h.IsNull() {
		t.Fatal("Alloc() returned null handle")
	}
	if !pool.Validate(h) {
		t.Fatal("Validate() rejected a genuine handle under StrictBounds")
	}
	if !pool.Release(h) {
		t.Fatal("Release() rejected a genuine handle under StrictBounds")
	}
}

func TestPool_InvalidConfigPanics(t *testing.T) {
	cases := []anamnesis.Config{
		{SlotSize: 0, SlotCount: 1},
		{SlotSize: 1, SlotCount: 0},
		{SlotSize: 1, SlotCount: 1, Alignment: 3},
		{SlotSize: 1, SlotCount: 1, Alignment: 4},
	}
	for i, cfg := range cases {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("case %d: NewPool(%+v) did not panic", i, cfg)
				}
			}()
			anamnesis.NewPool(cfg)
		}()
	}
}

func TestPool_Foreach(t *testing.T) {
	pool := anamnesis.NewPool(anamnesis.Config{SlotSize: 8, SlotCount: 8})

	var allocated []anamnesis.Handle
	for i := 0; i < 5; i++ {
		allocated = append(allocated, pool.Alloc())
	}
	pool.Release(allocated[1])

	seen := make(map[anamnesis.Handle]bool)
	pool.Foreach(func(h anamnesis.Handle, slot []byte) bool {
		seen[h] = true
		return true
	})

	if len(seen) != 4 {
		t.Fatalf("Foreach visited %d slots, want 4", len(seen))
	}
	if seen[allocated[1]] {
		t.Fatal("Foreach visited a released slot")
	}

	visits := 0
	pool.Foreach(func(h anamnesis.Handle, slot []byte) bool {
		visits++
		return false
	})
	if visits != 1 {
		t.Fatalf("Foreach did not stop after visit returned false: got %d visits", visits)
	}
}

func TestPool_Concurrent(t *testing.T) {
	const slotCount = 64
	const goroutines = 16
	const iterations = 2000

	pool := anamnesis.NewPool(anamnesis.Config{SlotSize: 8, SlotCount: slotCount})

	var wg sync.WaitGroup
	wg.Add(goroutines)
	var success int64
	var mu sync.Mutex

	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			local := 0
			for i := 0; i < iterations; i++ {
				h := pool.Alloc()
				if h.IsNull() {
					continue
				}
				buf, ok := pool.Get(h)
				if !ok {
					t.Errorf("goroutine %d iteration %d: Get() failed on a just-allocated handle", id, i)
					return
				}
				buf[0] = byte(id)
				if !pool.Release(h) {
					t.Errorf("goroutine %d iteration %d: Release() failed", id, i)
					return
				}
				local++
			}
			mu.Lock()
			success += int64(local)
			mu.Unlock()
		}(g)
	}
	wg.Wait()

	if success < int64(goroutines*iterations)/2 {
		t.Fatalf("success = %d, want at least half of %d", success, goroutines*iterations)
	}
	stats := pool.Stats()
	if stats.SlotsFree != slotCount {
		t.Fatalf("SlotsFree = %d, want %d after all goroutines finished", stats.SlotsFree, slotCount)
	}
	if stats.AnamnesisCount != 0 {
		t.Fatalf("AnamnesisCount = %d, want 0: a correct caller never produces a rejected access", stats.AnamnesisCount)
	}
}
