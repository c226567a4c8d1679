package heap

import (
	"github.com/davidlandreman/corekernel/kernel"
	"github.com/davidlandreman/corekernel/kernel/mem"
	"testing"
	"unsafe"
)

// testArena backs the heap span with regular Go memory instead of a real
// page mapping so Init/Alloc/Free can be exercised without an MMU.
var testArena [Size]byte

func resetHeap(t *testing.T) {
	t.Helper()

	origRegisterWindowFn := registerWindowFn
	t.Cleanup(func() { registerWindowFn = origRegisterWindowFn })
	registerWindowFn = func(_, _ uintptr) {}

	freeList = (*blockHeader)(unsafe.Pointer(&testArena[0]))
	*freeList = blockHeader{size: uint64(Size) - uint64(headerSize), free: true}
	initDone = true
}

func TestAllocFreeRoundTrip(t *testing.T) {
	resetHeap(t)

	ptr, err := Alloc(128)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ptr == 0 {
		t.Fatal("expected non-zero pointer")
	}

	if err := Free(ptr); err != nil {
		t.Fatalf("unexpected error freeing block: %v", err)
	}
}

func TestAllocBeforeInit(t *testing.T) {
	origInitDone := initDone
	defer func() { initDone = origInitDone }()
	initDone = false

	if _, err := Alloc(mem.Size(16)); err != errNotInitialized {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
}

func TestDoubleFreeDetected(t *testing.T) {
	resetHeap(t)

	ptr, err := Alloc(64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := Free(ptr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := Free(ptr); err != errDoubleFree {
		t.Fatalf("expected errDoubleFree, got %v", err)
	}
}

func TestAllocExhaustion(t *testing.T) {
	resetHeap(t)

	var last uintptr
	var err *kernel.Error
	for {
		last, err = Alloc(mem.Size(Size))
		if err != nil {
			break
		}
	}

	if err != errOutOfMemory {
		t.Fatalf("expected errOutOfMemory, got %v", err)
	}
	_ = last
}

func TestCoalesceMergesAdjacentFreeBlocks(t *testing.T) {
	resetHeap(t)

	a, err := Alloc(64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Alloc(64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := Free(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Free(b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// After freeing both adjacent blocks the free list should have merged
	// back down to a single block covering (most of) the arena.
	count := 0
	for blk := freeList; blk != nil; blk = blk.next {
		count++
	}
	if count != 1 {
		t.Fatalf("expected a single coalesced free block, got %d", count)
	}
}
