// Package heap implements a first-fit free-list allocator over a fixed
// virtual address span. The span is registered at Init time as a vmm demand
// window; no page inside it is mapped until it is actually touched, at
// which point the vmm package's page-fault handler allocates and zeroes a
// fresh frame on the caller's behalf.
package heap

import (
	"github.com/davidlandreman/corekernel/kernel"
	"github.com/davidlandreman/corekernel/kernel/kfmt"
	"github.com/davidlandreman/corekernel/kernel/mem"
	"github.com/davidlandreman/corekernel/kernel/mem/vmm"
	"unsafe"
)

const (
	// Base is the fixed virtual address where the heap span begins.
	Base = uintptr(0x_4444_4444_0000)

	// Size is the total size of the heap's virtual address span.
	Size = 100 * mem.Mb

	// minBlockSize is the smallest block the allocator will ever hand out;
	// requests are rounded up to a multiple of this value.
	minBlockSize = 32
)

// blockHeader precedes every block (free or allocated) inside the heap span.
// All blocks, free and allocated alike, are singly-linked via next starting
// at freeList; the list is always kept ordered by ascending address so that
// coalesce can test adjacency with simple pointer arithmetic.
type blockHeader struct {
	size uint64
	free bool
	next *blockHeader
}

var headerSize = unsafe.Sizeof(blockHeader{})

var (
	// registerWindowFn registers the heap span as a vmm demand window.
	// Replaced by tests with a mock implementation.
	registerWindowFn = vmm.RegisterDemandWindow

	freeList *blockHeader
	initDone bool

	errNotInitialized = &kernel.Error{Module: "heap", Message: "heap not initialized"}
	errOutOfMemory    = &kernel.Error{Module: "heap", Message: "out of memory"}
	errDoubleFree     = &kernel.Error{Module: "heap", Message: "double free or corrupt pointer"}
)

// Init registers the heap's virtual address span with the vmm package. No
// page is mapped until it is actually written to; the page-fault handler
// takes care of materializing and zeroing the backing frame at that point.
func Init() *kernel.Error {
	registerWindowFn(Base, Base+uintptr(Size))

	freeList = (*blockHeader)(unsafe.Pointer(Base))
	*freeList = blockHeader{size: uint64(Size) - uint64(headerSize), free: true}
	initDone = true

	kfmt.Printf("[heap] reserved %d MiB at 0x%x (demand-paged)\n", uint64(Size/mem.Mb), Base)
	return nil
}

// dataPtr returns the address of the first usable byte following blk's
// header.
func dataPtr(blk *blockHeader) uintptr {
	return uintptr(unsafe.Pointer(blk)) + headerSize
}

// Alloc reserves a block of at least size bytes and returns a pointer to its
// first byte. It returns a nil pointer and a non-nil error if the heap has
// not been initialized or no free block is large enough to satisfy size.
func Alloc(size mem.Size) (uintptr, *kernel.Error) {
	if !initDone {
		return 0, errNotInitialized
	}

	want := align(uint64(size), minBlockSize)

	for blk := freeList; blk != nil; blk = blk.next {
		if !blk.free || blk.size < want {
			continue
		}

		splitBlock(blk, want)
		blk.free = false

		return dataPtr(blk), nil
	}

	return 0, errOutOfMemory
}

// Free releases a block previously returned by Alloc, coalescing it with any
// adjacent free blocks in the list.
func Free(ptr uintptr) *kernel.Error {
	if !initDone || ptr == 0 {
		return errNotInitialized
	}

	blk := (*blockHeader)(unsafe.Pointer(ptr - headerSize))
	if blk.free {
		return errDoubleFree
	}

	blk.free = true
	coalesce()
	return nil
}

// splitBlock carves a block of exactly want bytes out of the front of blk,
// reinserting the remainder (if large enough to be useful) immediately after
// it in the free list.
func splitBlock(blk *blockHeader, want uint64) {
	remaining := blk.size - want
	if remaining <= uint64(headerSize)+minBlockSize {
		return
	}

	blk.size = want

	remainderAddr := dataPtr(blk) + uintptr(want)
	remainder := (*blockHeader)(unsafe.Pointer(remainderAddr))
	*remainder = blockHeader{
		size: remaining - uint64(headerSize),
		free: true,
		next: blk.next,
	}
	blk.next = remainder
}

// coalesce merges consecutive free blocks in the list into single, larger
// free blocks, undoing the fragmentation left behind by earlier splits.
func coalesce() {
	for blk := freeList; blk != nil && blk.next != nil; {
		if blk.free && blk.next.free && adjacent(blk) {
			blk.size += uint64(headerSize) + blk.next.size
			blk.next = blk.next.next
			continue
		}
		blk = blk.next
	}
}

// adjacent reports whether blk.next begins exactly where blk's data ends,
// i.e. whether the two blocks are contiguous in the heap span.
func adjacent(blk *blockHeader) bool {
	return dataPtr(blk)+uintptr(blk.size) == uintptr(unsafe.Pointer(blk.next))
}

func align(n, to uint64) uint64 {
	return (n + to - 1) &^ (to - 1)
}
