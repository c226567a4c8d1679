// Package stack allocates fixed-size stacks for kernel processes from a
// dedicated virtual memory region. Each slot is preceded by an unmapped
// guard page so that an overflowing stack faults instead of corrupting the
// slot below it. The usable portion of a slot is registered with vmm as a
// demand window and never pre-mapped; the guard page is deliberately left
// out of that window so a fault there is always fatal.
package stack

import (
	"github.com/davidlandreman/corekernel/kernel"
	"github.com/davidlandreman/corekernel/kernel/kfmt"
	"github.com/davidlandreman/corekernel/kernel/mem"
	"github.com/davidlandreman/corekernel/kernel/mem/vmm"
	"github.com/davidlandreman/corekernel/kernel/sync"
)

const (
	// SlotSize is the usable size of each process stack.
	SlotSize = 64 * mem.Kb

	// RegionBase is the start of the stack allocation region, placed above
	// the kernel heap span (heap.Base + heap.Size).
	RegionBase = uintptr(0x_5555_0000_0000)

	// MaxProcesses bounds the number of stack slots the region can hand out.
	MaxProcesses = 64

	// guardPageSize separates each stack slot from its neighbours.
	guardPageSize = uintptr(mem.PageSize)

	// totalSlotSize is the stride between consecutive slots: the guard page
	// plus the usable stack space.
	totalSlotSize = guardPageSize + uintptr(SlotSize)
)

var (
	// registerWindowFn registers a newly allocated stack slot's usable range
	// as a vmm demand window. Replaced by tests with a mock implementation.
	registerWindowFn = vmm.RegisterDemandWindow

	lock      sync.Spinlock
	nextIndex int
	freeList  []int
	allocated [MaxProcesses]bool

	errOutOfStacks = &kernel.Error{Module: "stack", Message: "maximum process limit reached"}
	errInvalidBase = &kernel.Error{Module: "stack", Message: "stack base does not belong to this allocator"}
)

// Allocate reserves a new process stack and registers its usable range as a
// vmm demand window; none of its pages is mapped until first touched. It
// returns the stack's base (lowest valid address, just above its
// guard page) and top (highest address, where RSP should initially point).
func Allocate() (base, top uintptr, err *kernel.Error) {
	lock.Acquire()
	defer lock.Release()

	index, ok := takeIndexLocked()
	if !ok {
		return 0, 0, errOutOfStacks
	}

	slotStart := RegionBase + uintptr(index)*totalSlotSize
	base = slotStart + guardPageSize
	top = slotStart + totalSlotSize

	// Only [base, top) is registered; the guard page below base is never a
	// valid demand-window target, so a fault there stays fatal.
	registerWindowFn(base, top)

	kfmt.Printf("[stack] allocated slot %d: base=0x%x top=0x%x\n", index, base, top)
	return base, top, nil
}

// takeIndexLocked reserves a slot index, preferring a freed slot over
// extending the high-water mark. Caller must hold lock.
func takeIndexLocked() (int, bool) {
	if n := len(freeList); n > 0 {
		index := freeList[n-1]
		freeList = freeList[:n-1]
		allocated[index] = true
		return index, true
	}

	if nextIndex >= MaxProcesses {
		return 0, false
	}

	index := nextIndex
	nextIndex++
	allocated[index] = true
	return index, true
}

// Free releases a stack previously returned by Allocate, making its slot
// available for reuse.
func Free(base uintptr) *kernel.Error {
	lock.Acquire()
	defer lock.Release()

	if base < RegionBase+guardPageSize {
		return errInvalidBase
	}

	offset := base - RegionBase - guardPageSize
	index := int(offset / totalSlotSize)

	if index < 0 || index >= MaxProcesses || !allocated[index] {
		return errInvalidBase
	}

	allocated[index] = false
	freeList = append(freeList, index)
	kfmt.Printf("[stack] freed slot %d\n", index)
	return nil
}

// AllocatedCount returns the number of stacks currently in use.
func AllocatedCount() int {
	lock.Acquire()
	defer lock.Release()

	count := 0
	for _, inUse := range allocated {
		if inUse {
			count++
		}
	}
	return count
}

// CanAllocate reports whether a subsequent call to Allocate is expected to
// succeed, i.e. whether a freed slot or a new high-water slot is available.
func CanAllocate() bool {
	lock.Acquire()
	defer lock.Release()

	return len(freeList) > 0 || nextIndex < MaxProcesses
}
