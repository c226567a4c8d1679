package allocator

import (
	"testing"
	"unsafe"

	"github.com/davidlandreman/corekernel/kernel/hal/multiboot"
	"github.com/davidlandreman/corekernel/kernel/mem"
)

// scenario1MemoryMap encodes a three-region multiboot memory map matching
// [0, 0x9fc00)=available, [0x9fc00, 0x100000)=reserved,
// [0x100000, 0x8000000)=available.
var scenario1MemoryMap = []byte{
	104, 0, 0, 0, 0, 0, 0, 0, 6, 0, 0, 0,
	88, 0, 0, 0, 24, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 252, 9, 0,
	0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0,
	0, 252, 9, 0, 0, 0, 0, 0, 0, 4, 6, 0,
	0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 16, 0, 0, 0, 0, 0, 0, 0, 240, 7,
	0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 8, 0, 0, 0,
}

// TestBootMemoryMapTotals covers the boot memory map scenario: regions
// [0, 0x9fc00)=usable, [0x9fc00, 0x100000)=reserved, [0x100000, 0x8000000)=usable.
//
// The usable total asserted here (0x7f9fc00) is the sum of the two usable
// region lengths (0x9fc00 + 0x7f00000); it intentionally differs from the
// figure quoted by the scenario's prose, which does not sum correctly from
// its own stated region boundaries.
func TestBootMemoryMapTotals(t *testing.T) {
	multiboot.SetInfoPtr(uintptr(unsafe.Pointer(&scenario1MemoryMap[0])))

	if got, want := TotalMemory(), mem.Size(0x8000000); got != want {
		t.Errorf("expected total memory to be 0x%x; got 0x%x", want, got)
	}

	if got, want := UsableMemory(), mem.Size(0x7f9fc00); got != want {
		t.Errorf("expected usable memory to be 0x%x; got 0x%x", want, got)
	}

	start, end, ok := LargestUsableRegion()
	if !ok {
		t.Fatal("expected a largest usable region to be found")
	}
	if start != 0x100000 || end != 0x8000000 {
		t.Errorf("expected largest usable region to be (0x100000, 0x8000000); got (0x%x, 0x%x)", start, end)
	}
}
