package virtio

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/davidlandreman/corekernel/kernel"
	"github.com/davidlandreman/corekernel/kernel/mem"
	"github.com/davidlandreman/corekernel/kernel/mem/pmm"
	"github.com/davidlandreman/corekernel/kernel/mem/vmm"
)

// installFakeFrames backs every allocated "frame" with a genuine Go byte
// slice so descriptor/avail/used ring reads and writes in the test are safe
// memory accesses, not speculative pointer arithmetic over device memory.
func installFakeFrames(t *testing.T) {
	t.Helper()

	var nextFrame pmm.Frame
	origAlloc := allocFrameFn
	origMap := mapRegionFn
	origTranslate := translateFn
	t.Cleanup(func() {
		allocFrameFn = origAlloc
		mapRegionFn = origMap
		translateFn = origTranslate
	})

	bufs := map[pmm.Frame][]byte{}
	allocFrameFn = func() (pmm.Frame, *kernel.Error) {
		nextFrame++
		return nextFrame, nil
	}
	mapRegionFn = func(frame pmm.Frame, size mem.Size, _ vmm.PageTableEntryFlag) (uintptr, *kernel.Error) {
		buf := make([]byte, size)
		bufs[frame] = buf
		return uintptr(unsafe.Pointer(&buf[0])), nil
	}
	translateFn = func(addr uintptr) (uintptr, *kernel.Error) {
		return addr, nil
	}
}

func TestNewVirtqueueBuildsFreeList(t *testing.T) {
	installFakeFrames(t)

	q, ok := newVirtqueue(4)
	if !ok {
		t.Fatal("expected newVirtqueue to succeed")
	}
	if q.numFree != 4 {
		t.Fatalf("expected 4 free descriptors, got %d", q.numFree)
	}
	for i := uint16(0); i < 3; i++ {
		if q.descNext(i) != i+1 {
			t.Fatalf("expected descriptor %d to chain to %d", i, i+1)
		}
	}
}

func TestAddBufferPublishesDescriptorAndAvailEntry(t *testing.T) {
	installFakeFrames(t)
	q, _ := newVirtqueue(4)

	data := make([]byte, 24)
	idx, ok := q.AddBuffer(data, true)
	if !ok {
		t.Fatal("expected AddBuffer to succeed")
	}
	if idx != 0 {
		t.Fatalf("expected first descriptor to be index 0, got %d", idx)
	}
	if q.numFree != 3 {
		t.Fatalf("expected 3 free descriptors remaining, got %d", q.numFree)
	}
	if q.availIdx() != 1 {
		t.Fatalf("expected avail idx to advance to 1, got %d", q.availIdx())
	}
}

func TestAddBufferFailsWhenQueueFull(t *testing.T) {
	installFakeFrames(t)
	q, _ := newVirtqueue(1)

	data := make([]byte, 8)
	if _, ok := q.AddBuffer(data, true); !ok {
		t.Fatal("expected first AddBuffer to succeed")
	}
	if _, ok := q.AddBuffer(data, true); ok {
		t.Fatal("expected second AddBuffer to fail: queue has only 1 descriptor")
	}
}

func (q *Virtqueue) setUsedEntryForTest(slot int, id, length uint32) {
	off := 4 + slot*8
	binary.LittleEndian.PutUint32(q.usedRing[off:], id)
	binary.LittleEndian.PutUint32(q.usedRing[off+4:], length)
}

func (q *Virtqueue) setUsedIdxForTest(idx uint16) {
	binary.LittleEndian.PutUint16(q.usedRing[2:], idx)
}

func TestPopUsedRecyclesDescriptorAndReportsLength(t *testing.T) {
	installFakeFrames(t)
	q, _ := newVirtqueue(4)

	data := make([]byte, 24)
	idx, _ := q.AddBuffer(data, true)

	if q.HasUsedBuffers() {
		t.Fatal("expected no used buffers before the device completes any")
	}

	// Simulate the device completing descriptor idx with 24 bytes written.
	q.setUsedEntryForTest(0, uint32(idx), 24)
	q.setUsedIdxForTest(1)

	if !q.HasUsedBuffers() {
		t.Fatal("expected a used buffer to be visible")
	}

	gotIdx, gotLen, ok := q.PopUsed()
	if !ok {
		t.Fatal("expected PopUsed to succeed")
	}
	if gotIdx != idx || gotLen != 24 {
		t.Fatalf("expected (idx=%d, len=24), got (idx=%d, len=%d)", idx, gotIdx, gotLen)
	}
	if q.numFree != 4 {
		t.Fatalf("expected descriptor to be recycled, numFree=%d", q.numFree)
	}

	if _, _, ok := q.PopUsed(); ok {
		t.Fatal("expected PopUsed to report nothing once drained")
	}
}

func TestAddChainLinksDescriptorsAndConsumesThatManyFree(t *testing.T) {
	installFakeFrames(t)
	q, _ := newVirtqueue(4)

	header := make([]byte, 16)
	data := make([]byte, 512)
	status := make([]byte, 1)

	head, ok := q.AddChain([]BufferSpec{
		{Data: header, DeviceWritable: false},
		{Data: data, DeviceWritable: true},
		{Data: status, DeviceWritable: true},
	})
	if !ok {
		t.Fatal("expected AddChain to succeed")
	}
	if q.numFree != 1 {
		t.Fatalf("expected 1 free descriptor remaining, got %d", q.numFree)
	}
	if q.descFlags(head)&descFlagNext == 0 {
		t.Fatal("expected head descriptor to chain to the next one")
	}

	second := q.descNext(head)
	if q.descFlags(second)&descFlagWrite == 0 {
		t.Fatal("expected the data descriptor to be device-writable")
	}
	third := q.descNext(second)
	if q.descFlags(third)&descFlagNext != 0 {
		t.Fatal("expected the status descriptor to terminate the chain")
	}
}

func TestPopUsedRecyclesEntireChain(t *testing.T) {
	installFakeFrames(t)
	q, _ := newVirtqueue(4)

	buffers := []BufferSpec{
		{Data: make([]byte, 16), DeviceWritable: false},
		{Data: make([]byte, 512), DeviceWritable: true},
		{Data: make([]byte, 1), DeviceWritable: true},
	}
	head, _ := q.AddChain(buffers)

	q.setUsedEntryForTest(0, uint32(head), 513)
	q.setUsedIdxForTest(1)

	_, _, ok := q.PopUsed()
	if !ok {
		t.Fatal("expected PopUsed to succeed")
	}
	if q.numFree != 4 {
		t.Fatalf("expected all 3 chained descriptors recycled, numFree=%d", q.numFree)
	}
}

func TestNotifyCallsNotifyFn(t *testing.T) {
	installFakeFrames(t)
	q, _ := newVirtqueue(2)

	called := false
	q.notifyFn = func() { called = true }
	q.Notify()

	if !called {
		t.Fatal("expected Notify to invoke notifyFn")
	}
}
