package virtio

import (
	"encoding/binary"
	"unsafe"

	"github.com/davidlandreman/corekernel/kernel/mem"
	"github.com/davidlandreman/corekernel/kernel/mem/vmm"
)

// Split virtqueue descriptor flags.
const (
	descFlagNext  = 1
	descFlagWrite = 2
)

const descSize = 16 // addr(8) + len(4) + flags(2) + next(2)

// Virtqueue is a split virtqueue: a descriptor table, an available ring the
// driver appends to and a used ring the device appends to. Each region is
// allocated in its own page and registered with the device by physical
// address, as permitted by VirtIO 1.0's modern transport.
type Virtqueue struct {
	size uint16

	descTable []byte
	availRing []byte
	usedRing  []byte

	descPhys  uint64
	availPhys uint64
	usedPhys  uint64

	freeHead    uint16
	numFree     uint16
	lastUsedIdx uint16

	notifyFn func()
}

// Size returns the number of descriptors in the queue.
func (q *Virtqueue) Size() uint16 {
	return q.size
}

func newVirtqueue(size uint16) (*Virtqueue, bool) {
	descRegion, descPhys, ok := allocMappedPage()
	if !ok {
		return nil, false
	}
	availRegion, availPhys, ok := allocMappedPage()
	if !ok {
		return nil, false
	}
	usedRegion, usedPhys, ok := allocMappedPage()
	if !ok {
		return nil, false
	}

	if int(size)*descSize > len(descRegion) {
		return nil, false
	}

	q := &Virtqueue{
		size:      size,
		descTable: descRegion[:int(size)*descSize],
		availRing: availRegion[:4+int(size)*2],
		usedRing:  usedRegion[:4+int(size)*8],
		descPhys:  descPhys,
		availPhys: availPhys,
		usedPhys:  usedPhys,
		numFree:   size,
	}

	for i := uint16(0); i < size; i++ {
		q.setDescNext(i, i+1)
	}

	return q, true
}

func allocMappedPage() ([]byte, uint64, bool) {
	frame, err := allocFrameFn()
	if err != nil {
		return nil, 0, false
	}

	addr, err := mapRegionFn(frame, mem.PageSize, vmm.FlagPresent|vmm.FlagRW)
	if err != nil {
		return nil, 0, false
	}

	physAddr, terr := translateFn(addr)
	if terr != nil {
		return nil, 0, false
	}

	return sliceFromAddr(addr, int(mem.PageSize)), uint64(physAddr), true
}

func (q *Virtqueue) descOffset(idx uint16) int { return int(idx) * descSize }

func (q *Virtqueue) setDesc(idx uint16, addr uint64, length uint32, flags, next uint16) {
	off := q.descOffset(idx)
	binary.LittleEndian.PutUint64(q.descTable[off:], addr)
	binary.LittleEndian.PutUint32(q.descTable[off+8:], length)
	binary.LittleEndian.PutUint16(q.descTable[off+12:], flags)
	binary.LittleEndian.PutUint16(q.descTable[off+14:], next)
}

func (q *Virtqueue) descNext(idx uint16) uint16 {
	return binary.LittleEndian.Uint16(q.descTable[q.descOffset(idx)+14:])
}

func (q *Virtqueue) setDescNext(idx, next uint16) {
	binary.LittleEndian.PutUint16(q.descTable[q.descOffset(idx)+14:], next)
}

func (q *Virtqueue) availIdx() uint16 {
	return binary.LittleEndian.Uint16(q.availRing[2:])
}

func (q *Virtqueue) setAvailIdx(idx uint16) {
	binary.LittleEndian.PutUint16(q.availRing[2:], idx)
}

func (q *Virtqueue) setAvailRingEntry(slot, descIdx uint16) {
	off := 4 + int(slot)*2
	binary.LittleEndian.PutUint16(q.availRing[off:], descIdx)
}

func (q *Virtqueue) usedIdx() uint16 {
	return binary.LittleEndian.Uint16(q.usedRing[2:])
}

// AddBuffer publishes data as a single descriptor to the device. When
// deviceWritable is true the descriptor is marked write-only from the
// device's perspective (used for receive buffers); otherwise it is
// device-readable (used for transmit buffers). It returns false if no
// descriptor is free.
func (q *Virtqueue) AddBuffer(data []byte, deviceWritable bool) (uint16, bool) {
	if q.numFree == 0 || len(data) == 0 {
		return 0, false
	}

	idx := q.freeHead
	q.freeHead = q.descNext(idx)
	q.numFree--

	physAddr, err := translateFn(uintptr(unsafe.Pointer(&data[0])))
	if err != nil {
		q.freeChain(idx)
		return 0, false
	}

	flags := uint16(0)
	if deviceWritable {
		flags = descFlagWrite
	}
	q.setDesc(idx, uint64(physAddr), uint32(len(data)), flags, 0)

	slot := q.availIdx() % q.size
	q.setAvailRingEntry(slot, idx)
	q.setAvailIdx(q.availIdx() + 1)

	return idx, true
}

// BufferSpec describes one descriptor in a chain passed to AddChain.
type BufferSpec struct {
	Data           []byte
	DeviceWritable bool
}

// AddChain publishes a chain of descriptors as a single request, in order:
// the device reads the data in each non-writable buffer and writes its
// response into each writable one. This is how block-device requests
// combine a device-readable header, a data buffer and a device-writable
// status byte into one request the device processes atomically. It
// returns the head descriptor index, or false if there are not enough
// free descriptors for the whole chain.
func (q *Virtqueue) AddChain(buffers []BufferSpec) (uint16, bool) {
	if len(buffers) == 0 || int(q.numFree) < len(buffers) {
		return 0, false
	}

	indices := make([]uint16, len(buffers))
	head := q.freeHead
	cursor := head
	for i := range buffers {
		indices[i] = cursor
		cursor = q.descNext(cursor)
	}
	q.freeHead = cursor
	q.numFree -= uint16(len(buffers))

	for i, buf := range buffers {
		if len(buf.Data) == 0 {
			continue
		}
		physAddr, err := translateFn(uintptr(unsafe.Pointer(&buf.Data[0])))
		if err != nil {
			continue
		}

		flags := uint16(0)
		if buf.DeviceWritable {
			flags |= descFlagWrite
		}
		next := uint16(0)
		if i < len(buffers)-1 {
			flags |= descFlagNext
			next = indices[i+1]
		}
		q.setDesc(indices[i], uint64(physAddr), uint32(len(buf.Data)), flags, next)
	}

	slot := q.availIdx() % q.size
	q.setAvailRingEntry(slot, head)
	q.setAvailIdx(q.availIdx() + 1)

	return head, true
}

// Notify rings the device's doorbell for this queue.
func (q *Virtqueue) Notify() {
	if q.notifyFn != nil {
		q.notifyFn()
	}
}

// HasUsedBuffers reports whether the device has completed at least one
// buffer that PopUsed has not yet consumed.
func (q *Virtqueue) HasUsedBuffers() bool {
	return q.usedIdx() != q.lastUsedIdx
}

// PopUsed returns the descriptor index and byte length of the next
// device-completed buffer, recycling the descriptor back onto the free
// list. It returns false when the used ring has nothing new.
func (q *Virtqueue) PopUsed() (uint16, uint32, bool) {
	if !q.HasUsedBuffers() {
		return 0, 0, false
	}

	entryOff := 4 + int(q.lastUsedIdx%q.size)*8
	id := binary.LittleEndian.Uint32(q.usedRing[entryOff:])
	length := binary.LittleEndian.Uint32(q.usedRing[entryOff+4:])
	q.lastUsedIdx++

	descIdx := uint16(id)
	q.freeChain(descIdx)

	return descIdx, length, true
}

func (q *Virtqueue) descFlags(idx uint16) uint16 {
	return binary.LittleEndian.Uint16(q.descTable[q.descOffset(idx)+12:])
}

// freeChain returns every descriptor in the chain starting at head back
// onto the free list, following each descriptor's next pointer while its
// descFlagNext bit is set.
func (q *Virtqueue) freeChain(head uint16) {
	idx := head
	for {
		hasNext := q.descFlags(idx)&descFlagNext != 0
		next := q.descNext(idx)

		q.setDescNext(idx, q.freeHead)
		q.freeHead = idx
		q.numFree++

		if !hasNext {
			break
		}
		idx = next
	}
}
