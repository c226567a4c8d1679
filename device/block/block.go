// Package block defines the generic block device abstraction that
// filesystem code reads and writes through, independent of whether the
// backing storage is a VirtIO transport or an in-memory disk image.
package block

import "github.com/davidlandreman/corekernel/kernel"

var (
	// ErrInvalidBlock is returned when a read or write targets a block
	// range outside the device.
	ErrInvalidBlock = &kernel.Error{Module: "block", Message: "invalid block range"}

	// ErrBufferTooSmall is returned when the caller's buffer cannot hold
	// the requested number of blocks.
	ErrBufferTooSmall = &kernel.Error{Module: "block", Message: "buffer too small for requested blocks"}

	// ErrReadOnly is returned by WriteBlocks on a read-only device.
	ErrReadOnly = &kernel.Error{Module: "block", Message: "device is read-only"}

	// ErrIO is returned when the underlying transport reports a failure.
	ErrIO = &kernel.Error{Module: "block", Message: "i/o error"}
)

// Device is the capability set a filesystem needs from its backing
// storage: fixed-size block read/write addressed by block number.
type Device interface {
	// ReadBlocks reads count blocks starting at block into buffer, which
	// must be at least count*BlockSize() bytes long.
	ReadBlocks(block uint64, count uint32, buffer []byte) *kernel.Error

	// WriteBlocks writes count blocks starting at block from buffer.
	WriteBlocks(block uint64, count uint32, buffer []byte) *kernel.Error

	// BlockSize returns the size in bytes of one block.
	BlockSize() uint32

	// TotalBlocks returns the number of addressable blocks on the device.
	TotalBlocks() uint64

	// IsReadOnly reports whether WriteBlocks always fails.
	IsReadOnly() bool

	// Name identifies the device for logging.
	Name() string

	// Flush requests that any buffered writes reach stable storage.
	Flush() *kernel.Error
}

// Capacity returns the total addressable size of dev in bytes.
func Capacity(dev Device) uint64 {
	return dev.TotalBlocks() * uint64(dev.BlockSize())
}

// RAMDisk is an in-memory block device backed by a plain byte slice, used
// as a test double for filesystem code and as a ramdisk-backed root when
// no physical storage is present.
type RAMDisk struct {
	name      string
	blockSize uint32
	data      []byte
	readOnly  bool
}

// NewRAMDisk creates a RAMDisk with the given name and block size, sized
// to hold totalBlocks blocks, all zeroed.
func NewRAMDisk(name string, blockSize uint32, totalBlocks uint64) *RAMDisk {
	return &RAMDisk{
		name:      name,
		blockSize: blockSize,
		data:      make([]byte, blockSize*uint32(totalBlocks)),
	}
}

// NewRAMDiskFromImage wraps an existing byte slice (for example a FAT
// filesystem image loaded from the bootloader) as a RAMDisk without
// copying it.
func NewRAMDiskFromImage(name string, blockSize uint32, image []byte) *RAMDisk {
	return &RAMDisk{
		name:      name,
		blockSize: blockSize,
		data:      image,
	}
}

// SetReadOnly marks the disk as read-only; WriteBlocks will fail with
// ErrReadOnly.
func (r *RAMDisk) SetReadOnly(readOnly bool) {
	r.readOnly = readOnly
}

func (r *RAMDisk) boundsCheck(block uint64, count uint32, bufLen int) *kernel.Error {
	if count == 0 {
		return ErrInvalidBlock
	}
	if block+uint64(count) > r.TotalBlocks() {
		return ErrInvalidBlock
	}
	if bufLen < int(count)*int(r.blockSize) {
		return ErrBufferTooSmall
	}
	return nil
}

// ReadBlocks implements Device.
func (r *RAMDisk) ReadBlocks(block uint64, count uint32, buffer []byte) *kernel.Error {
	if err := r.boundsCheck(block, count, len(buffer)); err != nil {
		return err
	}
	off := block * uint64(r.blockSize)
	n := uint64(count) * uint64(r.blockSize)
	copy(buffer, r.data[off:off+n])
	return nil
}

// WriteBlocks implements Device.
func (r *RAMDisk) WriteBlocks(block uint64, count uint32, buffer []byte) *kernel.Error {
	if r.readOnly {
		return ErrReadOnly
	}
	if err := r.boundsCheck(block, count, len(buffer)); err != nil {
		return err
	}
	off := block * uint64(r.blockSize)
	n := uint64(count) * uint64(r.blockSize)
	copy(r.data[off:off+n], buffer)
	return nil
}

// BlockSize implements Device.
func (r *RAMDisk) BlockSize() uint32 { return r.blockSize }

// TotalBlocks implements Device.
func (r *RAMDisk) TotalBlocks() uint64 { return uint64(len(r.data)) / uint64(r.blockSize) }

// IsReadOnly implements Device.
func (r *RAMDisk) IsReadOnly() bool { return r.readOnly }

// Name implements Device.
func (r *RAMDisk) Name() string { return r.name }

// Flush implements Device. A RAMDisk has no backing store to flush to.
func (r *RAMDisk) Flush() *kernel.Error { return nil }
