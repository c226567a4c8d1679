// Package block implements the VirtIO block device transport: a single
// request queue carrying a 3-descriptor chain per request (a
// device-readable header, a data buffer, and a device-writable status
// byte), exposed as a device/block.Device. There is no legacy hardware
// counterpart for this transport in the original driver set; it is
// modeled directly on the generic virtqueue machinery device/virtio
// provides, following the standard VirtIO block device wire format.
package block

import (
	"encoding/binary"

	blockdev "github.com/davidlandreman/corekernel/device/block"
	"github.com/davidlandreman/corekernel/device/pci"
	"github.com/davidlandreman/corekernel/device/virtio"
	"github.com/davidlandreman/corekernel/kernel"
)

const (
	reqTypeIn  = 0 // read
	reqTypeOut = 1 // write
)

const (
	statusOK     = 0
	statusIOErr  = 1
	statusUnsupp = 2
)

const headerSize = 16 // type(4) + reserved(4) + sector(8)
const sectorSize = 512

// blkConfig offsets within the device-specific configuration region.
const configCapacity = 0x00 // uint64, in 512-byte sectors

// blkFeatureRO is VIRTIO_BLK_F_RO: the device is read-only.
const blkFeatureRO = 1 << 5

// ErrRequestFailed is returned when the device reports an I/O error for a
// submitted request.
var ErrRequestFailed = &kernel.Error{Module: "virtio/block", Message: "request failed"}

// Device is a VirtIO block transport exposed as a device/block.Device.
// Block size is fixed at the VirtIO-blk standard 512 bytes; FAT volumes
// with a larger logical sector size read/write in multiples of it.
type Device struct {
	raw      *virtio.Device
	requestq *virtio.Virtqueue
	readOnly bool
}

// New negotiates and brings up a VirtIO block device found on pciDev.
func New(pciDev *pci.Device) (*Device, bool) {
	raw, ok := virtio.New(pciDev)
	if !ok {
		return nil, false
	}
	if !raw.InitSimple() {
		return nil, false
	}

	q, ok := raw.SetupQueue(0)
	if !ok {
		return nil, false
	}

	readOnly := raw.ReadDeviceFeatures()&blkFeatureRO != 0

	raw.FinishInit()

	return &Device{raw: raw, requestq: q, readOnly: readOnly}, true
}

func (d *Device) capacitySectors() uint64 {
	cfg := d.raw.DeviceConfig()
	if len(cfg) < configCapacity+8 {
		return 0
	}
	return binary.LittleEndian.Uint64(cfg[configCapacity:])
}

// buildHeader encodes a virtio_blk_req header: type, a reserved field kept
// zero, and the starting sector.
func buildHeader(reqType uint32, sector uint64) []byte {
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:], reqType)
	binary.LittleEndian.PutUint32(header[4:], 0)
	binary.LittleEndian.PutUint64(header[8:], sector)
	return header
}

// decodeStatus translates the device-writable status byte into an error,
// or nil when the request succeeded.
func decodeStatus(status byte) *kernel.Error {
	if status == statusOK {
		return nil
	}
	return ErrRequestFailed
}

// submit builds and posts a 3-descriptor request, notifies the device and
// busy-waits for its completion. data is read from for a write request
// and written to for a read request.
func (d *Device) submit(reqType uint32, sector uint64, data []byte) *kernel.Error {
	header := buildHeader(reqType, sector)
	status := make([]byte, 1)

	buffers := []virtio.BufferSpec{
		{Data: header, DeviceWritable: false},
		{Data: data, DeviceWritable: reqType == reqTypeIn},
		{Data: status, DeviceWritable: true},
	}

	head, ok := d.requestq.AddChain(buffers)
	if !ok {
		return ErrRequestFailed
	}
	d.requestq.Notify()

	for {
		if !d.requestq.HasUsedBuffers() {
			continue
		}
		idx, _, ok := d.requestq.PopUsed()
		if !ok || idx != head {
			continue
		}
		break
	}
	d.raw.ReadISR()

	return decodeStatus(status[0])
}

// ReadBlocks implements device/block.Device, reading count 512-byte
// sectors starting at block into buffer.
func (d *Device) ReadBlocks(block uint64, count uint32, buffer []byte) *kernel.Error {
	if uint64(count)*sectorSize > uint64(len(buffer)) {
		return blockdev.ErrBufferTooSmall
	}
	for i := uint32(0); i < count; i++ {
		sector := block + uint64(i)
		if sector >= d.TotalBlocks() {
			return blockdev.ErrInvalidBlock
		}
		chunk := buffer[uint64(i)*sectorSize : uint64(i+1)*sectorSize]
		if err := d.submit(reqTypeIn, sector, chunk); err != nil {
			return err
		}
	}
	return nil
}

// WriteBlocks implements device/block.Device.
func (d *Device) WriteBlocks(block uint64, count uint32, buffer []byte) *kernel.Error {
	if d.readOnly {
		return blockdev.ErrReadOnly
	}
	if uint64(count)*sectorSize > uint64(len(buffer)) {
		return blockdev.ErrBufferTooSmall
	}
	for i := uint32(0); i < count; i++ {
		sector := block + uint64(i)
		if sector >= d.TotalBlocks() {
			return blockdev.ErrInvalidBlock
		}
		chunk := buffer[uint64(i)*sectorSize : uint64(i+1)*sectorSize]
		if err := d.submit(reqTypeOut, sector, chunk); err != nil {
			return err
		}
	}
	return nil
}

// BlockSize implements device/block.Device.
func (d *Device) BlockSize() uint32 { return sectorSize }

// TotalBlocks implements device/block.Device.
func (d *Device) TotalBlocks() uint64 { return d.capacitySectors() }

// IsReadOnly implements device/block.Device.
func (d *Device) IsReadOnly() bool { return d.readOnly }

// Name implements device/block.Device.
func (d *Device) Name() string { return "virtio-blk" }

// Flush implements device/block.Device. VirtIO-blk without the F_FLUSH
// feature has no separate flush command; writes complete synchronously.
func (d *Device) Flush() *kernel.Error { return nil }

// Find locates the first usable VirtIO block device on the PCI bus.
func Find() (*Device, bool) {
	for _, dev := range pci.FindVirtIOBlockDevices() {
		dev := dev
		if blk, ok := New(&dev); ok {
			return blk, true
		}
	}
	return nil, false
}
