// Package virtio implements VirtIO 1.0 modern-mode device negotiation over
// a PCI transport: capability parsing, the common configuration structure
// and the status/feature/queue bring-up sequence shared by every VirtIO
// device type.
package virtio

import (
	"encoding/binary"
	"reflect"
	"unsafe"

	"github.com/davidlandreman/corekernel/device/pci"
	"github.com/davidlandreman/corekernel/kernel"
	"github.com/davidlandreman/corekernel/kernel/mem"
	"github.com/davidlandreman/corekernel/kernel/mem/pmm"
	"github.com/davidlandreman/corekernel/kernel/mem/pmm/allocator"
	"github.com/davidlandreman/corekernel/kernel/mem/vmm"
)

// Device status bits, written to the common configuration's device status
// register while negotiating a device.
const (
	StatusAcknowledge      = 0x01
	StatusDriver           = 0x02
	StatusDriverOK         = 0x04
	StatusFeaturesOK       = 0x08
	StatusDeviceNeedsReset = 0x40
	StatusFailed           = 0x80
)

// vendorCapID is the PCI capability ID VirtIO uses for all of its
// vendor-specific capabilities. cfgType selects which structure a given
// capability describes.
const (
	vendorCapID = 0x09

	cfgTypeCommon = 1
	cfgTypeNotify = 2
	cfgTypeISR    = 3
	cfgTypeDevice = 4
)

// Field offsets within a VirtIO PCI capability structure, common to every
// cfgType.
const (
	capOffsetCapVndr          = 0x00
	capOffsetCapNext          = 0x01
	capOffsetCapLen           = 0x02
	capOffsetCfgType          = 0x03
	capOffsetBAR              = 0x04
	capOffsetOffset           = 0x08
	capOffsetLength           = 0x0C
	capOffsetNotifyMultiplier = 0x10
)

// pciCapabilitiesPointer is the configuration-space register holding the
// offset of the first entry in the capability linked list.
const pciCapabilitiesPointer = 0x34

// Field offsets within the common configuration structure located via the
// COMMON_CFG capability.
const (
	commonDeviceFeatureSelect = 0x00
	commonDeviceFeature       = 0x04
	commonDriverFeatureSelect = 0x08
	commonDriverFeature       = 0x0C
	commonNumQueues           = 0x12
	commonDeviceStatus        = 0x14
	commonQueueSelect         = 0x16
	commonQueueSize           = 0x18
	commonQueueEnable         = 0x1C
	commonQueueNotifyOff      = 0x1E
	commonQueueDesc           = 0x20
	commonQueueDriver         = 0x28
	commonQueueDevice         = 0x30
)

// configSpace is the subset of pci.Device used for capability parsing and
// BAR access, extracted so tests can substitute a fake PCI function without
// reaching into the pci package.
type configSpace interface {
	ReadConfig(offset uint8) uint32
	WriteConfig(offset uint8, value uint32)
	ReadBAR(index uint8) (pci.BAR, bool)
}

var (
	allocFrameFn = allocator.AllocFrame
	translateFn  = vmm.Translate

	mapRegionFn = func(frame pmm.Frame, size mem.Size, flags vmm.PageTableEntryFlag) (uintptr, *kernel.Error) {
		page, err := vmm.MapRegion(frame, size, flags)
		if err != nil {
			return 0, err
		}
		return page.Address(), nil
	}
)

// Device is a negotiated VirtIO 1.0 device reachable through its PCI
// configuration space and the BARs exposing its common, notify, ISR and
// device-specific configuration regions.
type Device struct {
	pciDev configSpace

	barMapped        [6][]byte
	commonCfg        []byte
	notifyCfg        []byte
	isrCfg           []byte
	deviceCfg        []byte
	notifyMultiplier uint32
}

// New locates a VirtIO device's four required capabilities on the given PCI
// function and maps the BARs they live in. It returns false if any of the
// COMMON_CFG, NOTIFY_CFG, ISR_CFG or DEVICE_CFG capabilities are missing.
func New(pciDev *pci.Device) (*Device, bool) {
	pciDev.EnableBusMaster()
	pciDev.EnableMemorySpace()

	d := &Device{pciDev: pciDev}
	if !d.parseCapabilities() {
		return nil, false
	}
	return d, true
}

func newFromConfigSpace(cfg configSpace) *Device {
	return &Device{pciDev: cfg}
}

func (d *Device) parseCapabilities() bool {
	ptr := readConfigByte(d.pciDev, pciCapabilitiesPointer) &^ 0x03

	var haveCommon, haveNotify, haveISR, haveDevice bool

	for ptr != 0 {
		capID := readConfigByte(d.pciDev, ptr+capOffsetCapVndr)
		next := readConfigByte(d.pciDev, ptr+capOffsetCapNext)

		if capID == vendorCapID {
			cfgType := readConfigByte(d.pciDev, ptr+capOffsetCfgType)
			barIndex := readConfigByte(d.pciDev, ptr+capOffsetBAR)
			offset := readConfigDWord(d.pciDev, ptr+capOffsetOffset)
			length := readConfigDWord(d.pciDev, ptr+capOffsetLength)

			region := d.mapBARRegion(barIndex, offset, length)
			if region == nil {
				ptr = next
				continue
			}

			switch cfgType {
			case cfgTypeCommon:
				d.commonCfg = region
				haveCommon = true
			case cfgTypeNotify:
				d.notifyCfg = region
				d.notifyMultiplier = readConfigDWord(d.pciDev, ptr+capOffsetNotifyMultiplier)
				haveNotify = true
			case cfgTypeISR:
				d.isrCfg = region
				haveISR = true
			case cfgTypeDevice:
				d.deviceCfg = region
				haveDevice = true
			}
		}

		ptr = next
	}

	return haveCommon && haveNotify && haveISR && haveDevice
}

// mapBARRegion maps barIndex (caching the mapping across capabilities that
// share a BAR) and returns the [offset:offset+length) slice within it.
func (d *Device) mapBARRegion(barIndex uint8, offset, length uint32) []byte {
	if barIndex > 5 {
		return nil
	}

	if d.barMapped[barIndex] == nil {
		bar, ok := d.pciDev.ReadBAR(barIndex)
		if !ok || bar.Kind != pci.BARMemory {
			return nil
		}

		mappedSize := bar.Size
		if mappedSize == 0 {
			mappedSize = uint64(offset) + uint64(length)
		}

		addr, err := mapRegionFn(pmm.Frame(bar.Address>>uintptr(mem.PageShift)), mem.Size(mappedSize), vmm.FlagPresent|vmm.FlagRW)
		if err != nil {
			return nil
		}
		d.barMapped[barIndex] = sliceFromAddr(addr, int(mappedSize))
	}

	region := d.barMapped[barIndex]
	end := int(offset) + int(length)
	if end > len(region) {
		return nil
	}
	return region[offset:end]
}

func sliceFromAddr(addr uintptr, size int) []byte {
	return *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Data: addr,
		Len:  size,
		Cap:  size,
	}))
}

func readConfigByte(dev configSpace, offset uint8) uint8 {
	word := dev.ReadConfig(offset &^ 0x03)
	shift := (offset & 0x03) * 8
	return uint8(word >> shift)
}

func readConfigDWord(dev configSpace, offset uint8) uint32 {
	var v uint32
	for i := uint8(0); i < 4; i++ {
		v |= uint32(readConfigByte(dev, offset+i)) << (8 * i)
	}
	return v
}

// ReadStatus returns the device status register.
func (d *Device) ReadStatus() uint8 {
	return d.commonCfg[commonDeviceStatus]
}

// WriteStatus writes the device status register.
func (d *Device) WriteStatus(status uint8) {
	d.commonCfg[commonDeviceStatus] = status
}

// Reset drives the device status register back to zero and waits for the
// device to acknowledge by reading it back as zero.
func (d *Device) Reset() {
	d.WriteStatus(0)
	for d.ReadStatus() != 0 {
	}
}

// NumQueues returns the number of virtqueues the device exposes.
func (d *Device) NumQueues() uint16 {
	return binary.LittleEndian.Uint16(d.commonCfg[commonNumQueues:])
}

// ReadDeviceFeatures reads the low 32 bits of the device's feature bitmap
// (feature word 0). Feature word 1, which holds VIRTIO_F_VERSION_1 (bit 32),
// is not read.
func (d *Device) ReadDeviceFeatures() uint32 {
	binary.LittleEndian.PutUint32(d.commonCfg[commonDeviceFeatureSelect:], 0)
	return binary.LittleEndian.Uint32(d.commonCfg[commonDeviceFeature:])
}

// WriteDriverFeatures acknowledges the subset of features the driver
// supports, restricted to feature word 0.
func (d *Device) WriteDriverFeatures(features uint32) {
	binary.LittleEndian.PutUint32(d.commonCfg[commonDriverFeatureSelect:], 0)
	binary.LittleEndian.PutUint32(d.commonCfg[commonDriverFeature:], features)
}

// ReadISR reads and clears the device's interrupt status register.
func (d *Device) ReadISR() uint8 {
	return d.isrCfg[0]
}

// DeviceConfig returns the device-specific configuration region (e.g. the
// VirtIO input device's ID and properties).
func (d *Device) DeviceConfig() []byte {
	return d.deviceCfg
}

// selectQueue writes the queue select register.
func (d *Device) selectQueue(index uint16) {
	binary.LittleEndian.PutUint16(d.commonCfg[commonQueueSelect:], index)
}

// QueueSize returns the currently selected queue's device-reported maximum
// size.
func (d *Device) QueueSize(index uint16) uint16 {
	d.selectQueue(index)
	return binary.LittleEndian.Uint16(d.commonCfg[commonQueueSize:])
}

// setQueueSize requests a (possibly reduced) queue size from the device.
func (d *Device) setQueueSize(index, size uint16) {
	d.selectQueue(index)
	binary.LittleEndian.PutUint16(d.commonCfg[commonQueueSize:], size)
}

// setQueueAddrs programs the physical addresses of the descriptor table,
// available ring and used ring for the currently selected queue.
func (d *Device) setQueueAddrs(descPhys, availPhys, usedPhys uint64) {
	binary.LittleEndian.PutUint64(d.commonCfg[commonQueueDesc:], descPhys)
	binary.LittleEndian.PutUint64(d.commonCfg[commonQueueDriver:], availPhys)
	binary.LittleEndian.PutUint64(d.commonCfg[commonQueueDevice:], usedPhys)
}

// enableQueue marks the currently selected queue as usable by the device.
func (d *Device) enableQueue(index uint16) {
	d.selectQueue(index)
	binary.LittleEndian.PutUint16(d.commonCfg[commonQueueEnable:], 1)
}

// queueNotifyOffset returns the notify_off value for the currently selected
// queue, used together with the notify capability's multiplier to compute
// its doorbell address.
func (d *Device) queueNotifyOffset(index uint16) uint16 {
	d.selectQueue(index)
	return binary.LittleEndian.Uint16(d.commonCfg[commonQueueNotifyOff:])
}

// notifyQueue rings the doorbell for queueIndex.
func (d *Device) notifyQueue(queueIndex uint16) {
	off := uint32(d.queueNotifyOffset(queueIndex)) * d.notifyMultiplier
	if int(off)+2 > len(d.notifyCfg) {
		return
	}
	binary.LittleEndian.PutUint16(d.notifyCfg[off:], queueIndex)
}

// InitSimple walks the device through ACKNOWLEDGE, DRIVER, feature
// negotiation (accepting whatever the device offers in feature word 0) and
// FEATURES_OK, returning false if the device rejects the feature set.
// Feature word 1, including VIRTIO_F_VERSION_1, is left unacknowledged.
func (d *Device) InitSimple() bool {
	d.Reset()
	d.WriteStatus(StatusAcknowledge)
	d.WriteStatus(StatusAcknowledge | StatusDriver)

	features := d.ReadDeviceFeatures()
	d.WriteDriverFeatures(features)

	d.WriteStatus(StatusAcknowledge | StatusDriver | StatusFeaturesOK)
	return d.ReadStatus()&StatusFeaturesOK != 0
}

// FinishInit sets DRIVER_OK, letting the device begin normal operation.
func (d *Device) FinishInit() {
	status := d.ReadStatus()
	d.WriteStatus(status | StatusDriverOK)
}

// SetupQueue negotiates and allocates queueIndex, returning the ready
// Virtqueue with its descriptor table, available ring and used ring
// registered with the device.
func (d *Device) SetupQueue(queueIndex uint16) (*Virtqueue, bool) {
	size := d.QueueSize(queueIndex)
	if size == 0 {
		return nil, false
	}

	q, ok := newVirtqueue(size)
	if !ok {
		return nil, false
	}
	q.notifyFn = func() { d.notifyQueue(queueIndex) }

	d.setQueueSize(queueIndex, size)
	d.setQueueAddrs(q.descPhys, q.availPhys, q.usedPhys)
	d.enableQueue(queueIndex)

	return q, true
}
