// Package pci implements PCI configuration-space access and bus
// enumeration over the legacy 0xCF8/0xCFC I/O ports.
package pci

import "github.com/davidlandreman/corekernel/kernel/cpu"

const (
	configAddressPort = 0xCF8
	configDataPort    = 0xCFC
)

const (
	offsetVendorDevice = 0x00
	offsetCommand      = 0x04
	offsetClass        = 0x08
	offsetHeaderType   = 0x0C
	offsetBAR0         = 0x10
	offsetInterrupt    = 0x3C
)

// Command register bits, as written back via Device.EnableIOSpace,
// EnableMemorySpace and EnableBusMaster.
const (
	CommandIOSpace     = 0x01
	CommandMemorySpace = 0x02
	CommandBusMaster   = 0x04
)

const multifunctionBit = 0x80

// Device identifies a single PCI function discovered during enumeration and
// caches the configuration-space fields read while probing it.
type Device struct {
	Bus      uint8
	Slot     uint8
	Function uint8

	VendorID  uint16
	DeviceID  uint16
	ClassCode uint8
	Subclass  uint8
	ProgIF    uint8

	HeaderType    uint8
	InterruptLine uint8
	InterruptPin  uint8
}

// BARKind distinguishes a memory-mapped BAR from an I/O-space BAR.
type BARKind int

const (
	BARMemory BARKind = iota
	BARIo
)

// BAR describes a decoded Base Address Register.
type BAR struct {
	Kind         BARKind
	Address      uint64
	Size         uint64
	Prefetchable bool
	Is64Bit      bool
	Port         uint16
}

var (
	portWriteDWordFn = cpu.PortWriteDWord
	portReadDWordFn  = cpu.PortReadDWord
)

func configAddress(bus, slot, function, offset uint8) uint32 {
	return uint32(bus)<<16 |
		uint32(slot)<<11 |
		uint32(function)<<8 |
		uint32(offset)&0xFC |
		0x80000000
}

// ReadConfig32 reads a 32-bit value at offset in bus:slot.function's
// configuration space. offset is rounded down to a multiple of 4.
func ReadConfig32(bus, slot, function, offset uint8) uint32 {
	portWriteDWordFn(configAddressPort, configAddress(bus, slot, function, offset))
	return portReadDWordFn(configDataPort)
}

// WriteConfig32 writes value at offset in bus:slot.function's configuration
// space. offset is rounded down to a multiple of 4.
func WriteConfig32(bus, slot, function, offset uint8, value uint32) {
	portWriteDWordFn(configAddressPort, configAddress(bus, slot, function, offset))
	portWriteDWordFn(configDataPort, value)
}

// ReadConfig reads a 32-bit configuration-space register for dev.
func (d *Device) ReadConfig(offset uint8) uint32 {
	return ReadConfig32(d.Bus, d.Slot, d.Function, offset)
}

// WriteConfig writes a 32-bit configuration-space register for dev.
func (d *Device) WriteConfig(offset uint8, value uint32) {
	WriteConfig32(d.Bus, d.Slot, d.Function, offset, value)
}

// ReadBAR decodes Base Address Register index (0-5), probing its size by
// writing all-ones, reading back the size mask and restoring the original
// value. It returns false if index is out of range or the BAR is unused.
func (d *Device) ReadBAR(index uint8) (BAR, bool) {
	if index > 5 {
		return BAR{}, false
	}

	offset := offsetBAR0 + index*4
	raw := d.ReadConfig(offset)
	if raw == 0 {
		return BAR{}, false
	}

	if raw&0x01 != 0 {
		return BAR{Kind: BARIo, Port: uint16(raw &^ 0x03)}, true
	}

	barType := (raw >> 1) & 0x03
	prefetchable := raw&0x08 != 0

	var address uint64
	switch barType {
	case 0:
		address = uint64(raw & 0xFFFFFFF0)
	case 2:
		high := d.ReadConfig(offset + 4)
		address = uint64(high)<<32 | uint64(raw&0xFFFFFFF0)
	default:
		return BAR{}, false
	}

	d.WriteConfig(offset, 0xFFFFFFFF)
	sizeMask := d.ReadConfig(offset)
	d.WriteConfig(offset, raw)

	var size uint64
	if sizeMask != 0 {
		size = uint64(^(sizeMask&0xFFFFFFF0) + 1)
	}

	return BAR{
		Kind:         BARMemory,
		Address:      address,
		Size:         size,
		Prefetchable: prefetchable,
		Is64Bit:      barType == 2,
	}, true
}

// EnableBusMaster sets the bus-mastering bit in the command register,
// allowing the device to initiate DMA.
func (d *Device) EnableBusMaster() {
	d.setCommandBit(CommandBusMaster)
}

// EnableMemorySpace sets the memory-space-access bit in the command
// register.
func (d *Device) EnableMemorySpace() {
	d.setCommandBit(CommandMemorySpace)
}

// EnableIOSpace sets the I/O-space-access bit in the command register.
func (d *Device) EnableIOSpace() {
	d.setCommandBit(CommandIOSpace)
}

func (d *Device) setCommandBit(bit uint32) {
	command := d.ReadConfig(offsetCommand)
	d.WriteConfig(offsetCommand, command|bit)
}

func deviceExists(bus, slot, function uint8) bool {
	return ReadConfig32(bus, slot, function, offsetVendorDevice)&0xFFFF != 0xFFFF
}

func readDeviceInfo(bus, slot, function uint8) (Device, bool) {
	if !deviceExists(bus, slot, function) {
		return Device{}, false
	}

	idReg := ReadConfig32(bus, slot, function, offsetVendorDevice)
	classReg := ReadConfig32(bus, slot, function, offsetClass)
	headerReg := ReadConfig32(bus, slot, function, offsetHeaderType)
	intReg := ReadConfig32(bus, slot, function, offsetInterrupt)

	return Device{
		Bus:           bus,
		Slot:          slot,
		Function:      function,
		VendorID:      uint16(idReg & 0xFFFF),
		DeviceID:      uint16(idReg >> 16),
		ClassCode:     uint8(classReg >> 24),
		Subclass:      uint8(classReg >> 16),
		ProgIF:        uint8(classReg >> 8),
		HeaderType:    uint8(headerReg >> 16),
		InterruptLine: uint8(intReg),
		InterruptPin:  uint8(intReg >> 8),
	}, true
}

// Enumerate walks every bus, slot and (where present) function, returning
// every device found. Multifunction devices (header type bit 0x80) have
// functions 1-7 probed in addition to function 0.
func Enumerate() []Device {
	var devices []Device

	for bus := 0; bus <= 0xFF; bus++ {
		for slot := uint8(0); slot < 32; slot++ {
			dev, ok := readDeviceInfo(uint8(bus), slot, 0)
			if !ok {
				continue
			}
			devices = append(devices, dev)

			if dev.HeaderType&multifunctionBit == 0 {
				continue
			}
			for function := uint8(1); function < 8; function++ {
				if fdev, ok := readDeviceInfo(uint8(bus), slot, function); ok {
					devices = append(devices, fdev)
				}
			}
		}
	}

	return devices
}

// FindByVendorDevice returns every enumerated device matching the given
// vendor and device ID.
func FindByVendorDevice(vendorID, deviceID uint16) []Device {
	var found []Device
	for _, dev := range Enumerate() {
		if dev.VendorID == vendorID && dev.DeviceID == deviceID {
			found = append(found, dev)
		}
	}
	return found
}

// FindByClass returns every enumerated device matching the given class and
// subclass codes.
func FindByClass(classCode, subclass uint8) []Device {
	var found []Device
	for _, dev := range Enumerate() {
		if dev.ClassCode == classCode && dev.Subclass == subclass {
			found = append(found, dev)
		}
	}
	return found
}

// VirtIO vendor ID and the modern (VirtIO 1.0) device IDs for the input
// and block devices, used to locate the tablet and the disk.
const (
	VirtIOVendorID      = 0x1AF4
	VirtIODeviceIDInput = 0x1052
	VirtIODeviceIDBlock = 0x1042
)

// FindVirtIOInputDevices returns every enumerated VirtIO input (tablet)
// device.
func FindVirtIOInputDevices() []Device {
	return FindByVendorDevice(VirtIOVendorID, VirtIODeviceIDInput)
}

// FindVirtIOBlockDevices returns every enumerated VirtIO block device.
func FindVirtIOBlockDevices() []Device {
	return FindByVendorDevice(VirtIOVendorID, VirtIODeviceIDBlock)
}
