package device

import (
	"github.com/davidlandreman/corekernel/kernel"
	"io"
)

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device driver. Any output describing the
	// outcome of the initialization should be written to w.
	DriverInit(w io.Writer) *kernel.Error
}

// ProbeFn is a function that detects the presence of a particular piece of
// hardware and, if found, returns a Driver instance for it. If the hardware
// is not present, ProbeFn returns nil.
type ProbeFn func() Driver

// DetectOrder specifies the relative order in which a driver's ProbeFn is
// invoked by the HAL while it is detecting hardware.
type DetectOrder uint8

const (
	// DetectOrderEarly is used by drivers that must be probed before any
	// other driver (e.g. drivers required to decode other drivers' buses).
	DetectOrderEarly DetectOrder = iota

	// DetectOrderBeforeACPI is used by drivers that must run before the
	// ACPI driver.
	DetectOrderBeforeACPI

	// DetectOrderACPI is reserved for the ACPI driver itself.
	DetectOrderACPI

	// DetectOrderLast is used by drivers that must be probed after every
	// other driver.
	DetectOrderLast
)

// DriverInfo bundles a driver's ProbeFn together with the order in which it
// should run relative to the other registered drivers.
type DriverInfo struct {
	// Order controls when this driver's Probe function is invoked relative
	// to the other registered drivers.
	Order DetectOrder

	// Probe is invoked by the HAL to detect this driver's hardware.
	Probe ProbeFn
}

// DriverInfoList implements sort.Interface, ordering entries by Order.
type DriverInfoList []*DriverInfo

func (l DriverInfoList) Len() int           { return len(l) }
func (l DriverInfoList) Less(i, j int) bool { return l[i].Order < l[j].Order }
func (l DriverInfoList) Swap(i, j int)      { l[i], l[j] = l[j], l[i] }

// registeredDrivers holds the list of drivers registered via RegisterDriver.
var registeredDrivers DriverInfoList

// RegisterDriver appends info to the list of drivers that the HAL will probe
// for during hardware detection. It is typically called from a driver
// package's init function.
func RegisterDriver(info *DriverInfo) {
	registeredDrivers = append(registeredDrivers, info)
}

// DriverList returns the list of drivers registered so far via calls to
// RegisterDriver.
func DriverList() DriverInfoList {
	return registeredDrivers
}
