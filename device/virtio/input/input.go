// Package input implements the VirtIO input (tablet) device: a
// paravirtualized absolute-positioning pointer exposed by QEMU, decoded
// into the same mouse event shape the PS/2 driver produces so either can
// feed the window manager's input pipeline interchangeably.
package input

import (
	"encoding/binary"

	"github.com/davidlandreman/corekernel/device/pci"
	"github.com/davidlandreman/corekernel/device/virtio"
	"github.com/davidlandreman/corekernel/kernel/input/ps2"
)

// Event types and codes, taken from the Linux input-event-codes.h values
// VirtIO input devices report.
const (
	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03

	absX = 0x00
	absY = 0x01

	btnLeft   = 0x110
	btnRight  = 0x111
	btnMiddle = 0x112
	btnTouch  = 0x14a
)

// eventSize is the byte size of a VirtioInputEvent: type(2) + code(2) + value(4).
const eventSize = 8

// maxEventBuffers bounds how many receive buffers are kept in flight on the
// event queue.
const maxEventBuffers = 64

// absRange is the coordinate space VirtIO tablets report absolute positions
// in, independent of the actual screen resolution.
const absRange = 32768

// Tablet is a VirtIO input device decoded into absolute pointer position
// and button state, scaled to a configured screen size.
type Tablet struct {
	device *virtio.Device
	eventq *virtio.Virtqueue

	eventBuffers [maxEventBuffers][eventSize]byte

	absX, absY uint32
	buttons    ps2.MouseButtons
	screenW    int32
	screenH    int32
}

// New brings up a VirtIO input device found on pciDev, negotiating features,
// setting up its event queue and submitting receive buffers. It returns
// false if the device cannot be initialized.
func New(pciDev *pci.Device, screenWidth, screenHeight int32) (*Tablet, bool) {
	dev, ok := virtio.New(pciDev)
	if !ok {
		return nil, false
	}
	if !dev.InitSimple() {
		return nil, false
	}

	eventq, ok := dev.SetupQueue(0)
	if !ok {
		return nil, false
	}

	dev.FinishInit()

	t := &Tablet{
		device:  dev,
		eventq:  eventq,
		screenW: screenWidth,
		screenH: screenHeight,
	}
	t.submitBuffers()

	return t, true
}

func (t *Tablet) submitBuffers() {
	count := len(t.eventBuffers)
	if int(t.eventq.Size()) < count {
		count = int(t.eventq.Size())
	}

	for i := 0; i < count; i++ {
		t.eventq.AddBuffer(t.eventBuffers[i][:], true)
	}
	t.eventq.Notify()
}

// Poll drains completed events from the device, decoding each into a mouse
// event when it changes position or button state, and resubmits the
// buffers it consumed. It returns the most recent event produced, if any.
func (t *Tablet) Poll() (ps2.MouseEvent, bool) {
	t.device.ReadISR()

	var last ps2.MouseEvent
	var got bool

	for {
		descIdx, _, ok := t.eventq.PopUsed()
		if !ok {
			break
		}

		if int(descIdx) < len(t.eventBuffers) {
			if ev, changed := t.processEvent(t.eventBuffers[descIdx][:]); changed {
				last, got = ev, true
			}
			t.eventq.AddBuffer(t.eventBuffers[descIdx][:], true)
		}
	}

	if got {
		t.eventq.Notify()
	}

	return last, got
}

func (t *Tablet) processEvent(raw []byte) (ps2.MouseEvent, bool) {
	evType := binary.LittleEndian.Uint16(raw[0:])
	code := binary.LittleEndian.Uint16(raw[2:])
	value := binary.LittleEndian.Uint32(raw[4:])

	switch evType {
	case evAbs:
		switch code {
		case absX:
			t.absX = value
		case absY:
			t.absY = value
		default:
			return ps2.MouseEvent{}, false
		}
		return t.positionEvent(), true

	case evKey:
		old := t.buttons
		pressed := value != 0
		switch code {
		case btnLeft, btnTouch:
			t.buttons.Left = pressed
		case btnRight:
			t.buttons.Right = pressed
		case btnMiddle:
			t.buttons.Middle = pressed
		default:
			return ps2.MouseEvent{}, false
		}
		return t.buttonEvent(old), true

	case evSyn:
		return ps2.MouseEvent{}, false

	default:
		return ps2.MouseEvent{}, false
	}
}

// positionEvent scales the device's 0-32767 absolute coordinate space onto
// the configured screen and reports a move.
func (t *Tablet) positionEvent() ps2.MouseEvent {
	x, y := t.screenPosition()
	return ps2.MouseEvent{
		Type:    ps2.MouseMove,
		X:       x,
		Y:       y,
		Buttons: t.buttons,
	}
}

func (t *Tablet) buttonEvent(old ps2.MouseButtons) ps2.MouseEvent {
	x, y := t.screenPosition()

	pressed := (t.buttons.Left && !old.Left) || (t.buttons.Right && !old.Right) || (t.buttons.Middle && !old.Middle)

	eventType := ps2.MouseButtonUp
	if pressed {
		eventType = ps2.MouseButtonDown
	}

	return ps2.MouseEvent{
		Type:    eventType,
		X:       x,
		Y:       y,
		Buttons: t.buttons,
	}
}

func (t *Tablet) screenPosition() (int32, int32) {
	x := int32(uint64(t.absX) * uint64(t.screenW) / absRange)
	y := int32(uint64(t.absY) * uint64(t.screenH) / absRange)
	return x, y
}

// AbsolutePosition returns the raw 0-32767 device coordinates, unscaled.
func (t *Tablet) AbsolutePosition() (uint32, uint32) {
	return t.absX, t.absY
}

// Buttons returns the current button state.
func (t *Tablet) Buttons() ps2.MouseButtons {
	return t.buttons
}

// SetScreenSize updates the scaling target used by Poll.
func (t *Tablet) SetScreenSize(width, height int32) {
	t.screenW = width
	t.screenH = height
}

// Find locates the first usable VirtIO input device on the PCI bus and
// brings it up as a Tablet.
func Find(screenWidth, screenHeight int32) (*Tablet, bool) {
	for _, dev := range pci.FindVirtIOInputDevices() {
		dev := dev
		if tablet, ok := New(&dev, screenWidth, screenHeight); ok {
			return tablet, true
		}
	}
	return nil, false
}
