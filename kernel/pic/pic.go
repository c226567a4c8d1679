// Package pic drives the two cascaded 8259 programmable interrupt
// controllers. It remaps their vectors away from the CPU exception range,
// masks every IRQ line except the ones the kernel actually services, and
// dispatches incoming IRQs through kernel/gate.
package pic

import (
	"github.com/davidlandreman/corekernel/kernel/cpu"
	"github.com/davidlandreman/corekernel/kernel/gate"
)

// Port addresses for the master (PIC1) and slave (PIC2) controllers.
const (
	port1Command = 0x20
	port1Data    = 0x21
	port2Command = 0xA0
	port2Data    = 0xA1
)

// Vector offsets the two controllers are remapped to. PIC1 covers IRQ0-7,
// PIC2 covers IRQ8-15. Both ranges sit above the CPU's reserved 0-31
// exception vectors.
const (
	Offset1 = gate.InterruptNumber(0x20)
	Offset2 = gate.InterruptNumber(0x28)
)

// Interrupt vectors for the IRQ lines the kernel handles today.
const (
	Timer    = Offset1 + 0
	Keyboard = Offset1 + 1
	Cascade  = Offset1 + 2
	Mouse    = Offset2 + 4
)

const (
	icw1Init       = 0x11 // ICW4 to follow, cascade mode, edge-triggered
	icw4Mode8086   = 0x01
	readISR        = 0x0b
	eoiCommand     = 0x20
	cascadeIRQLine = 2
)

var (
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte

	// mask1/mask2 track the current IRQ mask for each controller. Bit N set
	// means IRQ N on that controller is disabled. Both controllers boot up
	// fully masked until Init runs.
	mask1 uint8 = 0xff
	mask2 uint8 = 0xff
)

// Init remaps both PICs to Offset1/Offset2, wires the cascade line between
// them, switches them to 8086 mode and masks every IRQ. Callers enable the
// lines they actually service with Enable.
func Init() {
	// ICW1: start initialization sequence.
	portWriteByteFn(port1Command, icw1Init)
	portWriteByteFn(port2Command, icw1Init)

	// ICW2: vector offset.
	portWriteByteFn(port1Data, uint8(Offset1))
	portWriteByteFn(port2Data, uint8(Offset2))

	// ICW3: tell the master there is a slave on IRQ2, and tell the slave
	// its own cascade identity.
	portWriteByteFn(port1Data, 1<<cascadeIRQLine)
	portWriteByteFn(port2Data, cascadeIRQLine)

	// ICW4: 8086/88 mode.
	portWriteByteFn(port1Data, icw4Mode8086)
	portWriteByteFn(port2Data, icw4Mode8086)

	mask1 = 0xff
	mask2 = 0xff
	portWriteByteFn(port1Data, mask1)
	portWriteByteFn(port2Data, mask2)
}

// Enable unmasks the given IRQ line (0-15), allowing it to reach the CPU.
// IRQ2 (the cascade line) is implicitly unmasked whenever any IRQ8-15 line
// is enabled.
func Enable(irq uint8) {
	if irq < 8 {
		mask1 &^= 1 << irq
		portWriteByteFn(port1Data, mask1)
		return
	}

	mask2 &^= 1 << (irq - 8)
	portWriteByteFn(port2Data, mask2)
	mask1 &^= 1 << cascadeIRQLine
	portWriteByteFn(port1Data, mask1)
}

// Disable masks the given IRQ line (0-15), preventing it from reaching the
// CPU.
func Disable(irq uint8) {
	if irq < 8 {
		mask1 |= 1 << irq
		portWriteByteFn(port1Data, mask1)
		return
	}

	mask2 |= 1 << (irq - 8)
	portWriteByteFn(port2Data, mask2)
}

// EOI signals end-of-interrupt for the given IRQ line. Interrupts routed
// through the slave controller require an EOI to both controllers since the
// slave's output is itself wired into the master as IRQ2.
func EOI(irq uint8) {
	if irq >= 8 {
		portWriteByteFn(port2Command, eoiCommand)
	}
	portWriteByteFn(port1Command, eoiCommand)
}

// HandleIRQ installs handler for the given IRQ line and unmasks it. The
// handler is invoked with the gate.Registers snapshot captured at interrupt
// time; it must call EOI(irq) once it has finished servicing the line.
func HandleIRQ(irq uint8, handler func(*gate.Registers)) {
	var vector gate.InterruptNumber
	if irq < 8 {
		vector = Offset1 + gate.InterruptNumber(irq)
	} else {
		vector = Offset2 + gate.InterruptNumber(irq-8)
	}

	gate.HandleInterrupt(vector, 0, handler)
	Enable(irq)
}

// inServiceLocked reads the in-service register of both controllers,
// combining them into a single 16-bit mask (bit N corresponds to IRQ N).
// Mostly useful for distinguishing a genuine IRQ7/IRQ15 from a spurious one.
func inServiceLocked() uint16 {
	portWriteByteFn(port1Command, readISR)
	portWriteByteFn(port2Command, readISR)
	lo := portReadByteFn(port1Command)
	hi := portReadByteFn(port2Command)
	return uint16(hi)<<8 | uint16(lo)
}
