// Package kmain wires together every subsystem the kernel owns and hands
// control to the window manager's event loop. It is the only package whose
// symbols are expected to be reachable from the assembly trampoline that
// sets up the initial stack and calls into Go.
package kmain

import (
	"github.com/davidlandreman/corekernel/device/block"
	"github.com/davidlandreman/corekernel/device/video/console"
	consolefont "github.com/davidlandreman/corekernel/device/video/console/font"
	virtioblock "github.com/davidlandreman/corekernel/device/virtio/block"
	virtioinput "github.com/davidlandreman/corekernel/device/virtio/input"
	"github.com/davidlandreman/corekernel/fs/fat"
	"github.com/davidlandreman/corekernel/kernel"
	"github.com/davidlandreman/corekernel/kernel/cpu"
	"github.com/davidlandreman/corekernel/kernel/gate"
	"github.com/davidlandreman/corekernel/kernel/gfx"
	"github.com/davidlandreman/corekernel/kernel/gfx/font"
	"github.com/davidlandreman/corekernel/kernel/goruntime"
	"github.com/davidlandreman/corekernel/kernel/hal"
	"github.com/davidlandreman/corekernel/kernel/hal/multiboot"
	rawinput "github.com/davidlandreman/corekernel/kernel/input"
	"github.com/davidlandreman/corekernel/kernel/input/ps2"
	"github.com/davidlandreman/corekernel/kernel/kfmt"
	"github.com/davidlandreman/corekernel/kernel/mem/heap"
	"github.com/davidlandreman/corekernel/kernel/mem/pmm/allocator"
	"github.com/davidlandreman/corekernel/kernel/mem/vmm"
	"github.com/davidlandreman/corekernel/kernel/pic"
	"github.com/davidlandreman/corekernel/window"
	"github.com/davidlandreman/corekernel/window/terminal"
)

var errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

// rawInputQueue buffers scancode and mouse-packet bytes pushed from
// interrupt context; the event loop below is the sole consumer.
var rawInputQueue rawinput.Queue

// Kmain is the only Go symbol that needs to be visible to the rt0
// initialization code. It is invoked after the trampoline has set up the GDT
// and a minimal g0 struct, and is never expected to return.
//
//go:noinline
func Kmain(multibootInfoPtr, kernelStart, kernelEnd, kernelPageOffset uintptr) {
	multiboot.SetInfoPtr(multibootInfoPtr)

	gate.Init()

	allocator.Init(kernelStart, kernelEnd)
	vmm.SetFrameAllocator(allocator.AllocFrame)

	if err := vmm.Init(kernelPageOffset); err != nil {
		kfmt.Panic(err)
	}
	if err := goruntime.Init(); err != nil {
		kfmt.Panic(err)
	}
	if err := heap.Init(); err != nil {
		kfmt.Panic(err)
	}

	pic.Init()
	hal.DetectHardware()

	keyboardSelfTest, mouseEnabled := ps2.Init()
	kfmt.Printf("[kmain] ps2 controller: keyboard self-test=0x%x mouse=%t\n", keyboardSelfTest, mouseEnabled)

	wireInputInterrupts(mouseEnabled)
	cpu.EnableInterrupts()

	runDesktop(mouseEnabled)

	kfmt.Panic(errKmainReturned)
}

// wireInputInterrupts hooks the keyboard and, when present, mouse IRQ lines
// so that their raw bytes land on rawInputQueue instead of being handled
// synchronously inside interrupt context.
func wireInputInterrupts(mouseEnabled bool) {
	pic.HandleIRQ(1, func(*gate.Registers) {
		scancode := cpu.PortReadByte(0x60)
		rawInputQueue.Push(rawinput.RawEvent{Kind: rawinput.KeyboardScancode, Byte: scancode})
		pic.EOI(1)
	})

	if mouseEnabled {
		pic.HandleIRQ(12, func(*gate.Registers) {
			b := cpu.PortReadByte(0x60)
			rawInputQueue.Push(rawinput.RawEvent{Kind: rawinput.MousePacketByte, Byte: b})
			pic.EOI(12)
		})
	}
}

// mountRootFilesystem looks for a VirtIO block device to back the root
// filesystem, falling back to an empty RAM disk when none is present so the
// rest of the boot sequence can proceed under an emulator with no attached
// disk.
func mountRootFilesystem() (*fat.FatFilesystem, *kernel.Error) {
	var dev block.Device
	if blk, ok := virtioblock.Find(); ok {
		dev = blk
	} else {
		dev = block.NewRAMDisk("ramdisk0", 512, 2880)
	}

	return fat.New(dev)
}

// runDesktop builds the window manager, mounts a terminal window onto the
// active console and drives the paint/dispatch loop until the CPU is halted.
func runDesktop(mouseEnabled bool) {
	cons := hal.ActiveConsole()
	if cons == nil {
		kfmt.Printf("[kmain] no graphical console detected, idling\n")
		for {
			cpu.Halt()
		}
	}

	pixels, ok := cons.(console.PixelBuffer)
	if !ok {
		kfmt.Printf("[kmain] active console has no pixel framebuffer, idling\n")
		for {
			cpu.Halt()
		}
	}
	screenW, screenH := pixels.PixelDimensions()

	if fs, err := mountRootFilesystem(); err != nil {
		kfmt.Printf("[kmain] root filesystem unavailable: %s\n", err.Message)
	} else {
		kfmt.Printf("[kmain] mounted root filesystem (%s)\n", fs.FatType().String())
	}

	wm := window.NewWindowManager()
	screens := window.NewScreenManager()
	screen := window.NewScreen(window.ModeGUI)
	screens.AddScreen(screen)

	rootID := wm.CreateWindow(0)
	face := font.NewEmbeddedFace(consolefont.BestFit(screenW, screenH), ' ', 95)
	termBounds := window.Rect{X: 0, Y: 0, Width: int(screenW), Height: int(screenH)}
	term := terminal.NewTerminalWindow(rootID, termBounds, face, 500)
	wm.SetImpl(rootID, term)
	screen.SetRootWindow(rootID)
	wm.FocusWindow(rootID)
	term.Register()
	term.OnInput(func(line string) {
		term.WriteLine("unrecognized command: " + line)
	})

	var tablet *virtioinput.Tablet
	if mouseEnabled {
		if t, found := virtioinput.Find(int32(screenW), int32(screenH)); found {
			tablet = t
		}
	}

	keyboard := ps2.KeyboardDecoder{}
	mouse := ps2.NewMouseDecoder(int32(screenW), int32(screenH))
	canvas := gfx.NewCanvas(screenW, screenH)

	for {
		pumpRawInput(wm, &keyboard, mouse)
		if tablet != nil {
			if ev, polled := tablet.Poll(); polled {
				wm.Dispatch(window.MouseInputEvent(ev))
			}
		}

		term.DrainRoutedOutput()
		wm.Tick()

		canvas.Clear(terminal.DefaultPalette[0])
		wm.Paint(canvas)
		gfx.Blit(canvas, pixels)
	}
}

// pumpRawInput drains every byte queued by the keyboard and mouse interrupt
// handlers, decodes it and dispatches the resulting high-level event to the
// window manager.
func pumpRawInput(wm *window.WindowManager, keyboard *ps2.KeyboardDecoder, mouse *ps2.MouseDecoder) {
	for {
		raw, ok := rawInputQueue.Pop()
		if !ok {
			return
		}

		switch raw.Kind {
		case rawinput.KeyboardScancode:
			if ev, decoded := keyboard.Feed(raw.Byte); decoded {
				wm.Dispatch(window.KeyboardEvent(ev))
			}
		case rawinput.MousePacketByte:
			if ev, decoded := mouse.Feed(raw.Byte); decoded {
				wm.Dispatch(window.MouseInputEvent(ev))
			}
		}
	}
}
