package ps2

import "github.com/davidlandreman/corekernel/kernel/cpu"

// PS/2 controller ports.
const (
	dataPort    = 0x60
	statusPort  = 0x64
	commandPort = 0x64
)

// Controller commands.
const (
	cmdDisableKeyboard = 0xAD
	cmdEnableKeyboard  = 0xAE
	cmdDisableMouse    = 0xA7
	cmdEnableMouse     = 0xA8
	cmdReadConfig      = 0x20
	cmdWriteConfig     = 0x60
	cmdWriteToMouse    = 0xD4
)

// Status register bits.
const (
	statusOutputFull = 0x01
	statusInputFull  = 0x02
)

// Config byte bits.
const (
	configKeyboardIRQ = 0x01
	configMouseIRQ    = 0x02
	configTranslation = 0x40
)

const (
	deviceReset      = 0xFF
	mouseEnable      = 0xF4
	mouseSetDefaults = 0xF6
	ack              = 0xFA
	selfTestPassed   = 0xAA
)

const pollAttempts = 100000

var (
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte
)

// Init brings up the PS/2 controller and both attached devices: it disables
// both ports while reconfiguring, flushes any stale output byte, enables
// the keyboard and mouse IRQ lines and disables scancode translation, then
// resets the mouse and switches it into streaming mode. It returns the
// keyboard's reset self-test response and whether the mouse was
// successfully enabled.
func Init() (keyboardSelfTest byte, mouseEnabled bool) {
	waitInputReady()
	portWriteByteFn(commandPort, cmdDisableKeyboard)
	waitInputReady()
	portWriteByteFn(commandPort, cmdDisableMouse)

	for i := 0; i < pollAttempts && statusHasOutput(); i++ {
		portReadByteFn(dataPort)
	}

	waitInputReady()
	portWriteByteFn(commandPort, cmdReadConfig)
	waitOutputReady()
	config := portReadByteFn(dataPort)

	newConfig := computeConfig(config)
	waitInputReady()
	portWriteByteFn(commandPort, cmdWriteConfig)
	waitInputReady()
	portWriteByteFn(dataPort, newConfig)

	waitInputReady()
	portWriteByteFn(commandPort, cmdEnableKeyboard)
	waitInputReady()
	portWriteByteFn(commandPort, cmdEnableMouse)

	waitInputReady()
	portWriteByteFn(dataPort, deviceReset)
	waitOutputReady()
	keyboardSelfTest = portReadByteFn(dataPort)
	if keyboardSelfTest == ack {
		waitOutputReady()
		keyboardSelfTest = portReadByteFn(dataPort)
	}

	mouseEnabled = initMouse()
	return keyboardSelfTest, mouseEnabled
}

// initMouse resets the mouse device, restores its power-on defaults and
// switches it to streaming mode. It returns whether the mouse acknowledged
// the final enable command; an unacknowledged reset skips straight to that
// command, and the set-defaults acknowledgement is not checked.
func initMouse() bool {
	for i := 0; i < pollAttempts && statusHasOutput(); i++ {
		portReadByteFn(dataPort)
	}

	if !sendMouseCommand(deviceReset) {
		return sendMouseCommand(mouseEnable)
	}

	gotSelfTest := false
	for i := 0; i < 3; i++ {
		waitOutputReady()
		switch portReadByteFn(dataPort) {
		case selfTestPassed:
			gotSelfTest = true
		}
	}
	_ = gotSelfTest

	sendMouseCommand(mouseSetDefaults)
	return sendMouseCommand(mouseEnable)
}

func sendMouseCommand(cmd byte) bool {
	waitInputReady()
	portWriteByteFn(commandPort, cmdWriteToMouse)
	waitInputReady()
	portWriteByteFn(dataPort, cmd)

	waitOutputReady()
	return portReadByteFn(dataPort) == ack
}

// computeConfig derives the controller configuration byte to write back:
// both device IRQ lines enabled, scancode translation disabled so the
// keyboard decoder sees raw Set 2 bytes.
func computeConfig(old byte) byte {
	return (old | configKeyboardIRQ | configMouseIRQ) &^ configTranslation
}

func statusHasOutput() bool {
	return portReadByteFn(statusPort)&statusOutputFull != 0
}

func waitInputReady() {
	for i := 0; i < pollAttempts; i++ {
		if portReadByteFn(statusPort)&statusInputFull == 0 {
			return
		}
	}
}

func waitOutputReady() {
	for i := 0; i < pollAttempts; i++ {
		if portReadByteFn(statusPort)&statusOutputFull != 0 {
			return
		}
	}
}
