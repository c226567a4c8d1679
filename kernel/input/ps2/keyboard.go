// Package ps2 decodes raw PS/2 keyboard and mouse byte streams into
// structured key and mouse events.
package ps2

// KeyCode identifies a physical key, independent of the scancode set that
// reported it.
type KeyCode int

const (
	KeyUnknown KeyCode = iota
	KeyEscape
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
	KeyBacktick
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	Key0
	KeyMinus
	KeyEquals
	KeyBackspace
	KeyTab
	KeyQ
	KeyW
	KeyE
	KeyR
	KeyT
	KeyY
	KeyU
	KeyI
	KeyO
	KeyP
	KeyLeftBracket
	KeyRightBracket
	KeyBackslash
	KeyA
	KeyS
	KeyD
	KeyF
	KeyG
	KeyH
	KeyJ
	KeyK
	KeyL
	KeySemicolon
	KeyQuote
	KeyEnter
	KeyLeftShift
	KeyZ
	KeyX
	KeyC
	KeyV
	KeyB
	KeyN
	KeyM
	KeyComma
	KeyPeriod
	KeySlash
	KeyRightShift
	KeyLeftCtrl
	KeyRightCtrl
	KeyLeftAlt
	KeyRightAlt
	KeySpace
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyDelete
)

// KeyModifiers tracks the currently-held modifier keys, collapsing left and
// right variants into a single boolean for each modifier.
type KeyModifiers struct {
	Shift bool
	Ctrl  bool
	Alt   bool
}

// KeyEvent is a decoded keyboard press or release.
type KeyEvent struct {
	Code      KeyCode
	Pressed   bool
	Modifiers KeyModifiers
}

// KeyboardDecoder turns a stream of raw PS/2 Scancode Set 2 bytes into
// KeyEvent values. The zero value is ready to use.
type KeyboardDecoder struct {
	leftShift, rightShift bool
	leftCtrl, rightCtrl   bool
	leftAlt, rightAlt     bool

	expectBreak    bool
	expectExtended bool
}

// Feed processes one raw scancode byte. It returns a KeyEvent and true once
// a complete press/release has been decoded, or false if scancode was a
// prefix byte, an ignored controller reply, or an unmapped key.
func (d *KeyboardDecoder) Feed(scancode byte) (KeyEvent, bool) {
	switch scancode {
	case 0xF0:
		d.expectBreak = true
		return KeyEvent{}, false
	case 0xE0:
		d.expectExtended = true
		return KeyEvent{}, false
	case 0xE1:
		// Pause/Break: E1 14 77 E1 F0 14 F0 77. Not decoded.
		return KeyEvent{}, false
	case 0xFA, 0xAA:
		// Command ACK / self-test-passed reply, not a key event.
		return KeyEvent{}, false
	}

	isRelease := d.expectBreak
	isExtended := d.expectExtended
	d.expectBreak = false
	d.expectExtended = false

	d.updateModifiers(scancode, !isRelease, isExtended)

	var code KeyCode
	var ok bool
	if isExtended {
		code, ok = extendedScancodeToKey(scancode)
	} else {
		code, ok = scancodeToKey(scancode)
	}
	if !ok {
		return KeyEvent{}, false
	}

	return KeyEvent{
		Code:      code,
		Pressed:   !isRelease,
		Modifiers: d.Modifiers(),
	}, true
}

func (d *KeyboardDecoder) updateModifiers(scancode byte, pressed, extended bool) {
	switch {
	case scancode == 0x12 && !extended:
		d.leftShift = pressed
	case scancode == 0x59 && !extended:
		d.rightShift = pressed
	case scancode == 0x14 && !extended:
		d.leftCtrl = pressed
	case scancode == 0x14 && extended:
		d.rightCtrl = pressed
	case scancode == 0x11 && !extended:
		d.leftAlt = pressed
	case scancode == 0x11 && extended:
		d.rightAlt = pressed
	}
}

// Modifiers returns the current modifier-key state.
func (d *KeyboardDecoder) Modifiers() KeyModifiers {
	return KeyModifiers{
		Shift: d.leftShift || d.rightShift,
		Ctrl:  d.leftCtrl || d.rightCtrl,
		Alt:   d.leftAlt || d.rightAlt,
	}
}

// scancodeToKey maps a non-extended Scancode Set 2 byte to a KeyCode.
func scancodeToKey(scancode byte) (KeyCode, bool) {
	switch scancode {
	case 0x76:
		return KeyEscape, true
	case 0x05:
		return KeyF1, true
	case 0x06:
		return KeyF2, true
	case 0x04:
		return KeyF3, true
	case 0x0C:
		return KeyF4, true
	case 0x03:
		return KeyF5, true
	case 0x0B:
		return KeyF6, true
	case 0x83:
		return KeyF7, true
	case 0x0A:
		return KeyF8, true
	case 0x01:
		return KeyF9, true
	case 0x09:
		return KeyF10, true
	case 0x78:
		return KeyF11, true
	case 0x07:
		return KeyF12, true
	case 0x0E:
		return KeyBacktick, true
	case 0x16:
		return Key1, true
	case 0x1E:
		return Key2, true
	case 0x26:
		return Key3, true
	case 0x25:
		return Key4, true
	case 0x2E:
		return Key5, true
	case 0x36:
		return Key6, true
	case 0x3D:
		return Key7, true
	case 0x3E:
		return Key8, true
	case 0x46:
		return Key9, true
	case 0x45:
		return Key0, true
	case 0x4E:
		return KeyMinus, true
	case 0x55:
		return KeyEquals, true
	case 0x66:
		return KeyBackspace, true
	case 0x0D:
		return KeyTab, true
	case 0x15:
		return KeyQ, true
	case 0x1D:
		return KeyW, true
	case 0x24:
		return KeyE, true
	case 0x2D:
		return KeyR, true
	case 0x2C:
		return KeyT, true
	case 0x35:
		return KeyY, true
	case 0x3C:
		return KeyU, true
	case 0x43:
		return KeyI, true
	case 0x44:
		return KeyO, true
	case 0x4D:
		return KeyP, true
	case 0x54:
		return KeyLeftBracket, true
	case 0x5B:
		return KeyRightBracket, true
	case 0x5D:
		return KeyBackslash, true
	case 0x1C:
		return KeyA, true
	case 0x1B:
		return KeyS, true
	case 0x23:
		return KeyD, true
	case 0x2B:
		return KeyF, true
	case 0x34:
		return KeyG, true
	case 0x33:
		return KeyH, true
	case 0x3B:
		return KeyJ, true
	case 0x42:
		return KeyK, true
	case 0x4B:
		return KeyL, true
	case 0x4C:
		return KeySemicolon, true
	case 0x52:
		return KeyQuote, true
	case 0x5A:
		return KeyEnter, true
	case 0x12:
		return KeyLeftShift, true
	case 0x1A:
		return KeyZ, true
	case 0x22:
		return KeyX, true
	case 0x21:
		return KeyC, true
	case 0x2A:
		return KeyV, true
	case 0x32:
		return KeyB, true
	case 0x31:
		return KeyN, true
	case 0x3A:
		return KeyM, true
	case 0x41:
		return KeyComma, true
	case 0x49:
		return KeyPeriod, true
	case 0x4A:
		return KeySlash, true
	case 0x59:
		return KeyRightShift, true
	case 0x14:
		return KeyLeftCtrl, true
	case 0x11:
		return KeyLeftAlt, true
	case 0x29:
		return KeySpace, true
	default:
		return KeyUnknown, false
	}
}

// extendedScancodeToKey maps a Scancode Set 2 byte following an 0xE0 prefix
// to a KeyCode.
func extendedScancodeToKey(scancode byte) (KeyCode, bool) {
	switch scancode {
	case 0x75:
		return KeyUp, true
	case 0x6B:
		return KeyLeft, true
	case 0x74:
		return KeyRight, true
	case 0x72:
		return KeyDown, true
	case 0x71:
		return KeyDelete, true
	case 0x14:
		return KeyRightCtrl, true
	case 0x11:
		return KeyRightAlt, true
	default:
		return KeyUnknown, false
	}
}

// ToChar returns the printable character produced by code under the given
// modifiers, or false if the key has no character representation.
func ToChar(code KeyCode, mods KeyModifiers) (byte, bool) {
	shift := mods.Shift
	switch code {
	case KeyA:
		return letter('a', shift), true
	case KeyB:
		return letter('b', shift), true
	case KeyC:
		return letter('c', shift), true
	case KeyD:
		return letter('d', shift), true
	case KeyE:
		return letter('e', shift), true
	case KeyF:
		return letter('f', shift), true
	case KeyG:
		return letter('g', shift), true
	case KeyH:
		return letter('h', shift), true
	case KeyI:
		return letter('i', shift), true
	case KeyJ:
		return letter('j', shift), true
	case KeyK:
		return letter('k', shift), true
	case KeyL:
		return letter('l', shift), true
	case KeyM:
		return letter('m', shift), true
	case KeyN:
		return letter('n', shift), true
	case KeyO:
		return letter('o', shift), true
	case KeyP:
		return letter('p', shift), true
	case KeyQ:
		return letter('q', shift), true
	case KeyR:
		return letter('r', shift), true
	case KeyS:
		return letter('s', shift), true
	case KeyT:
		return letter('t', shift), true
	case KeyU:
		return letter('u', shift), true
	case KeyV:
		return letter('v', shift), true
	case KeyW:
		return letter('w', shift), true
	case KeyX:
		return letter('x', shift), true
	case KeyY:
		return letter('y', shift), true
	case KeyZ:
		return letter('z', shift), true
	case Key0:
		return shiftedDigit('0', ')', shift), true
	case Key1:
		return shiftedDigit('1', '!', shift), true
	case Key2:
		return shiftedDigit('2', '@', shift), true
	case Key3:
		return shiftedDigit('3', '#', shift), true
	case Key4:
		return shiftedDigit('4', '$', shift), true
	case Key5:
		return shiftedDigit('5', '%', shift), true
	case Key6:
		return shiftedDigit('6', '^', shift), true
	case Key7:
		return shiftedDigit('7', '&', shift), true
	case Key8:
		return shiftedDigit('8', '*', shift), true
	case Key9:
		return shiftedDigit('9', '(', shift), true
	case KeySpace:
		return ' ', true
	case KeyEnter:
		return '\n', true
	case KeyTab:
		return '\t', true
	case KeyComma:
		return shiftedDigit(',', '<', shift), true
	case KeyPeriod:
		return shiftedDigit('.', '>', shift), true
	case KeySlash:
		return shiftedDigit('/', '?', shift), true
	case KeySemicolon:
		return shiftedDigit(';', ':', shift), true
	case KeyQuote:
		return shiftedDigit('\'', '"', shift), true
	case KeyLeftBracket:
		return shiftedDigit('[', '{', shift), true
	case KeyRightBracket:
		return shiftedDigit(']', '}', shift), true
	case KeyBackslash:
		return shiftedDigit('\\', '|', shift), true
	case KeyMinus:
		return shiftedDigit('-', '_', shift), true
	case KeyEquals:
		return shiftedDigit('=', '+', shift), true
	case KeyBacktick:
		return shiftedDigit('`', '~', shift), true
	default:
		return 0, false
	}
}

func letter(lower byte, shift bool) byte {
	if shift {
		return lower - ('a' - 'A')
	}
	return lower
}

func shiftedDigit(base, shifted byte, shift bool) byte {
	if shift {
		return shifted
	}
	return base
}
