package ps2

// MouseButtons is the button state reported in a PS/2 mouse packet.
type MouseButtons struct {
	Left   bool
	Right  bool
	Middle bool
}

// MouseEventType classifies a decoded mouse event.
type MouseEventType int

const (
	MouseMove MouseEventType = iota
	MouseButtonDown
	MouseButtonUp
)

// MouseEvent is a decoded mouse movement or button transition, already
// clamped to the configured screen bounds.
type MouseEvent struct {
	Type    MouseEventType
	X, Y    int32
	Buttons MouseButtons
}

// MouseDecoder reassembles the PS/2 3-byte mouse packet stream and tracks
// cursor position, clamped to a screen rectangle. The zero value has a
// zero-sized screen; call SetBounds before feeding packets.
type MouseDecoder struct {
	packet     [3]byte
	index      int
	x, y       int32
	maxX, maxY int32
	buttons    MouseButtons
}

// NewMouseDecoder creates a decoder with its cursor centered on a
// screenWidth x screenHeight screen.
func NewMouseDecoder(screenWidth, screenHeight int32) *MouseDecoder {
	d := &MouseDecoder{}
	d.SetBounds(screenWidth, screenHeight)
	d.x = screenWidth / 2
	d.y = screenHeight / 2
	return d
}

// SetBounds updates the clamping rectangle, re-clamping the current
// position to it.
func (d *MouseDecoder) SetBounds(screenWidth, screenHeight int32) {
	d.maxX = screenWidth - 1
	d.maxY = screenHeight - 1
	d.x = clamp(d.x, 0, d.maxX)
	d.y = clamp(d.y, 0, d.maxY)
}

// Position returns the current cursor position.
func (d *MouseDecoder) Position() (int32, int32) {
	return d.x, d.y
}

// Buttons returns the current button state.
func (d *MouseDecoder) Buttons() MouseButtons {
	return d.buttons
}

// Feed processes one raw mouse packet byte. It returns a MouseEvent and
// true once a complete packet produces a change worth reporting. A bad
// first byte (bit 3 clear) or an overflow-flagged packet is discarded and
// the decoder resyncs on the next byte.
func (d *MouseDecoder) Feed(b byte) (MouseEvent, bool) {
	if d.index == 0 && b&0x08 == 0 {
		return MouseEvent{}, false
	}

	d.packet[d.index] = b
	d.index++
	if d.index < 3 {
		return MouseEvent{}, false
	}
	d.index = 0

	return d.processPacket()
}

// ResetSync discards any partially-accumulated packet, forcing Feed to
// re-validate the next byte as a packet start.
func (d *MouseDecoder) ResetSync() {
	d.index = 0
}

func (d *MouseDecoder) processPacket() (MouseEvent, bool) {
	flags, dx, dy := d.packet[0], d.packet[1], d.packet[2]

	if flags&0xC0 != 0 {
		// X or Y overflow: the mouse moved too fast to trust this packet.
		return MouseEvent{}, false
	}

	xDelta := int32(dx)
	yDelta := int32(dy)
	if flags&0x10 != 0 {
		xDelta = int32(int16(dx) | ^0xFF)
	}
	if flags&0x20 != 0 {
		yDelta = int32(int16(dy) | ^0xFF)
	}

	oldX, oldY := d.x, d.y
	oldButtons := d.buttons

	d.x = clamp(d.x+xDelta, 0, d.maxX)
	d.y = clamp(d.y-yDelta, 0, d.maxY) // PS/2 Y is inverted relative to screen coordinates.

	d.buttons = MouseButtons{
		Left:   flags&0x01 != 0,
		Right:  flags&0x02 != 0,
		Middle: flags&0x04 != 0,
	}

	eventType, changed := determineEventType(oldButtons, d.buttons, oldX, oldY, d.x, d.y)
	if !changed {
		return MouseEvent{}, false
	}

	return MouseEvent{
		Type:    eventType,
		X:       d.x,
		Y:       d.y,
		Buttons: d.buttons,
	}, true
}

// determineEventType derives the event type from what changed since the
// last packet, giving button transitions priority over pure movement.
func determineEventType(old, cur MouseButtons, oldX, oldY, x, y int32) (MouseEventType, bool) {
	pressed := (cur.Left && !old.Left) || (cur.Right && !old.Right) || (cur.Middle && !old.Middle)
	released := (!cur.Left && old.Left) || (!cur.Right && old.Right) || (!cur.Middle && old.Middle)

	switch {
	case pressed:
		return MouseButtonDown, true
	case released:
		return MouseButtonUp, true
	case x != oldX || y != oldY:
		return MouseMove, true
	default:
		return 0, false
	}
}

func clamp(v, lo, hi int32) int32 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
