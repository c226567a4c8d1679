package window

import "github.com/davidlandreman/corekernel/kernel/input/ps2"

// Event is delivered to a window's HandleEvent. Exactly one of Keyboard or
// Mouse is set: keyboard and mouse events are not coalesced, since PS/2 and
// VirtIO tablet input both already converge on ps2.KeyEvent/ps2.MouseEvent
// before reaching the window manager, so there is nothing to gain from a
// second, parallel event representation here.
type Event struct {
	Keyboard *ps2.KeyEvent
	Mouse    *ps2.MouseEvent
}

// KeyboardEvent wraps a decoded key event for dispatch.
func KeyboardEvent(ev ps2.KeyEvent) Event {
	return Event{Keyboard: &ev}
}

// MouseInputEvent wraps a decoded mouse event for dispatch.
func MouseInputEvent(ev ps2.MouseEvent) Event {
	return Event{Mouse: &ev}
}

// EventResult tells the caller of Dispatch whether a window consumed an
// event. Dispatch takes no further action on an unhandled event, keyboard
// or mouse.
type EventResult int

const (
	EventIgnored EventResult = iota
	EventHandled
)
