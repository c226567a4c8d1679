package window

import (
	"testing"

	"github.com/davidlandreman/corekernel/kernel/gfx"
	"github.com/davidlandreman/corekernel/kernel/input/ps2"
)

func TestCreateWindowRootGoesToZOrder(t *testing.T) {
	m := NewWindowManager()
	id := m.CreateWindow(0)
	if len(m.zOrder) != 1 || m.zOrder[0] != id {
		t.Fatalf("expected root window to be appended to zOrder, got %v", m.zOrder)
	}
}

func TestCreateWindowChildAttachesToParent(t *testing.T) {
	m := NewWindowManager()
	parent := m.CreateWindow(0)
	child := m.CreateWindow(parent)

	pn := m.nodes[parent]
	if len(pn.children) != 1 || pn.children[0] != child {
		t.Fatalf("expected child to be attached to parent's children, got %v", pn.children)
	}
	if len(m.zOrder) != 1 {
		t.Fatalf("expected child window not to appear in root zOrder, got %v", m.zOrder)
	}
}

func TestSetImplAndLookup(t *testing.T) {
	m := NewWindowManager()
	id := m.CreateWindow(0)
	win := newTestWindow(id, Rect{0, 0, 10, 10})
	m.SetImpl(id, win)

	got, ok := m.Lookup(id)
	if !ok || got != win {
		t.Fatal("expected Lookup to return the bound implementation")
	}
}

func TestDestroyWindowRemovesSubtreeAndClearsFocus(t *testing.T) {
	m := NewWindowManager()
	parent := m.CreateWindow(0)
	child := m.CreateWindow(parent)
	m.FocusWindow(child)

	m.DestroyWindow(parent)

	if _, ok := m.nodes[parent]; ok {
		t.Fatal("expected parent to be removed from the registry")
	}
	if _, ok := m.nodes[child]; ok {
		t.Fatal("expected child to be removed along with its parent")
	}
	if focus, ok := m.Focused(); ok || focus != 0 {
		t.Fatalf("expected focus to clear when its holder is destroyed, got %v", focus)
	}
}

func TestBringToFrontReordersSiblings(t *testing.T) {
	m := NewWindowManager()
	a := m.CreateWindow(0)
	b := m.CreateWindow(0)
	m.BringToFront(a)

	if m.zOrder[len(m.zOrder)-1] != a {
		t.Fatalf("expected a to be last (topmost) in zOrder, got %v", m.zOrder)
	}
	_ = b
}

func TestQueueActionDeferredUntilTick(t *testing.T) {
	m := NewWindowManager()
	a := m.CreateWindow(0)
	b := m.CreateWindow(0)
	m.SetImpl(a, newTestWindow(a, Rect{0, 0, 1, 1}))
	m.SetImpl(b, newTestWindow(b, Rect{0, 0, 1, 1}))

	m.QueueAction(PendingAction{Kind: ActionFocusWindow, Window: b})
	if focus, _ := m.Focused(); focus == b {
		t.Fatal("expected a queued action not to apply before Tick")
	}

	m.Tick()
	if focus, ok := m.Focused(); !ok || focus != b {
		t.Fatalf("expected Tick to apply the queued focus action, got %v", focus)
	}
}

func TestPaintSkipsCleanWindowsAndClipsToParent(t *testing.T) {
	m := NewWindowManager()
	parent := m.CreateWindow(0)
	child := m.CreateWindow(parent)

	parentWin := newTestWindow(parent, Rect{0, 0, 20, 20})
	childWin := newTestWindow(child, Rect{15, 15, 20, 20}) // extends past parent's bottom-right
	m.SetImpl(parent, parentWin)
	m.SetImpl(child, childWin)

	canvas := gfx.NewCanvas(100, 100)
	m.Paint(canvas)

	if len(parentWin.paints) != 1 {
		t.Fatalf("expected parent to be painted once, got %d", len(parentWin.paints))
	}
	if len(childWin.paints) != 1 {
		t.Fatalf("expected child to be painted once, got %d", len(childWin.paints))
	}
	clip := childWin.paints[0]
	if clip.Width != 5 || clip.Height != 5 {
		t.Fatalf("expected child clip to be cut down to the 5x5 overlap with its parent, got %+v", clip)
	}

	// Second pass: nothing is dirty any more, so Paint should not be called again.
	m.Paint(canvas)
	if len(parentWin.paints) != 1 || len(childWin.paints) != 1 {
		t.Fatal("expected clean windows not to be repainted")
	}
}

func TestPaintSkipsInvisibleWindows(t *testing.T) {
	m := NewWindowManager()
	id := m.CreateWindow(0)
	win := newTestWindow(id, Rect{0, 0, 10, 10})
	win.SetVisible(false)
	m.SetImpl(id, win)

	m.Paint(gfx.NewCanvas(50, 50))
	if len(win.paints) != 0 {
		t.Fatal("expected an invisible window not to be painted")
	}
}

func TestDispatchKeyboardGoesToFocusedWindow(t *testing.T) {
	m := NewWindowManager()
	id := m.CreateWindow(0)
	win := newTestWindow(id, Rect{0, 0, 10, 10})
	win.handleEvent = EventHandled
	m.SetImpl(id, win)
	m.FocusWindow(id)

	ev := KeyboardEvent(ps2.KeyEvent{Code: ps2.KeyA, Pressed: true})
	if res := m.Dispatch(ev); res != EventHandled {
		t.Fatalf("expected focused window's result to propagate, got %v", res)
	}
	if win.lastEvent.Keyboard == nil || win.lastEvent.Keyboard.Code != ps2.KeyA {
		t.Fatal("expected the focused window to receive the keyboard event")
	}
}

func TestDispatchKeyboardWithNoFocusIsIgnored(t *testing.T) {
	m := NewWindowManager()
	ev := KeyboardEvent(ps2.KeyEvent{Code: ps2.KeyA, Pressed: true})
	if res := m.Dispatch(ev); res != EventIgnored {
		t.Fatalf("expected no focus to yield EventIgnored, got %v", res)
	}
}

func TestDispatchMouseHitsTopmostWindowAtPoint(t *testing.T) {
	m := NewWindowManager()
	back := m.CreateWindow(0)
	front := m.CreateWindow(0)

	backWin := newTestWindow(back, Rect{0, 0, 50, 50})
	frontWin := newTestWindow(front, Rect{0, 0, 50, 50})
	frontWin.handleEvent = EventHandled
	m.SetImpl(back, backWin)
	m.SetImpl(front, frontWin)
	m.BringToFront(front)

	ev := MouseInputEvent(ps2.MouseEvent{Type: ps2.MouseButtonDown, X: 5, Y: 5})
	if res := m.Dispatch(ev); res != EventHandled {
		t.Fatalf("expected the topmost overlapping window to handle the event, got %v", res)
	}
	if backWin.lastEvent.Mouse != nil {
		t.Fatal("expected the occluded window not to receive the mouse event")
	}
}

func TestDispatchMouseOutsideAnyWindowIsIgnored(t *testing.T) {
	m := NewWindowManager()
	id := m.CreateWindow(0)
	m.SetImpl(id, newTestWindow(id, Rect{0, 0, 10, 10}))

	ev := MouseInputEvent(ps2.MouseEvent{Type: ps2.MouseMove, X: 500, Y: 500})
	if res := m.Dispatch(ev); res != EventIgnored {
		t.Fatalf("expected a point outside every window to be ignored, got %v", res)
	}
}
