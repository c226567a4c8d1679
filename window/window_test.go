package window

import "testing"

// testWindow is a minimal Window used by manager/window tests: it records
// every Paint call's clip rect and echoes back a fixed EventResult.
type testWindow struct {
	Base
	paints      []Rect
	handleEvent EventResult
	lastEvent   Event
}

func newTestWindow(id WindowId, bounds Rect) *testWindow {
	return &testWindow{Base: NewBase(id, bounds, true), handleEvent: EventIgnored}
}

func (w *testWindow) Paint(ctx PaintContext) {
	w.paints = append(w.paints, ctx.Clip)
}

func (w *testWindow) HandleEvent(ev Event) EventResult {
	w.lastEvent = ev
	return w.handleEvent
}

func TestBaseStartsVisibleAndDirty(t *testing.T) {
	w := newTestWindow(1, Rect{0, 0, 10, 10})
	if !w.Visible() {
		t.Fatal("expected a new window to start visible")
	}
	if !w.NeedsRepaint() {
		t.Fatal("expected a new window to need its first repaint")
	}
}

func TestBaseClearRepaintThenInvalidate(t *testing.T) {
	w := newTestWindow(1, Rect{0, 0, 10, 10})
	w.ClearRepaint()
	if w.NeedsRepaint() {
		t.Fatal("expected NeedsRepaint to be false after ClearRepaint")
	}
	w.Invalidate()
	if !w.NeedsRepaint() {
		t.Fatal("expected NeedsRepaint to be true after Invalidate")
	}
}

func TestBaseSetFocusDoesNotRecurse(t *testing.T) {
	w := newTestWindow(1, Rect{0, 0, 10, 10})
	w.ClearRepaint()
	w.SetFocus(true)
	if !w.HasFocus() {
		t.Fatal("expected HasFocus to reflect SetFocus(true)")
	}
	if !w.NeedsRepaint() {
		t.Fatal("expected SetFocus to mark the window dirty")
	}
}
