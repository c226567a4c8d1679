package window

import "github.com/davidlandreman/corekernel/kernel/gfx"

// PaintContext carries the absolute, already-clipped drawing region a
// window must paint within. Bounds is the window's full on-screen rect;
// Clip is Bounds intersected with every ancestor's clip, and is what a
// well-behaved Paint implementation actually draws into.
type PaintContext struct {
	Canvas *gfx.Canvas
	Bounds Rect
	Clip   Rect
}

// Window is implemented by anything the manager can register, clip, paint
// and route events to. Parent/child relationships are NOT part of this
// interface: the registry in WindowManager is the sole owner of hierarchy,
// so a Window never needs to know its own position in the tree.
type Window interface {
	ID() WindowId
	Bounds() Rect
	Visible() bool
	CanFocus() bool
	HasFocus() bool
	SetFocus(focused bool)
	NeedsRepaint() bool
	Invalidate()
	ClearRepaint()
	Paint(ctx PaintContext)
	HandleEvent(ev Event) EventResult
}

// Base provides the bookkeeping every concrete window needs (bounds,
// visibility, focus, the repaint-needed flag) so implementations can embed
// it and only write Paint and HandleEvent themselves.
type Base struct {
	id       WindowId
	bounds   Rect
	visible  bool
	canFocus bool
	focused  bool
	dirty    bool
}

// NewBase constructs a Base for the given id and initial bounds. Newly
// created windows start visible and dirty, so their first Paint call is
// not skipped by the needs-repaint gate.
func NewBase(id WindowId, bounds Rect, canFocus bool) Base {
	return Base{id: id, bounds: bounds, visible: true, canFocus: canFocus, dirty: true}
}

func (b *Base) ID() WindowId  { return b.id }
func (b *Base) Bounds() Rect  { return b.bounds }
func (b *Base) Visible() bool { return b.visible }

// SetBounds updates the window's parent-relative bounds and marks it dirty.
func (b *Base) SetBounds(r Rect) {
	b.bounds = r
	b.dirty = true
}

// SetVisible toggles visibility and marks the window dirty.
func (b *Base) SetVisible(v bool) {
	b.visible = v
	b.dirty = true
}

func (b *Base) CanFocus() bool { return b.canFocus }
func (b *Base) HasFocus() bool { return b.focused }

// SetFocus is called by the manager when focus changes; it never recurses
// back into the manager.
func (b *Base) SetFocus(focused bool) {
	b.focused = focused
	b.dirty = true
}

func (b *Base) NeedsRepaint() bool { return b.dirty }
func (b *Base) Invalidate()        { b.dirty = true }
func (b *Base) ClearRepaint()      { b.dirty = false }
