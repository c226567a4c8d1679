package window

import (
	"github.com/davidlandreman/corekernel/kernel/gfx"
	ksync "github.com/davidlandreman/corekernel/kernel/sync"
)

// node is the registry's bookkeeping for one window: its hierarchy
// position and, once bound, the Window implementation itself. Windows are
// created in two steps (CreateWindow then SetImpl) because a window often
// needs its own id before it can construct itself.
type node struct {
	hasParent bool
	parent    WindowId
	children  []WindowId
	impl      Window
}

// ActionKind enumerates the deferred actions a window's event handler can
// ask the manager to perform once the current dispatch has returned, so
// that no handler ever calls back into the manager while the manager's own
// lock might still be held by its caller.
type ActionKind int

const (
	ActionFocusWindow ActionKind = iota
	ActionBringToFront
	ActionDestroyWindow
	ActionShowWindow
	ActionHideWindow
)

// PendingAction is one deferred mutation queued by a window (or by input
// dispatch) for the manager to apply on its next Tick.
type PendingAction struct {
	Kind   ActionKind
	Window WindowId
}

// WindowManager owns every window's lifetime, hierarchy, z-order and
// focus. All mutation goes through a single spinlock; window callbacks
// (Paint, HandleEvent) are always invoked with that lock released, and any
// mutation they want to trigger goes through QueueAction instead of
// calling back into the manager directly.
type WindowManager struct {
	mu     ksync.Spinlock
	nodes  map[WindowId]*node
	zOrder []WindowId
	focus  WindowId

	actionMu ksync.Spinlock
	actions  []PendingAction
}

// NewWindowManager returns an empty manager with no windows and no focus.
func NewWindowManager() *WindowManager {
	return &WindowManager{nodes: make(map[WindowId]*node)}
}

// CreateWindow allocates a fresh id, records it under parent (or as a new
// top-level root if parent is zero) and returns the id. The window has no
// implementation yet; call SetImpl to bind one before the next Paint.
func (m *WindowManager) CreateWindow(parent WindowId) WindowId {
	m.mu.Acquire()
	defer m.mu.Release()

	id := newWindowID()
	n := &node{}
	if parent != 0 {
		n.hasParent, n.parent = true, parent
		if pn, ok := m.nodes[parent]; ok {
			pn.children = append(pn.children, id)
		}
	} else {
		m.zOrder = append(m.zOrder, id)
	}
	m.nodes[id] = n
	return id
}

// SetImpl binds the concrete Window implementation for a previously
// created id. It is a no-op if the id is unknown or already destroyed.
func (m *WindowManager) SetImpl(id WindowId, w Window) {
	m.mu.Acquire()
	defer m.mu.Release()
	if n, ok := m.nodes[id]; ok {
		n.impl = w
	}
}

// Lookup returns the Window implementation bound to id, if any.
func (m *WindowManager) Lookup(id WindowId) (Window, bool) {
	m.mu.Acquire()
	defer m.mu.Release()
	n, ok := m.nodes[id]
	if !ok || n.impl == nil {
		return nil, false
	}
	return n.impl, true
}

// DestroyWindow removes id and its entire subtree from the registry,
// detaching it from its parent's child list (or the root z-order) and
// clearing focus if the destroyed subtree held it.
func (m *WindowManager) DestroyWindow(id WindowId) {
	m.mu.Acquire()
	defer m.mu.Release()
	m.destroyLocked(id)
}

func (m *WindowManager) destroyLocked(id WindowId) {
	n, ok := m.nodes[id]
	if !ok {
		return
	}
	for _, child := range n.children {
		m.destroyLocked(child)
	}
	if n.hasParent {
		if pn, ok := m.nodes[n.parent]; ok {
			pn.children = removeID(pn.children, id)
		}
	} else {
		m.zOrder = removeID(m.zOrder, id)
	}
	if m.focus == id {
		m.focus = 0
	}
	delete(m.nodes, id)
}

func removeID(ids []WindowId, target WindowId) []WindowId {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// FocusWindow sets the keyboard focus. The previous and new focus holders
// are both notified via SetFocus and invalidated so they repaint with
// updated focus chrome.
func (m *WindowManager) FocusWindow(id WindowId) {
	m.mu.Acquire()
	prev := m.focus
	m.focus = id
	var prevImpl, newImpl Window
	if n, ok := m.nodes[prev]; ok {
		prevImpl = n.impl
	}
	if n, ok := m.nodes[id]; ok {
		newImpl = n.impl
	}
	m.mu.Release()

	if prevImpl != nil {
		prevImpl.SetFocus(false)
	}
	if newImpl != nil {
		newImpl.SetFocus(true)
	}
}

// Focused returns the id of the window currently holding keyboard focus,
// and false if no window has focus.
func (m *WindowManager) Focused() (WindowId, bool) {
	m.mu.Acquire()
	defer m.mu.Release()
	return m.focus, m.focus != 0
}

// BringToFront raises id (and its whole subtree, implicitly, since
// painting always descends through children) above its siblings.
func (m *WindowManager) BringToFront(id WindowId) {
	m.mu.Acquire()
	defer m.mu.Release()

	n, ok := m.nodes[id]
	if !ok {
		return
	}
	if n.hasParent {
		if pn, ok := m.nodes[n.parent]; ok {
			pn.children = append(removeID(pn.children, id), id)
		}
		return
	}
	m.zOrder = append(removeID(m.zOrder, id), id)
}

// QueueAction defers a mutation for the next Tick. Event handlers call
// this instead of calling FocusWindow/BringToFront/DestroyWindow directly,
// so they never re-enter the manager's lock mid-dispatch.
func (m *WindowManager) QueueAction(a PendingAction) {
	m.actionMu.Acquire()
	m.actions = append(m.actions, a)
	m.actionMu.Release()
}

// Tick first drains the pending-invalidation queue (see QueueInvalidation):
// a queued window that has a DrainRoutedOutput method has it called, and any
// other queued window is invalidated. It then drains and applies every
// action queued since the last Tick.
func (m *WindowManager) Tick() {
	for _, id := range TakePendingInvalidations() {
		if w, ok := m.Lookup(id); ok {
			if d, ok := w.(interface{ DrainRoutedOutput() }); ok {
				d.DrainRoutedOutput()
			} else {
				w.Invalidate()
			}
		}
	}

	m.actionMu.Acquire()
	pending := m.actions
	m.actions = nil
	m.actionMu.Release()

	for _, a := range pending {
		switch a.Kind {
		case ActionFocusWindow:
			m.FocusWindow(a.Window)
		case ActionBringToFront:
			m.BringToFront(a.Window)
		case ActionDestroyWindow:
			m.DestroyWindow(a.Window)
		case ActionShowWindow:
			m.setVisible(a.Window, true)
		case ActionHideWindow:
			m.setVisible(a.Window, false)
		}
	}
}

func (m *WindowManager) setVisible(id WindowId, visible bool) {
	if w, ok := m.Lookup(id); ok {
		if b, ok := w.(interface{ SetVisible(bool) }); ok {
			b.SetVisible(visible)
		}
	}
}

// Paint walks every root window depth-first, clipping each window's
// subtree to its own bounds intersected with its ancestors' clip, and
// calls Paint only on windows whose NeedsRepaint is true, clearing the
// flag immediately after. Lock acquisition is per-node: Paint callbacks
// always run with the manager's lock released.
func (m *WindowManager) Paint(canvas *gfx.Canvas) {
	m.mu.Acquire()
	roots := append([]WindowId(nil), m.zOrder...)
	m.mu.Release()

	full := Rect{X: 0, Y: 0, Width: canvas.Width(), Height: canvas.Height()}
	for _, id := range roots {
		m.paintSubtree(canvas, id, Point{0, 0}, full)
	}
}

func (m *WindowManager) paintSubtree(canvas *gfx.Canvas, id WindowId, origin Point, clip Rect) {
	m.mu.Acquire()
	n, ok := m.nodes[id]
	if !ok || n.impl == nil {
		m.mu.Release()
		return
	}
	impl := n.impl
	children := append([]WindowId(nil), n.children...)
	m.mu.Release()

	if !impl.Visible() {
		return
	}

	local := impl.Bounds()
	abs := Rect{X: origin.X + local.X, Y: origin.Y + local.Y, Width: local.Width, Height: local.Height}
	childClip, ok := abs.Intersection(clip)
	if !ok {
		return
	}

	if impl.NeedsRepaint() {
		impl.Paint(PaintContext{Canvas: canvas, Bounds: abs, Clip: childClip})
		impl.ClearRepaint()
	}

	for _, child := range children {
		m.paintSubtree(canvas, child, Point{abs.X, abs.Y}, childClip)
	}
}

// Dispatch routes ev to a window. Keyboard events go to the focused
// window; mouse events are hit-tested against the z-order, topmost window
// first, descending into children in z-order. Dispatch never re-enters
// CreateWindow/FocusWindow/etc. itself beyond what it returns to the
// caller as an EventResult.
func (m *WindowManager) Dispatch(ev Event) EventResult {
	if ev.Keyboard != nil {
		return m.dispatchKeyboard(ev)
	}
	if ev.Mouse != nil {
		return m.dispatchMouse(ev)
	}
	return EventIgnored
}

func (m *WindowManager) dispatchKeyboard(ev Event) EventResult {
	m.mu.Acquire()
	target := m.focus
	var impl Window
	if n, ok := m.nodes[target]; ok {
		impl = n.impl
	}
	m.mu.Release()

	if impl == nil {
		return EventIgnored
	}
	return impl.HandleEvent(ev)
}

func (m *WindowManager) dispatchMouse(ev Event) EventResult {
	pt := Point{X: int(ev.Mouse.X), Y: int(ev.Mouse.Y)}

	m.mu.Acquire()
	roots := append([]WindowId(nil), m.zOrder...)
	m.mu.Release()

	for i := len(roots) - 1; i >= 0; i-- {
		if target, ok := m.hitTest(roots[i], Point{0, 0}, pt); ok {
			return target.HandleEvent(ev)
		}
	}
	return EventIgnored
}

// hitTest returns the deepest visible window under pt within id's
// subtree, preferring the topmost (last) child whose bounds contain it.
func (m *WindowManager) hitTest(id WindowId, origin Point, pt Point) (Window, bool) {
	m.mu.Acquire()
	n, ok := m.nodes[id]
	if !ok || n.impl == nil {
		m.mu.Release()
		return nil, false
	}
	impl := n.impl
	children := append([]WindowId(nil), n.children...)
	m.mu.Release()

	if !impl.Visible() {
		return nil, false
	}

	local := impl.Bounds()
	abs := Rect{X: origin.X + local.X, Y: origin.Y + local.Y, Width: local.Width, Height: local.Height}
	if !abs.Contains(pt) {
		return nil, false
	}

	for i := len(children) - 1; i >= 0; i-- {
		if hit, ok := m.hitTest(children[i], Point{abs.X, abs.Y}, pt); ok {
			return hit, true
		}
	}
	return impl, true
}
