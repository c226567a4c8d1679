package window

import ksync "github.com/davidlandreman/corekernel/kernel/sync"

// Screen is a virtual display: a mode (text or GUI) and the id of its
// root window, if one has been set.
type Screen struct {
	ID         ScreenId
	Mode       ScreenMode
	RootWindow WindowId // 0 means no root window set
}

// NewScreen allocates a screen in the given mode with no root window.
func NewScreen(mode ScreenMode) *Screen {
	return &Screen{ID: newScreenID(), Mode: mode}
}

// SetRootWindow binds id as this screen's root window.
func (s *Screen) SetRootWindow(id WindowId) {
	s.RootWindow = id
}

// ScreenManager tracks every screen and which one is currently active.
// Only one screen drives the display at a time; switching screens (e.g.
// text console to GUI desktop) is just swapping which one is active.
type ScreenManager struct {
	mu      ksync.Spinlock
	screens map[ScreenId]*Screen
	active  ScreenId
}

// NewScreenManager returns a manager with no screens registered.
func NewScreenManager() *ScreenManager {
	return &ScreenManager{screens: make(map[ScreenId]*Screen)}
}

// AddScreen registers s. If it is the first screen registered, it becomes
// active automatically.
func (sm *ScreenManager) AddScreen(s *Screen) {
	sm.mu.Acquire()
	defer sm.mu.Release()
	sm.screens[s.ID] = s
	if sm.active == 0 {
		sm.active = s.ID
	}
}

// SetActive switches the active screen to id, if registered.
func (sm *ScreenManager) SetActive(id ScreenId) bool {
	sm.mu.Acquire()
	defer sm.mu.Release()
	if _, ok := sm.screens[id]; !ok {
		return false
	}
	sm.active = id
	return true
}

// Active returns the currently active screen, and false if none is set.
func (sm *ScreenManager) Active() (*Screen, bool) {
	sm.mu.Acquire()
	defer sm.mu.Release()
	s, ok := sm.screens[sm.active]
	return s, ok
}
