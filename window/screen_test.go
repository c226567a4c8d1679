package window

import "testing"

func TestAddScreenFirstBecomesActive(t *testing.T) {
	sm := NewScreenManager()
	s := NewScreen(ModeText)
	sm.AddScreen(s)

	active, ok := sm.Active()
	if !ok || active.ID != s.ID {
		t.Fatal("expected the first registered screen to become active")
	}
}

func TestSetActiveSwitchesScreens(t *testing.T) {
	sm := NewScreenManager()
	a := NewScreen(ModeText)
	b := NewScreen(ModeGUI)
	sm.AddScreen(a)
	sm.AddScreen(b)

	if !sm.SetActive(b.ID) {
		t.Fatal("expected SetActive to succeed for a registered screen")
	}
	active, _ := sm.Active()
	if active.ID != b.ID {
		t.Fatal("expected the active screen to switch to b")
	}
}

func TestSetActiveRejectsUnknownScreen(t *testing.T) {
	sm := NewScreenManager()
	if sm.SetActive(999) {
		t.Fatal("expected SetActive to fail for an unregistered screen id")
	}
}

func TestScreenSetRootWindow(t *testing.T) {
	s := NewScreen(ModeGUI)
	s.SetRootWindow(42)
	if s.RootWindow != 42 {
		t.Fatal("expected SetRootWindow to update RootWindow")
	}
}
