package terminal

import "github.com/davidlandreman/corekernel/window"

// Register makes w reachable through window's console-routing slot: output
// written with window.Write before any terminal exists is replayed into w,
// and w becomes the fallback output target until another terminal is
// registered as default.
func (w *TerminalWindow) Register() {
	window.RegisterTerminal(w.ID())
	window.SetDefaultOutputTerminal(w.ID())
	for _, line := range window.TakeEarlyBuffer() {
		w.Write(line)
	}
}

// Unregister detaches w from console routing. Call it when the window is
// destroyed so routing slots don't reference a dead window.
func (w *TerminalWindow) Unregister() {
	window.UnregisterTerminal(w.ID())
}

// DrainRoutedOutput pulls any output queued for w via window.WriteToTerminal
// (as opposed to Write, which callers on the window's own goroutine use
// directly) and appends it to the grid. WindowManager.Tick calls this for
// every terminal id returned by window.TakePendingInvalidations, and the
// kernel's main loop also calls it once per frame.
func (w *TerminalWindow) DrainRoutedOutput() {
	for _, line := range window.TakeTerminalOutput(w.ID()) {
		w.grid.Write([]byte(line))
	}
	w.Invalidate()
}
