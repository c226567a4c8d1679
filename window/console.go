package window

import ksync "github.com/davidlandreman/corekernel/kernel/sync"

// Console routing directs early-boot output (written before any terminal
// window exists) to a buffer, then switches over to invalidating a
// terminal window once one is set as the default or current output
// terminal. This mirrors the Rust original's
// module-level TERMINAL_WINDOW/CURRENT_OUTPUT_TERMINAL/TERMINAL_BUFFERS
// globals: a handful of single, named, process-wide slots rather than
// values threaded through every call site.
var (
	outputMu      ksync.Spinlock
	defaultOutput WindowId // the default/fallback terminal, usually the first one created
	currentOutput WindowId // explicit routing override, 0 means "use defaultOutput"

	bufferMu     ksync.Spinlock
	earlyBuffer  []string
	terminalBufs = map[WindowId][]string{}

	invalMu ksync.Spinlock
	inval   []WindowId
)

// SetDefaultOutputTerminal registers id as the terminal that receives
// output when no explicit routing override is set.
func SetDefaultOutputTerminal(id WindowId) {
	outputMu.Acquire()
	defaultOutput = id
	outputMu.Release()
}

// SetCurrentOutputTerminal overrides routing to send output to id until
// ClearCurrentOutputTerminal is called.
func SetCurrentOutputTerminal(id WindowId) {
	outputMu.Acquire()
	currentOutput = id
	outputMu.Release()
}

// ClearCurrentOutputTerminal removes the routing override, falling back to
// the default output terminal.
func ClearCurrentOutputTerminal() {
	outputMu.Acquire()
	currentOutput = 0
	outputMu.Release()
}

// CurrentOutputTerminal returns the terminal output should be routed to,
// preferring the override and falling back to the default. It returns
// false if neither has been set, meaning output must go to the early
// buffer instead.
func CurrentOutputTerminal() (WindowId, bool) {
	outputMu.Acquire()
	defer outputMu.Release()
	if currentOutput != 0 {
		return currentOutput, true
	}
	return defaultOutput, defaultOutput != 0
}

// RegisterTerminal gives id its own output FIFO so WriteToTerminal can
// target it directly.
func RegisterTerminal(id WindowId) {
	bufferMu.Acquire()
	if _, ok := terminalBufs[id]; !ok {
		terminalBufs[id] = nil
	}
	bufferMu.Release()
}

// UnregisterTerminal drops id's output FIFO.
func UnregisterTerminal(id WindowId) {
	bufferMu.Acquire()
	delete(terminalBufs, id)
	bufferMu.Release()

	outputMu.Acquire()
	if defaultOutput == id {
		defaultOutput = 0
	}
	if currentOutput == id {
		currentOutput = 0
	}
	outputMu.Release()
}

// WriteToTerminal appends s to id's output FIFO and queues an invalidation
// for id, so the window manager repaints it on its next Tick without the
// writer ever having to call back into the manager itself.
func WriteToTerminal(id WindowId, s string) {
	bufferMu.Acquire()
	terminalBufs[id] = append(terminalBufs[id], s)
	bufferMu.Release()

	QueueInvalidation(id)
}

// Write routes s to the current output terminal if one is set, or to the
// early-boot buffer otherwise.
func Write(s string) {
	if id, ok := CurrentOutputTerminal(); ok {
		WriteToTerminal(id, s)
		return
	}
	bufferMu.Acquire()
	earlyBuffer = append(earlyBuffer, s)
	bufferMu.Release()
}

// TakeTerminalOutput drains and returns id's pending output lines.
func TakeTerminalOutput(id WindowId) []string {
	bufferMu.Acquire()
	defer bufferMu.Release()
	lines := terminalBufs[id]
	terminalBufs[id] = nil
	return lines
}

// HasTerminalOutput reports whether id has pending, undrained output.
func HasTerminalOutput(id WindowId) bool {
	bufferMu.Acquire()
	defer bufferMu.Release()
	return len(terminalBufs[id]) > 0
}

// TakeEarlyBuffer drains output written while no output terminal was set,
// so the first terminal window can replay it on creation.
func TakeEarlyBuffer() []string {
	bufferMu.Acquire()
	defer bufferMu.Release()
	lines := earlyBuffer
	earlyBuffer = nil
	return lines
}

// QueueInvalidation records that id needs repainting. The manager drains
// this queue on Tick, outside its own lock, matching QueueAction's
// deadlock-avoidance shape for the paint path specifically.
func QueueInvalidation(id WindowId) {
	invalMu.Acquire()
	inval = append(inval, id)
	invalMu.Release()
}

// TakePendingInvalidations drains and returns the ids queued since the
// last call.
func TakePendingInvalidations() []WindowId {
	invalMu.Acquire()
	defer invalMu.Release()
	drained := inval
	inval = nil
	return drained
}
