package terminal

import (
	"image/color"

	"github.com/davidlandreman/corekernel/kernel/gfx/font"
	"github.com/davidlandreman/corekernel/kernel/input/ps2"
	"github.com/davidlandreman/corekernel/window"
)

// DefaultPalette is a 16-color VGA-style palette used to resolve a Cell's
// Fg/Bg indices into drawable colors when no other palette is supplied.
var DefaultPalette = [16]color.RGBA{
	{R: 0, G: 0, B: 0, A: 255}, {R: 0, G: 0, B: 170, A: 255},
	{R: 0, G: 170, B: 0, A: 255}, {R: 0, G: 170, B: 170, A: 255},
	{R: 170, G: 0, B: 0, A: 255}, {R: 170, G: 0, B: 170, A: 255},
	{R: 170, G: 85, B: 0, A: 255}, {R: 170, G: 170, B: 170, A: 255},
	{R: 85, G: 85, B: 85, A: 255}, {R: 85, G: 85, B: 255, A: 255},
	{R: 85, G: 255, B: 85, A: 255}, {R: 85, G: 255, B: 255, A: 255},
	{R: 255, G: 85, B: 85, A: 255}, {R: 255, G: 85, B: 255, A: 255},
	{R: 255, G: 255, B: 85, A: 255}, {R: 255, G: 255, B: 255, A: 255},
}

// InputCallback is invoked with a completed line of input once the user
// presses Enter.
type InputCallback func(line string)

// TerminalWindow is a scrollback text grid with a single editable input
// line at the cursor, driven by typed keyboard events rather than the
// io.Writer byte stream device/tty.VT expects. It plays VT's role for the
// window system: line discipline and command-line editing (history
// recall, backspace-stops-at-the-prompt) live here instead of in a shell
// process reading a pipe.
type TerminalWindow struct {
	window.Base

	grid    *Grid
	face    font.Face
	palette [16]color.RGBA

	inputBuffer   []byte
	inputCallback InputCallback
	history       []string
	historyIndex  int
}

// NewTerminalWindow creates a terminal window covering bounds, laying out
// a character grid sized to fit face's glyph cell, with scrollback extra
// lines kept beyond the visible viewport.
func NewTerminalWindow(id window.WindowId, bounds window.Rect, face font.Face, scrollback uint32) *TerminalWindow {
	cols := uint32(bounds.Width / face.CharWidth())
	rows := uint32(bounds.Height / face.CharHeight())
	if cols == 0 {
		cols = 1
	}
	if rows == 0 {
		rows = 1
	}

	w := &TerminalWindow{
		Base:    window.NewBase(id, bounds, true),
		grid:    NewGrid(cols, rows, scrollback, 4, 7, 0),
		face:    face,
		palette: DefaultPalette,
	}
	w.beginInputLine()
	return w
}

// OnInput registers the callback invoked when the user presses Enter.
func (w *TerminalWindow) OnInput(cb InputCallback) {
	w.inputCallback = cb
}

// Write appends s to the terminal's contents, e.g. for program output that
// is not itself part of the input line being edited.
func (w *TerminalWindow) Write(s string) {
	w.grid.Write([]byte(s))
	w.Invalidate()
}

// WriteLine is Write with a trailing newline.
func (w *TerminalWindow) WriteLine(s string) {
	w.Write(s + "\n")
}

func (w *TerminalWindow) beginInputLine() {
	w.inputBuffer = w.inputBuffer[:0]
	w.historyIndex = len(w.history)
}

// replaceInputLine clears whatever is currently on the input line and
// replaces it with s, used by history recall.
func (w *TerminalWindow) replaceInputLine(s string) {
	for len(w.inputBuffer) > 0 {
		w.eraseLastChar()
	}
	w.inputBuffer = append(w.inputBuffer[:0], s...)
	w.grid.Write([]byte(s))
	w.Invalidate()
}

func (w *TerminalWindow) eraseLastChar() {
	if len(w.inputBuffer) == 0 {
		return
	}
	w.inputBuffer = w.inputBuffer[:len(w.inputBuffer)-1]
	w.grid.WriteByte('\b')
}

func (w *TerminalWindow) handleBackspace() {
	// Never erase past the prompt: backspace on an empty input line is a
	// no-op, matching a shell's usual behavior.
	if len(w.inputBuffer) == 0 {
		return
	}
	w.eraseLastChar()
	w.Invalidate()
}

func (w *TerminalWindow) handleEnter() {
	line := string(w.inputBuffer)
	w.grid.WriteByte('\n')
	if line != "" {
		w.history = append(w.history, line)
	}
	w.Invalidate()

	if w.inputCallback != nil {
		w.inputCallback(line)
	}
	w.beginInputLine()
}

func (w *TerminalWindow) handleUpArrow() {
	if w.historyIndex == 0 {
		return
	}
	w.historyIndex--
	w.replaceInputLine(w.history[w.historyIndex])
}

func (w *TerminalWindow) handleDownArrow() {
	if w.historyIndex >= len(w.history) {
		return
	}
	w.historyIndex++
	if w.historyIndex == len(w.history) {
		w.replaceInputLine("")
		return
	}
	w.replaceInputLine(w.history[w.historyIndex])
}

// HandleEvent implements window.Window. Only key-down events act: key
// releases carry no terminal semantics here.
func (w *TerminalWindow) HandleEvent(ev window.Event) window.EventResult {
	if ev.Keyboard == nil || !ev.Keyboard.Pressed {
		return window.EventIgnored
	}

	switch ev.Keyboard.Code {
	case ps2.KeyEnter:
		w.handleEnter()
	case ps2.KeyBackspace:
		w.handleBackspace()
	case ps2.KeyUp:
		w.handleUpArrow()
	case ps2.KeyDown:
		w.handleDownArrow()
	default:
		ch, ok := keycodeToChar(ev.Keyboard.Code, ev.Keyboard.Modifiers)
		if !ok {
			return window.EventIgnored
		}
		w.inputBuffer = append(w.inputBuffer, ch)
		w.grid.WriteByte(ch)
		w.Invalidate()
	}
	return window.EventHandled
}

// Paint implements window.Window, rendering every grid cell's glyph into
// ctx.Canvas at its character cell position, clipped to ctx.Clip.
func (w *TerminalWindow) Paint(ctx window.PaintContext) {
	cw, ch := w.face.CharWidth(), w.face.CharHeight()
	cols, rows := w.grid.ViewportSize()

	for row := uint32(1); row <= rows; row++ {
		for col := uint32(1); col <= cols; col++ {
			cell := w.grid.Cell(col, row)
			px := ctx.Bounds.X + int(col-1)*cw
			py := ctx.Bounds.Y + int(row-1)*ch
			w.paintGlyph(ctx, px, py, cw, ch, cell)
		}
	}
}

func (w *TerminalWindow) paintGlyph(ctx window.PaintContext, px, py, cw, ch int, cell Cell) {
	bg := w.palette[cell.Bg%16]
	fg := w.palette[cell.Fg%16]

	for y := 0; y < ch; y++ {
		for x := 0; x < cw; x++ {
			abs := window.Point{X: px + x, Y: py + y}
			if ctx.Clip.Contains(abs) {
				ctx.Canvas.DrawPixel(abs.X, abs.Y, bg)
			}
		}
	}

	bitmap, ok := w.face.Glyph(rune(cell.Ch))
	if !ok {
		return
	}
	bpr := w.face.BytesPerRow()
	for y := 0; y < ch; y++ {
		for x := 0; x < cw; x++ {
			byteIdx := y*bpr + x/8
			if byteIdx >= len(bitmap) || bitmap[byteIdx]&(1<<uint(7-x%8)) == 0 {
				continue
			}
			abs := window.Point{X: px + x, Y: py + y}
			if ctx.Clip.Contains(abs) {
				ctx.Canvas.DrawPixel(abs.X, abs.Y, fg)
			}
		}
	}
}
