// Package terminal implements a windowed terminal: a scrollback text grid
// driven by typed keyboard events rather than raw bytes, plus the
// line-editing and output-routing glue that turns it into a shell window.
package terminal

// Cell is one character position in a Grid: a byte together with the
// foreground/background color pair it was written with.
type Cell struct {
	Ch     byte
	Fg, Bg uint8
}

// Grid is a VT100-ish line-discipline text buffer: it understands \r, \n,
// \b and \t the same way device/tty.VT does, but keeps its whole contents
// addressable (Cell) instead of requiring an attached console.Device to
// read them back from, since a window's Paint method needs random access
// to draw glyphs into a gfx.Canvas rather than streaming them to hardware.
type Grid struct {
	viewportWidth, viewportHeight uint32
	scrollback                    uint32
	termHeight                    uint32

	cells []Cell

	tabWidth         uint8
	defaultFg, curFg uint8
	defaultBg, curBg uint8
	cursorX, cursorY uint32 // 1-based, like device/tty.VT
	viewportY        uint32
	dataOffset       uint
}

// NewGrid allocates a grid with the given viewport size, scrollback depth
// (extra lines beyond the viewport) and default colors.
func NewGrid(width, height, scrollback uint32, tabWidth uint8, fg, bg uint8) *Grid {
	g := &Grid{
		viewportWidth:  width,
		viewportHeight: height,
		scrollback:     scrollback,
		termHeight:     height + scrollback,
		tabWidth:       tabWidth,
		defaultFg:      fg,
		defaultBg:      bg,
		curFg:          fg,
		curBg:          bg,
		cursorX:        1,
		cursorY:        1,
	}
	g.cells = make([]Cell, g.viewportWidth*g.termHeight)
	for i := range g.cells {
		g.cells[i] = Cell{Ch: ' ', Fg: fg, Bg: bg}
	}
	return g
}

// CursorPosition returns the 1-based viewport-relative cursor position.
func (g *Grid) CursorPosition() (uint32, uint32) {
	return g.cursorX, g.cursorY
}

// ViewportSize returns the grid's visible width and height in characters.
func (g *Grid) ViewportSize() (uint32, uint32) {
	return g.viewportWidth, g.viewportHeight
}

// Cell returns the character at viewport-relative (x, y), both 1-based.
// Coordinates outside the viewport return a blank cell.
func (g *Grid) Cell(x, y uint32) Cell {
	if x < 1 || x > g.viewportWidth || y < 1 || y > g.viewportHeight {
		return Cell{Ch: ' ', Fg: g.defaultFg, Bg: g.defaultBg}
	}
	offset := (y - 1 + g.viewportY) * g.viewportWidth + (x - 1)
	return g.cells[offset]
}

// Write implements io.Writer.
func (g *Grid) Write(data []byte) (int, error) {
	for _, b := range data {
		g.WriteByte(b)
	}
	return len(data), nil
}

// WriteByte implements io.ByteWriter.
func (g *Grid) WriteByte(b byte) error {
	switch b {
	case '\r':
		g.cr()
	case '\n':
		g.lf(true)
	case '\b':
		if g.cursorX > 1 {
			g.setCursor(g.cursorX-1, g.cursorY)
			g.put(' ', false)
		}
	case '\t':
		for i := uint8(0); i < g.tabWidth; i++ {
			g.put(' ', true)
		}
	default:
		g.put(b, true)
	}
	return nil
}

func (g *Grid) setCursor(x, y uint32) {
	if x < 1 {
		x = 1
	} else if x > g.viewportWidth {
		x = g.viewportWidth
	}
	if y < 1 {
		y = 1
	} else if y > g.viewportHeight {
		y = g.viewportHeight
	}
	g.cursorX, g.cursorY = x, y
	g.updateDataOffset()
}

func (g *Grid) put(b byte, advance bool) {
	g.cells[g.dataOffset] = Cell{Ch: b, Fg: g.curFg, Bg: g.curBg}
	if advance {
		g.dataOffset++
		g.cursorX++
		if g.cursorX > g.viewportWidth {
			g.lf(true)
		}
	}
}

func (g *Grid) cr() {
	g.cursorX = 1
	g.updateDataOffset()
}

func (g *Grid) lf(withCR bool) {
	if withCR {
		g.cursorX = 1
	}

	switch {
	case g.cursorY+1 <= g.viewportHeight:
		g.cursorY++
	default:
		if g.viewportY+g.viewportHeight < g.termHeight {
			g.viewportY++
		} else {
			start := int(g.viewportY) * int(g.viewportWidth)
			end := int(g.viewportY+g.viewportHeight-1) * int(g.viewportWidth)
			copy(g.cells[start:end], g.cells[start+int(g.viewportWidth):end+int(g.viewportWidth)])
			for i := end; i < end+int(g.viewportWidth); i++ {
				g.cells[i] = Cell{Ch: ' ', Fg: g.defaultFg, Bg: g.defaultBg}
			}
		}
	}
	g.updateDataOffset()
}

func (g *Grid) updateDataOffset() {
	g.dataOffset = uint((g.viewportY+(g.cursorY-1))*g.viewportWidth + (g.cursorX - 1))
}
