package font

import (
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/davidlandreman/corekernel/device/video/console/font"
)

// EmbeddedFace adapts the console's existing bitmap font table
// (device/video/console/font.Font) to the Face interface, so the same
// 8x8/10x14-style tables used by the text console can also be rendered by
// kernel/gfx onto a graphics canvas. If no console font table is available
// it falls back to golang.org/x/image/font/basicfont.Face7x13 instead of a
// second hand-rolled bitmap table.
type EmbeddedFace struct {
	firstChar rune
	numChars  int
	f         *font.Font
	fallback  *basicfont.Face
}

// NewEmbeddedFace wraps an existing console font table. firstChar and
// numChars describe the contiguous character range the table covers,
// mirroring the console driver's font-selection convention. A nil f selects
// the basicfont.Face7x13 fallback.
func NewEmbeddedFace(f *font.Font, firstChar rune, numChars int) *EmbeddedFace {
	e := &EmbeddedFace{firstChar: firstChar, numChars: numChars, f: f}
	if f == nil {
		e.fallback = basicfont.Face7x13
	}
	return e
}

// Glyph returns the bitmap rows for ch, packed one bit per pixel, out of
// either the wrapped font table or the basicfont fallback.
func (e *EmbeddedFace) Glyph(ch rune) ([]byte, bool) {
	if e.fallback != nil {
		return fallbackGlyph(e.fallback, ch)
	}

	if ch < e.firstChar || int(ch-e.firstChar) >= e.numChars {
		return nil, false
	}

	glyphIndex := int(ch - e.firstChar)
	bytesPerGlyph := int(e.f.BytesPerRow * e.f.GlyphHeight)
	offset := glyphIndex * bytesPerGlyph
	if offset+bytesPerGlyph > len(e.f.Data) {
		return nil, false
	}

	return e.f.Data[offset : offset+bytesPerGlyph], true
}

// CharWidth returns the glyph width in pixels.
func (e *EmbeddedFace) CharWidth() int {
	if e.fallback != nil {
		return e.fallback.Width
	}
	return int(e.f.GlyphWidth)
}

// CharHeight returns the glyph height in pixels.
func (e *EmbeddedFace) CharHeight() int {
	if e.fallback != nil {
		return e.fallback.Height
	}
	return int(e.f.GlyphHeight)
}

// BytesPerRow returns the number of bytes used to encode one scanline.
func (e *EmbeddedFace) BytesPerRow() int {
	if e.fallback != nil {
		return (e.fallback.Width + 7) / 8
	}
	return int(e.f.BytesPerRow)
}

// fallbackGlyph rasterizes ch out of a basicfont.Face's alpha mask into the
// same packed-bitmap shape device/video/console/font.Font.Data already uses.
func fallbackGlyph(face *basicfont.Face, ch rune) ([]byte, bool) {
	dr, mask, maskp, _, ok := face.Glyph(fixed.Point26_6{}, ch)
	if !ok {
		return nil, false
	}

	width, height := face.Width, face.Height
	bytesPerRow := (width + 7) / 8
	data := make([]byte, bytesPerRow*height)

	glyphW, glyphH := dr.Dx(), dr.Dy()
	for y := 0; y < height && y < glyphH; y++ {
		for x := 0; x < width && x < glyphW; x++ {
			_, _, _, a := mask.At(maskp.X+x, maskp.Y+y).RGBA()
			if a == 0 {
				continue
			}
			data[y*bytesPerRow+x/8] |= 0x80 >> uint(x%8)
		}
	}

	return data, true
}
