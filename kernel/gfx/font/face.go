// Package font provides glyph sources for kernel/gfx text rendering: the
// console's embedded bitmap table, a VFNT fixed-width loader, and a
// TrueType rasterizer.
package font

// Face is implemented by every font backend kernel/gfx can render glyphs
// from, regardless of whether the underlying data is a fixed bitmap table
// or a rasterized outline font.
type Face interface {
	// Glyph returns the 1-bit-per-pixel bitmap for ch, packed MSB-first
	// with BytesPerRow() bytes per scanline, or false if the face has no
	// glyph for that character.
	Glyph(ch rune) (bitmap []byte, ok bool)

	// CharWidth returns the glyph width in pixels.
	CharWidth() int

	// CharHeight returns the glyph height in pixels.
	CharHeight() int

	// BytesPerRow returns the number of bytes used to encode one
	// scanline of a glyph bitmap.
	BytesPerRow() int
}

// bytesPerRow computes the packed row stride for a given pixel width,
// matching the (width+7)/8 rule used throughout the original font code.
func bytesPerRow(width int) int {
	return (width + 7) / 8
}
